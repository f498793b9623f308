package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configCmd prints the effective factory configuration, a starting point
// for a custom --config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the factory configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadFactoryConfig()
		data, err := cfg.Marshal()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	},
}

func init() {
	configCmd.Flags().StringVar(&configPath, "config", "", "YAML factory configuration to validate and echo (default: built-in AzulCer tables)")
	configCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(configCmd)
}
