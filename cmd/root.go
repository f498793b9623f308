package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/factory"
)

var (
	seed             int64  // Seed for every random stream of the run
	simDays          int    // Simulated days
	scenarioName     string // Scenario key
	configPath       string // Optional YAML factory configuration
	logLevel         string // Log verbosity level
	failurePolicy    string // What a breakdown does to in-flight work
	fulfilmentPolicy string // What happens to partially covered orders
	resultsPath      string // File to write the full JSON results to
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cerasim",
	Short: "Discrete-event simulator for a ceramic-tile supply chain",
}

// runCmd executes one scenario using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one factory scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadFactoryConfig()
		if simDays <= 0 {
			logrus.Fatalf("--days must be positive, got %d", simDays)
		}

		opts := runOptions(scenarioName)
		horizon := int64(simDays) * sim.TicksPerDay
		logrus.Infof("Starting simulation: scenario=%s, days=%d, seed=%d, failure policy=%s, fulfilment policy=%s",
			opts.Scenario, simDays, seed, failurePolicy, fulfilmentPolicy)

		startTime := time.Now()
		res, err := factory.Run(cfg, opts, seed, horizon)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := printSummary(os.Stdout, res, time.Since(startTime)); err != nil {
			logrus.Fatalf("Failed to print summary: %v", err)
		}
		if resultsPath != "" {
			if err := saveResults(res, resultsPath); err != nil {
				logrus.Fatalf("Failed to save results: %v", err)
			}
			logrus.Infof("Results written to %s", resultsPath)
		}

		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadFactoryConfig returns the built-in tables, or the --config file when set.
func loadFactoryConfig() *factory.Config {
	if configPath == "" {
		return factory.DefaultConfig()
	}
	cfg, err := factory.LoadConfig(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load factory config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid factory config %s: %v", configPath, err)
	}
	return cfg
}

func runOptions(scenario string) factory.Options {
	fp, err := sim.ParseFailurePolicy(failurePolicy)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	op, err := factory.ParseFulfilmentPolicy(fulfilmentPolicy)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return factory.Options{Scenario: scenario, FailurePolicy: fp, FulfilmentPolicy: op}
}

// addRunFlags registers the flags shared by run and sweep.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for every random stream of the run")
	cmd.Flags().IntVar(&simDays, "days", factory.DefaultSimDays, "Simulated days")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML factory configuration (default: built-in AzulCer tables)")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&failurePolicy, "failure-policy", string(sim.FailureCompleteInFlight), "Breakdown policy for busy machines (complete, preempt)")
	cmd.Flags().StringVar(&fulfilmentPolicy, "fulfilment-policy", string(factory.FulfilShipPartial), "Policy for partially covered orders (ship-partial, all-or-nothing)")
	cmd.Flags().StringVar(&resultsPath, "results-path", "", "File to write the full JSON results to")
}

// init sets up CLI flags and subcommands
func init() {
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&scenarioName, "scenario", factory.ScenarioBaseline, "Scenario key (baseline, supply_disruption, demand_surge, optimised)")

	rootCmd.AddCommand(runCmd)
}
