package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/azulcer/cerasim/sim"
	"github.com/azulcer/cerasim/sim/factory"
)

var (
	sweepScenarios []string // Scenario keys to compare
	sweepParallel  int      // Maximum concurrent runs
)

// sweepCmd runs several scenarios with the same seed and compares them
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run several scenarios concurrently and compare their summaries",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadFactoryConfig()
		if simDays <= 0 {
			logrus.Fatalf("--days must be positive, got %d", simDays)
		}
		names := sweepScenarios
		if len(names) == 0 {
			names = cfg.ScenarioNames()
		}
		for _, name := range names {
			if _, err := cfg.Scenario(name); err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		startTime := time.Now()
		results, err := runSweep(cfg, names, int64(simDays)*sim.TicksPerDay, sweepParallel)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		if err := printComparison(os.Stdout, results, time.Since(startTime)); err != nil {
			logrus.Fatalf("Failed to print comparison: %v", err)
		}
		if resultsPath != "" {
			if err := saveResults(results, resultsPath); err != nil {
				logrus.Fatalf("Failed to save results: %v", err)
			}
			logrus.Infof("Results written to %s", resultsPath)
		}
	},
}

// runSweep runs one simulation per scenario. Runs share nothing, so they
// execute on separate goroutines; results keep the order of names.
func runSweep(cfg *factory.Config, names []string, horizon int64, parallel int) ([]*factory.Result, error) {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	results := make([]*factory.Result, len(names))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, name := range names {
		i, name := i, name
		opts := runOptions(name)
		g.Go(func() error {
			logrus.Infof("Sweep: starting scenario %s", name)
			res, err := factory.Run(cfg, opts, seed, horizon)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func init() {
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringSliceVar(&sweepScenarios, "scenarios", nil, "Comma-separated scenario keys (default: all)")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "Maximum concurrent runs (default: GOMAXPROCS)")

	rootCmd.AddCommand(sweepCmd)
}
