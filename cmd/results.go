package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/azulcer/cerasim/sim/factory"
	"github.com/azulcer/cerasim/sim/record"
)

// printSummary writes the run's summary as JSON under a header.
func printSummary(w io.Writer, res *factory.Result, elapsed time.Duration) error {
	data, err := json.MarshalIndent(struct {
		Scenario   string          `json:"scenario"`
		Seed       int64           `json:"seed"`
		SimHours   float64         `json:"sim_hours"`
		Events     int64           `json:"events"`
		WallTimeMs int64           `json:"wall_time_ms"`
		Summary    *record.Summary `json:"summary"`
	}{
		Scenario:   res.Scenario,
		Seed:       res.Seed,
		SimHours:   record.Hours(res.EndTime),
		Events:     res.Events,
		WallTimeMs: elapsed.Milliseconds(),
		Summary:    res.Summary,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = fmt.Fprintf(w, "=== Simulation Metrics ===\n%s\n", data)
	return err
}

// printComparison writes one row per scenario with the headline KPIs.
func printComparison(w io.Writer, results []*factory.Result, elapsed time.Duration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tBATCHES\tGRADE-A m²\tORDERS\tFILL %\tCANCELLED\tBREAKDOWNS\tSTALL h\tREVENUE €\tNET PROFIT €\tNET MARGIN %")
	for _, res := range results {
		s := res.Summary
		fmt.Fprintf(tw, "%s\t%d\t%.0f\t%d\t%.1f\t%d\t%d\t%.1f\t%s\t%s\t%.1f\n",
			res.Scenario, s.FinishedBatches, s.GradeAM2, s.Orders, s.FillRatePct,
			s.CancelledOrders, s.Breakdowns, totalStallHours(s), s.Revenue.StringFixed(2),
			s.NetProfit.StringFixed(2), s.NetMarginPct)
	}
	fmt.Fprintf(tw, "\n%d scenarios in %s\n", len(results), elapsed.Round(time.Millisecond))
	return tw.Flush()
}

func totalStallHours(s *record.Summary) float64 {
	stages := make([]string, 0, len(s.StallHours))
	for stage := range s.StallHours {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	total := 0.0
	for _, stage := range stages {
		total += s.StallHours[stage]
	}
	return total
}

// saveResults writes v as indented JSON to path.
func saveResults(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
