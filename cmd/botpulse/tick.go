package main

import (
	"encoding/json"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"botpulse/internal/performance"
	"botpulse/internal/scheduler"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single tick and print its summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.reader, a.engine(), a.store, performance.NewTracker(a.store), a.metrics, cfg.Schedule)
		sum, err := sched.Tick(ctx)
		if err != nil {
			color.Red("tick failed: %v", err)
			return err
		}

		head := color.New(color.FgGreen, color.Bold)
		head.Printf("tick %s at height %d\n", sum.RunID, sum.Height)
		printCounts(map[string]int{
			"roster":    int(sum.Roster),
			"processed": sum.Processed,
			"perf":      sum.PerfUpdated,
			"skipped":   sum.Skipped,
			"failed":    sum.Failed,
		}, "roster", "processed", "perf", "skipped", "failed")

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

// printCounts prints labelled counters in order, failures in red.
func printCounts(counts map[string]int, order ...string) {
	label := color.New(color.FgCyan)
	for _, k := range order {
		label.Printf("  %-10s", k)
		if k == "failed" && counts[k] > 0 {
			color.Red("%d", counts[k])
			continue
		}
		color.White("%d", counts[k])
	}
}
