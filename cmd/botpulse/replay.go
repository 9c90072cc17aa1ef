package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"botpulse/internal/backtest"
	"botpulse/internal/strategy"
)

var (
	replayBot     uint64
	replayBuckets int
	replayStart   string
	replayJSON    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the simulation for one bot in memory over a run of tick buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now().Add(-time.Duration(replayBuckets) * cfg.Schedule.TickInterval.Duration)
		if replayStart != "" {
			start, err = time.Parse(time.RFC3339, replayStart)
			if err != nil {
				return fmt.Errorf("parsing --start: %w", err)
			}
		}

		runner := backtest.NewRunner(a.reader, a.risk, a.strategy, a.settings)
		res, err := runner.Run(ctx, replayBot, start, replayBuckets)
		if err != nil {
			color.Red("replay failed: %v", err)
			return err
		}

		if replayJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		color.New(color.FgGreen, color.Bold).Printf("bot %d (%s), %d buckets from %s\n",
			res.BotID, res.Account, len(res.Frames), start.UTC().Format(time.RFC3339))
		fmt.Printf("  buy %d  sell %d  hold %d  trades %d\n",
			res.Decisions[strategy.Buy], res.Decisions[strategy.Sell], res.Decisions[strategy.Hold], res.Trades)
		equity := color.New(color.FgWhite)
		if res.FinalEquity < 100 {
			equity = color.New(color.FgRed)
		}
		equity.Printf("  final equity %.4f  peak %.4f  max drawdown %.2f%%\n",
			res.FinalEquity, res.PeakEquity, res.MaxDrawdown*100)
		return nil
	},
}

func init() {
	replayCmd.Flags().Uint64Var(&replayBot, "bot", 0, "bot id")
	replayCmd.Flags().IntVar(&replayBuckets, "buckets", 60, "number of tick buckets to replay")
	replayCmd.Flags().StringVar(&replayStart, "start", "", "RFC3339 start time (default buckets ticks before now)")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print every frame as JSON")
	replayCmd.MarkFlagRequired("bot")
}
