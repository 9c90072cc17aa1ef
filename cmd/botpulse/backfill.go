package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"botpulse/internal/collector"
	"botpulse/internal/indexer"
)

var (
	backfillFrom   uint64
	backfillTo     uint64
	backfillResume bool
	backfillOut    string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Index bot account events over a block range into Kafka or a JSON lines file",
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

		sink, err := newSink(cfg.Indexer.KafkaBrokers, cfg.Indexer.KafkaTopic)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				slog.Warn("closing sink", "error", err)
			}
		}()

		// The indexer retries each log query itself, so it reads through
		// the bare client.
		ix := indexer.New(a.eth, a.policy, indexer.WithChunkSize(cfg.Indexer.ChunkSize))
		coll := collector.NewCollector(a.reader, ix, a.store, sink, a.metrics, collector.Settings{
			FromBlock: cfg.Indexer.FromBlock,
			MaxBots:   cfg.Schedule.MaxBots,
		})

		rep, err := coll.Run(ctx, collector.Range{From: backfillFrom, To: backfillTo, Resume: backfillResume})
		if err != nil {
			color.Red("backfill failed: %v", err)
			return err
		}

		color.New(color.FgGreen, color.Bold).Fprintf(os.Stderr, "backfill through block %d\n", rep.To)
		fmt.Fprintf(os.Stderr, "  bots %d  skipped %d  events %d  ", rep.Bots, rep.Skipped, rep.Events)
		if rep.Failed > 0 {
			color.New(color.FgRed).Fprintf(os.Stderr, "failed %d\n", rep.Failed)
		} else {
			fmt.Fprintf(os.Stderr, "failed 0\n")
		}
		return nil
	},
}

func init() {
	backfillCmd.Flags().Uint64Var(&backfillFrom, "from", 0, "first block (default indexer.from_block)")
	backfillCmd.Flags().Uint64Var(&backfillTo, "to", 0, "last block (default latest)")
	backfillCmd.Flags().BoolVar(&backfillResume, "resume", false, "start each bot past its last indexed block")
	backfillCmd.Flags().StringVar(&backfillOut, "out", "", `JSON lines output file, "-" for stdout (default Kafka when brokers are configured, else stdout)`)
}

func newSink(brokers, topic string) (collector.Sink, error) {
	switch {
	case backfillOut == "-" || (backfillOut == "" && brokers == ""):
		return collector.NewWriterSink(os.Stdout), nil
	case backfillOut != "":
		f, err := os.Create(backfillOut)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", backfillOut, err)
		}
		return &fileSink{WriterSink: collector.NewWriterSink(f), f: f}, nil
	default:
		slog.Info("publishing events to kafka", "brokers", brokers, "topic", topic)
		return collector.NewKafkaSink(brokers, topic)
	}
}

type fileSink struct {
	*collector.WriterSink
	f *os.File
}

func (s *fileSink) Close() error { return s.f.Close() }
