// Package collector backfills bot account events into a sink.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"botpulse/internal/chain"
	"botpulse/internal/db"
	"botpulse/internal/indexer"
	"botpulse/internal/metrics"
)

// Settings bound a backfill.
type Settings struct {
	// FromBlock is the default start when a Range leaves From at zero.
	FromBlock uint64
	// MaxBots caps the roster; zero means no cap.
	MaxBots uint64
}

// Range selects the blocks to scan. A zero To means the latest height.
// With Resume set, each bot starts one block past its own watermark.
type Range struct {
	From   uint64
	To     uint64
	Resume bool
}

// Report summarizes one backfill.
type Report struct {
	Bots    int
	Skipped int
	Failed  int
	Events  int
	To      uint64
}

// Collector walks the roster and hands each bot's events to a Sink.
type Collector struct {
	reader   chain.Reader
	indexer  *indexer.Indexer
	store    *db.Store
	sink     Sink
	metrics  *metrics.Metrics
	settings Settings
}

// NewCollector builds a Collector. metrics may be nil.
func NewCollector(reader chain.Reader, ix *indexer.Indexer, store *db.Store, sink Sink, m *metrics.Metrics, settings Settings) *Collector {
	return &Collector{
		reader:   reader,
		indexer:  ix,
		store:    store,
		sink:     sink,
		metrics:  m,
		settings: settings,
	}
}

// Run backfills every bot in the roster. Failures of a single bot are
// logged and counted; only roster or height lookups abort the run.
func (c *Collector) Run(ctx context.Context, rng Range) (Report, error) {
	var rep Report

	roster, err := c.reader.GetRosterSize(ctx)
	if err != nil {
		return rep, fmt.Errorf("reading roster size: %w", err)
	}
	if c.settings.MaxBots > 0 && roster > c.settings.MaxBots {
		roster = c.settings.MaxBots
	}

	to := rng.To
	if to == 0 {
		to, err = c.reader.GetLatestBlockHeight(ctx)
		if err != nil {
			return rep, fmt.Errorf("reading latest height: %w", err)
		}
	}
	rep.To = to

	from := rng.From
	if from == 0 {
		from = c.settings.FromBlock
	}

	for botID := uint64(1); botID <= roster; botID++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, skipped, err := c.collectBot(ctx, botID, from, to, rng.Resume)
		switch {
		case err != nil:
			rep.Failed++
			slog.Error("backfill failed for bot", "bot_id", botID, "error", err)
		case skipped:
			rep.Skipped++
		default:
			rep.Bots++
			rep.Events += n
		}
	}

	slog.Info("backfill complete",
		"bots", rep.Bots, "skipped", rep.Skipped, "failed", rep.Failed,
		"events", rep.Events, "to_block", rep.To)
	return rep, nil
}

func (c *Collector) collectBot(ctx context.Context, botID, from, to uint64, resume bool) (int, bool, error) {
	account, err := c.reader.GetAccountOf(ctx, botID)
	if err != nil {
		return 0, false, fmt.Errorf("resolving account: %w", err)
	}
	if chain.IsZero(account) {
		return 0, true, nil
	}

	key := db.IndexedBlockKey(botID)
	if resume {
		last, ok, err := c.store.GetStateUint(ctx, key)
		if err != nil {
			return 0, false, fmt.Errorf("reading watermark: %w", err)
		}
		if ok && last+1 > from {
			from = last + 1
		}
	}
	if from > to {
		return 0, false, nil
	}

	events, err := c.indexer.FetchEvents(ctx, account, from, to)
	if err != nil {
		return 0, false, err
	}
	if err := c.sink.Emit(ctx, botID, events); err != nil {
		return 0, false, err
	}
	if c.metrics != nil {
		for _, e := range events {
			c.metrics.IndexedEvents.WithLabelValues(string(e.Kind())).Inc()
		}
	}
	if err := c.store.SetStateUint(ctx, key, to); err != nil {
		return 0, false, fmt.Errorf("writing watermark: %w", err)
	}

	slog.Debug("bot backfilled", "bot_id", botID, "account", account.Hex(),
		"from_block", from, "to_block", to, "events", len(events))
	return len(events), false, nil
}
