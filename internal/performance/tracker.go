package performance

import (
	"context"
	"fmt"
	"math"

	"botpulse/internal/db"
)

// Tracker computes fleet performance metrics from the store.
type Tracker struct {
	store *db.Store
}

func NewTracker(store *db.Store) *Tracker {
	return &Tracker{store: store}
}

// Report contains all fleet performance metrics.
type Report struct {
	Bots       int
	PausedBots int
	Samples    int
	Decisions  int
	Trades     int
	MeanPnLPct float64
	Best       *db.LeaderboardEntry
	Worst      *db.LeaderboardEntry
	BotStats   map[uint64]BotStats
}

// BotStats contains per-bot equity statistics.
type BotStats struct {
	Samples     int
	LastEquity  float64
	PeakEquity  float64
	MaxDrawdown float64
}

// Generate computes the full performance report.
func (t *Tracker) Generate(ctx context.Context) (*Report, error) {
	r := &Report{
		BotStats: make(map[uint64]BotStats),
	}

	if err := t.computeOverall(ctx, r); err != nil {
		return nil, fmt.Errorf("computing overall stats: %w", err)
	}
	if err := t.computeRanking(ctx, r); err != nil {
		return nil, fmt.Errorf("computing ranking: %w", err)
	}
	if err := t.computeDrawdowns(ctx, r); err != nil {
		return nil, fmt.Errorf("computing drawdown: %w", err)
	}

	return r, nil
}

func (t *Tracker) computeOverall(ctx context.Context, r *Report) error {
	st, err := t.store.FleetStats(ctx)
	if err != nil {
		return err
	}
	r.Bots = st.Bots
	r.PausedBots = st.PausedBots
	r.Samples = st.Samples
	r.Decisions = st.Decisions
	r.Trades = st.Trades
	r.MeanPnLPct = st.MeanPnLPct
	return nil
}

func (t *Tracker) computeRanking(ctx context.Context, r *Report) error {
	if r.Bots == 0 {
		return nil
	}
	entries, err := t.store.Leaderboard(ctx, r.Bots)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	best, worst := entries[0], entries[len(entries)-1]
	r.Best, r.Worst = &best, &worst
	return nil
}

func (t *Tracker) computeDrawdowns(ctx context.Context, r *Report) error {
	ids, err := t.store.BotIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		series, err := t.store.EquitySeries(ctx, id)
		if err != nil {
			return err
		}
		if len(series) == 0 {
			continue
		}
		peak, dd := MaxDrawdown(series)
		r.BotStats[id] = BotStats{
			Samples:     len(series),
			LastEquity:  series[len(series)-1],
			PeakEquity:  peak,
			MaxDrawdown: dd,
		}
	}
	return nil
}

// MaxDrawdown returns the running peak and the largest fractional drop from
// a previous peak.
func MaxDrawdown(series []float64) (peak, maxDD float64) {
	for _, value := range series {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			dd := (peak - value) / peak
			maxDD = math.Max(maxDD, dd)
		}
	}
	return peak, maxDD
}
