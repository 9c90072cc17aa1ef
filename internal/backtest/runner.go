// Package backtest replays the deterministic simulation for one bot without
// touching the store.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"botpulse/internal/chain"
	"botpulse/internal/performance"
	"botpulse/internal/risk"
	"botpulse/internal/simulation"
	"botpulse/internal/strategy"
)

// Frame is one replayed tick.
type Frame struct {
	Bucket    int64             `json:"bucket"`
	Timestamp int64             `json:"ts"`
	Signal    float64           `json:"signal"`
	Decision  strategy.Decision `json:"decision"`
	Reason    string            `json:"reason"`
	Equity    float64           `json:"equity"`
	Traded    bool              `json:"traded"`
	Quantity  int64             `json:"quantity,omitempty"`
	Price     float64           `json:"price,omitempty"`
}

// Result summarizes a replay.
type Result struct {
	BotID       uint64                    `json:"bot_id"`
	Account     string                    `json:"account"`
	Frames      []Frame                   `json:"frames"`
	Decisions   map[strategy.Decision]int `json:"decisions"`
	Trades      int                       `json:"trades"`
	FinalEquity float64                   `json:"final_equity"`
	PeakEquity  float64                   `json:"peak_equity"`
	MaxDrawdown float64                   `json:"max_drawdown"`
}

// Runner replays buckets of the simulation with a bot's current attributes.
type Runner struct {
	reader   chain.Reader
	risk     *risk.Manager
	strategy strategy.Strategy
	settings simulation.Settings
}

func NewRunner(reader chain.Reader, riskMgr *risk.Manager, strat strategy.Strategy, settings simulation.Settings) *Runner {
	return &Runner{
		reader:   reader,
		risk:     riskMgr,
		strategy: strat,
		settings: settings,
	}
}

// Run replays buckets consecutive tick buckets starting at the one holding
// start. Equity, trade count and last trade time carry from frame to frame
// the way they do through the store in a live run.
func (r *Runner) Run(ctx context.Context, botID uint64, start time.Time, buckets int) (Result, error) {
	res := Result{BotID: botID, Decisions: make(map[strategy.Decision]int)}
	if buckets < 1 {
		return res, fmt.Errorf("buckets must be positive, got %d", buckets)
	}

	account, err := r.reader.GetAccountOf(ctx, botID)
	if err != nil {
		return res, fmt.Errorf("resolving account of bot %d: %w", botID, err)
	}
	if chain.IsZero(account) {
		return res, fmt.Errorf("bot %d is not registered", botID)
	}
	res.Account = account.Hex()

	attrs, err := r.reader.GetAttributes(ctx, account)
	if err != nil {
		return res, fmt.Errorf("reading attributes of bot %d: %w", botID, err)
	}
	assessment := r.risk.Assess(attrs.Risk)

	interval := int64(r.settings.TickInterval / time.Second)
	if interval < 1 {
		interval = 1
	}
	first := simulation.Bucket(start.Unix(), interval)

	in := simulation.Input{
		Paused:           attrs.Paused,
		Lifecycle:        attrs.Lifecycle,
		Risk:             assessment,
		PrevEquity:       simulation.BaselineEquity,
		TradeProbability: r.settings.TradeProbability,
	}
	res.Frames = make([]Frame, 0, buckets)
	equity := make([]float64, 0, buckets)

	for i := 0; i < buckets; i++ {
		bucket := first + int64(i)
		in.Now = bucket * interval

		rng := simulation.NewRand(simulation.Seed(r.settings.ChainID, botID, bucket))
		out := simulation.Step(in, r.strategy, rng)

		res.Frames = append(res.Frames, Frame{
			Bucket:    bucket,
			Timestamp: in.Now,
			Signal:    out.BaseSignal,
			Decision:  out.Decision,
			Reason:    out.Reason,
			Equity:    out.NextEquity,
			Traded:    out.ShouldTrade,
			Quantity:  out.Quantity,
			Price:     out.Price,
		})
		res.Decisions[out.Decision]++
		equity = append(equity, out.NextEquity)

		if out.ShouldTrade {
			res.Trades++
			at := in.Now
			in.LastTradeAt = &at
		}
		in.PrevEquity, in.PrevTrades = out.NextEquity, out.Trades
	}

	res.FinalEquity = in.PrevEquity
	res.PeakEquity, res.MaxDrawdown = performance.MaxDrawdown(equity)

	slog.Info("replay complete",
		"bot_id", botID,
		"buckets", buckets,
		"trades", res.Trades,
		"final_equity", res.FinalEquity,
		"max_drawdown", res.MaxDrawdown,
	)
	return res, nil
}
