// Package simulation turns a bot's on-chain state into synthetic
// performance samples, decisions and trades.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"botpulse/internal/chain"
	"botpulse/internal/config"
	"botpulse/internal/db"
	"botpulse/internal/risk"
	"botpulse/internal/strategy"
)

// Outcome of processing one bot.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// Tick identifies the scheduler pass a bot is processed in.
type Tick struct {
	RunID  string
	Height uint64
}

// Result summarises what ProcessBot persisted.
type Result struct {
	BotID    uint64
	Outcome  Outcome
	Activity db.ActivityKind
	Decision strategy.Decision
	Equity   float64
	Traded   bool
}

// Settings are the engine's fixed parameters.
type Settings struct {
	ChainID          int64
	TickInterval     time.Duration
	TradeProbability float64
	Profiles         map[uint64]config.Profile
}

// Engine runs the per-bot simulation against a chain reader and the store.
// The reader is expected to retry on its own.
type Engine struct {
	reader   chain.Reader
	store    *db.Store
	risk     *risk.Manager
	strategy strategy.Strategy
	settings Settings
}

func NewEngine(reader chain.Reader, store *db.Store, riskMgr *risk.Manager, strat strategy.Strategy, settings Settings) *Engine {
	return &Engine{
		reader:   reader,
		store:    store,
		risk:     riskMgr,
		strategy: strat,
		settings: settings,
	}
}

// Settings returns the engine's configuration.
func (e *Engine) Settings() Settings { return e.settings }

type onChain struct {
	account common.Address
	attrs   chain.Attributes
	token   common.Address
	symbol  string
	tokenOK bool
}

// read resolves the account, then loads attributes and token concurrently.
// Token lookups are best-effort.
func (e *Engine) read(ctx context.Context, botID uint64) (*onChain, error) {
	account, err := e.reader.GetAccountOf(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("resolving account: %w", err)
	}
	if chain.IsZero(account) {
		return nil, nil
	}

	oc := &onChain{account: account}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attrs, err := e.reader.GetAttributes(gctx, account)
		if err != nil {
			return fmt.Errorf("reading attributes: %w", err)
		}
		oc.attrs = attrs
		return nil
	})
	g.Go(func() error {
		token, err := e.reader.GetTokenOf(gctx, botID)
		if err != nil {
			slog.Warn("token lookup failed", "bot_id", botID, "error", err)
			return nil
		}
		oc.token, oc.tokenOK = token, true
		if chain.IsZero(token) {
			return nil
		}
		symbol, err := e.reader.GetTokenSymbol(gctx, token)
		if err != nil {
			slog.Warn("token symbol lookup failed", "bot_id", botID, "token", token.Hex(), "error", err)
			return nil
		}
		oc.symbol = symbol
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return oc, nil
}

// ProcessBot runs one simulated tick for botID at now and persists the
// snapshot, activity, performance sample, decision and, when executed, trade.
// A bot whose account is unset is skipped without error.
func (e *Engine) ProcessBot(ctx context.Context, botID uint64, now time.Time, tick Tick) (Result, error) {
	res := Result{BotID: botID, Outcome: OutcomeSkipped}
	ts := now.Unix()

	oc, err := e.read(ctx, botID)
	if err != nil {
		return res, err
	}
	if oc == nil {
		slog.Debug("bot has no account yet, skipping", "bot_id", botID)
		return res, nil
	}

	assessment := e.risk.Assess(oc.attrs.Risk)

	prev, err := e.store.GetSnapshot(ctx, botID)
	if err != nil {
		return res, err
	}
	watermark, hasWatermark, err := e.store.GetStateUint(ctx, db.NonceKey(botID))
	if err != nil {
		return res, err
	}
	activity := Classify(prev, oc.attrs, watermark, hasWatermark)
	if err := e.store.SetStateUint(ctx, db.NonceKey(botID), oc.attrs.Nonce); err != nil {
		return res, err
	}

	snap := e.snapshot(botID, oc, prev, assessment.CooldownSeconds, ts)
	if err := e.store.UpsertSnapshot(ctx, snap); err != nil {
		return res, err
	}
	if err := e.store.UpsertActivity(ctx, db.ActivityRecord{
		BotID:       botID,
		Timestamp:   ts,
		Kind:        activity,
		BlockNumber: tick.Height,
		Ref:         tick.RunID,
	}); err != nil {
		return res, err
	}

	in := Input{
		Now:              ts,
		Paused:           oc.attrs.Paused,
		Lifecycle:        oc.attrs.Lifecycle,
		Risk:             assessment,
		PrevEquity:       BaselineEquity,
		TradeProbability: e.settings.TradeProbability,
	}
	// Baselines are read strictly before ts so a tick re-run at the same
	// timestamp recomputes the same sample instead of compounding it.
	latest, err := e.store.LatestPerformanceBefore(ctx, botID, ts)
	if err != nil {
		return res, err
	}
	if latest != nil {
		in.PrevEquity, in.PrevTrades = latest.Equity, latest.Trades
	}
	lastTrade, err := e.store.LatestTradeBefore(ctx, botID, ts)
	if err != nil {
		return res, err
	}
	if lastTrade != nil {
		in.LastTradeAt = &lastTrade.Timestamp
	}

	rng := NewRand(Seed(e.settings.ChainID, botID, Bucket(ts, int64(e.settings.TickInterval/time.Second))))
	out := Step(in, e.strategy, rng)
	meta, err := out.Metadata(in).JSON()
	if err != nil {
		return res, fmt.Errorf("encoding decision metadata for bot %d: %w", botID, err)
	}

	if err := e.store.UpsertPerformance(ctx, db.PerformanceSample{
		BotID:     botID,
		Timestamp: ts,
		Equity:    out.NextEquity,
		PnL:       out.NextEquity - BaselineEquity,
		PnLPct:    out.NextEquity - BaselineEquity,
		Trades:    out.Trades,
		Mode:      Mode,
	}); err != nil {
		return res, err
	}
	if err := e.store.InsertDecision(ctx, db.Decision{
		BotID:     botID,
		Timestamp: ts,
		Decision:  string(out.Decision),
		Reason:    out.Reason,
		Metadata:  meta,
	}); err != nil {
		return res, err
	}
	if out.ShouldTrade {
		if err := e.recordTrade(ctx, db.Trade{
			BotID:     botID,
			Timestamp: ts,
			Side:      string(out.Decision),
			Quantity:  out.Quantity,
			Price:     out.Price,
			Reason:    out.Reason,
			Metadata:  meta,
		}); err != nil {
			return res, err
		}
	}

	res.Outcome = OutcomeProcessed
	res.Activity = activity
	res.Decision = out.Decision
	res.Equity = out.NextEquity
	res.Traded = out.ShouldTrade
	return res, nil
}

// recordTrade appends t unless this bot already has a trade at t.Timestamp,
// which happens when a tick is re-run for the same instant.
func (e *Engine) recordTrade(ctx context.Context, t db.Trade) error {
	recorded, err := e.store.HasTradeAt(ctx, t.BotID, t.Timestamp)
	if err != nil {
		return err
	}
	if recorded {
		slog.Debug("trade already recorded for this tick", "bot_id", t.BotID, "ts", t.Timestamp)
		return nil
	}
	return e.store.InsertTrade(ctx, t)
}

// snapshot builds the new snapshot, keeping the previous token when this
// tick's token lookup failed.
func (e *Engine) snapshot(botID uint64, oc *onChain, prev *db.BotSnapshot, cooldown, ts int64) db.BotSnapshot {
	snap := db.BotSnapshot{
		BotID:           botID,
		Account:         oc.account.Hex(),
		LifecycleState:  uint8(oc.attrs.Lifecycle),
		Paused:          oc.attrs.Paused,
		CooldownSeconds: cooldown,
		UpdatedAt:       ts,
	}
	switch {
	case oc.tokenOK && !chain.IsZero(oc.token):
		snap.TokenAddress = oc.token.Hex()
		snap.TokenSymbol = oc.symbol
		if snap.TokenSymbol == "" && prev != nil && prev.TokenAddress == snap.TokenAddress {
			snap.TokenSymbol = prev.TokenSymbol
		}
	case !oc.tokenOK && prev != nil:
		snap.TokenAddress = prev.TokenAddress
		snap.TokenSymbol = prev.TokenSymbol
	}
	if p, ok := e.settings.Profiles[botID]; ok {
		snap.Name, snap.Handle = p.Name, p.Handle
	}
	return snap
}
