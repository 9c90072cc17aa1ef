package simulation

import (
	"encoding/json"
	"fmt"
	"math"

	"botpulse/internal/chain"
	"botpulse/internal/risk"
	"botpulse/internal/strategy"
)

// Simulation constants.
const (
	BaselineEquity = 100.0
	MinEquity      = 1.0
	MaxEquity      = 500.0

	// MaxDeltaPct bounds the per-tick equity move.
	MaxDeltaPct = 0.005

	MaxQuantityDraw = 10
	PriceSpread     = 0.08
	MinPrice        = 0.8
	MaxPrice        = 1.2

	Mode = "simulation"
)

// Input is everything one simulated tick of one bot depends on.
type Input struct {
	Now              int64 // unix seconds
	Paused           bool
	Lifecycle        chain.Lifecycle
	Risk             risk.Assessment
	PrevEquity       float64
	PrevTrades       int64
	LastTradeAt      *int64
	TradeProbability float64
}

// Output is the result of Step.
type Output struct {
	BaseSignal        float64
	DeltaPct          float64
	NextEquity        float64
	Decision          strategy.Decision
	Reason            string
	CooldownElapsed   bool
	CooldownRemaining int64
	TradeChance       float64
	ShouldTrade       bool
	Trades            int64

	// Set only when ShouldTrade.
	Quantity int64
	Price    float64
}

// Metadata is recorded with every decision and trade.
type Metadata struct {
	Signal           float64 `json:"signal"`
	DeltaPct         float64 `json:"delta_pct"`
	CooldownSeconds  int64   `json:"cooldown_seconds"`
	RiskScale        float64 `json:"risk_scale"`
	CooldownElapsed  bool    `json:"cooldown_elapsed"`
	TradeProbability float64 `json:"trade_probability"`
	TradeChance      float64 `json:"trade_chance"`
	Executed         bool    `json:"executed"`
}

// Step runs the decision and equity model. Its result depends only on in,
// the strategy and the draws taken from src: signal, trade chance, then
// quantity and price when a trade executes.
func Step(in Input, strat strategy.Strategy, src Source) Output {
	var out Output

	out.BaseSignal = src.Float64()*2 - 1

	rawDelta := out.BaseSignal * MaxDeltaPct * in.Risk.Scale
	out.DeltaPct = risk.Clamp(rawDelta, -MaxDeltaPct, MaxDeltaPct)
	prev := in.PrevEquity
	if prev <= 0 {
		prev = BaselineEquity
	}
	out.NextEquity = risk.Clamp(prev*(1+out.DeltaPct), MinEquity, MaxEquity)

	verdict := strat.Decide(strategy.Input{
		Signal:    out.BaseSignal,
		Paused:    in.Paused,
		Lifecycle: in.Lifecycle,
	})
	out.Decision = verdict.Decision
	out.Reason = verdict.Reason

	out.CooldownElapsed, out.CooldownRemaining = risk.CooldownElapsed(in.LastTradeAt, in.Now, in.Risk.CooldownSeconds)

	out.TradeChance = src.Float64()
	_, blocked := strategy.Blocked(strategy.Input{Paused: in.Paused, Lifecycle: in.Lifecycle})
	actionable := !blocked && out.Decision != strategy.Hold
	canExecute := actionable && out.CooldownElapsed
	out.ShouldTrade = canExecute && out.TradeChance < in.TradeProbability

	switch {
	case actionable && !out.CooldownElapsed:
		out.Reason = fmt.Sprintf("%s blocked by cooldown: %ds remaining of %ds",
			out.Decision, out.CooldownRemaining, in.Risk.CooldownSeconds)
	case canExecute && !out.ShouldTrade:
		out.Reason = fmt.Sprintf("%s signal but trade probability gate not passed (draw %.4f >= %.2f)",
			out.Decision, out.TradeChance, in.TradeProbability)
	}

	out.Trades = in.PrevTrades
	if out.ShouldTrade {
		out.Trades++
		out.Quantity = 1 + int64(math.Floor(src.Float64()*MaxQuantityDraw))
		out.Price = risk.Clamp(1+(src.Float64()-0.5)*PriceSpread, MinPrice, MaxPrice)
	}
	return out
}

// Metadata builds the decision metadata for in and out.
func (out Output) Metadata(in Input) Metadata {
	return Metadata{
		Signal:           out.BaseSignal,
		DeltaPct:         out.DeltaPct,
		CooldownSeconds:  in.Risk.CooldownSeconds,
		RiskScale:        in.Risk.Scale,
		CooldownElapsed:  out.CooldownElapsed,
		TradeProbability: in.TradeProbability,
		TradeChance:      out.TradeChance,
		Executed:         out.ShouldTrade,
	}
}

func (m Metadata) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return data, nil
}
