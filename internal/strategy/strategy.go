package strategy

import (
	"botpulse/internal/chain"
)

// Decision is the action a bot takes on a tick.
type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Hold Decision = "HOLD"
)

// Input is what a strategy sees for one bot on one tick.
type Input struct {
	Signal    float64 // in [-1, 1)
	Paused    bool
	Lifecycle chain.Lifecycle
}

// Verdict is a decision with a human-readable reason. Reason is never empty.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Strategy is the interface all decision rules must implement.
type Strategy interface {
	Name() string
	Decide(in Input) Verdict
}

// Blocked reports whether the bot may not trade regardless of signal, and why.
func Blocked(in Input) (string, bool) {
	switch {
	case in.Paused:
		return "bot is paused", true
	case in.Lifecycle == chain.Draft:
		return "bot is in Draft lifecycle state", true
	}
	return "", false
}
