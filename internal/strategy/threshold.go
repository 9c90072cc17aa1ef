package strategy

import "fmt"

// DefaultBand is the signal magnitude above which a bot acts.
const DefaultBand = 0.35

// Threshold buys above +Band, sells below -Band and holds otherwise.
type Threshold struct {
	Band float64
}

func NewThreshold(band float64) *Threshold {
	if band <= 0 {
		band = DefaultBand
	}
	return &Threshold{Band: band}
}

func (t *Threshold) Name() string { return "threshold" }

func (t *Threshold) Decide(in Input) Verdict {
	if reason, blocked := Blocked(in); blocked {
		return Verdict{Decision: Hold, Reason: reason}
	}
	switch {
	case in.Signal > t.Band:
		return Verdict{Decision: Buy, Reason: fmt.Sprintf("signal %.4f above +%.2f", in.Signal, t.Band)}
	case in.Signal < -t.Band:
		return Verdict{Decision: Sell, Reason: fmt.Sprintf("signal %.4f below -%.2f", in.Signal, t.Band)}
	default:
		return Verdict{Decision: Hold, Reason: fmt.Sprintf("signal %.4f within ±%.2f", in.Signal, t.Band)}
	}
}
