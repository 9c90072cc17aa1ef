package risk

import (
	"log/slog"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"botpulse/internal/chain"
	"botpulse/internal/config"
)

// Scale bounds shared by every risk multiplier.
const (
	MinScale = 0.25
	MaxScale = 1.0

	// ReferenceCooldown is the cooldown at which the cooldown factor saturates.
	ReferenceCooldown = 300.0
	// ReferenceAmount is the native per-trade limit at which the amount factor
	// saturates.
	ReferenceAmount = 2.0
)

// Manager turns a bot's on-chain risk parameters into simulation inputs.
type Manager struct {
	defaultCooldown int64
	decimals        int32
}

func NewManager(cfg config.SimulationConfig, nativeDecimals int32) *Manager {
	return &Manager{
		defaultCooldown: cfg.DefaultCooldownSeconds,
		decimals:        nativeDecimals,
	}
}

// Assessment is everything the simulation needs from the risk params.
type Assessment struct {
	CooldownSeconds   int64   `json:"cooldown_seconds"`
	MaxAmountNative   float64 `json:"max_amount_native"`
	ScaleFromAmount   float64 `json:"scale_from_amount"`
	ScaleFromCooldown float64 `json:"scale_from_cooldown"`
	Scale             float64 `json:"risk_scale"`
}

// Assess derives cooldown and risk scale for one bot.
func (m *Manager) Assess(p chain.RiskParams) Assessment {
	cooldown := m.CooldownSeconds(p)
	amount := m.ToNative(p.MaxAmountInPerTrade)
	fromAmount, fromCooldown, scale := Scale(amount, cooldown)
	return Assessment{
		CooldownSeconds:   cooldown,
		MaxAmountNative:   amount,
		ScaleFromAmount:   fromAmount,
		ScaleFromCooldown: fromCooldown,
		Scale:             scale,
	}
}

// CooldownSeconds returns the on-chain minimum seconds between trades when it
// is positive and representable, otherwise the configured default.
func (m *Manager) CooldownSeconds(p chain.RiskParams) int64 {
	v := p.MinSecondsBetweenTrades
	if v == nil || v.Sign() <= 0 {
		return m.defaultCooldown
	}
	if !v.IsInt64() {
		slog.Warn("cooldown out of range, using default", "value", v.String())
		return m.defaultCooldown
	}
	return v.Int64()
}

// ToNative converts a wei amount to native units.
func (m *Manager) ToNative(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	return decimal.NewFromBigInt(wei, -m.decimals).InexactFloat64()
}

// Scale computes the amount factor, the cooldown factor and their clamped
// mean. Every value lies in [MinScale, MaxScale].
func Scale(maxAmountNative float64, cooldownSeconds int64) (fromAmount, fromCooldown, scale float64) {
	fromAmount = Clamp(maxAmountNative/ReferenceAmount, MinScale, MaxScale)
	fromCooldown = Clamp(ReferenceCooldown/float64(max(cooldownSeconds, 1)), MinScale, MaxScale)
	scale = Clamp((fromAmount+fromCooldown)/2, MinScale, MaxScale)
	return fromAmount, fromCooldown, scale
}

// CooldownElapsed reports whether a new trade is allowed at now given the
// last trade time (unix seconds). remaining is zero when elapsed.
func CooldownElapsed(lastTrade *int64, now, cooldownSeconds int64) (elapsed bool, remaining int64) {
	if lastTrade == nil {
		return true, 0
	}
	since := now - *lastTrade
	if since >= cooldownSeconds {
		return true, 0
	}
	return false, cooldownSeconds - since
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
