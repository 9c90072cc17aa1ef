package db

import "encoding/json"

// ActivityKind tags the latest activity observed for a bot.
type ActivityKind string

const (
	ActivityHeartbeat        ActivityKind = "Heartbeat"
	ActivityLifecycleChanged ActivityKind = "LifecycleChanged"
	ActivityPausedUpdated    ActivityKind = "PausedUpdated"
	ActivityTradeExecuted    ActivityKind = "TradeExecuted"
)

// BotSnapshot mirrors a bot's on-chain attributes. One row per bot.
type BotSnapshot struct {
	BotID           uint64 `json:"bot_id"`
	Account         string `json:"account"`
	Name            string `json:"name,omitempty"`
	Handle          string `json:"handle,omitempty"`
	TokenAddress    string `json:"token_address,omitempty"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	LifecycleState  uint8  `json:"lifecycle_state"`
	Paused          bool   `json:"paused"`
	CooldownSeconds int64  `json:"cooldown_seconds"`
	UpdatedAt       int64  `json:"updated_at"`
}

// ActivityRecord is the single latest-activity marker for a bot.
type ActivityRecord struct {
	BotID       uint64       `json:"bot_id"`
	Timestamp   int64        `json:"ts"`
	Kind        ActivityKind `json:"kind"`
	BlockNumber uint64       `json:"block_number"`
	Ref         string       `json:"ref"`
}

// PerformanceSample is one point of a bot's synthetic equity series.
type PerformanceSample struct {
	BotID     uint64  `json:"bot_id"`
	Timestamp int64   `json:"ts"`
	Equity    float64 `json:"equity"`
	PnL       float64 `json:"pnl"`
	PnLPct    float64 `json:"pnl_pct"`
	Trades    int64   `json:"trades"`
	Mode      string  `json:"mode"`
}

type Decision struct {
	ID        int64           `json:"id"`
	BotID     uint64          `json:"bot_id"`
	Timestamp int64           `json:"ts"`
	Decision  string          `json:"decision"`
	Reason    string          `json:"reason"`
	Metadata  json.RawMessage `json:"metadata"`
}

type Trade struct {
	ID        int64           `json:"id"`
	BotID     uint64          `json:"bot_id"`
	Timestamp int64           `json:"ts"`
	Side      string          `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     float64         `json:"price"`
	Reason    string          `json:"reason"`
	Metadata  json.RawMessage `json:"metadata"`
}

// LeaderboardEntry joins a bot's snapshot with its latest sample and activity.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	BotID          uint64  `json:"bot_id"`
	Account        string  `json:"account"`
	Name           string  `json:"name,omitempty"`
	Handle         string  `json:"handle,omitempty"`
	TokenAddress   string  `json:"token_address,omitempty"`
	TokenSymbol    string  `json:"token_symbol,omitempty"`
	LifecycleState uint8   `json:"lifecycle_state"`
	Paused         bool    `json:"paused"`
	Equity         float64 `json:"equity"`
	PnL            float64 `json:"pnl"`
	PnLPct         float64 `json:"pnl_pct"`
	Trades         int64   `json:"trades"`
	SampledAt      int64   `json:"sampled_at"`
	LastDecision   string  `json:"last_decision,omitempty"`
	LastDecisionAt int64   `json:"last_decision_at,omitempty"`
	LastActivity   string  `json:"last_activity,omitempty"`
	LastActivityAt int64   `json:"last_activity_at,omitempty"`
}

// FleetStats are aggregate counts across all bots.
type FleetStats struct {
	Bots       int
	Samples    int
	Decisions  int
	Trades     int
	MeanPnLPct float64
	PausedBots int
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
