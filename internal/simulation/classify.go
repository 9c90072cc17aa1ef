package simulation

import (
	"botpulse/internal/chain"
	"botpulse/internal/db"
)

// Classify picks the activity kind for this tick. Precedence: first sighting,
// lifecycle change, pause change, nonce advance past the watermark, then
// heartbeat. A missing watermark never counts as an advance.
func Classify(prev *db.BotSnapshot, attrs chain.Attributes, watermark uint64, hasWatermark bool) db.ActivityKind {
	switch {
	case prev == nil:
		return db.ActivityHeartbeat
	case chain.Lifecycle(prev.LifecycleState) != attrs.Lifecycle:
		return db.ActivityLifecycleChanged
	case prev.Paused != attrs.Paused:
		return db.ActivityPausedUpdated
	case hasWatermark && watermark < attrs.Nonce:
		return db.ActivityTradeExecuted
	default:
		return db.ActivityHeartbeat
	}
}
