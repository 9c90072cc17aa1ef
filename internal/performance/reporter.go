package performance

import (
	"log/slog"
)

// LogReport logs the performance report as structured JSON.
func LogReport(r *Report) {
	attrs := []any{
		"bots", r.Bots,
		"paused_bots", r.PausedBots,
		"samples", r.Samples,
		"decisions", r.Decisions,
		"trades", r.Trades,
		"mean_pnl_pct", r.MeanPnLPct,
	}
	if r.Best != nil {
		attrs = append(attrs, "best_bot", r.Best.BotID, "best_pnl_pct", r.Best.PnLPct)
	}
	if r.Worst != nil {
		attrs = append(attrs, "worst_bot", r.Worst.BotID, "worst_pnl_pct", r.Worst.PnLPct)
	}
	slog.Info("=== PERFORMANCE REPORT ===", attrs...)

	for id, stats := range r.BotStats {
		slog.Info("bot performance",
			"bot_id", id,
			"samples", stats.Samples,
			"last_equity", stats.LastEquity,
			"peak_equity", stats.PeakEquity,
			"max_drawdown", stats.MaxDrawdown,
		)
	}
}
