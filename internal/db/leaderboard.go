package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Leaderboard ranks bots by the pnl_pct of their latest sample, best first.
// Bots without any sample are left out.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.backend.Query(ctx, `
		SELECT s.bot_id, s.account, s.name, s.handle, s.token_address, s.token_symbol,
		       s.lifecycle_state, s.paused,
		       p.ts, p.equity, p.pnl, p.pnl_pct, p.trades,
		       (SELECT d.decision FROM bot_decisions d WHERE d.bot_id = s.bot_id ORDER BY d.ts DESC, d.id DESC LIMIT 1),
		       (SELECT d.ts FROM bot_decisions d WHERE d.bot_id = s.bot_id ORDER BY d.ts DESC, d.id DESC LIMIT 1),
		       a.kind, a.ts
		FROM bot_snapshot s
		JOIN bot_performance p ON p.bot_id = s.bot_id
		     AND p.ts = (SELECT MAX(ts) FROM bot_performance WHERE bot_id = s.bot_id)
		LEFT JOIN bot_activity a ON a.bot_id = s.bot_id
		ORDER BY p.pnl_pct DESC, s.bot_id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var (
			e              LeaderboardEntry
			paused         int
			lastDecision   sql.NullString
			lastDecisionAt sql.NullInt64
			lastActivity   sql.NullString
			lastActivityAt sql.NullInt64
		)
		if err := rows.Scan(
			&e.BotID, &e.Account, &e.Name, &e.Handle, &e.TokenAddress, &e.TokenSymbol,
			&e.LifecycleState, &paused,
			&e.SampledAt, &e.Equity, &e.PnL, &e.PnLPct, &e.Trades,
			&lastDecision, &lastDecisionAt, &lastActivity, &lastActivityAt,
		); err != nil {
			return nil, err
		}
		e.Paused = paused == 1
		e.LastDecision = lastDecision.String
		e.LastDecisionAt = lastDecisionAt.Int64
		e.LastActivity = lastActivity.String
		e.LastActivityAt = lastActivityAt.Int64
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FleetStats aggregates counts across the whole fleet.
func (s *Store) FleetStats(ctx context.Context) (FleetStats, error) {
	var st FleetStats
	row := s.backend.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(paused), 0) FROM bot_snapshot`)
	if err := row.Scan(&st.Bots, &st.PausedBots); err != nil {
		return st, fmt.Errorf("counting bots: %w", err)
	}

	row = s.backend.QueryRow(ctx, `SELECT COUNT(*) FROM bot_performance`)
	if err := row.Scan(&st.Samples); err != nil {
		return st, fmt.Errorf("counting samples: %w", err)
	}
	row = s.backend.QueryRow(ctx, `SELECT COUNT(*) FROM bot_decisions`)
	if err := row.Scan(&st.Decisions); err != nil {
		return st, fmt.Errorf("counting decisions: %w", err)
	}
	row = s.backend.QueryRow(ctx, `SELECT COUNT(*) FROM bot_trades`)
	if err := row.Scan(&st.Trades); err != nil {
		return st, fmt.Errorf("counting trades: %w", err)
	}

	row = s.backend.QueryRow(ctx, `
		SELECT COALESCE(AVG(p.pnl_pct), 0)
		FROM bot_performance p
		WHERE p.ts = (SELECT MAX(ts) FROM bot_performance WHERE bot_id = p.bot_id)`)
	if err := row.Scan(&st.MeanPnLPct); err != nil {
		return st, fmt.Errorf("averaging pnl: %w", err)
	}
	return st, nil
}

// EquitySeries returns every equity value of a bot in chronological order.
func (s *Store) EquitySeries(ctx context.Context, botID uint64) ([]float64, error) {
	rows, err := s.backend.Query(ctx, `
		SELECT equity FROM bot_performance WHERE bot_id = ? ORDER BY ts ASC`, int64(botID))
	if err != nil {
		return nil, fmt.Errorf("querying equity series for bot %d: %w", botID, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// BotIDs lists every bot with a stored snapshot.
func (s *Store) BotIDs(ctx context.Context) ([]uint64, error) {
	rows, err := s.backend.Query(ctx, `SELECT bot_id FROM bot_snapshot ORDER BY bot_id`)
	if err != nil {
		return nil, fmt.Errorf("listing bots: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
