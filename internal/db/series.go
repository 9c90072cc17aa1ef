package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LatestPerformance returns the newest sample for a bot, or nil if none exists.
func (s *Store) LatestPerformance(ctx context.Context, botID uint64) (*PerformanceSample, error) {
	return scanPerformance(botID, s.backend.QueryRow(ctx, `
		SELECT bot_id, ts, equity, pnl, pnl_pct, trades, mode
		FROM bot_performance WHERE bot_id = ?
		ORDER BY ts DESC LIMIT 1`, int64(botID),
	))
}

// LatestPerformanceBefore returns the newest sample strictly older than ts.
// A tick re-run at the same timestamp uses it as its baseline so the
// replaced sample is computed from the same starting point.
func (s *Store) LatestPerformanceBefore(ctx context.Context, botID uint64, ts int64) (*PerformanceSample, error) {
	return scanPerformance(botID, s.backend.QueryRow(ctx, `
		SELECT bot_id, ts, equity, pnl, pnl_pct, trades, mode
		FROM bot_performance WHERE bot_id = ? AND ts < ?
		ORDER BY ts DESC LIMIT 1`, int64(botID), ts,
	))
}

func scanPerformance(botID uint64, row *sql.Row) (*PerformanceSample, error) {
	var p PerformanceSample
	err := row.Scan(&p.BotID, &p.Timestamp, &p.Equity, &p.PnL, &p.PnLPct, &p.Trades, &p.Mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest performance for bot %d: %w", botID, err)
	}
	return &p, nil
}

// UpsertPerformance appends a sample. (bot_id, ts) is unique, so re-running a
// tick with the same timestamp replaces the sample instead of duplicating it.
func (s *Store) UpsertPerformance(ctx context.Context, p PerformanceSample) error {
	_, err := s.backend.Exec(ctx, `
		INSERT INTO bot_performance (bot_id, ts, equity, pnl, pnl_pct, trades, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bot_id, ts) DO UPDATE SET
			equity = excluded.equity,
			pnl = excluded.pnl,
			pnl_pct = excluded.pnl_pct,
			trades = excluded.trades,
			mode = excluded.mode`,
		int64(p.BotID), p.Timestamp, p.Equity, p.PnL, p.PnLPct, p.Trades, p.Mode,
	)
	if err != nil {
		return fmt.Errorf("writing performance for bot %d: %w", p.BotID, err)
	}
	return nil
}

// PerformanceSeries returns up to limit of the newest samples, oldest first.
func (s *Store) PerformanceSeries(ctx context.Context, botID uint64, limit int) ([]PerformanceSample, error) {
	rows, err := s.backend.Query(ctx, `
		SELECT bot_id, ts, equity, pnl, pnl_pct, trades, mode FROM (
			SELECT bot_id, ts, equity, pnl, pnl_pct, trades, mode
			FROM bot_performance WHERE bot_id = ?
			ORDER BY ts DESC LIMIT ?
		) recent ORDER BY ts ASC`, int64(botID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying performance series for bot %d: %w", botID, err)
	}
	defer rows.Close()

	series := make([]PerformanceSample, 0, limit)
	for rows.Next() {
		var p PerformanceSample
		if err := rows.Scan(&p.BotID, &p.Timestamp, &p.Equity, &p.PnL, &p.PnLPct, &p.Trades, &p.Mode); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// InsertDecision appends a decision row. Decisions are never mutated.
func (s *Store) InsertDecision(ctx context.Context, d Decision) error {
	if d.Reason == "" {
		return fmt.Errorf("decision for bot %d has empty reason", d.BotID)
	}
	_, err := s.backend.Exec(ctx, `
		INSERT INTO bot_decisions (bot_id, ts, decision, reason, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		int64(d.BotID), d.Timestamp, d.Decision, d.Reason, string(metadataOrEmpty(d.Metadata)),
	)
	if err != nil {
		return fmt.Errorf("inserting decision for bot %d: %w", d.BotID, err)
	}
	return nil
}

func (s *Store) RecentDecisions(ctx context.Context, botID uint64, limit int) ([]Decision, error) {
	rows, err := s.backend.Query(ctx, `
		SELECT id, bot_id, ts, decision, reason, metadata
		FROM bot_decisions WHERE bot_id = ?
		ORDER BY ts DESC, id DESC LIMIT ?`, int64(botID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions for bot %d: %w", botID, err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d    Decision
			meta string
		)
		if err := rows.Scan(&d.ID, &d.BotID, &d.Timestamp, &d.Decision, &d.Reason, &meta); err != nil {
			return nil, err
		}
		d.Metadata = []byte(meta)
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertTrade appends an executed simulated trade.
func (s *Store) InsertTrade(ctx context.Context, t Trade) error {
	_, err := s.backend.Exec(ctx, `
		INSERT INTO bot_trades (bot_id, ts, side, quantity, price, reason, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(t.BotID), t.Timestamp, t.Side, t.Quantity, t.Price, t.Reason, string(metadataOrEmpty(t.Metadata)),
	)
	if err != nil {
		return fmt.Errorf("inserting trade for bot %d: %w", t.BotID, err)
	}
	return nil
}

// LatestTrade returns the bot's most recent trade, or nil if it never traded.
// It is used for reads and reporting; cooldown gating uses LatestTradeBefore.
func (s *Store) LatestTrade(ctx context.Context, botID uint64) (*Trade, error) {
	trades, err := s.RecentTrades(ctx, botID, 1)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, nil
	}
	return &trades[0], nil
}

// LatestTradeBefore returns the bot's newest trade strictly older than ts,
// or nil. Cooldown gating reads it so a re-run tick ignores its own trade.
func (s *Store) LatestTradeBefore(ctx context.Context, botID uint64, ts int64) (*Trade, error) {
	var (
		t    Trade
		meta string
	)
	err := s.backend.QueryRow(ctx, `
		SELECT id, bot_id, ts, side, quantity, price, reason, metadata
		FROM bot_trades WHERE bot_id = ? AND ts < ?
		ORDER BY ts DESC, id DESC LIMIT 1`, int64(botID), ts,
	).Scan(&t.ID, &t.BotID, &t.Timestamp, &t.Side, &t.Quantity, &t.Price, &t.Reason, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading trade before %d for bot %d: %w", ts, botID, err)
	}
	t.Metadata = []byte(meta)
	return &t, nil
}

// HasTradeAt reports whether a trade is already recorded for the bot at ts.
func (s *Store) HasTradeAt(ctx context.Context, botID uint64, ts int64) (bool, error) {
	var n int
	err := s.backend.QueryRow(ctx, `
		SELECT COUNT(*) FROM bot_trades WHERE bot_id = ? AND ts = ?`, int64(botID), ts,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking trade at %d for bot %d: %w", ts, botID, err)
	}
	return n > 0, nil
}

func (s *Store) RecentTrades(ctx context.Context, botID uint64, limit int) ([]Trade, error) {
	rows, err := s.backend.Query(ctx, `
		SELECT id, bot_id, ts, side, quantity, price, reason, metadata
		FROM bot_trades WHERE bot_id = ?
		ORDER BY ts DESC, id DESC LIMIT ?`, int64(botID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trades for bot %d: %w", botID, err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var (
			t    Trade
			meta string
		)
		if err := rows.Scan(&t.ID, &t.BotID, &t.Timestamp, &t.Side, &t.Quantity, &t.Price, &t.Reason, &meta); err != nil {
			return nil, err
		}
		t.Metadata = []byte(meta)
		out = append(out, t)
	}
	return out, rows.Err()
}

func metadataOrEmpty(m []byte) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return m
}
