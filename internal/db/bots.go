package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSnapshot returns the stored snapshot for a bot, or nil if none exists yet.
func (s *Store) GetSnapshot(ctx context.Context, botID uint64) (*BotSnapshot, error) {
	var (
		snap   BotSnapshot
		paused int
	)
	err := s.backend.QueryRow(ctx, `
		SELECT bot_id, account, name, handle, token_address, token_symbol,
		       lifecycle_state, paused, cooldown_seconds, updated_at
		FROM bot_snapshot WHERE bot_id = ?`, int64(botID),
	).Scan(
		&snap.BotID, &snap.Account, &snap.Name, &snap.Handle, &snap.TokenAddress, &snap.TokenSymbol,
		&snap.LifecycleState, &paused, &snap.CooldownSeconds, &snap.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot for bot %d: %w", botID, err)
	}
	snap.Paused = paused == 1
	return &snap, nil
}

// UpsertSnapshot overwrites the bot's snapshot in place.
func (s *Store) UpsertSnapshot(ctx context.Context, snap BotSnapshot) error {
	_, err := s.backend.Exec(ctx, `
		INSERT INTO bot_snapshot (bot_id, account, name, handle, token_address, token_symbol,
		                          lifecycle_state, paused, cooldown_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bot_id) DO UPDATE SET
			account = excluded.account,
			name = excluded.name,
			handle = excluded.handle,
			token_address = excluded.token_address,
			token_symbol = excluded.token_symbol,
			lifecycle_state = excluded.lifecycle_state,
			paused = excluded.paused,
			cooldown_seconds = excluded.cooldown_seconds,
			updated_at = excluded.updated_at`,
		int64(snap.BotID), snap.Account, snap.Name, snap.Handle, snap.TokenAddress, snap.TokenSymbol,
		int(snap.LifecycleState), boolToInt(snap.Paused), snap.CooldownSeconds, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot for bot %d: %w", snap.BotID, err)
	}
	return nil
}

// UpsertActivity replaces the bot's latest-activity marker.
func (s *Store) UpsertActivity(ctx context.Context, a ActivityRecord) error {
	_, err := s.backend.Exec(ctx, `
		INSERT INTO bot_activity (bot_id, ts, kind, block_number, ref)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bot_id) DO UPDATE SET
			ts = excluded.ts,
			kind = excluded.kind,
			block_number = excluded.block_number,
			ref = excluded.ref`,
		int64(a.BotID), a.Timestamp, string(a.Kind), int64(a.BlockNumber), a.Ref,
	)
	if err != nil {
		return fmt.Errorf("upserting activity for bot %d: %w", a.BotID, err)
	}
	return nil
}

// GetActivity returns the bot's latest activity, or nil if none was recorded.
func (s *Store) GetActivity(ctx context.Context, botID uint64) (*ActivityRecord, error) {
	var (
		a     ActivityRecord
		kind  string
		block int64
	)
	err := s.backend.QueryRow(ctx, `
		SELECT bot_id, ts, kind, block_number, ref FROM bot_activity WHERE bot_id = ?`, int64(botID),
	).Scan(&a.BotID, &a.Timestamp, &kind, &block, &a.Ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading activity for bot %d: %w", botID, err)
	}
	a.Kind = ActivityKind(kind)
	a.BlockNumber = uint64(block)
	return &a, nil
}
