package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Scalar state keys.
const (
	KeyLastTickTimestamp = "last_tick_ts"
	KeyLastBlockHeight   = "last_block_height"
)

// NonceKey is the per-bot nonce watermark key.
func NonceKey(botID uint64) string {
	return "nonce:" + strconv.FormatUint(botID, 10)
}

// IndexedBlockKey is the per-bot watermark of the last block the collector scanned.
func IndexedBlockKey(botID uint64) string {
	return "indexer:last_block:" + strconv.FormatUint(botID, 10)
}

// GetState returns the value stored under key and whether it exists.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.backend.QueryRow(ctx, `SELECT value FROM scalar_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading state %q: %w", key, err)
	}
	return value, true, nil
}

// SetState upserts a scalar value. No history is kept.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.backend.Exec(ctx, `
		INSERT INTO scalar_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing state %q: %w", key, err)
	}
	return nil
}

// GetStateUint reads a numeric watermark. ok is false when the key is absent.
func (s *Store) GetStateUint(ctx context.Context, key string) (uint64, bool, error) {
	raw, ok, err := s.GetState(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing state %q=%q: %w", key, raw, err)
	}
	return v, true, nil
}

func (s *Store) SetStateUint(ctx context.Context, key string, v uint64) error {
	return s.SetState(ctx, key, strconv.FormatUint(v, 10))
}
