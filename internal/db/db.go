package db

import (
	"context"
	"fmt"
	"time"

	"botpulse/internal/config"
)

// Store is the only shared mutable resource of the service. Writes come from
// the scheduler's tick loop alone; HTTP handlers only read.
type Store struct {
	backend Backend
	dialect dialect
}

// Open connects the configured backend. Call Migrate before first use.
func Open(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	b, err := openBackend(ctx, cfg.Backend, cfg.Path, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Store{backend: b, dialect: b.dialect}, nil
}

// Migrate runs the schema creation SQL. Safe to call multiple times due to IF NOT EXISTS.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.backend.Exec(ctx, schemaFor(s.dialect)); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	_, err := s.backend.Exec(ctx, `
		INSERT INTO schema_version (version, applied_at) VALUES (1, ?)
		ON CONFLICT (version) DO NOTHING`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// Mode names the active backend, reported by the health endpoint.
func (s *Store) Mode() string {
	return s.backend.Name()
}

func (s *Store) Close() error {
	return s.backend.Close()
}
