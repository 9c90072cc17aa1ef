package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ErrUnknownBackend is returned for a storage.backend value Open does not know.
var ErrUnknownBackend = errors.New("db: unknown storage backend")

// Backend is the narrow statement interface the Store runs on. Exactly one
// implementation is chosen when the Store is opened; nothing above the Store
// knows which.
type Backend interface {
	Name() string
	Prepare(ctx context.Context, query string) (*sql.Stmt, error)
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

type dialect struct {
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	serialPK string
	real     string
	integer  string
}

var (
	sqliteDialect = dialect{
		serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
		real:     "REAL",
		integer:  "INTEGER",
	}
	postgresDialect = dialect{
		numbered: true,
		serialPK: "BIGSERIAL PRIMARY KEY",
		real:     "DOUBLE PRECISION",
		integer:  "BIGINT",
	}
)

// sqlBackend runs statements on a database/sql pool, rewriting ? placeholders
// for drivers that want numbered ones.
type sqlBackend struct {
	name    string
	db      *sql.DB
	dialect dialect
}

func (b *sqlBackend) Name() string { return b.name }

func (b *sqlBackend) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return b.db.PrepareContext(ctx, b.rebind(query))
}

func (b *sqlBackend) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.rebind(query), args...)
}

func (b *sqlBackend) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.rebind(query), args...)
}

func (b *sqlBackend) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.rebind(query), args...)
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

func (b *sqlBackend) rebind(query string) string {
	if !b.dialect.numbered || !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// openSQLite opens a SQLite file through the named driver ("sqlite" for the
// pure-Go modernc driver, "sqlite3" for the cgo driver) with WAL enabled.
func openSQLite(ctx context.Context, driver, dbPath string) (*sqlBackend, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	// WAL lets the HTTP readers run while a tick is writing.
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &sqlBackend{name: driver, db: conn, dialect: sqliteDialect}, nil
}

func openPostgres(ctx context.Context, dsn string) (*sqlBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres backend requires storage.dsn")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &sqlBackend{name: "postgres", db: conn, dialect: postgresDialect}, nil
}

// openBackend picks the backend implementation for the configured name.
// "auto" prefers the cgo SQLite driver and falls back to the pure-Go one when
// the binary was built without cgo.
func openBackend(ctx context.Context, name, path, dsn string) (*sqlBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite":
		return openSQLite(ctx, "sqlite", path)
	case "sqlite3":
		return openSQLite(ctx, "sqlite3", path)
	case "postgres", "postgresql":
		return openPostgres(ctx, dsn)
	case "", "auto":
		b, err := openSQLite(ctx, "sqlite3", path)
		if err == nil {
			return b, nil
		}
		slog.Warn("sqlite3 driver unavailable, falling back to pure-Go sqlite", "error", err)
		return openSQLite(ctx, "sqlite", path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
