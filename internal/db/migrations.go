package db

import "strings"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version {{INT}} PRIMARY KEY,
    applied_at {{INT}} NOT NULL
);

CREATE TABLE IF NOT EXISTS scalar_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at {{INT}} NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_snapshot (
    bot_id {{INT}} PRIMARY KEY,
    account TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    handle TEXT NOT NULL DEFAULT '',
    token_address TEXT NOT NULL DEFAULT '',
    token_symbol TEXT NOT NULL DEFAULT '',
    lifecycle_state {{INT}} NOT NULL,
    paused {{INT}} NOT NULL,
    cooldown_seconds {{INT}} NOT NULL,
    updated_at {{INT}} NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_activity (
    bot_id {{INT}} PRIMARY KEY,
    ts {{INT}} NOT NULL,
    kind TEXT NOT NULL,
    block_number {{INT}} NOT NULL,
    ref TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_performance (
    bot_id {{INT}} NOT NULL,
    ts {{INT}} NOT NULL,
    equity {{REAL}} NOT NULL CHECK (equity >= 1 AND equity <= 500),
    pnl {{REAL}} NOT NULL,
    pnl_pct {{REAL}} NOT NULL,
    trades {{INT}} NOT NULL,
    mode TEXT NOT NULL,
    PRIMARY KEY (bot_id, ts)
);
CREATE INDEX IF NOT EXISTS idx_performance_bot_ts ON bot_performance(bot_id, ts DESC);

CREATE TABLE IF NOT EXISTS bot_decisions (
    id {{SERIAL}},
    bot_id {{INT}} NOT NULL,
    ts {{INT}} NOT NULL,
    decision TEXT NOT NULL,
    reason TEXT NOT NULL CHECK (reason <> ''),
    metadata TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_bot_ts ON bot_decisions(bot_id, ts DESC);

CREATE TABLE IF NOT EXISTS bot_trades (
    id {{SERIAL}},
    bot_id {{INT}} NOT NULL,
    ts {{INT}} NOT NULL,
    side TEXT NOT NULL,
    quantity {{INT}} NOT NULL,
    price {{REAL}} NOT NULL,
    reason TEXT NOT NULL,
    metadata TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_bot_ts ON bot_trades(bot_id, ts DESC);
`

// schemaFor renders the schema for a dialect's column types.
func schemaFor(d dialect) string {
	return strings.NewReplacer(
		"{{INT}}", d.integer,
		"{{REAL}}", d.real,
		"{{SERIAL}}", d.serialPK,
	).Replace(schemaSQL)
}
