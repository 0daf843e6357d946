package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: conversation turns. Doubles as the deep-recall archive;
	// short-term reads are bounded by owner and recency.
	`CREATE TABLE IF NOT EXISTS turns (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		owner      TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// Migration 1: durable extracted facts, one row per (owner, kind, key).
	// ttl_days = 0 means the fact never expires.
	`CREATE TABLE IF NOT EXISTS facts (
		id         TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		owner      TEXT NOT NULL,
		kind       TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		confidence REAL DEFAULT 0.7,
		ttl_days   INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner, kind, key)
	)`,

	// Migration 2: topic mastery, one row per (owner, topic), level in [0,1].
	`CREATE TABLE IF NOT EXISTS mastery (
		id         TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		owner      TEXT NOT NULL,
		topic      TEXT NOT NULL,
		level      REAL NOT NULL DEFAULT 0.5,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner, topic)
	)`,

	// Migration 3: session bookkeeping for the status command.
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		owner       TEXT NOT NULL,
		question    TEXT NOT NULL,
		mode        TEXT,
		model_used  TEXT,
		tokens_used INTEGER,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_turns_owner_created ON turns(owner, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_facts_owner_kind    ON facts(owner, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_mastery_owner       ON mastery(owner)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_created    ON sessions(created_at DESC)`,
}

// applyMigrations runs any migrations that have not yet been applied.
func applyMigrations(conn *sql.DB) error {
	// Ensure the migration tracking table exists first.
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		var count int
		row := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, i)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", i, err)
		}
		if count > 0 {
			continue
		}

		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}

		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("record migration %d: %w", i, err)
		}
	}

	return nil
}

// applyVectorTables creates the sqlite-vec virtual table for fact
// relevance. Called separately so a missing extension degrades instead of
// failing the open.
func applyVectorTables(conn *sql.DB, dimension int) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_facts USING vec0(
		id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dimension)

	if _, err := conn.Exec(stmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	return nil
}
