package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the session journal, the summary journal and the outbox.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			team_id       TEXT NOT NULL,
			started_at    TEXT NOT NULL,
			ended_at      TEXT,
			active_ms     INTEGER NOT NULL DEFAULT 0,
			idle_ms       INTEGER NOT NULL DEFAULT 0,
			score         INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS summaries (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id              TEXT NOT NULL,
			team_id              TEXT NOT NULL,
			bucket_start         TEXT NOT NULL,
			bucket_end           TEXT NOT NULL,
			total_minutes        REAL NOT NULL,
			active_minutes       REAL NOT NULL,
			idle_minutes         REAL NOT NULL,
			productive_minutes   REAL NOT NULL,
			unproductive_minutes REAL NOT NULL,
			score                INTEGER NOT NULL,
			narrative            TEXT NOT NULL,
			recorded_at          TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS summary_apps (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			summary_id  INTEGER NOT NULL REFERENCES summaries(id) ON DELETE CASCADE,
			rank        INTEGER NOT NULL,
			name        TEXT NOT NULL,
			minutes     REAL NOT NULL,
			category    TEXT NOT NULL,
			productive  BOOLEAN NOT NULL,
			confidence  REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS outbox (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			kind        TEXT NOT NULL,
			body        BLOB NOT NULL,
			queued_at   TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			last_error  TEXT
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_summaries_bucket ON summaries(bucket_start)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_user ON summaries(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_apps_summary ON summary_apps(summary_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
