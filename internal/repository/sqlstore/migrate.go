package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step. Each statement runs on its own so that
// drivers which reject multi-statement Exec (pgx with arguments) stay happy.
type migration struct {
	version    int
	name       string
	statements []string
}

// MIGRATIONS ARE APPEND-ONLY:
// Applied versions are recorded in schema_migrations. Never edit a migration
// that has shipped; add a new one.
var migrations = []migration{
	{
		version: 1,
		name:    "users, projects, snippets",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				open_id        TEXT NOT NULL UNIQUE,
				name           TEXT NOT NULL DEFAULT '',
				email          TEXT NOT NULL DEFAULT '',
				login_method   TEXT NOT NULL DEFAULT '',
				role           TEXT NOT NULL DEFAULT 'user',
				password_hash  TEXT NOT NULL DEFAULT '',
				created_at     TIMESTAMP NOT NULL,
				updated_at     TIMESTAMP NOT NULL,
				last_signed_in TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS projects (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				color       TEXT NOT NULL DEFAULT '#6366f1',
				created_at  TIMESTAMP NOT NULL,
				updated_at  TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, updated_at)`,
			`CREATE TABLE IF NOT EXISTS snippets (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				project_id  TEXT,
				title       TEXT NOT NULL,
				code        TEXT NOT NULL,
				language    TEXT NOT NULL DEFAULT 'javascript',
				description TEXT NOT NULL DEFAULT '',
				is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
				created_at  TIMESTAMP NOT NULL,
				updated_at  TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_snippets_user ON snippets(user_id, updated_at)`,
			`CREATE INDEX IF NOT EXISTS idx_snippets_project ON snippets(project_id)`,
		},
	},
	{
		version: 2,
		name:    "line notes",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS line_notes (
				id          TEXT PRIMARY KEY,
				snippet_id  TEXT NOT NULL,
				user_id     TEXT NOT NULL,
				line_number INTEGER NOT NULL,
				content     TEXT NOT NULL,
				created_at  TIMESTAMP NOT NULL,
				updated_at  TIMESTAMP NOT NULL
			)`,
			// One note per (snippet, line, user). The upsert relies on it.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_line_notes_unique
				ON line_notes(snippet_id, line_number, user_id)`,
		},
	},
	{
		version: 3,
		name:    "files and assistant chats",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS files (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				project_id TEXT,
				filename   TEXT NOT NULL,
				mime_type  TEXT NOT NULL DEFAULT '',
				file_size  BIGINT NOT NULL DEFAULT 0,
				url        TEXT NOT NULL,
				file_key   TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_files_user ON files(user_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id)`,
			`CREATE TABLE IF NOT EXISTS ai_chats (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				snippet_id TEXT,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_chats_user ON ai_chats(user_id, snippet_id, created_at)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration and its bookkeeping row commit together.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(version) FROM schema_migrations`,
	).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := db.exec(ctx, tx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, now(),
	); err != nil {
		return err
	}
	return tx.Commit()
}
