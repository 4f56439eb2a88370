package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one idempotent schema step. Up must be safe to run
// against both a fresh database and one already at or past version.
type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "initial_tables", up: migrateInitialTables},
	{version: 2, name: "chain_runs", up: migrateChainRuns},
}

// migrate applies every migration not yet recorded in
// schema_migrations, in version order. Applying migrations on an
// already-migrated store is a no-op (spec.md §8 idempotence law).
func (s *Store) migrate(ctx context.Context) error {
	return s.execute(ctx, "migrate", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL
			)`); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}

		applied := make(map[int]bool)
		rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_migrations`)
		if err != nil {
			return fmt.Errorf("read schema_migrations: %w", err)
		}
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return fmt.Errorf("scan schema_migrations: %w", err)
			}
			applied[v] = true
		}
		rows.Close()

		for _, m := range migrations {
			if applied[m.version] {
				continue
			}
			if err := m.up(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.version, time.Now().UTC()); err != nil {
				return fmt.Errorf("record migration %d: %w", m.version, err)
			}
		}
		return nil
	})
}

// addColumnIfMissing guards an additive ALTER TABLE with a
// PRAGMA table_info check, since SQLite has no
// "ALTER TABLE ... ADD COLUMN IF NOT EXISTS".
func addColumnIfMissing(tx *sql.Tx, table, column, definition string) error {
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan %s table_info: %w", table, err)
		}
		if name == column {
			exists = true
		}
	}
	if exists {
		return nil
	}
	if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func migrateInitialTables(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS afk_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			is_afk INTEGER NOT NULL DEFAULT 0,
			reason TEXT,
			auto_return_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			agent_type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS agent_instances (
			instance_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL REFERENCES agents(agent_id),
			session_id TEXT,
			project_dir TEXT,
			host TEXT,
			started_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS input_requests (
			request_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			question TEXT NOT NULL,
			context TEXT,
			options TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			responded_at TIMESTAMP,
			response TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			progress INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			outputs TEXT,
			metrics TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS read_cache (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			payload TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (scope, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_input_requests_status ON input_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_input_requests_agent ON input_requests(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(agent_id)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateChainRuns is the supplementary table from SPEC_FULL.md §3,
// persisting each chain executor run's summary for audit.
func migrateChainRuns(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS chain_runs (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		steps_completed INTEGER NOT NULL,
		last_error TEXT,
		context_snapshot TEXT
	)`)
	return err
}
