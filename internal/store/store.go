// Package store is the embedded analytical database: idempotent schema
// migrations, serialized writes, concurrent reads, and typed DAOs for
// agents, requests, tasks, AFK state, and read-through caches.
//
// golang-migrate (a teacher dependency) is deliberately not used here —
// see DESIGN.md for why its versioned, dirty-state migration model
// conflicts with the idempotent CREATE-IF-NOT-EXISTS requirement below.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// StoreWriteError wraps a failed write with the SQL operation name, per
// spec.md §4.1's failure semantics. No partial state leaks: the
// transaction that produced it was rolled back before this is returned.
type StoreWriteError struct {
	Operation string
	Cause     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store: write failed during %s: %v", e.Operation, e.Cause)
}

func (e *StoreWriteError) Unwrap() error { return e.Cause }

// Store owns the embedded database: one single-connection writer pool
// (serializing writes at the Go level, belt-and-braces with SQLite's
// own file locking) and one multi-connection reader pool, sharing the
// same file. Typed DAOs below are the only sanctioned entry points;
// spec.md §3 calls this the DatabaseManager façade.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	log    *slog.Logger

	writeMu sync.Mutex

	Agents   *AgentStore
	Requests *RequestStore
	Tasks    *TaskStore
	AFK      *AFKStore
	Cache    *CacheStore
	Chains   *ChainRunStore
}

// Open ensures path's directory exists, opens both pools, and applies
// migrations up to the latest version. Migration failure is fatal.
func Open(path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open writer handle: %w", err)
	}
	writer.SetMaxOpenConns(1) // single writer, serialized at the Go level too

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open reader handle: %w", err)
	}
	reader.SetMaxOpenConns(4)

	s := &Store{writer: writer, reader: reader, log: log}

	if err := s.migrate(context.Background()); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}

	s.Agents = &AgentStore{s: s}
	s.Requests = &RequestStore{s: s}
	s.Tasks = &TaskStore{s: s}
	s.AFK = &AFKStore{s: s}
	s.Cache = &CacheStore{s: s}
	s.Chains = &ChainRunStore{s: s}

	if err := s.AFK.ensureInitialRow(context.Background()); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("store: initialize AFK row: %w", err)
	}

	return s, nil
}

// SchemaVersion returns the highest applied migration version, for the
// CLI's migrate/doctor commands.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	row := s.queryRow(ctx, `SELECT MAX(version) FROM schema_migrations`)
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// execute runs fn inside a single write transaction under the process
// write mutex, rolling back on any error. operation names the logical
// write for StoreWriteError/logging.
func (s *Store) execute(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return &StoreWriteError{Operation: operation, Cause: err}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("store: rollback failed", "operation", operation, "rollback_error", rbErr)
		}
		return &StoreWriteError{Operation: operation, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreWriteError{Operation: operation, Cause: err}
	}
	return nil
}

// query runs a read against the reader pool. Failures are logged and
// return a plain error — readers never abort the caller per spec.md §4.1.
func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error("store: query failed", "query", query, "error", err)
		return nil, err
	}
	return rows, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.reader.QueryRowContext(ctx, query, args...)
}
