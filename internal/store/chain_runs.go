package store

import (
	"context"
	"database/sql"
	"time"
)

// ChainRun is a persisted execution summary from the C8 chain executor.
type ChainRun struct {
	RunID           string
	CreatedAt       time.Time
	StepsCompleted  int
	LastError       string
	ContextSnapshot string
}

// ChainRunStore persists chain_runs, the supplementary table from
// SPEC_FULL.md §3 (nothing else records chain execution history).
type ChainRunStore struct{ s *Store }

// Record writes one completed (or halted) chain run.
func (c *ChainRunStore) Record(ctx context.Context, runID string, stepsCompleted int, lastError, contextSnapshot string) error {
	return c.s.execute(ctx, "chain_runs.record", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chain_runs (run_id, created_at, steps_completed, last_error, context_snapshot)
			VALUES (?, ?, ?, ?, ?)`,
			runID, time.Now().UTC(), stepsCompleted, lastError, contextSnapshot)
		return err
	})
}

// Get reads one chain run summary.
func (c *ChainRunStore) Get(ctx context.Context, runID string) (*ChainRun, error) {
	row := c.s.queryRow(ctx, `
		SELECT run_id, created_at, steps_completed, last_error, context_snapshot
		FROM chain_runs WHERE run_id = ?`, runID)
	var r ChainRun
	var lastError sql.NullString
	if err := row.Scan(&r.RunID, &r.CreatedAt, &r.StepsCompleted, &lastError, &r.ContextSnapshot); err != nil {
		return nil, err
	}
	r.LastError = lastError.String
	return &r, nil
}
