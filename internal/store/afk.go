package store

import (
	"context"
	"database/sql"
	"time"
)

// AFKState is the singleton row described in spec.md §3.
type AFKState struct {
	IsAFK        bool
	Reason       string
	AutoReturnAt *time.Time
	UpdatedAt    time.Time
}

// AFKStore manages the single-row AFK state table.
type AFKStore struct{ s *Store }

// ensureInitialRow inserts {id:1, is_afk:false} if no row exists yet,
// per spec.md §4.1's startup policy.
func (a *AFKStore) ensureInitialRow(ctx context.Context) error {
	return a.s.execute(ctx, "afk.ensure_initial_row", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO afk_state (id, is_afk, updated_at)
			SELECT 1, 0, ?
			WHERE NOT EXISTS (SELECT 1 FROM afk_state WHERE id = 1)`,
			time.Now().UTC())
		return err
	})
}

// Get reads the current AFK row.
func (a *AFKStore) Get(ctx context.Context) (*AFKState, error) {
	row := a.s.queryRow(ctx, `SELECT is_afk, reason, auto_return_at, updated_at FROM afk_state WHERE id = 1`)
	var st AFKState
	var isAFK int
	var reason sql.NullString
	var autoReturn sql.NullTime
	if err := row.Scan(&isAFK, &reason, &autoReturn, &st.UpdatedAt); err != nil {
		a.s.log.Error("store: afk.get failed", "error", err)
		return nil, err
	}
	st.IsAFK = isAFK != 0
	st.Reason = reason.String
	if autoReturn.Valid {
		st.AutoReturnAt = &autoReturn.Time
	}
	return &st, nil
}

// Enable transitions to away, optionally setting an auto-return
// deadline. Calling Enable again overwrites the prior parameters
// (spec.md §8 idempotence law: "one AFK row with the latest params").
func (a *AFKStore) Enable(ctx context.Context, reason string, autoReturnAt *time.Time) error {
	return a.s.execute(ctx, "afk.enable", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE afk_state SET is_afk = 1, reason = ?, auto_return_at = ?, updated_at = ? WHERE id = 1`,
			reason, autoReturnAt, time.Now().UTC())
		return err
	})
}

// Disable transitions to present and clears the auto-return deadline.
func (a *AFKStore) Disable(ctx context.Context) error {
	return a.s.execute(ctx, "afk.disable", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE afk_state SET is_afk = 0, reason = NULL, auto_return_at = NULL, updated_at = ? WHERE id = 1`,
			time.Now().UTC())
		return err
	})
}

// ApplyAutoReturn transitions to present if auto_return_at has passed.
// Called by the AFK controller's background tick.
func (a *AFKStore) ApplyAutoReturn(ctx context.Context, now time.Time) error {
	return a.s.execute(ctx, "afk.auto_return", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE afk_state SET is_afk = 0, reason = NULL, auto_return_at = NULL, updated_at = ?
			WHERE id = 1 AND is_afk = 1 AND auto_return_at IS NOT NULL AND auto_return_at <= ?`,
			now.UTC(), now.UTC())
		return err
	})
}
