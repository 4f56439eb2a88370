package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is a tasks.status value.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

func (s TaskStatus) terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is one row of the tasks table.
type Task struct {
	TaskID      string
	AgentID     string
	Name        string
	Description string
	Status      TaskStatus
	Progress    int
	StartedAt   time.Time
	CompletedAt *time.Time
	Outputs     string
	Metrics     string
}

// TaskStore manages the tasks table, enforcing monotonically
// non-decreasing progress until a terminal status (spec.md §8 property 2).
type TaskStore struct{ s *Store }

// Start creates a new task row in the active state.
func (t *TaskStore) Start(ctx context.Context, agentID, name, description string) (string, error) {
	taskID := uuid.NewString()
	now := time.Now().UTC()
	err := t.s.execute(ctx, "tasks.start", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (task_id, agent_id, name, description, status, progress, started_at)
			VALUES (?, ?, ?, ?, 'active', 0, ?)`,
			taskID, agentID, name, description, now)
		return err
	})
	if err != nil {
		return "", err
	}
	return taskID, nil
}

// UpdateProgress sets progress for an active task, rejecting any value
// lower than the row's current progress (monotonicity) and ignoring
// updates to an already-terminal task.
func (t *TaskStore) UpdateProgress(ctx context.Context, taskID string, progress int, metrics string) error {
	return t.s.execute(ctx, "tasks.update_progress", func(tx *sql.Tx) error {
		var status string
		var current int
		row := tx.QueryRowContext(ctx, `SELECT status, progress FROM tasks WHERE task_id = ?`, taskID)
		if err := row.Scan(&status, &current); err != nil {
			return err
		}
		if TaskStatus(status).terminal() {
			t.s.log.Info("store: ignoring progress update on terminal task", "task_id", taskID, "status", status)
			return nil
		}
		if progress < current {
			t.s.log.Warn("store: ignoring non-monotonic progress update", "task_id", taskID, "current", current, "attempted", progress)
			return nil
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET progress = ?, metrics = ? WHERE task_id = ?`, progress, metrics, taskID)
		return err
	})
}

// Complete finalizes a task with a terminal status and sets
// completed_at, per spec.md §3's "completed_at set iff status terminal".
func (t *TaskStore) Complete(ctx context.Context, taskID string, status TaskStatus, outputs string) error {
	if !status.terminal() {
		status = TaskCompleted
	}
	return t.s.execute(ctx, "tasks.complete", func(tx *sql.Tx) error {
		var currentStatus string
		row := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE task_id = ?`, taskID)
		if err := row.Scan(&currentStatus); err != nil {
			return err
		}
		if TaskStatus(currentStatus).terminal() {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, progress = 100, completed_at = ?, outputs = ? WHERE task_id = ?`,
			string(status), time.Now().UTC(), outputs, taskID)
		return err
	})
}

// Get reads one task row.
func (t *TaskStore) Get(ctx context.Context, taskID string) (*Task, error) {
	row := t.s.queryRow(ctx, `
		SELECT task_id, agent_id, name, description, status, progress, started_at, completed_at, outputs, metrics
		FROM tasks WHERE task_id = ?`, taskID)
	var task Task
	var description, outputs, metrics sql.NullString
	var completedAt sql.NullTime
	var status string
	if err := row.Scan(&task.TaskID, &task.AgentID, &task.Name, &description, &status, &task.Progress, &task.StartedAt, &completedAt, &outputs, &metrics); err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	task.Description = description.String
	task.Outputs = outputs.String
	task.Metrics = metrics.String
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
