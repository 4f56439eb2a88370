package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s, err := Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenInitializesAFKRow(t *testing.T) {
	s := newTestStore(t)
	afk, err := s.AFK.Get(context.Background())
	require.NoError(t, err)
	require.False(t, afk.IsAFK)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate(context.Background()))
	require.NoError(t, s.migrate(context.Background()))
}

func TestRegisterAgentTwiceYieldsOneAgentTwoInstances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Agents.Register(ctx, "a1", "code-reviewer", "s1", "/tmp/p", "host1", "")
	require.NoError(t, err)
	_, err = s.Agents.Register(ctx, "a1", "code-reviewer", "s2", "/tmp/p", "host1", "")
	require.NoError(t, err)

	agent, err := s.Agents.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", agent.AgentID)

	instances, err := s.Agents.ListInstances(ctx, 10)
	require.NoError(t, err)
	require.Len(t, instances, 2)
}

func TestRequestTransitionIsSingleTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	requestID, err := s.Requests.Create(ctx, "a1", "Go?", "", `["Y","N"]`)
	require.NoError(t, err)

	require.NoError(t, s.Requests.Transition(ctx, requestID, RequestAnswered, "Y"))
	require.NoError(t, s.Requests.Transition(ctx, requestID, RequestTimeout, ""))

	req, err := s.Requests.Get(ctx, requestID)
	require.NoError(t, err)
	require.Equal(t, RequestAnswered, req.Status)
	require.Equal(t, "Y", req.Response)
}

func TestTaskProgressRejectsNonMonotonicUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	taskID, err := s.Tasks.Start(ctx, "a1", "build", "")
	require.NoError(t, err)

	require.NoError(t, s.Tasks.UpdateProgress(ctx, taskID, 50, ""))
	require.NoError(t, s.Tasks.UpdateProgress(ctx, taskID, 20, "")) // ignored, not an error

	task, err := s.Tasks.Get(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, 50, task.Progress)
}

func TestTaskCompleteSetsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	taskID, err := s.Tasks.Start(ctx, "a1", "build", "")
	require.NoError(t, err)
	require.NoError(t, s.Tasks.Complete(ctx, taskID, TaskCompleted, `{"ok":true}`))

	task, err := s.Tasks.Get(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.Equal(t, 100, task.Progress)
}

func TestAFKEnableTwiceKeepsLatestParams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AFK.Enable(ctx, "lunch", nil))
	require.NoError(t, s.AFK.Enable(ctx, "meeting", nil))

	afk, err := s.AFK.Get(ctx)
	require.NoError(t, err)
	require.True(t, afk.IsAFK)
	require.Equal(t, "meeting", afk.Reason)
}
