package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zulipmcp/bridge/internal/store"
)

// Command is one step descriptor: {type, params}.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`

	// Condition and branches are only populated for type "conditional_action".
	Condition string    `json:"condition,omitempty"`
	IfTrue    *Command  `json:"if_true,omitempty"`
	IfFalse   *Command  `json:"if_false,omitempty"`
}

// StepRunner executes one primitive step type against live collaborators
// (C5 tool handlers), mutating ctx with its output. Keeping this as an
// interface lets the executor stay free of direct tool-surface imports.
type StepRunner interface {
	SendMessage(ctx context.Context, params map[string]any) (map[string]any, error)
	SearchMessages(ctx context.Context, params map[string]any) (map[string]any, error)
	WaitForResponse(ctx context.Context, params map[string]any) (map[string]any, error)
}

// Summary is the chain's execution result, per spec.md §4.8: steps
// completed, last error, final context snapshot.
type Summary struct {
	RunID          string         `json:"run_id"`
	StepsCompleted int            `json:"steps_completed"`
	LastError      string         `json:"last_error,omitempty"`
	Context        map[string]any `json:"context"`
}

// Executor runs a command list over a shared context map.
type Executor struct {
	runner StepRunner
	runs   *store.ChainRunStore
	log    *slog.Logger
}

// New builds an Executor.
func New(runner StepRunner, runs *store.ChainRunStore, log *slog.Logger) *Executor {
	return &Executor{runner: runner, runs: runs, log: log}
}

// Run executes commands in order against a fresh context map, halting
// on the first step error (spec.md §4.8's error semantics), and
// persists a summary row afterward.
func (e *Executor) Run(ctx context.Context, commands []Command) (*Summary, error) {
	runID := uuid.NewString()
	sharedCtx := make(map[string]any)

	summary := &Summary{RunID: runID, Context: sharedCtx}

	for _, cmd := range commands {
		if err := e.runStep(ctx, cmd, sharedCtx); err != nil {
			summary.LastError = err.Error()
			break
		}
		summary.StepsCompleted++
	}

	if e.runs != nil {
		snapshot := fmt.Sprintf("%v", sharedCtx)
		if perr := e.runs.Record(ctx, runID, summary.StepsCompleted, summary.LastError, snapshot); perr != nil {
			e.log.Error("chain: failed to persist run summary", "run_id", runID, "error", perr)
		}
	}

	return summary, nil
}

func (e *Executor) runStep(ctx context.Context, cmd Command, sharedCtx map[string]any) error {
	switch cmd.Type {
	case "send_message":
		out, err := e.runner.SendMessage(ctx, mergeParams(cmd.Params, sharedCtx))
		if err != nil {
			return err
		}
		sharedCtx["last_sent"] = out
		return nil

	case "search_messages":
		out, err := e.runner.SearchMessages(ctx, mergeParams(cmd.Params, sharedCtx))
		if err != nil {
			return err
		}
		sharedCtx["search_results"] = out
		return nil

	case "wait_for_response":
		out, err := e.runner.WaitForResponse(ctx, mergeParams(cmd.Params, sharedCtx))
		if err != nil {
			return err
		}
		sharedCtx["response"] = out
		return nil

	case "conditional_action":
		result, err := EvalPredicate(cmd.Condition, sharedCtx)
		if err != nil {
			return fmt.Errorf("conditional_action: %w", err)
		}
		branch := cmd.IfFalse
		if result {
			branch = cmd.IfTrue
		}
		if branch == nil {
			return nil
		}
		return e.runStep(ctx, *branch, sharedCtx)

	default:
		return fmt.Errorf("chain: unknown command type %q", cmd.Type)
	}
}

// mergeParams passes the shared chain context to a step as the
// "_context" entry alongside its explicit params; an explicit param
// named "_context" replaces it.
func mergeParams(params map[string]any, sharedCtx map[string]any) map[string]any {
	merged := make(map[string]any, len(params)+1)
	merged["_context"] = sharedCtx
	for k, v := range params {
		merged[k] = v
	}
	return merged
}
