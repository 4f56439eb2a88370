package chain

import (
	"context"
	"testing"
)

type stubRunner struct {
	sendCalls int
}

func (s *stubRunner) SendMessage(_ context.Context, params map[string]any) (map[string]any, error) {
	s.sendCalls++
	return map[string]any{"status": "success", "content": params["content"]}, nil
}

func (s *stubRunner) SearchMessages(context.Context, map[string]any) (map[string]any, error) {
	return map[string]any{"messages": []any{}}, nil
}

func (s *stubRunner) WaitForResponse(context.Context, map[string]any) (map[string]any, error) {
	return map[string]any{"request_status": "answered"}, nil
}

func TestExecutorRunsStepsInOrder(t *testing.T) {
	runner := &stubRunner{}
	exec := New(runner, nil, nil)

	commands := []Command{
		{Type: "search_messages", Params: map[string]any{}},
		{Type: "wait_for_response", Params: map[string]any{}},
		{Type: "send_message", Params: map[string]any{"content": "hi"}},
	}

	summary, err := exec.Run(context.Background(), commands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StepsCompleted != 3 {
		t.Fatalf("expected 3 steps completed, got %d", summary.StepsCompleted)
	}
	if runner.sendCalls != 1 {
		t.Fatalf("expected send_message invoked once, got %d", runner.sendCalls)
	}
}

func TestExecutorHaltsOnUnknownStepType(t *testing.T) {
	runner := &stubRunner{}
	exec := New(runner, nil, nil)

	commands := []Command{
		{Type: "search_messages", Params: map[string]any{}},
		{Type: "not_a_real_step"},
		{Type: "send_message", Params: map[string]any{"content": "never reached"}},
	}

	summary, err := exec.Run(context.Background(), commands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StepsCompleted != 1 {
		t.Fatalf("expected halt after 1 step, got %d", summary.StepsCompleted)
	}
	if summary.LastError == "" {
		t.Fatal("expected LastError to be set")
	}
	if runner.sendCalls != 0 {
		t.Fatal("send_message must not run after the chain halted")
	}
}

func TestExecutorConditionalActionBranches(t *testing.T) {
	runner := &stubRunner{}
	exec := New(runner, nil, nil)

	commands := []Command{
		{
			Type:      "conditional_action",
			Condition: `1 == 1`,
			IfTrue:    &Command{Type: "send_message", Params: map[string]any{"content": "true branch"}},
			IfFalse:   &Command{Type: "send_message", Params: map[string]any{"content": "false branch"}},
		},
	}

	_, err := exec.Run(context.Background(), commands)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.sendCalls != 1 {
		t.Fatalf("expected exactly one branch taken, got %d sends", runner.sendCalls)
	}
}
