package chain

import "testing"

func TestEvalPredicateComparison(t *testing.T) {
	ctx := map[string]any{"response": map[string]any{"status": "answered"}}
	ok, err := EvalPredicate(`response.status == "answered"`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected predicate to be true")
	}
}

func TestEvalPredicateBooleanOps(t *testing.T) {
	ctx := map[string]any{"a": 5.0, "b": 2.0}
	ok, err := EvalPredicate(`a > 1 and (b < 1 or a >= 5)`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected predicate to be true")
	}
}

func TestEvalPredicateNot(t *testing.T) {
	ctx := map[string]any{"flag": false}
	ok, err := EvalPredicate(`not flag`, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected not-false to be true")
	}
}

func TestEvalPredicateRejectsGarbage(t *testing.T) {
	_, err := EvalPredicate(`a ===== b`, map[string]any{})
	if err == nil {
		t.Fatal("expected parse error for malformed expression")
	}
}
