package validate

import "testing"

func TestCoerceIntAcceptsIntAndNumericString(t *testing.T) {
	fromInt, err := CoerceInt("num_before", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fromString, err := CoerceInt("num_before", "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fromInt != fromString {
		t.Fatalf("int form %d and string form %d must coerce identically", fromInt, fromString)
	}
}

func TestCoerceIntRejectsNonNumeric(t *testing.T) {
	_, err := CoerceInt("num_before", "not-a-number")
	if err == nil {
		t.Fatal("expected ValidationError for non-numeric string")
	}
}

func TestCoerceEnumListsAllowedSet(t *testing.T) {
	_, err := CoerceEnum("anchor", "sideways", "newest", "oldest", "first_unread")
	if err == nil {
		t.Fatal("expected ValidationError")
	}
	verr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if verr.Code != "ValidationError" {
		t.Fatalf("unexpected code %q", verr.Code)
	}
}

func TestDropNullsRemovesExplicitNulls(t *testing.T) {
	frame := map[string]any{"topic": nil, "stream": "general"}
	DropNulls(frame)
	if _, ok := frame["topic"]; ok {
		t.Fatal("expected explicit-null key to be dropped")
	}
	if _, ok := frame["stream"]; !ok {
		t.Fatal("non-null key must survive")
	}
}
