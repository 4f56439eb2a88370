package zulipclient

import (
	"testing"
	"time"
)

func TestBuildNarrowUserEntriesWinAndComeFirst(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	user := Narrow{{Operator: "stream", Operand: "general"}}

	got := BuildNarrow(user, "engineering", "", "", 0, now)

	if len(got) != 1 {
		t.Fatalf("expected user's conflicting stream term to suppress the derived one, got %+v", got)
	}
	if got[0].Operand != "general" {
		t.Fatalf("user-supplied narrow must win on conflict, got %+v", got[0])
	}
}

func TestBuildNarrowAppendsNonConflictingDerived(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	user := Narrow{{Operator: "stream", Operand: "general"}}

	got := BuildNarrow(user, "", "standup", "alice@example.com", 7*24*time.Hour, now)

	if len(got) != 4 {
		t.Fatalf("expected 4 terms (1 user + topic + sender + search), got %d: %+v", len(got), got)
	}
	if got[0].Operator != "stream" {
		t.Fatalf("user-supplied entry must come first, got %+v", got[0])
	}
}
