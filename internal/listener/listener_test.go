package listener

import "testing"

func TestExtractRequestIDFromLeadingToken(t *testing.T) {
	got := extractRequestID("a1b2c3d4 Y")
	if got != "a1b2c3d4" {
		t.Fatalf("expected a1b2c3d4, got %q", got)
	}
}

func TestExtractRequestIDRejectsNonHexLeader(t *testing.T) {
	got := extractRequestID("not-an-id plain reply")
	if got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}

func TestExtractRequestIDRequiresWordBoundary(t *testing.T) {
	got := extractRequestID("a1b2c3d4extra text")
	if got != "" {
		t.Fatalf("expected no match without boundary, got %q", got)
	}
}

func TestAgentIDFromTopic(t *testing.T) {
	agentID, ok := agentIDFromTopic("agent/claude-code-1")
	if !ok || agentID != "claude-code-1" {
		t.Fatalf("expected claude-code-1, got %q ok=%v", agentID, ok)
	}
}

func TestAgentIDFromTopicRejectsOtherSchemes(t *testing.T) {
	if _, ok := agentIDFromTopic("general discussion"); ok {
		t.Fatal("expected no match for a non-agent topic")
	}
	if _, ok := agentIDFromTopic("agent/"); ok {
		t.Fatal("expected no match for an empty agent id")
	}
}
