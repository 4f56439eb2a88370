package scheduler

import (
	"testing"
	"time"
)

func TestCreateRejectsPastTimestamp(t *testing.T) {
	s := &Scheduler{}
	past := time.Now().Add(-time.Hour)
	_, err := s.Create(nil, nil, "stream", "general", "topic", "hi", past)
	if err == nil {
		t.Fatal("expected PastTimestampError")
	}
	if _, ok := err.(*PastTimestampError); !ok {
		t.Fatalf("expected *PastTimestampError, got %T", err)
	}
}
