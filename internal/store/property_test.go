package store

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTaskProgressMonotonicProperty validates spec property 2: for
// every task row, progress is monotonically non-decreasing until
// status becomes terminal.
func TestTaskProgressMonotonicProperty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("progress never decreases across a sequence of updates", prop.ForAll(
		func(updates []uint8) bool {
			taskID, err := s.Tasks.Start(ctx, "agent-prop", "t", "")
			if err != nil {
				return false
			}
			highest := 0
			for _, u := range updates {
				v := int(u) % 101
				if err := s.Tasks.UpdateProgress(ctx, taskID, v, ""); err != nil {
					return false
				}
				task, err := s.Tasks.Get(ctx, taskID)
				if err != nil {
					return false
				}
				if task.Progress < highest {
					return false
				}
				if v > highest {
					highest = v
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8Range(0, 100)),
	))

	properties.TestingRun(t)
}

// TestRequestSingleTerminalTransitionProperty validates spec property
// 1: at most one transition from pending to any terminal state ever
// occurs, regardless of how many terminal transitions are attempted.
func TestRequestSingleTerminalTransitionProperty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	terminalStates := []RequestStatus{RequestAnswered, RequestCancelled, RequestTimeout}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("only the first terminal transition sticks", prop.ForAll(
		func(attempts []uint8) bool {
			requestID, err := s.Requests.Create(ctx, "agent-prop", "q", "", "")
			if err != nil {
				return false
			}
			var firstStatus RequestStatus
			for _, a := range attempts {
				target := terminalStates[int(a)%len(terminalStates)]
				if err := s.Requests.Transition(ctx, requestID, target, "r"); err != nil {
					return false
				}
				if firstStatus == "" {
					firstStatus = target
				}
			}
			if firstStatus == "" {
				return true
			}
			req, err := s.Requests.Get(ctx, requestID)
			if err != nil {
				return false
			}
			return req.Status == firstStatus
		},
		gen.SliceOf(gen.UInt8Range(0, 2)),
	))

	properties.TestingRun(t)
}
