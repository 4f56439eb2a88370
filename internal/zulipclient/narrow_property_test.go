package zulipclient

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBuildNarrowPreservesUserEntriesInOrder validates spec property 4:
// the resulting filter list contains all user-supplied entries in
// order, followed by non-conflicting derived entries.
func TestBuildNarrowPreservesUserEntriesInOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	properties.Property("user-supplied narrow terms come first, in order", prop.ForAll(
		func(operands []string) bool {
			user := make(Narrow, len(operands))
			for i, op := range operands {
				user[i] = Term{Operator: "search", Operand: op}
			}
			got := BuildNarrow(user, "eng", "standup", "a@x", time.Hour, now)
			if len(got) < len(user) {
				return false
			}
			for i := range user {
				if got[i] != user[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
