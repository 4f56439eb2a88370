package zulipclient

import "time"

// Term is one narrow-filter triple: {operator, operand, negated?}.
type Term struct {
	Operator string `json:"operator"`
	Operand  string `json:"operand"`
	Negated  bool   `json:"negated,omitempty"`
}

// Narrow is an ordered list of filter terms.
type Narrow []Term

// BuildNarrow merges simple shortcut parameters (stream, topic, sender,
// time window) with a caller-supplied narrow list, per spec.md §4.4's
// precedence: explicit narrow > simple params > defaults. User-supplied
// entries always appear first and always win on operator conflict;
// derived entries that don't conflict are appended.
//
// A relative time window is resolved to an absolute `after:` search
// operand using `now`, the wall clock at *call* time, never at
// validation time (spec.md §4.3).
func BuildNarrow(userNarrow Narrow, stream, topic, sender string, sinceDuration time.Duration, now time.Time) Narrow {
	result := make(Narrow, 0, len(userNarrow)+4)
	seenOperators := make(map[string]bool, len(userNarrow))

	for _, t := range userNarrow {
		result = append(result, t)
		seenOperators[t.Operator] = true
	}

	appendIfAbsent := func(op, operand string) {
		if seenOperators[op] {
			return
		}
		result = append(result, Term{Operator: op, Operand: operand})
		seenOperators[op] = true
	}

	if stream != "" {
		appendIfAbsent("stream", stream)
	}
	if topic != "" {
		appendIfAbsent("topic", topic)
	}
	if sender != "" {
		appendIfAbsent("sender", sender)
	}
	if sinceDuration > 0 {
		appendIfAbsent("search", "after:"+now.Add(-sinceDuration).UTC().Format(time.RFC3339))
	}

	return result
}
