package validate

import (
	"fmt"
	"strconv"
)

// NullSentinel is the explicit null placeholder some MCP clients send
// instead of omitting an optional field. DropNulls removes any key
// mapped to this exact value so omitted-vs-explicit-null are
// indistinguishable downstream, per spec.md §4.4 and the "null-dropping"
// design note in spec.md §9.
var NullSentinel any = nil

// DropNulls removes every key in frame whose value is JSON null,
// mutating frame in place. Must run before any type check.
func DropNulls(frame map[string]any) {
	for k, v := range frame {
		if v == nil {
			delete(frame, k)
		}
	}
}

// CoerceInt accepts an int, float64 (the shape encoding/json produces
// for untyped numbers), or a numeric string, and returns the int64
// value. Any other shape is a structured ValidationError naming the
// parameter and a literal example.
func CoerceInt(param string, v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, newError("ValidationError",
				fmt.Sprintf("parameter %q must be an integer or a numeric string, got %q", param, t),
				fmt.Sprintf(`example: "%s": 42 or "%s": "42"`, param, param))
		}
		return n, nil
	default:
		return 0, newError("ValidationError",
			fmt.Sprintf("parameter %q must be an integer or a numeric string", param),
			fmt.Sprintf(`example: "%s": 42`, param))
	}
}

// CoerceEnum checks value against the declared allowed set
// case-sensitively, returning a ValidationError listing every allowed
// value when it doesn't match.
func CoerceEnum(param, value string, allowed ...string) (string, error) {
	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}
	return "", newError("ValidationError",
		fmt.Sprintf("parameter %q must be one of %v, got %q", param, allowed, value))
}
