package validate

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCoerceIntStringAndIntFormsAreEquivalent validates spec property 3:
// for every integer tool parameter, the string form of a valid integer
// produces the same result as the integer form.
func TestCoerceIntStringAndIntFormsAreEquivalent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("int and numeric-string forms coerce identically", prop.ForAll(
		func(n int64) bool {
			fromInt, err := CoerceInt("n", n)
			if err != nil {
				return false
			}
			fromString, err := CoerceInt("n", strconv.FormatInt(n, 10))
			if err != nil {
				return false
			}
			return fromInt == fromString && fromInt == n
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
