//go:build property
// +build property

package sanitize_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/fieldwork-labs/intake/pkg/sanitize"
)

// TestToJSONSafeTotal verifies the sanitizer's total-defense contract.
// Property: json.Marshal(ToJSONSafe(v)) never errors, for any finite nested
// value including hostile leaves.
func TestToJSONSafeTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sanitized values always marshal", prop.ForAll(
		func(keys []string, nums []float64, s string) bool {
			obj := map[string]any{
				"nan":  math.NaN(),
				"inf":  math.Inf(-1),
				"ch":   make(chan int),
				"fn":   func() {},
				"text": s,
			}
			for i := 0; i < len(keys) && i < len(nums); i++ {
				obj[keys[i]] = []any{nums[i], map[string]any{"v": nums[i]}}
			}

			_, err := json.Marshal(sanitize.ToJSONSafe(obj))
			return err == nil
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Float64()),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
