// Package sanitize normalizes raw session values before they enter the
// canonical record: UI labels to ASCII tokens, numeric-ish values to numbers,
// arbitrary nested data to JSON-safe shapes.
package sanitize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// labelTable maps source-language (Korean) UI labels to canonical ASCII tokens.
// Lookup keys are NFC-normalized.
var labelTable = map[string]string{
	"동의":        "agree",
	"동의함":       "agree",
	"동의하지 않음":   "disagree",
	"동의 안 함":    "disagree",
	"예":         "yes",
	"네":         "yes",
	"아니요":       "no",
	"아니오":       "no",
	"남성":        "male",
	"여성":        "female",
	"기타":        "other",
	"응답하지 않음":   "no_answer",
	"매우 그렇다":    "strongly_agree",
	"그렇다":       "agree",
	"보통이다":      "neutral",
	"그렇지 않다":    "disagree",
	"전혀 그렇지 않다": "strongly_disagree",
}

// affirmative is the token set IsAffirmative accepts after normalization.
var affirmative = map[string]struct{}{
	"agree": {}, "yes": {}, "y": {}, "true": {}, "1": {},
}

// NormalizeLabel maps a source-language UI label to its canonical ASCII token.
// Unknown labels pass through unchanged (after NFC normalization and trimming);
// this function never fails.
func NormalizeLabel(raw string) string {
	s := strings.TrimSpace(norm.NFC.String(raw))
	if tok, ok := labelTable[s]; ok {
		return tok
	}
	return s
}

// IsAffirmative reports whether v represents consent/agreement.
// nil is false, booleans are themselves, everything else is normalized and
// matched against the affirmative token set, case-insensitive.
func IsAffirmative(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		tok := strings.ToLower(NormalizeLabel(fmt.Sprint(t)))
		_, ok := affirmative[tok]
		return ok
	}
}

// ToJSONSafe returns a value guaranteed to survive json.Marshal.
// Directly encodable values pass through untouched; anything else is rebuilt
// recursively with non-encodable leaves coerced to their string form.
// Container shape is preserved. Never fails.
func ToJSONSafe(v any) any {
	if _, err := json.Marshal(v); err == nil {
		return v
	}
	return rebuild(v)
}

func rebuild(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ToJSONSafe(e)
		}
		return out
	case map[any]any:
		// YAML decoding produces this shape; keys become strings.
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = ToJSONSafe(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToJSONSafe(e)
		}
		return out
	case float64:
		// NaN/Inf are the only unencodable float values.
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Sprint(t)
		}
		return t
	default:
		return rebuildReflect(v)
	}
}

// rebuildReflect handles typed containers (map[string]float64 and friends)
// that the concrete cases above miss.
func rebuildReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = ToJSONSafe(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = ToJSONSafe(rv.Index(i).Interface())
		}
		return out
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return ToJSONSafe(rv.Elem().Interface())
	default:
		return fmt.Sprint(v)
	}
}

// NumberKind selects the coercion target for FormatNumber.
type NumberKind string

const (
	KindInt   NumberKind = "int"
	KindFloat NumberKind = "float"
)

// FormatNumber coerces v to the requested numeric kind.
// nil, empty strings and empty containers become the empty-string sentinel,
// kept distinct from zero. Values that cannot be coerced come back unchanged.
// The optional precision applies to floats (default 2).
func FormatNumber(v any, kind NumberKind, precision ...int) any {
	if isEmpty(v) {
		return ""
	}
	switch kind {
	case KindInt:
		if n, ok := CoerceInt(v); ok {
			return n
		}
	case KindFloat:
		p := 2
		if len(precision) > 0 {
			p = precision[0]
		}
		if f, ok := CoerceFloat(v); ok {
			return Round(f, p)
		}
	}
	return v
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// CoerceInt converts numeric-ish values to int64. Floats truncate.
func CoerceInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// CoerceFloat converts numeric-ish values to float64.
func CoerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Round rounds f to p decimal places.
func Round(f float64, p int) float64 {
	shift := math.Pow(10, float64(p))
	return math.Round(f*shift) / shift
}

// SanitizePhone strips everything except digits and a single leading plus.
func SanitizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
