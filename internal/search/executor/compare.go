package executor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// dateLayouts are the timestamp shapes the Taiga API emits, most specific
// first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toNumber attempts numeric coercion of a resolved value or query operand.
func toNumber(v any) (float64, bool) {
	switch value := v.(type) {
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case float64:
		return value, true
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return number, err == nil
	}
	return 0, false
}

// toDate attempts to interpret a resolved value or query operand as a
// point in time.
func toDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toBool recognizes the literal tokens true/false, in either operand
// position.
func toBool(v any) (bool, bool) {
	switch value := v.(type) {
	case bool:
		return value, true
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// stringify renders a resolved value for string comparison and group keys.
func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

// equals implements the equality semantics: numeric coercion first, then
// trimmed case-insensitive strings, then strict boolean equality honoring
// the true/false literals. An array-valued field matches if any element
// matches.
func equals(resolved any, operand string) bool {
	if elements, ok := asStringSlice(resolved); ok {
		for _, element := range elements {
			if equals(element, operand) {
				return true
			}
		}
		return false
	}

	if left, ok := toNumber(resolved); ok {
		if right, ok := toNumber(operand); ok {
			return left == right
		}
	}

	if left, ok := resolved.(bool); ok {
		right, isBool := toBool(operand)
		return isBool && left == right
	}

	left := strings.TrimSpace(strings.ToLower(stringify(resolved)))
	right := strings.TrimSpace(strings.ToLower(operand))
	return left == right
}

// compareOrder implements the ordering semantics for >, >=, < and <=:
// numeric comparison when both sides coerce to numbers, date comparison
// when both parse as dates, raw string comparison otherwise. The boolean
// result is false when the resolved value is missing.
func compareOrder(resolved any, operand string) (int, bool) {
	if resolved == nil {
		return 0, false
	}

	if left, ok := toNumber(resolved); ok {
		if right, ok := toNumber(operand); ok {
			switch {
			case left < right:
				return -1, true
			case left > right:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if left, ok := toDate(resolved); ok {
		if right, ok := toDate(operand); ok {
			switch {
			case left.Before(right):
				return -1, true
			case left.After(right):
				return 1, true
			default:
				return 0, true
			}
		}
	}

	return strings.Compare(stringify(resolved), operand), true
}

// substringMatch covers contains, startswith and endswith. Missing values
// are non-matches, never errors.
func substringMatch(resolved any, operand string, match func(s, substr string) bool) bool {
	if resolved == nil {
		return false
	}
	if elements, ok := asStringSlice(resolved); ok {
		for _, element := range elements {
			if match(strings.ToLower(element), strings.ToLower(operand)) {
				return true
			}
		}
		return false
	}
	return match(strings.ToLower(stringify(resolved)), strings.ToLower(operand))
}

// fuzzyMatch requires every whitespace-delimited token of the operand to
// appear as a substring of the resolved value. This is AND-of-tokens, not
// edit distance.
func fuzzyMatch(resolved any, operand string) bool {
	if resolved == nil {
		return false
	}
	haystack := strings.ToLower(stringify(resolved))
	for _, token := range strings.Fields(strings.ToLower(operand)) {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

// inMatch implements in/not_in membership. When the field itself holds an
// array, membership holds if any field element matches any query element.
func inMatch(resolved any, operands []string) bool {
	if elements, ok := asStringSlice(resolved); ok {
		for _, element := range elements {
			for _, operand := range operands {
				if equals(element, operand) {
					return true
				}
			}
		}
		return false
	}
	for _, operand := range operands {
		if equals(resolved, operand) {
			return true
		}
	}
	return false
}

// betweenMatch implements between: a numeric range when both bounds
// coerce to numbers, a date range when both parse as dates, false
// otherwise — there is deliberately no string-range fallback.
func betweenMatch(resolved any, low, high string) bool {
	if lowNum, ok := toNumber(low); ok {
		if highNum, ok := toNumber(high); ok {
			value, ok := toNumber(resolved)
			return ok && value >= lowNum && value <= highNum
		}
	}

	if lowDate, ok := toDate(low); ok {
		if highDate, ok := toDate(high); ok {
			value, ok := toDate(resolved)
			return ok && !value.Before(lowDate) && !value.After(highDate)
		}
	}

	return false
}

// isEmpty reports whether a resolved value counts as empty: nil,
// empty or whitespace-only strings, empty arrays, and objects with no
// keys.
func isEmpty(resolved any) bool {
	if resolved == nil {
		return true
	}
	switch value := resolved.(type) {
	case string:
		return strings.TrimSpace(value) == ""
	case bool:
		return false
	}
	rv := reflect.ValueOf(resolved)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// asStringSlice flattens array-shaped resolved values (tags, epic
// subjects, raw JSON arrays) for element-wise matching.
func asStringSlice(resolved any) ([]string, bool) {
	switch value := resolved.(type) {
	case []string:
		return value, true
	case []any:
		elements := make([]string, 0, len(value))
		for _, element := range value {
			elements = append(elements, stringify(element))
		}
		return elements, true
	}
	return nil, false
}

// newCollator builds the collator used for locale-aware case-insensitive
// string ordering in the sort stage. Collators are not safe for
// concurrent use, so each execution builds its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// sortLess orders two resolved values for the sort stage: nil sorts first
// regardless of direction, numbers compare numerically, strings compare
// with the locale-aware collator, and mixed types fall back to collated
// string comparison.
func sortLess(collator *collate.Collator, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if left, ok := toNumberStrict(a); ok {
		if right, ok := toNumberStrict(b); ok {
			switch {
			case left < right:
				return -1
			case left > right:
				return 1
			default:
				return 0
			}
		}
	}

	return collator.CompareString(stringify(a), stringify(b))
}

// toNumberStrict coerces genuinely numeric values only; numeric strings
// stay strings for sorting purposes.
func toNumberStrict(v any) (float64, bool) {
	switch value := v.(type) {
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case float64:
		return value, true
	}
	return 0, false
}
