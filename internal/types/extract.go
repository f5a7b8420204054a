package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// =============================================================================
// RAW VALUE EXTRACTION
// =============================================================================
//
// Third-party payloads are decoded into map[string]any, so a "string" field can
// arrive as a string, a JSON number, a bool, a list or an object depending on
// the provider. These helpers convert such values without panicking.

// ExtractString converts a decoded JSON value to a trimmed string.
// Lists yield their first non-empty element; objects yield "".
func ExtractString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
		return ""
	case []any:
		for _, e := range x {
			if s := ExtractString(e); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}

// ExtractStrings converts a decoded JSON value to a list of non-empty strings.
// A single scalar becomes a one-element list.
func ExtractStrings(v any) []string {
	var out []string
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range x {
			if s := ExtractString(e); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := ExtractString(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractInt64 converts a decoded JSON value to an integer id.
// Returns (0, false) when the value is absent, fractional or not numeric.
func ExtractInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// ExtractMap returns v as an object, or nil.
func ExtractMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Lookup walks a dotted path ("default_image.regular_url") through nested objects.
func Lookup(raw map[string]any, path string) any {
	cur := any(raw)
	for _, part := range strings.Split(path, ".") {
		m := ExtractMap(cur)
		if m == nil {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// FirstString returns the first non-empty string found under any of the paths.
func FirstString(raw map[string]any, paths ...string) string {
	for _, p := range paths {
		if s := ExtractString(Lookup(raw, p)); s != "" {
			return s
		}
	}
	return ""
}
