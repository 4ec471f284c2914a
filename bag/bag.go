package bag

import (
	"fmt"
	"strconv"
	"strings"
)

// Bag is one observation's worth of raw fingerprint signals. It is owned by
// the collector that produced it; the pipeline treats it as read-only and
// clones before modifying.
type Bag map[string]any

// Has reports whether the key is present with a non-nil value.
func Has(b Bag, key string) bool {
	if b == nil {
		return false
	}
	v, ok := b[key]
	return ok && v != nil
}

// GetString extracts a string value with a default fallback.
// Returns defaultVal if the key doesn't exist, the value is nil, or not a string.
func GetString(b Bag, key string, defaultVal string) string {
	if b == nil {
		return defaultVal
	}

	val, ok := b[key]
	if !ok || val == nil {
		return defaultVal
	}

	str, ok := val.(string)
	if !ok {
		return defaultVal
	}

	return str
}

// GetInt extracts an int value with type coercion and a default fallback.
// Handles int, int64, float64, and numeric string values.
func GetInt(b Bag, key string, defaultVal int) int {
	if b == nil {
		return defaultVal
	}

	val, ok := b[key]
	if !ok || val == nil {
		return defaultVal
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		return defaultVal
	default:
		return defaultVal
	}
}

// GetFloat64 extracts a float64 value with type coercion and a default fallback.
// Handles float64, float32, int, int64, and numeric string values.
func GetFloat64(b Bag, key string, defaultVal float64) float64 {
	if b == nil {
		return defaultVal
	}

	val, ok := b[key]
	if !ok || val == nil {
		return defaultVal
	}

	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
		return defaultVal
	default:
		return defaultVal
	}
}

// GetBool extracts a bool value with a default fallback.
func GetBool(b Bag, key string, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}

	val, ok := b[key]
	if !ok || val == nil {
		return defaultVal
	}

	bv, ok := val.(bool)
	if !ok {
		return defaultVal
	}

	return bv
}

// GetStringSlice extracts a []string value.
// Handles []string, []any (converting each element to its string form), and
// a bare string (wrapped in a one-element slice). Returns nil if the key
// doesn't exist, the value is nil, or cannot be converted.
func GetStringSlice(b Bag, key string) []string {
	if b == nil {
		return nil
	}

	val, ok := b[key]
	if !ok || val == nil {
		return nil
	}

	if slice, ok := val.([]string); ok {
		return slice
	}

	if slice, ok := val.([]any); ok {
		result := make([]string, 0, len(slice))
		for _, item := range slice {
			if item == nil {
				continue
			}
			result = append(result, fmt.Sprintf("%v", item))
		}
		return result
	}

	if str, ok := val.(string); ok {
		return []string{str}
	}

	return nil
}

// GetMap extracts a nested map[string]any.
// Returns nil if the key doesn't exist, the value is nil, or not a map.
func GetMap(b Bag, key string) map[string]any {
	if b == nil {
		return nil
	}

	val, ok := b[key]
	if !ok || val == nil {
		return nil
	}

	switch v := val.(type) {
	case map[string]any:
		return v
	case Bag:
		return map[string]any(v)
	default:
		return nil
	}
}

// Clone returns a deep copy of the bag. Nested maps and slices are copied
// recursively; scalar values are shared (they are immutable).
func Clone(b Bag) Bag {
	if b == nil {
		return nil
	}
	return Bag(cloneValue(map[string]any(b)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case Bag:
		return cloneValue(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// GetPath resolves a dotted property path ("mathConstants.acos",
// "plugins[0].name") against the bag. The second return is false when any
// segment is missing, nil, or not traversable.
func GetPath(b Bag, path string) (any, bool) {
	if b == nil || path == "" {
		return nil, false
	}

	var current any = map[string]any(b)
	for _, seg := range strings.Split(path, ".") {
		name, indexes, err := splitSegment(seg)
		if err != nil {
			return nil, false
		}

		if name != "" {
			m, ok := asMap(current)
			if !ok {
				return nil, false
			}
			current, ok = m[name]
			if !ok {
				return nil, false
			}
		}

		for _, idx := range indexes {
			arr, ok := asSlice(current)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]
		}
	}

	return current, true
}

// SetPath assigns a value at a dotted property path, creating intermediate
// maps as needed. Indexing into an array segment requires the element to
// already exist. The bag is modified in place.
func SetPath(b Bag, path string, value any) error {
	if b == nil {
		return fmt.Errorf("set %q: nil bag", path)
	}
	if path == "" {
		return fmt.Errorf("set: empty path")
	}

	segs := strings.Split(path, ".")
	var parent any = map[string]any(b)
	prev := "root"

	for i, seg := range segs {
		name, indexes, err := splitSegment(seg)
		if err != nil {
			return fmt.Errorf("set %q: %w", path, err)
		}
		last := i == len(segs)-1 && len(indexes) == 0

		m, ok := asMap(parent)
		if !ok {
			return fmt.Errorf("set %q: segment %q is not an object", path, prev)
		}
		prev = seg

		if last {
			m[name] = value
			return nil
		}

		next, exists := m[name]
		if len(indexes) == 0 {
			if !exists {
				next = map[string]any{}
				m[name] = next
			}
			parent = next
			continue
		}

		// Walk the index chain; the final index may be the assignment target.
		for j, idx := range indexes {
			arr, ok := asSlice(next)
			if !ok || idx < 0 || idx >= len(arr) {
				return fmt.Errorf("set %q: index %d out of range in %q", path, idx, name)
			}
			if i == len(segs)-1 && j == len(indexes)-1 {
				arr[idx] = value
				return nil
			}
			next = arr[idx]
		}
		parent = next
	}

	return nil
}

func splitSegment(seg string) (name string, indexes []int, err error) {
	name = seg
	for {
		open := strings.IndexByte(name, '[')
		if open < 0 {
			return name, indexes, nil
		}
		rest := name[open:]
		name = name[:open]
		for rest != "" {
			if rest[0] != '[' {
				return "", nil, fmt.Errorf("malformed segment %q", seg)
			}
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return "", nil, fmt.Errorf("malformed segment %q", seg)
			}
			idx, convErr := strconv.Atoi(rest[1:close])
			if convErr != nil {
				return "", nil, fmt.Errorf("malformed index in segment %q", seg)
			}
			indexes = append(indexes, idx)
			rest = rest[close+1:]
		}
		return name, indexes, nil
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Bag:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}
