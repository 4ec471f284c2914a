// Package serial renders values into the single deterministic string that
// the fingerprint digest is computed over.
//
// Two values that are equal up to container ordering and sub-precision
// numeric noise must render identically; everything else must render
// differently. That equality is the system's definition of "same
// fingerprint": Encode(DeepSort(a)) == Encode(DeepSort(b)).
//
// The rendering is JSON-shaped: strings are quoted and escaped, numbers are
// rewritten to fixed 3-decimal text, object keys are emitted in lexicographic
// order, and arrays are ordered by each element's own rendered form. Binary
// blobs render as the empty string. Cyclic input is a precondition violation
// owned by the caller and is not detected here.
package serial

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// precision is the fixed number of decimals every numeric leaf is rounded
// to before rendering. Sub-precision jitter (timing noise, float drift)
// must never flip a digest, so this is part of the wire contract rather
// than configuration.
const precision = 3

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeString collapses internal whitespace runs to single spaces and
// trims both ends.
func NormalizeString(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// NormalizeNumber rounds half away from zero at the third decimal and
// renders fixed-precision text. The result is idempotent: re-parsing and
// re-normalizing yields the same text.
func NormalizeNumber(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // fold negative zero
	}
	return strconv.FormatFloat(r, 'f', precision, 64)
}

// DeepSort returns a copy of v with every array recursively sorted by the
// rendered form of its elements. Map values are recursively sorted too; key
// ordering itself is applied at render time since Go maps carry no order.
// Primitives are returned unchanged.
func DeepSort(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepSort(e)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return Encode(out[i]) < Encode(out[j])
		})
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		sort.SliceStable(out, func(i, j int) bool {
			return Encode(out[i]) < Encode(out[j])
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = DeepSort(e)
		}
		return out
	case []byte, string, bool, nil, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return v
	default:
		if conv, ok := reflectToShape(v); ok {
			return DeepSort(conv)
		}
		return v
	}
}

// Encode renders a single value: numbers as fixed-precision text, strings
// quoted with whitespace collapsed, binary blobs as the empty string, nil as
// null, containers in JSON shape with lexicographic keys. Values outside the
// JSON vocabulary are converted defensively via reflection.
func Encode(v any) string {
	var b strings.Builder
	encodeValue(&b, v)
	return b.String()
}

func encodeValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case string:
		b.WriteString(strconv.Quote(NormalizeString(t)))
	case []byte:
		b.WriteString(`""`)
	case float64:
		b.WriteString(NormalizeNumber(t))
	case float32:
		b.WriteString(NormalizeNumber(float64(t)))
	case int:
		b.WriteString(NormalizeNumber(float64(t)))
	case int8:
		b.WriteString(NormalizeNumber(float64(t)))
	case int16:
		b.WriteString(NormalizeNumber(float64(t)))
	case int32:
		b.WriteString(NormalizeNumber(float64(t)))
	case int64:
		b.WriteString(NormalizeNumber(float64(t)))
	case uint:
		b.WriteString(NormalizeNumber(float64(t)))
	case uint8:
		b.WriteString(NormalizeNumber(float64(t)))
	case uint16:
		b.WriteString(NormalizeNumber(float64(t)))
	case uint32:
		b.WriteString(NormalizeNumber(float64(t)))
	case uint64:
		b.WriteString(NormalizeNumber(float64(t)))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			b.WriteString(NormalizeNumber(f))
		} else {
			b.WriteString(strconv.Quote(NormalizeString(t.String())))
		}
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeValue(b, e)
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeValue(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			encodeValue(b, t[k])
		}
		b.WriteByte('}')
	default:
		if conv, ok := reflectToShape(v); ok {
			encodeValue(b, conv)
			return
		}
		b.WriteString(strconv.Quote(NormalizeString(fmt.Sprintf("%v", v))))
	}
}

// reflectToShape converts values outside the decoded-JSON vocabulary
// (defined map types, typed slices, odd numeric kinds) into it.
func reflectToShape(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []byte{}, true // typed blobs keep blob semantics
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return rv.Elem().Interface(), true
	default:
		return nil, false
	}
}

// Render is the full serialization pipeline: DeepSort then Encode.
func Render(v any) string {
	return Encode(DeepSort(v))
}

// DigestString hashes an already-rendered string to the lowercase
// 64-character hex digest.
func DigestString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Digest renders v deterministically and hashes it.
func Digest(v any) string {
	return DigestString(Render(v))
}
