package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/canonical"
	"github.com/stableprint/sdk/serial"
)

// DefaultMaxDepth bounds how deep the structural walk descends before a
// differing subtree is reported as truncated.
const DefaultMaxDepth = 10

// Comparator compares observations. It is safe for concurrent use.
type Comparator struct {
	maxDepth  int
	overrides map[string]Severity
	critical  map[string]bool
	canon     *canonical.Canonicalizer
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithMaxDepth changes the walk depth bound.
func WithMaxDepth(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithSeverityOverride pins the severity for one property. The key may be a
// top-level field name or a full path like "plugins[0].name"; the full path
// wins when both apply.
func WithSeverityOverride(property string, s Severity) Option {
	return func(c *Comparator) {
		c.overrides[property] = s
	}
}

// WithSeverityOverrides pins severities in bulk.
func WithSeverityOverrides(m map[string]Severity) Option {
	return func(c *Comparator) {
		for k, v := range m {
			c.overrides[k] = v
		}
	}
}

// WithCriticalProperties replaces the set of identity-defining fields whose
// substantive changes grade critical.
func WithCriticalProperties(names ...string) Option {
	return func(c *Comparator) {
		c.critical = make(map[string]bool, len(names))
		for _, n := range names {
			c.critical[n] = true
		}
	}
}

// WithCanonicalizer replaces the canonicalizer used to decide hash impact.
// It must be the same configuration the production hasher runs, otherwise
// the affects-hash verdicts describe a different pipeline.
func WithCanonicalizer(canon *canonical.Canonicalizer) Option {
	return func(c *Comparator) {
		if canon != nil {
			c.canon = canon
		}
	}
}

// NewComparator builds a Comparator with the default depth bound, severity
// table, and critical set, then applies options.
func NewComparator(opts ...Option) *Comparator {
	c := &Comparator{
		maxDepth:  DefaultMaxDepth,
		overrides: make(map[string]Severity),
		critical:  make(map[string]bool),
		canon:     canonical.New(),
	}
	for _, name := range DefaultCriticalProperties() {
		c.critical[name] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare walks two observations and explains their divergence. It never
// fails: structural anomalies become classified differences, not errors.
func (c *Comparator) Compare(a, b bag.Bag) *Report {
	formA := c.canon.Canonicalize(a, nil)
	formB := c.canon.Canonicalize(b, nil)

	digestA := formA.Digest()
	digestB := formB.Digest()
	hashesMatch := digestA == digestB

	// Hash impact is decided per top-level field by rendering both
	// canonical values. The verdict is mechanical: a difference affects the
	// hash exactly when the canonical rendering of its field differs.
	affects := make(map[string]bool, len(formA.Fields))
	for field := range formA.Fields {
		affects[field] = serial.Render(formA.Fields[field]) != serial.Render(formB.Fields[field])
	}

	var raw []Difference
	c.walk("", map[string]any(a), map[string]any(b), 0, &raw)
	c.grade(raw, affects)

	var normalized []Difference
	c.walk("", formA.Fields, formB.Fields, 0, &normalized)
	c.grade(normalized, affects)

	return &Report{
		Identical:             len(raw) == 0,
		HashesMatch:           hashesMatch,
		DigestA:               digestA,
		DigestB:               digestB,
		Differences:           raw,
		NormalizedDifferences: normalized,
		Impact:                buildImpact(raw, hashesMatch),
	}
}

// grade assigns severity and hash impact to every difference.
func (c *Comparator) grade(diffs []Difference, affects map[string]bool) {
	for i := range diffs {
		d := &diffs[i]
		d.Severity = c.severityFor(d.Path, d.Type)
		d.AffectsHash = affects[topLevel(d.Path)]
	}
}

func (c *Comparator) severityFor(path string, typ Type) Severity {
	if s, ok := c.overrides[path]; ok {
		return s
	}
	top := topLevel(path)
	if top != path {
		if s, ok := c.overrides[top]; ok {
			return s
		}
	}
	if c.critical[top] && substantiveTypes[typ] {
		return SeverityCritical
	}
	if s, ok := defaultSeverities[typ]; ok {
		return s
	}
	return SeverityMedium
}

func buildImpact(diffs []Difference, hashesMatch bool) Impact {
	im := Impact{TotalDifferences: len(diffs)}
	for _, d := range diffs {
		if d.Severity == SeverityCritical {
			im.CriticalCount++
		}
		if d.AffectsHash {
			im.HashAffectingCount++
		}
	}

	if im.TotalDifferences == 0 {
		im.StabilityScore = 1.0
	} else {
		im.StabilityScore = 1.0 - float64(im.HashAffectingCount)/float64(im.TotalDifferences)
	}
	if !hashesMatch {
		im.StabilityScore /= 2
	}
	return im
}

// walk emits differences depth-first with keys in lexicographic order, so
// report order is deterministic.
func (c *Comparator) walk(path string, a, b any, depth int, out *[]Difference) {
	a, b = shape(a), shape(b)
	ka, kb := kindOf(a), kindOf(b)

	if ka == kindNull && kb == kindNull {
		return
	}
	if ka != kb {
		*out = append(*out, Difference{
			Path: path, Type: TypeTypeChange, ValueA: a, ValueB: b,
			Description: fmt.Sprintf("type changed from %s to %s", ka, kb),
		})
		return
	}

	switch ka {
	case kindString:
		compareStrings(path, a.(string), b.(string), out)
	case kindNumber:
		compareNumbers(path, a.(float64), b.(float64), out)
	case kindBool:
		if a.(bool) != b.(bool) {
			*out = append(*out, Difference{
				Path: path, Type: TypeValueChange, ValueA: a, ValueB: b,
				Description: "value changed",
			})
		}
	case kindArray:
		c.walkArrays(path, a.([]any), b.([]any), depth, out)
	case kindObject:
		c.walkObjects(path, a.(map[string]any), b.(map[string]any), depth, out)
	default:
		if !reflect.DeepEqual(a, b) {
			*out = append(*out, Difference{
				Path: path, Type: TypeValueChange, ValueA: a, ValueB: b,
				Description: "value changed",
			})
		}
	}
}

func (c *Comparator) walkArrays(path string, a, b []any, depth int, out *[]Difference) {
	if depth >= c.maxDepth {
		if !reflect.DeepEqual(a, b) {
			*out = append(*out, Difference{
				Path: path, Type: TypeDepthTruncated,
				Description: "subtree differs beyond the comparison depth",
			})
		}
		return
	}

	if len(a) != len(b) {
		*out = append(*out, Difference{
			Path: path, Type: TypeArrayLength, ValueA: len(a), ValueB: len(b),
			Description: fmt.Sprintf("array length changed from %d to %d", len(a), len(b)),
		})
	}

	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		c.walk(fmt.Sprintf("%s[%d]", path, i), a[i], b[i], depth+1, out)
	}
}

func (c *Comparator) walkObjects(path string, a, b map[string]any, depth int, out *[]Difference) {
	if depth >= c.maxDepth {
		if !reflect.DeepEqual(a, b) {
			*out = append(*out, Difference{
				Path: path, Type: TypeDepthTruncated,
				Description: "subtree differs beyond the comparison depth",
			})
		}
		return
	}

	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		va, okA := a[k]
		vb, okB := b[k]
		child := joinPath(path, k)
		switch {
		case okA && !okB:
			*out = append(*out, Difference{
				Path: child, Type: TypeMissingProperty, ValueA: va,
				Description: "present only in first observation",
			})
		case !okA && okB:
			*out = append(*out, Difference{
				Path: child, Type: TypeAddedProperty, ValueB: vb,
				Description: "present only in second observation",
			})
		default:
			c.walk(child, va, vb, depth+1, out)
		}
	}
}

func compareStrings(path, a, b string, out *[]Difference) {
	if a == b {
		return
	}
	ca, cb := serial.NormalizeString(a), serial.NormalizeString(b)
	if ca == cb {
		*out = append(*out, Difference{
			Path: path, Type: TypeWhitespace, ValueA: a, ValueB: b,
			Description: "differs only in whitespace",
		})
		return
	}
	if norm.NFC.String(ca) == norm.NFC.String(cb) {
		*out = append(*out, Difference{
			Path: path, Type: TypeEncoding, ValueA: a, ValueB: b,
			Description: "differs only in unicode normalization form",
		})
		return
	}
	*out = append(*out, Difference{
		Path: path, Type: TypeValueChange, ValueA: a, ValueB: b,
		Description: "value changed",
	})
}

func compareNumbers(path string, a, b float64, out *[]Difference) {
	if a == b {
		return
	}
	if math.Abs(a-b) < 0.001 {
		*out = append(*out, Difference{
			Path: path, Type: TypePrecision, ValueA: a, ValueB: b,
			Description: "differs below the rounding precision",
		})
		return
	}
	*out = append(*out, Difference{
		Path: path, Type: TypeValueChange, ValueA: a, ValueB: b,
		Description: "value changed",
	})
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// topLevel returns the field name a path belongs to.
func topLevel(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

type kind string

const (
	kindNull   kind = "null"
	kindString kind = "string"
	kindNumber kind = "number"
	kindBool   kind = "bool"
	kindArray  kind = "array"
	kindObject kind = "object"
	kindOpaque kind = "opaque"
)

func kindOf(v any) kind {
	switch v.(type) {
	case nil:
		return kindNull
	case string:
		return kindString
	case float64:
		return kindNumber
	case bool:
		return kindBool
	case []any:
		return kindArray
	case map[string]any:
		return kindObject
	default:
		return kindOpaque
	}
}

// shape coerces a value into the decoded-JSON vocabulary so the walk only
// reasons about six kinds. Unconvertible values stay opaque and compare by
// deep equality.
func shape(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, []any, map[string]any:
		return v
	case bag.Bag:
		return map[string]any(t)
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return shapeReflect(v)
	}
}

func shapeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return shape(rv.Elem().Interface())
	default:
		return v
	}
}
