package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/stableprint/sdk/bag"
)

// Kind names one accepted shape for a field value.
type Kind string

const (
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindBool       Kind = "boolean"
	KindStringList Kind = "string_list"
	KindList       Kind = "list"
	KindObject     Kind = "object"
)

// Field describes one known fingerprint signal: the shapes collectors are
// expected to emit for it and whether it participates in the digest.
type Field struct {
	Name         string `json:"name"`
	Kinds        []Kind `json:"kinds"`
	HashRelevant bool   `json:"hash_relevant"`
	Description  string `json:"description"`

	// Min and Max bound numeric fields when both are set.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Accepts reports whether the value matches one of the field's kinds.
func (f Field) Accepts(value any) bool {
	for _, k := range f.Kinds {
		if matches(k, value) {
			return true
		}
	}
	return false
}

func bounds(min, max float64) (*float64, *float64) {
	return &min, &max
}

// fields is the fixed catalog, keyed by name. Identity fields are
// hash-relevant; context fields are documented so tooling can explain why
// they are ignored.
var fields = func() map[string]Field {
	minDepth, maxDepth := bounds(0, 64)
	minRatio, maxRatio := bounds(0, 32)
	minCores, maxCores := bounds(0, 4096)
	minMem, maxMem := bounds(0, 4096)

	list := []Field{
		{Name: bag.FieldUserAgent, Kinds: []Kind{KindString}, HashRelevant: true,
			Description: "browser user agent string"},
		{Name: bag.FieldPlatform, Kinds: []Kind{KindString}, HashRelevant: true,
			Description: "operating system platform identifier"},
		{Name: bag.FieldScreenResolution, Kinds: []Kind{KindString, KindObject, KindList}, HashRelevant: true,
			Description: "screen size as WxH text, a {width,height} block, or a [w,h] pair"},
		{Name: bag.FieldColorDepth, Kinds: []Kind{KindNumber}, HashRelevant: true,
			Min: minDepth, Max: maxDepth, Description: "bits per pixel"},
		{Name: bag.FieldPixelRatio, Kinds: []Kind{KindNumber}, HashRelevant: true,
			Min: minRatio, Max: maxRatio, Description: "device pixel ratio"},
		{Name: bag.FieldHardwareConcurrency, Kinds: []Kind{KindNumber}, HashRelevant: true,
			Min: minCores, Max: maxCores, Description: "logical processor count"},
		{Name: bag.FieldDeviceMemory, Kinds: []Kind{KindNumber}, HashRelevant: true,
			Min: minMem, Max: maxMem, Description: "device memory in GiB"},
		{Name: bag.FieldGPUVendor, Kinds: []Kind{KindString}, HashRelevant: true,
			Description: "GPU vendor string"},
		{Name: bag.FieldGPURenderer, Kinds: []Kind{KindString}, HashRelevant: true,
			Description: "GPU renderer string, driver metadata stripped before hashing"},
		{Name: bag.FieldWebGLFingerprint, Kinds: []Kind{KindString, KindObject}, HashRelevant: true,
			Description: "WebGL capability digest or parameter block"},
		{Name: bag.FieldCanvasFingerprint, Kinds: []Kind{KindString, KindObject}, HashRelevant: true,
			Description: "canvas rendering digest or parameter block"},
		{Name: bag.FieldAudioFingerprint, Kinds: []Kind{KindString, KindNumber, KindObject}, HashRelevant: true,
			Description: "audio stack digest, sample value, or parameter block"},
		{Name: bag.FieldFonts, Kinds: []Kind{KindStringList}, HashRelevant: true,
			Description: "detected font family names"},
		{Name: bag.FieldPlugins, Kinds: []Kind{KindList}, HashRelevant: true,
			Description: "browser plugins as names or {name,filename,mimeTypes} blocks"},
		{Name: bag.FieldMathConstants, Kinds: []Kind{KindObject}, HashRelevant: true,
			Description: "math library probe results keyed by expression"},
		{Name: bag.FieldTouchSupport, Kinds: []Kind{KindObject, KindBool}, HashRelevant: true,
			Description: "touch capability flag or {maxTouchPoints,touchEvent,touchStart} block"},

		{Name: bag.FieldTimezone, Kinds: []Kind{KindString}, HashRelevant: false,
			Description: "IANA timezone name, environment context only"},
		{Name: bag.FieldLanguages, Kinds: []Kind{KindStringList, KindString}, HashRelevant: false,
			Description: "preferred languages, environment context only"},
		{Name: bag.FieldCookiesEnabled, Kinds: []Kind{KindBool}, HashRelevant: false,
			Description: "cookie availability, environment context only"},
		{Name: bag.FieldDoNotTrack, Kinds: []Kind{KindString, KindBool}, HashRelevant: false,
			Description: "DNT preference, environment context only"},
	}

	m := make(map[string]Field, len(list))
	for _, f := range list {
		m[f.Name] = f
	}
	return m
}()

// Fields returns the full catalog sorted by name.
func Fields() []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the catalog entry for a field name.
func Lookup(name string) (Field, bool) {
	f, ok := fields[name]
	return f, ok
}

// HashRelevant reports whether a field participates in the digest. Unknown
// fields never do.
func HashRelevant(name string) bool {
	return fields[name].HashRelevant
}

// IssueKind classifies a validation finding.
type IssueKind string

const (
	// IssueMissing flags an absent identity field. The pipeline hashes its
	// sentinel instead.
	IssueMissing IssueKind = "missing"

	// IssueWrongKind flags a value whose shape matches none of the field's
	// accepted kinds. The canonicalizer will coerce or substitute it.
	IssueWrongKind IssueKind = "wrong_kind"

	// IssueOutOfRange flags a numeric value outside the field's bounds.
	IssueOutOfRange IssueKind = "out_of_range"

	// IssueUnknownField flags a key outside the catalog. It is carried but
	// never hashed.
	IssueUnknownField IssueKind = "unknown_field"
)

// Issue is one advisory validation finding. Findings never block hashing;
// they explain why an observation may hash with degraded fidelity.
type Issue struct {
	Field   string    `json:"field"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Field, i.Message, i.Kind)
}

// Validate checks an observation against the catalog and returns every
// finding, sorted by field then kind. Validation is advisory only.
func Validate(b bag.Bag) []Issue {
	var issues []Issue

	for _, name := range bag.IdentityFields() {
		f := fields[name]
		v, present := b[name]
		if !present || v == nil {
			issues = append(issues, Issue{
				Field:   name,
				Kind:    IssueMissing,
				Message: "identity field absent, sentinel will be hashed",
			})
			continue
		}
		if !f.Accepts(v) {
			issues = append(issues, Issue{
				Field:   name,
				Kind:    IssueWrongKind,
				Message: fmt.Sprintf("expected %s, got %T", kindList(f.Kinds), v),
			})
			continue
		}
		if f.Min != nil && f.Max != nil {
			if n, ok := asNumber(v); ok && (n < *f.Min || n > *f.Max) {
				issues = append(issues, Issue{
					Field:   name,
					Kind:    IssueOutOfRange,
					Message: fmt.Sprintf("value %v outside [%v, %v]", n, *f.Min, *f.Max),
				})
			}
		}
	}

	for key := range b {
		if _, ok := fields[key]; !ok {
			issues = append(issues, Issue{
				Field:   key,
				Kind:    IssueUnknownField,
				Message: "not in the signal catalog, ignored by the digest",
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Field != issues[j].Field {
			return issues[i].Field < issues[j].Field
		}
		return issues[i].Kind < issues[j].Kind
	})
	return issues
}

func kindList(kinds []Kind) string {
	s := ""
	for i, k := range kinds {
		if i > 0 {
			s += " or "
		}
		s += string(k)
	}
	return s
}

// matches checks one value against one kind. Numeric kinds accept every Go
// integer and float type because observations arrive both from JSON
// decoding and from native callers.
func matches(k Kind, value any) bool {
	if value == nil {
		return false
	}

	v := reflect.ValueOf(value)
	switch k {
	case KindString:
		return v.Kind() == reflect.String
	case KindNumber:
		_, ok := asNumber(value)
		return ok
	case KindBool:
		return v.Kind() == reflect.Bool
	case KindStringList:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < v.Len(); i++ {
			el := v.Index(i).Interface()
			if _, ok := el.(string); !ok {
				return false
			}
		}
		return true
	case KindList:
		return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
	case KindObject:
		return v.Kind() == reflect.Map || v.Kind() == reflect.Struct
	default:
		return false
	}
}

func asNumber(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}
