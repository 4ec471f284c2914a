// Package diff explains why two observations of the same device hash
// differently.
//
// Compare walks two raw observations structurally and classifies every
// divergence: substantive changes, shape changes, and the benign classes
// the canonicalizer absorbs (whitespace, encoding, sub-precision noise).
// Each difference reports whether it survives canonicalization into the
// digest, computed mechanically from the canonical forms so the answer can
// never drift from what the hasher actually does.
package diff

import "fmt"

// Type classifies one structural difference between two observations.
type Type string

const (
	// TypeValueChange is a substantive change of a scalar value.
	TypeValueChange Type = "value_change"

	// TypeTypeChange is a change of value kind, such as number to string.
	TypeTypeChange Type = "type_change"

	// TypeMissingProperty marks a key present only in the first observation.
	TypeMissingProperty Type = "missing_property"

	// TypeAddedProperty marks a key present only in the second observation.
	TypeAddedProperty Type = "added_property"

	// TypeArrayLength is a change in element count.
	TypeArrayLength Type = "array_length_change"

	// TypeWhitespace is a string difference that collapses away.
	TypeWhitespace Type = "whitespace_difference"

	// TypeEncoding is a string difference that unicode normalization
	// resolves.
	TypeEncoding Type = "encoding_difference"

	// TypePrecision is a numeric difference below the rounding precision.
	TypePrecision Type = "precision_difference"

	// TypeDepthTruncated marks a differing subtree deeper than the
	// comparison bound.
	TypeDepthTruncated Type = "depth_truncated"
)

// AllTypes returns every defined difference type.
func AllTypes() []Type {
	return []Type{
		TypeValueChange,
		TypeTypeChange,
		TypeMissingProperty,
		TypeAddedProperty,
		TypeArrayLength,
		TypeWhitespace,
		TypeEncoding,
		TypePrecision,
		TypeDepthTruncated,
	}
}

// IsValid returns true if the type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeValueChange, TypeTypeChange, TypeMissingProperty, TypeAddedProperty,
		TypeArrayLength, TypeWhitespace, TypeEncoding, TypePrecision, TypeDepthTruncated:
		return true
	default:
		return false
	}
}

// Difference is one classified divergence between two observations.
type Difference struct {
	Path        string   `json:"path"`
	Type        Type     `json:"type"`
	Severity    Severity `json:"severity"`
	ValueA      any      `json:"value_a,omitempty"`
	ValueB      any      `json:"value_b,omitempty"`
	AffectsHash bool     `json:"affects_hash"`
	Description string   `json:"description,omitempty"`
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: %s (%s, affects_hash=%t)", d.Path, d.Type, d.Severity, d.AffectsHash)
}

// Impact aggregates a comparison into headline numbers.
type Impact struct {
	TotalDifferences   int     `json:"total_differences"`
	CriticalCount      int     `json:"critical_count"`
	HashAffectingCount int     `json:"hash_affecting_count"`
	StabilityScore     float64 `json:"stability_score"`
}

// Report is the full outcome of comparing two observations.
type Report struct {
	// Identical means the raw observations carried no differences at all.
	Identical bool `json:"identical"`

	// HashesMatch means the canonical digests are equal even if the raw
	// observations differ.
	HashesMatch bool `json:"hashes_match"`

	DigestA string `json:"digest_a"`
	DigestB string `json:"digest_b"`

	// Differences is the classified raw walk, ordered by path.
	Differences []Difference `json:"differences"`

	// NormalizedDifferences is the walk over the canonical forms: what
	// still differs after normalization absorbed the noise.
	NormalizedDifferences []Difference `json:"normalized_differences,omitempty"`

	Impact Impact `json:"impact"`
}

// ByType returns the raw differences of one type, in report order.
func (r *Report) ByType(t Type) []Difference {
	var out []Difference
	for _, d := range r.Differences {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

// HashAffecting returns the raw differences that survive into the digest.
func (r *Report) HashAffecting() []Difference {
	var out []Difference
	for _, d := range r.Differences {
		if d.AffectsHash {
			out = append(out, d)
		}
	}
	return out
}

// MaxSeverity returns the highest severity among the raw differences, or
// SeverityNegligible when there are none.
func (r *Report) MaxSeverity() Severity {
	max := SeverityNegligible
	for _, d := range r.Differences {
		if d.Severity.Weight() > max.Weight() {
			max = d.Severity
		}
	}
	return max
}
