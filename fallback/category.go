// Package fallback absorbs signal-collection failures.
//
// Every fingerprint field has a defined sentinel substitute, so
// canonicalization is total: a missing, malformed, or erroring signal
// degrades fidelity but never aborts the computation. Collection errors are
// categorized by keyword matching, retried with exponential backoff when the
// category warrants it, and finally replaced by the field's sentinel with a
// Record documenting the substitution.
package fallback

import (
	"strings"

	"github.com/stableprint/sdk/bag"
)

// Category classifies a collection error by its nature so retry and
// reporting logic can reason about it.
type Category string

const (
	// CategoryTemporary indicates failures that may resolve on retry.
	// Examples: GPU context loss, timeouts, resources not ready yet.
	CategoryTemporary Category = "temporary"

	// CategoryPermanent indicates failures that will not resolve.
	// Examples: API not supported on the platform, feature disabled.
	CategoryPermanent Category = "permanent"

	// CategoryMalformed indicates the signal was collected but unusable.
	// Examples: parse failures, values outside the expected shape.
	CategoryMalformed Category = "malformed"

	// CategorySecurity indicates the environment refused the read.
	// Examples: privacy settings, permissions policy, CSP blocks.
	CategorySecurity Category = "security"

	// CategoryUnknown is the residual class when no pattern matches and no
	// field prior applies.
	CategoryUnknown Category = "unknown"
)

// AllCategories returns every defined category.
func AllCategories() []Category {
	return []Category{
		CategoryTemporary,
		CategoryPermanent,
		CategoryMalformed,
		CategorySecurity,
		CategoryUnknown,
	}
}

// IsValid returns true if the category is one of the defined constants.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTemporary, CategoryPermanent, CategoryMalformed, CategorySecurity, CategoryUnknown:
		return true
	default:
		return false
	}
}

// Keyword patterns checked in order; the first class with a match wins.
// Security is checked first because a blocked read often also mentions the
// operation that failed.
var categoryPatterns = []struct {
	category Category
	keywords []string
}{
	{CategorySecurity, []string{
		"security", "permission", "not allowed", "blocked by",
		"content security policy", "csp", "cross-origin", "cors",
	}},
	{CategoryTemporary, []string{
		"timeout", "timed out", "temporar", "transient", "busy",
		"try again", "unavailable", "not ready", "pending",
		"context lost", "deadline exceeded",
	}},
	{CategoryPermanent, []string{
		"not supported", "unsupported", "disabled", "not implemented",
		"no such", "not found", "undefined is not",
	}},
	{CategoryMalformed, []string{
		"parse", "invalid", "malformed", "unexpected", "corrupt",
		"out of range", "nan",
	}},
}

// Fields whose collection is dominated by transient runtime conditions.
// Absent a stronger keyword signal, their errors categorize as temporary.
var temporaryPriorFields = map[string]bool{
	bag.FieldWebGLFingerprint:  true,
	bag.FieldCanvasFingerprint: true,
	bag.FieldAudioFingerprint:  true,
	bag.FieldFonts:             true,
}

// Categorize classifies a collection error from its message, falling back
// to the field-specific prior when no keyword matches. A nil error is
// CategoryUnknown.
func Categorize(err error, field string) Category {
	if err == nil {
		return CategoryUnknown
	}

	msg := strings.ToLower(err.Error())
	for _, p := range categoryPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(msg, kw) {
				return p.category
			}
		}
	}

	if temporaryPriorFields[field] {
		return CategoryTemporary
	}
	return CategoryUnknown
}

// Reason tags a Record with why the substitution happened. It is coarser
// than Category: reporting cares about the substitution cause, not the
// retry semantics.
type Reason string

const (
	ReasonTemporaryFailure Reason = "temporary_failure"
	ReasonPermanentFailure Reason = "permanent_failure"
	ReasonMalformedData    Reason = "malformed_data"
	ReasonMissingProperty  Reason = "missing_property"
	ReasonValidationFailed Reason = "validation_failed"
)

// ReasonForCategory maps an error category to the reason recorded on the
// substitution. Security failures record as validation failures (the
// security gate is the validation collaborator); unknown failures cannot be
// asserted transient, so they record as permanent.
func ReasonForCategory(c Category) Reason {
	switch c {
	case CategoryTemporary:
		return ReasonTemporaryFailure
	case CategoryMalformed:
		return ReasonMalformedData
	case CategorySecurity:
		return ReasonValidationFailed
	default:
		return ReasonPermanentFailure
	}
}
