// Package troubleshoot turns comparison output into actionable guidance:
// ranked root causes, fix recommendations, and regression suites that pin
// the expected hash behavior of every observed difference.
package troubleshoot

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/diff"
)

// Cause names one diagnosed reason two observations hash apart.
type Cause string

const (
	// CauseCriticalMismatch is a substantive change on an identity-defining
	// property. The device genuinely looks different.
	CauseCriticalMismatch Cause = "critical_property_mismatch"

	// CauseNormalizationGap is noise-class input (whitespace, encoding,
	// sub-precision jitter) that normalization failed to absorb.
	CauseNormalizationGap Cause = "normalization_gap"

	// CauseTypeInconsistency is the collector emitting different value
	// kinds for the same property.
	CauseTypeInconsistency Cause = "type_inconsistency"

	// CauseValueDrift is a plain value change on a non-critical property.
	CauseValueDrift Cause = "value_drift"
)

// Likelihoods are heuristic ranks, not probabilities. Critical mismatches
// outrank normalization gaps, which outrank shape problems.
const (
	likelihoodCritical = 0.9
	likelihoodGap      = 0.6
	likelihoodType     = 0.5
	likelihoodDrift    = 0.4
)

// RootCause is one ranked explanation with the paths that support it.
type RootCause struct {
	Cause      Cause    `json:"cause"`
	Likelihood float64  `json:"likelihood"`
	Properties []string `json:"properties"`
	Detail     string   `json:"detail"`
}

// Recommendation is a fix suggestion keyed by an observed difference type.
type Recommendation struct {
	Trigger diff.Type `json:"trigger"`
	Action  string    `json:"action"`
}

// TestCase pins one observed difference as a regression check: feed the two
// values back through the hasher and expect the recorded outcome.
type TestCase struct {
	Name           string `json:"name"`
	Property       string `json:"property"`
	ValueA         any    `json:"value_a"`
	ValueB         any    `json:"value_b"`
	ExpectSameHash bool   `json:"expect_same_hash"`
}

// Diagnosis is the full troubleshooting verdict for one observation pair.
type Diagnosis struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Healthy means the digests matched; any differences were absorbed.
	Healthy bool `json:"healthy"`

	Report          *diff.Report     `json:"report"`
	RootCauses      []RootCause      `json:"root_causes"`
	Recommendations []Recommendation `json:"recommendations"`
	TestCases       []TestCase       `json:"test_cases"`
}

// Diagnoser runs diagnosis with a fixed comparator configuration.
type Diagnoser struct {
	comparator *diff.Comparator
}

// DiagnoserOption configures a Diagnoser.
type DiagnoserOption func(*Diagnoser)

// WithComparator replaces the comparator.
func WithComparator(c *diff.Comparator) DiagnoserOption {
	return func(d *Diagnoser) {
		if c != nil {
			d.comparator = c
		}
	}
}

// NewDiagnoser builds a Diagnoser with the default comparator.
func NewDiagnoser(opts ...DiagnoserOption) *Diagnoser {
	d := &Diagnoser{comparator: diff.NewComparator()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diagnose compares two observations of the same device and explains why
// they hash apart. Pure CPU; it never fails.
func (d *Diagnoser) Diagnose(a, b bag.Bag) *Diagnosis {
	report := d.comparator.Compare(a, b)

	return &Diagnosis{
		ID:              uuid.New(),
		CreatedAt:       time.Now().UTC(),
		Healthy:         report.HashesMatch,
		Report:          report,
		RootCauses:      rankRootCauses(report),
		Recommendations: recommendFor(report),
		TestCases:       regressionCases(report),
	}
}

// Diagnose runs a one-off diagnosis with default settings.
func Diagnose(a, b bag.Bag) *Diagnosis {
	return NewDiagnoser().Diagnose(a, b)
}

var noiseTypes = map[diff.Type]bool{
	diff.TypeWhitespace: true,
	diff.TypeEncoding:   true,
	diff.TypePrecision:  true,
}

// rankRootCauses buckets the hash-affecting differences into causes and
// orders them by likelihood. Matching digests yield no causes at all.
func rankRootCauses(report *diff.Report) []RootCause {
	if report.HashesMatch {
		return nil
	}

	buckets := map[Cause][]string{}
	for _, d := range report.Differences {
		if !d.AffectsHash {
			continue
		}
		switch {
		case d.Severity == diff.SeverityCritical:
			buckets[CauseCriticalMismatch] = append(buckets[CauseCriticalMismatch], d.Path)
		case noiseTypes[d.Type]:
			buckets[CauseNormalizationGap] = append(buckets[CauseNormalizationGap], d.Path)
		case d.Type == diff.TypeTypeChange:
			buckets[CauseTypeInconsistency] = append(buckets[CauseTypeInconsistency], d.Path)
		default:
			buckets[CauseValueDrift] = append(buckets[CauseValueDrift], d.Path)
		}
	}

	details := map[Cause]struct {
		likelihood float64
		detail     string
	}{
		CauseCriticalMismatch:  {likelihoodCritical, "an identity-defining property changed substantively"},
		CauseNormalizationGap:  {likelihoodGap, "noise-class input survived normalization into the digest"},
		CauseTypeInconsistency: {likelihoodType, "the collector emitted different value kinds for the same property"},
		CauseValueDrift:        {likelihoodDrift, "a non-critical property changed value"},
	}

	var out []RootCause
	for cause, paths := range buckets {
		sort.Strings(paths)
		out = append(out, RootCause{
			Cause:      cause,
			Likelihood: details[cause].likelihood,
			Properties: dedupeSorted(paths),
			Detail:     details[cause].detail,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Likelihood != out[j].Likelihood {
			return out[i].Likelihood > out[j].Likelihood
		}
		return out[i].Cause < out[j].Cause
	})
	return out
}

var recommendationTable = map[diff.Type]string{
	diff.TypeValueChange:     "verify the collector reads a stable source for this property; a value that legitimately varies does not belong in the identity set",
	diff.TypeTypeChange:      "align the collector's emitted type across runs; numeric identity fields coerce numeric strings, but mixed kinds elsewhere change the digest",
	diff.TypeMissingProperty: "make the collector always emit this property; absent readings degrade to sentinels and shift the digest",
	diff.TypeAddedProperty:   "emit the property in every observation or in none; one-sided properties degrade the other side to a sentinel",
	diff.TypeArrayLength:     "font and plugin lists must enumerate the same sources; length drift usually means an enumeration raced or a privacy filter ran on one side",
	diff.TypeWhitespace:      "no action needed; whitespace differences are absorbed by normalization",
	diff.TypeEncoding:        "normalize collector output to NFC before emitting; unicode form differences survive into the digest",
	diff.TypePrecision:       "values this close round together at three decimals; only deltas straddling a rounding boundary move the digest",
	diff.TypeDepthTruncated:  "the subtree exceeds the comparison depth; raise the depth bound to inspect it",
}

// recommendFor emits one recommendation per difference type observed, in a
// deterministic order.
func recommendFor(report *diff.Report) []Recommendation {
	seen := map[diff.Type]bool{}
	for _, d := range report.Differences {
		seen[d.Type] = true
	}

	var out []Recommendation
	for _, typ := range diff.AllTypes() {
		if !seen[typ] {
			continue
		}
		out = append(out, Recommendation{Trigger: typ, Action: recommendationTable[typ]})
	}
	return out
}

// regressionCases pins every significant difference: one case per property
// pair with the hash outcome the comparator predicted.
func regressionCases(report *diff.Report) []TestCase {
	var out []TestCase
	for _, d := range report.Differences {
		if !d.AffectsHash && !d.Severity.AtLeast(diff.SeverityMedium) {
			continue
		}
		out = append(out, TestCase{
			Name:           fmt.Sprintf("%s %s", d.Path, d.Type),
			Property:       d.Path,
			ValueA:         d.ValueA,
			ValueB:         d.ValueB,
			ExpectSameHash: !d.AffectsHash,
		})
	}
	return out
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0]
	var last string
	for i, s := range sorted {
		if i == 0 || s != last {
			out = append(out, s)
		}
		last = s
	}
	return out
}
