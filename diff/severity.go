package diff

import "github.com/stableprint/sdk/bag"

// Severity grades how much a difference matters for fingerprint stability.
type Severity string

const (
	SeverityNegligible Severity = "negligible"
	SeverityLow        Severity = "low"
	SeverityMedium     Severity = "medium"
	SeverityHigh       Severity = "high"
	SeverityCritical   Severity = "critical"
)

// AllSeverities returns every defined severity, least severe first.
func AllSeverities() []Severity {
	return []Severity{SeverityNegligible, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Weight returns the numeric rank of a severity for comparison. Unknown
// severities rank below negligible.
func (s Severity) Weight() int {
	switch s {
	case SeverityNegligible:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

// IsValid returns true if the severity is one of the defined constants.
func (s Severity) IsValid() bool {
	return s.Weight() >= 0
}

// AtLeast reports whether s meets or exceeds min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Weight() >= min.Weight()
}

// defaultSeverities grades each difference class. Shape changes grade high
// because they usually mean a collector bug; the classes normalization
// absorbs grade negligible.
var defaultSeverities = map[Type]Severity{
	TypeMissingProperty: SeverityHigh,
	TypeAddedProperty:   SeverityHigh,
	TypeTypeChange:      SeverityHigh,
	TypeValueChange:     SeverityMedium,
	TypeArrayLength:     SeverityMedium,
	TypeEncoding:        SeverityLow,
	TypeDepthTruncated:  SeverityLow,
	TypeWhitespace:      SeverityNegligible,
	TypePrecision:       SeverityNegligible,
}

// substantiveTypes are the classes that change what a value is, as opposed
// to how it is written. Only these escalate to critical on identity-defining
// properties.
var substantiveTypes = map[Type]bool{
	TypeValueChange:     true,
	TypeTypeChange:      true,
	TypeMissingProperty: true,
	TypeAddedProperty:   true,
	TypeArrayLength:     true,
}

// DefaultCriticalProperties returns the identity-defining fields whose
// substantive changes grade critical.
func DefaultCriticalProperties() []string {
	return []string{
		bag.FieldUserAgent,
		bag.FieldPlatform,
		bag.FieldScreenResolution,
		bag.FieldWebGLFingerprint,
		bag.FieldCanvasFingerprint,
		bag.FieldAudioFingerprint,
	}
}
