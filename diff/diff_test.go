package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stableprint/sdk/bag"
)

func baseBag() bag.Bag {
	return bag.Bag{
		bag.FieldUserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		bag.FieldPlatform:            "Win32",
		bag.FieldScreenResolution:    "1920x1080",
		bag.FieldColorDepth:          24,
		bag.FieldPixelRatio:          1.25,
		bag.FieldHardwareConcurrency: 8,
		bag.FieldDeviceMemory:        16,
		bag.FieldGPUVendor:           "Google Inc. (NVIDIA)",
		bag.FieldGPURenderer:         "NVIDIA GeForce GTX 1080",
		bag.FieldWebGLFingerprint:    "webgl-digest-abc",
		bag.FieldCanvasFingerprint:   "canvas-digest-def",
		bag.FieldAudioFingerprint:    124.04347527516074,
		bag.FieldFonts:               []any{"Arial", "Courier New", "Verdana"},
		bag.FieldPlugins:             []any{"PDF Viewer", "Chromium PDF Plugin"},
		bag.FieldMathConstants:       map[string]any{"Math.E": 2.718281828459045, "Math.PI": 3.141592653589793},
		bag.FieldTouchSupport:        false,
	}
}

func diffAt(t *testing.T, diffs []Difference, path string) Difference {
	t.Helper()
	for _, d := range diffs {
		if d.Path == path {
			return d
		}
	}
	t.Fatalf("no difference at %q in %v", path, diffs)
	return Difference{}
}

func TestCompareIdentical(t *testing.T) {
	r := NewComparator().Compare(baseBag(), baseBag())

	assert.True(t, r.Identical)
	assert.True(t, r.HashesMatch)
	assert.Equal(t, r.DigestA, r.DigestB)
	assert.Len(t, r.DigestA, 64)
	assert.Empty(t, r.Differences)
	assert.Empty(t, r.NormalizedDifferences)
	assert.Equal(t, 1.0, r.Impact.StabilityScore)
	assert.Equal(t, SeverityNegligible, r.MaxSeverity())
}

func TestWhitespaceDoesNotAffectHash(t *testing.T) {
	b := baseBag()
	b[bag.FieldUserAgent] = "  Mozilla/5.0  (Windows NT 10.0;\tWin64; x64) "

	r := NewComparator().Compare(baseBag(), b)

	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, bag.FieldUserAgent, d.Path)
	assert.Equal(t, TypeWhitespace, d.Type)
	assert.Equal(t, SeverityNegligible, d.Severity)
	assert.False(t, d.AffectsHash)

	assert.False(t, r.Identical)
	assert.True(t, r.HashesMatch)
	assert.Empty(t, r.NormalizedDifferences)
	assert.Equal(t, 1.0, r.Impact.StabilityScore)
}

func TestPrecisionNoiseDoesNotAffectHash(t *testing.T) {
	b := baseBag()
	b[bag.FieldPixelRatio] = 1.2503

	r := NewComparator().Compare(baseBag(), b)

	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, bag.FieldPixelRatio, d.Path)
	assert.Equal(t, TypePrecision, d.Type)
	assert.Equal(t, SeverityNegligible, d.Severity)
	assert.False(t, d.AffectsHash)
	assert.True(t, r.HashesMatch)
}

func TestPrecisionNoiseAcrossRoundingBoundary(t *testing.T) {
	a := baseBag()
	a[bag.FieldPixelRatio] = 1.2504
	b := baseBag()
	b[bag.FieldPixelRatio] = 1.2506

	r := NewComparator().Compare(a, b)

	// The delta is sub-precision but the two values round to different
	// canonical text, so the difference is real for the digest.
	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, TypePrecision, d.Type)
	assert.True(t, d.AffectsHash)
	assert.False(t, r.HashesMatch)
}

func TestEncodingDifferenceClassified(t *testing.T) {
	a := baseBag()
	a[bag.FieldPlatform] = "café os" // precomposed
	b := baseBag()
	b[bag.FieldPlatform] = "café os" // combining accent

	r := NewComparator().Compare(a, b)

	d := diffAt(t, r.Differences, bag.FieldPlatform)
	assert.Equal(t, TypeEncoding, d.Type)
	assert.Equal(t, SeverityLow, d.Severity)

	// Canonicalization collapses whitespace but does not fold unicode
	// forms, so the digest still sees two different strings.
	assert.True(t, d.AffectsHash)
	assert.False(t, r.HashesMatch)
}

func TestNumberStringCoercionIsTypeChangeOnly(t *testing.T) {
	b := baseBag()
	b[bag.FieldColorDepth] = "24"

	r := NewComparator().Compare(baseBag(), b)

	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, bag.FieldColorDepth, d.Path)
	assert.Equal(t, TypeTypeChange, d.Type)
	assert.Equal(t, SeverityHigh, d.Severity)
	assert.Contains(t, d.Description, "number")
	assert.Contains(t, d.Description, "string")

	// Both spellings canonicalize to "24.000".
	assert.False(t, d.AffectsHash)
	assert.True(t, r.HashesMatch)
	assert.Empty(t, r.NormalizedDifferences)
}

func TestCriticalPropertyChange(t *testing.T) {
	b := baseBag()
	b[bag.FieldUserAgent] = "Mozilla/5.0 (X11; Linux x86_64)"

	r := NewComparator().Compare(baseBag(), b)

	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, TypeValueChange, d.Type)
	assert.Equal(t, SeverityCritical, d.Severity)
	assert.True(t, d.AffectsHash)

	assert.False(t, r.HashesMatch)
	assert.Equal(t, 1, r.Impact.CriticalCount)
	assert.Equal(t, 1, r.Impact.HashAffectingCount)
	assert.Equal(t, 0.0, r.Impact.StabilityScore)
	assert.Equal(t, SeverityCritical, r.MaxSeverity())

	require.Len(t, r.NormalizedDifferences, 1)
	assert.Equal(t, TypeValueChange, r.NormalizedDifferences[0].Type)
}

func TestBenignChangeOnCriticalPropertyStaysBenign(t *testing.T) {
	b := baseBag()
	b[bag.FieldUserAgent] = " Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

	r := NewComparator().Compare(baseBag(), b)

	d := diffAt(t, r.Differences, bag.FieldUserAgent)
	assert.Equal(t, TypeWhitespace, d.Type)
	assert.Equal(t, SeverityNegligible, d.Severity, "whitespace never escalates, even on identity-defining fields")
}

func TestMissingProperty(t *testing.T) {
	b := baseBag()
	delete(b, bag.FieldCanvasFingerprint)

	r := NewComparator().Compare(baseBag(), b)

	d := diffAt(t, r.Differences, bag.FieldCanvasFingerprint)
	assert.Equal(t, TypeMissingProperty, d.Type)
	assert.Equal(t, SeverityCritical, d.Severity)
	assert.Equal(t, "present only in first observation", d.Description)

	// The second form carries the canvas sentinel, so the digest moves.
	assert.True(t, d.AffectsHash)
	assert.False(t, r.HashesMatch)
	assert.NotEmpty(t, r.NormalizedDifferences)
}

func TestAddedProperty(t *testing.T) {
	b := baseBag()
	b["batteryLevel"] = 0.93

	r := NewComparator().Compare(baseBag(), b)

	d := diffAt(t, r.Differences, "batteryLevel")
	assert.Equal(t, TypeAddedProperty, d.Type)
	assert.Equal(t, SeverityHigh, d.Severity)
	assert.Equal(t, "present only in second observation", d.Description)

	// Non-identity fields never reach the digest.
	assert.False(t, d.AffectsHash)
	assert.True(t, r.HashesMatch)
}

func TestFontOrderChangesAreHashNeutral(t *testing.T) {
	b := baseBag()
	b[bag.FieldFonts] = []any{"Verdana", "Arial", "Courier New"}

	r := NewComparator().Compare(baseBag(), b)

	require.NotEmpty(t, r.Differences)
	for _, d := range r.Differences {
		assert.Equal(t, TypeValueChange, d.Type)
		assert.False(t, d.AffectsHash, "%s must not affect the hash", d.Path)
	}
	assert.True(t, r.HashesMatch)
	assert.Equal(t, 1.0, r.Impact.StabilityScore)
}

func TestArrayLengthChange(t *testing.T) {
	b := baseBag()
	b[bag.FieldFonts] = []any{"Arial", "Courier New", "Verdana", "Comic Sans MS"}

	r := NewComparator().Compare(baseBag(), b)

	d := diffAt(t, r.Differences, bag.FieldFonts)
	assert.Equal(t, TypeArrayLength, d.Type)
	assert.Equal(t, "array length changed from 3 to 4", d.Description)
	assert.True(t, d.AffectsHash)
	assert.False(t, r.HashesMatch)
}

func TestNestedPathsAndDepthBound(t *testing.T) {
	a := baseBag()
	a[bag.FieldWebGLFingerprint] = map[string]any{
		"extensions": []any{"EXT_blend_minmax", "OES_texture_float"},
		"params":     map[string]any{"maxTextureSize": 16384.0},
	}
	b := baseBag()
	b[bag.FieldWebGLFingerprint] = map[string]any{
		"extensions": []any{"EXT_blend_minmax", "WEBGL_debug"},
		"params":     map[string]any{"maxTextureSize": 8192.0},
	}

	r := NewComparator().Compare(a, b)

	ext := diffAt(t, r.Differences, "webglFingerprint.extensions[1]")
	assert.Equal(t, TypeValueChange, ext.Type)

	size := diffAt(t, r.Differences, "webglFingerprint.params.maxTextureSize")
	assert.Equal(t, TypeValueChange, size.Type)
	assert.True(t, size.AffectsHash)
}

func TestDepthTruncation(t *testing.T) {
	deep := func(leaf string) map[string]any {
		return map[string]any{"l1": map[string]any{"l2": map[string]any{"l3": leaf}}}
	}
	a := baseBag()
	a[bag.FieldWebGLFingerprint] = deep("x")
	b := baseBag()
	b[bag.FieldWebGLFingerprint] = deep("y")

	r := NewComparator(WithMaxDepth(3)).Compare(a, b)

	require.Len(t, r.Differences, 1)
	d := r.Differences[0]
	assert.Equal(t, TypeDepthTruncated, d.Type)
	assert.Equal(t, "webglFingerprint.l1.l2", d.Path)
	assert.Equal(t, SeverityLow, d.Severity)

	// Equal subtrees below the bound stay silent.
	same := NewComparator(WithMaxDepth(3)).Compare(a, a)
	assert.True(t, same.Identical)
}

func TestSeverityOverrides(t *testing.T) {
	b := baseBag()
	b[bag.FieldFonts] = []any{"Georgia", "Courier New", "Verdana"}

	c := NewComparator(
		WithSeverityOverride(bag.FieldFonts, SeverityLow),
		WithSeverityOverride("fonts[0]", SeverityHigh),
	)
	r := c.Compare(baseBag(), b)

	first := diffAt(t, r.Differences, "fonts[0]")
	assert.Equal(t, SeverityHigh, first.Severity, "full-path override wins")
}

func TestSeverityOverrideAppliesToNestedPaths(t *testing.T) {
	b := baseBag()
	b[bag.FieldFonts] = []any{"Arial", "Georgia", "Verdana"}

	r := NewComparator(WithSeverityOverrides(map[string]Severity{
		bag.FieldFonts: SeverityNegligible,
	})).Compare(baseBag(), b)

	d := diffAt(t, r.Differences, "fonts[1]")
	assert.Equal(t, SeverityNegligible, d.Severity)
}

func TestCustomCriticalProperties(t *testing.T) {
	b := baseBag()
	b[bag.FieldUserAgent] = "Mozilla/5.0 (X11; Linux x86_64)"
	b[bag.FieldFonts] = []any{"Georgia", "Courier New", "Verdana"}

	r := NewComparator(WithCriticalProperties(bag.FieldFonts)).Compare(baseBag(), b)

	ua := diffAt(t, r.Differences, bag.FieldUserAgent)
	assert.Equal(t, SeverityMedium, ua.Severity, "userAgent no longer critical")

	font := diffAt(t, r.Differences, "fonts[0]")
	assert.Equal(t, SeverityCritical, font.Severity)
}

func TestStabilityScoreMixesAffectingAndBenign(t *testing.T) {
	b := baseBag()
	b[bag.FieldPlatform] = " Win32 "                          // benign
	b[bag.FieldUserAgent] = "Mozilla/5.0 (X11; Linux x86_64)" // affecting

	r := NewComparator().Compare(baseBag(), b)

	assert.Equal(t, 2, r.Impact.TotalDifferences)
	assert.Equal(t, 1, r.Impact.HashAffectingCount)
	assert.False(t, r.HashesMatch)

	// 1 - 1/2 = 0.5, halved because the digests diverged.
	assert.InDelta(t, 0.25, r.Impact.StabilityScore, 1e-9)
}

func TestBoolChange(t *testing.T) {
	b := baseBag()
	b[bag.FieldTouchSupport] = true

	r := NewComparator().Compare(baseBag(), b)

	d := diffAt(t, r.Differences, bag.FieldTouchSupport)
	assert.Equal(t, TypeValueChange, d.Type)
	assert.True(t, d.AffectsHash)
}

func TestCompareEmptyBags(t *testing.T) {
	r := NewComparator().Compare(nil, nil)

	assert.True(t, r.Identical)
	assert.True(t, r.HashesMatch)
	assert.Len(t, r.DigestA, 64)
	assert.Equal(t, 1.0, r.Impact.StabilityScore)
}

func TestReportHelpers(t *testing.T) {
	b := baseBag()
	b[bag.FieldPlatform] = " Win32 "
	b[bag.FieldUserAgent] = "Mozilla/5.0 (X11; Linux x86_64)"

	r := NewComparator().Compare(baseBag(), b)

	ws := r.ByType(TypeWhitespace)
	require.Len(t, ws, 1)
	assert.Equal(t, bag.FieldPlatform, ws[0].Path)

	affecting := r.HashAffecting()
	require.Len(t, affecting, 1)
	assert.Equal(t, bag.FieldUserAgent, affecting[0].Path)

	assert.Equal(t, SeverityCritical, r.MaxSeverity())
}

func TestDifferencesOrderedByPath(t *testing.T) {
	b := baseBag()
	b[bag.FieldUserAgent] = "other"
	b[bag.FieldPlatform] = "other"
	b[bag.FieldColorDepth] = 32

	r := NewComparator().Compare(baseBag(), b)

	require.Len(t, r.Differences, 3)
	assert.Equal(t, bag.FieldColorDepth, r.Differences[0].Path)
	assert.Equal(t, bag.FieldPlatform, r.Differences[1].Path)
	assert.Equal(t, bag.FieldUserAgent, r.Differences[2].Path)
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityMedium.AtLeast(SeverityMedium))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.False(t, Severity("bogus").IsValid())

	all := AllSeverities()
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Weight(), all[i-1].Weight())
	}
}

func TestTypeValidity(t *testing.T) {
	for _, typ := range AllTypes() {
		assert.True(t, typ.IsValid(), "%s", typ)
	}
	assert.False(t, Type("bogus").IsValid())
}
