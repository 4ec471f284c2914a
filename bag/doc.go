// Package bag defines the AttributeBag, the loosely-typed record of device
// and browser signals that the fingerprinting pipeline consumes.
//
// A Bag is the natural shape of JSON unmarshaled into Go: values may be
// strings, float64 numbers, bools, []any, nested map[string]any, or nil.
// Collectors produce bags; this module only reads them. Any field may be
// absent, null, or of an unexpected type, so every accessor here is nil-safe
// and coerces across the types JSON decoding can produce rather than
// returning errors.
//
// Extract values from a bag:
//
//	ua := bag.GetString(b, bag.FieldUserAgent, "")
//	depth := bag.GetInt(b, bag.FieldColorDepth, 24)
//	ratio := bag.GetFloat64(b, bag.FieldPixelRatio, 1.0)
//	fonts := bag.GetStringSlice(b, bag.FieldFonts)
//	webgl := bag.GetMap(b, bag.FieldWebGLFingerprint)
//
// Nested values are addressable with dotted paths, with [i] indexing into
// arrays:
//
//	v, ok := bag.GetPath(b, "mathConstants.acos")
//	err := bag.SetPath(b, "touchSupport.maxTouchPoints", 5)
//
// Clone performs a deep copy so callers can derive variant bags without
// mutating the original observation.
package bag
