package bag

// Canonical names of the fingerprint signal fields. Collectors are expected
// to emit these keys; anything else in a bag is carried but ignored by the
// hashing pipeline.
const (
	FieldUserAgent           = "userAgent"
	FieldPlatform            = "platform"
	FieldScreenResolution    = "screenResolution"
	FieldColorDepth          = "colorDepth"
	FieldPixelRatio          = "pixelRatio"
	FieldHardwareConcurrency = "hardwareConcurrency"
	FieldDeviceMemory        = "deviceMemory"
	FieldGPUVendor           = "gpuVendor"
	FieldGPURenderer         = "gpuRenderer"
	FieldWebGLFingerprint    = "webglFingerprint"
	FieldCanvasFingerprint   = "canvasFingerprint"
	FieldAudioFingerprint    = "audioFingerprint"
	FieldFonts               = "fonts"
	FieldPlugins             = "plugins"
	FieldMathConstants       = "mathConstants"
	FieldTouchSupport        = "touchSupport"
)

// Common fields that carry environment context but never identity. They are
// listed here only so tooling can name them; the pipeline excludes anything
// outside the identity set, known or not.
const (
	FieldTimezone       = "timezone"
	FieldLanguages      = "languages"
	FieldCookiesEnabled = "cookiesEnabled"
	FieldDoNotTrack     = "doNotTrack"
)

// IdentityFields returns the fixed, ordered set of fields that participate in
// the fingerprint digest.
func IdentityFields() []string {
	return []string{
		FieldUserAgent,
		FieldPlatform,
		FieldScreenResolution,
		FieldColorDepth,
		FieldPixelRatio,
		FieldHardwareConcurrency,
		FieldDeviceMemory,
		FieldGPUVendor,
		FieldGPURenderer,
		FieldWebGLFingerprint,
		FieldCanvasFingerprint,
		FieldAudioFingerprint,
		FieldFonts,
		FieldPlugins,
		FieldMathConstants,
		FieldTouchSupport,
	}
}
