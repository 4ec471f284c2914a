package fallback

import (
	"fmt"

	"github.com/stableprint/sdk/bag"
)

// SentinelNoFonts replaces an empty or unavailable font list. It is named
// here because the canonicalizer also uses it for lists that dedupe to
// nothing.
const SentinelNoFonts = "no fonts detected"

// defaultSentinels maps every identity field to its substitute value.
// Sentinels are fixed and distinguishable from plausible real values so a
// degraded observation still hashes deterministically and differently from
// a healthy one. Numeric fields substitute zero to stay type-stable.
func defaultSentinels() map[string]any {
	return map[string]any{
		bag.FieldUserAgent:           "user_agent_unavailable",
		bag.FieldPlatform:            "platform_unavailable",
		bag.FieldScreenResolution:    "0x0",
		bag.FieldColorDepth:          float64(0),
		bag.FieldPixelRatio:          float64(0),
		bag.FieldHardwareConcurrency: float64(0),
		bag.FieldDeviceMemory:        float64(0),
		bag.FieldGPUVendor:           "gpu_vendor_unavailable",
		bag.FieldGPURenderer:         "gpu_renderer_unavailable",
		bag.FieldWebGLFingerprint:    "webgl_unavailable",
		bag.FieldCanvasFingerprint:   "canvas_unavailable",
		bag.FieldAudioFingerprint:    "audio_unavailable",
		bag.FieldFonts:               SentinelNoFonts,
		bag.FieldPlugins:             "no_plugins_detected",
		bag.FieldMathConstants:       "math_constants_unavailable",
		bag.FieldTouchSupport:        "touch_support_unavailable",
	}
}

// Sentinel returns the substitute value for a field. Generation is total:
// fields without a configured sentinel get a derived placeholder, so no
// input can make substitution fail.
func (r *Resolver) Sentinel(field string) any {
	if v, ok := r.sentinels[field]; ok {
		return v
	}
	return fmt.Sprintf("%s_unavailable", field)
}
