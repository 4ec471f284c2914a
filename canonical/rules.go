package canonical

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/fallback"
	"github.com/stableprint/sdk/recorder"
	"github.com/stableprint/sdk/serial"
)

// normalizeField dispatches one identity field to its rule.
func (c *Canonicalizer) normalizeField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	switch field {
	case bag.FieldUserAgent, bag.FieldPlatform:
		return c.stringField(b, field, sess, false)
	case bag.FieldGPUVendor, bag.FieldGPURenderer:
		return c.stringField(b, field, sess, true)
	case bag.FieldScreenResolution:
		return c.resolutionField(b, field, sess)
	case bag.FieldColorDepth, bag.FieldPixelRatio, bag.FieldHardwareConcurrency, bag.FieldDeviceMemory:
		return c.numberField(b, field, sess)
	case bag.FieldWebGLFingerprint, bag.FieldCanvasFingerprint, bag.FieldAudioFingerprint:
		return c.compositeField(b, field, sess)
	case bag.FieldFonts:
		return c.fontsField(b, field, sess)
	case bag.FieldPlugins:
		return c.pluginsField(b, field, sess)
	case bag.FieldMathConstants:
		return c.mathConstantsField(b, field, sess)
	case bag.FieldTouchSupport:
		return c.touchSupportField(b, field, sess)
	default:
		return c.stringField(b, field, sess, false)
	}
}

// stringField normalizes a plain text signal: metadata strip for GPU
// fields, then whitespace collapse. Values that are not strings substitute
// as malformed; values that normalize to nothing substitute as missing.
func (c *Canonicalizer) stringField(b bag.Bag, field string, sess *recorder.Session, gpu bool) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	s, ok := v.(string)
	if !ok {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	out := s
	if gpu {
		stripped := stripGPUMetadata(out)
		if stripped != out {
			sess.LogStep(recorder.StepStripMetadata, field, out, stripped, nil)
			out = stripped
		}
	}

	norm := serial.NormalizeString(out)
	if norm == "" {
		return c.resolver.Resolve(field, s, fallback.ReasonMissingProperty)
	}
	if norm != out {
		sess.LogStep(recorder.StepNormalizeString, field, out, norm, nil)
	}
	return fallback.Ok(norm)
}

// numberField rounds a numeric signal to the fixed precision and keeps it
// as fixed-precision text. Numeric strings coerce; anything else, and any
// non-finite value, substitutes as malformed.
func (c *Canonicalizer) numberField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	norm := serial.NormalizeNumber(f)
	sess.LogStep(recorder.StepNormalizeNumber, field, v, norm, nil)
	return fallback.Ok(norm)
}

var resolutionText = regexp.MustCompile(`^\s*(\d+)\s*[xX×]\s*(\d+)\s*$`)

// resolutionField rewrites the screen size to canonical "WxH" text from any
// of the shapes collectors emit: text, a {width,height} block, or a [w,h]
// pair. Non-positive or unparseable dimensions substitute as malformed.
func (c *Canonicalizer) resolutionField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	w, h, ok := resolutionPair(v)
	if !ok {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	norm := fmt.Sprintf("%dx%d", w, h)
	if s, isText := v.(string); !isText || s != norm {
		sess.LogStep(recorder.StepCoerceValue, field, v, norm, nil)
	}
	return fallback.Ok(norm)
}

func resolutionPair(v any) (int, int, bool) {
	switch t := v.(type) {
	case string:
		m := resolutionText.FindStringSubmatch(t)
		if m == nil {
			return 0, 0, false
		}
		w, errW := strconv.Atoi(m[1])
		h, errH := strconv.Atoi(m[2])
		if errW != nil || errH != nil {
			return 0, 0, false
		}
		return validDimensions(w, h)
	case map[string]any:
		w, okW := toFloat(t["width"])
		h, okH := toFloat(t["height"])
		if !okW || !okH {
			return 0, 0, false
		}
		return validDimensions(int(math.Round(w)), int(math.Round(h)))
	case []any:
		if len(t) != 2 {
			return 0, 0, false
		}
		w, okW := toFloat(t[0])
		h, okH := toFloat(t[1])
		if !okW || !okH {
			return 0, 0, false
		}
		return validDimensions(int(math.Round(w)), int(math.Round(h)))
	default:
		return 0, 0, false
	}
}

func validDimensions(w, h int) (int, int, bool) {
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// compositeField handles the probe blocks (WebGL, canvas, audio). A block
// carrying an error marker degrades to the field's placeholder with the
// reason derived from the marker text; healthy blocks are deep-normalized
// and order-stabilized.
func (c *Canonicalizer) compositeField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	switch t := v.(type) {
	case string:
		norm := serial.NormalizeString(t)
		if norm == "" {
			return c.resolver.Resolve(field, t, fallback.ReasonMissingProperty)
		}
		if norm != t {
			sess.LogStep(recorder.StepNormalizeString, field, t, norm, nil)
		}
		return fallback.Ok(norm)
	case map[string]any:
		if msg, failed := blockError(t); failed {
			sess.LogStep(recorder.StepDegradeBlock, field, t, nil, map[string]any{"error": msg})
			category := fallback.Categorize(errors.New(msg), field)
			return c.resolver.Resolve(field, t, fallback.ReasonForCategory(category))
		}
		norm := serial.DeepSort(c.deepNormalize(t))
		sess.LogStep(recorder.StepCoerceValue, field, t, norm, nil)
		return fallback.Ok(norm)
	case []any:
		norm := serial.DeepSort(c.deepNormalize(t))
		sess.LogStep(recorder.StepCoerceValue, field, t, norm, nil)
		return fallback.Ok(norm)
	default:
		if f, ok := toFloat(t); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			norm := serial.NormalizeNumber(f)
			sess.LogStep(recorder.StepNormalizeNumber, field, t, norm, nil)
			return fallback.Ok(norm)
		}
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}
}

// blockError extracts the error marker from a probe block, if present.
func blockError(m map[string]any) (string, bool) {
	e, ok := m["error"]
	if !ok || e == nil {
		return "", false
	}
	if s, ok := e.(string); ok {
		return s, s != ""
	}
	return fmt.Sprintf("%v", e), true
}

// fontsField dedupes, sorts, and joins the detected font names. A list
// that reduces to nothing substitutes as missing.
func (c *Canonicalizer) fontsField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	list := bag.GetStringSlice(b, field)
	if list == nil {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	seen := make(map[string]bool, len(list))
	names := make([]string, 0, len(list))
	for _, raw := range list {
		name := serial.NormalizeString(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return c.resolver.Resolve(field, v, fallback.ReasonMissingProperty)
	}

	norm := strings.Join(names, ",")
	sess.LogStep(recorder.StepSortList, field, v, norm, map[string]any{"kept": len(names)})
	return fallback.Ok(norm)
}

// pluginsField normalizes plugin entries, drops privacy-shield injections,
// dedupes by rendered form, and orders the result. A list that filters to
// nothing substitutes as missing.
func (c *Canonicalizer) pluginsField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	entries, ok := anySlice(v)
	if !ok {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	var dropped []string
	seen := make(map[string]bool, len(entries))
	kept := make([]any, 0, len(entries))

	for _, entry := range entries {
		norm, name, usable := c.normalizePlugin(entry)
		if !usable {
			dropped = append(dropped, fmt.Sprintf("%v", entry))
			continue
		}
		if c.shield != nil && c.shield.MatchString(name) {
			dropped = append(dropped, name)
			continue
		}
		key := serial.Render(norm)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, norm)
	}

	if len(dropped) > 0 {
		sess.LogStep(recorder.StepFilterList, field, nil, nil, map[string]any{"dropped": dropped})
	}

	if len(kept) == 0 {
		return c.resolver.Resolve(field, v, fallback.ReasonMissingProperty)
	}

	sorted := serial.DeepSort(kept)
	sess.LogStep(recorder.StepSortList, field, v, sorted, map[string]any{"kept": len(kept)})
	return fallback.Ok(sorted)
}

// normalizePlugin rewrites one plugin entry to its canonical shape: either
// collapsed name text or a {name, filename, mimeTypes} block. The second
// return is the name used for shield matching.
func (c *Canonicalizer) normalizePlugin(entry any) (any, string, bool) {
	switch t := entry.(type) {
	case string:
		name := serial.NormalizeString(t)
		return name, name, name != ""
	case map[string]any:
		rawName, _ := t["name"].(string)
		name := serial.NormalizeString(rawName)
		if name == "" {
			return nil, "", false
		}
		block := map[string]any{"name": name}
		if fn, ok := t["filename"].(string); ok {
			if fn = serial.NormalizeString(fn); fn != "" {
				block["filename"] = fn
			}
		}
		if mimes := normalizeStringSet(t["mimeTypes"]); len(mimes) > 0 {
			block["mimeTypes"] = mimes
		}
		return block, name, true
	default:
		return nil, "", false
	}
}

// mathConstantsField keeps the probe map with every value rewritten to
// fixed-precision text. Entries that are not finite numbers are dropped;
// a map that reduces to nothing substitutes as missing.
func (c *Canonicalizer) mathConstantsField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	m, ok := anyMap(v)
	if !ok {
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}

	out := make(map[string]any, len(m))
	var dropped []string
	for k, val := range m {
		f, ok := toFloat(val)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = serial.NormalizeNumber(f)
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)
		sess.LogStep(recorder.StepFilterList, field, nil, nil, map[string]any{"dropped": dropped})
	}
	if len(out) == 0 {
		return c.resolver.Resolve(field, v, fallback.ReasonMissingProperty)
	}

	sess.LogStep(recorder.StepCoerceValue, field, v, out, nil)
	return fallback.Ok(out)
}

// touchSupportField accepts a capability flag or a probe block. Blocks are
// deep-normalized; anything else substitutes as malformed.
func (c *Canonicalizer) touchSupportField(b bag.Bag, field string, sess *recorder.Session) fallback.Outcome {
	v, present := b[field]
	if !present || v == nil {
		return c.resolver.Resolve(field, nil, fallback.ReasonMissingProperty)
	}

	switch t := v.(type) {
	case bool:
		return fallback.Ok(t)
	case map[string]any:
		norm := serial.DeepSort(c.deepNormalize(t))
		sess.LogStep(recorder.StepCoerceValue, field, t, norm, nil)
		return fallback.Ok(norm)
	default:
		return c.resolver.Resolve(field, v, fallback.ReasonMalformedData)
	}
}

// deepNormalize rewrites every string leaf to collapsed text and every
// numeric leaf to fixed-precision text, recursively. Non-finite numbers
// become a named marker so the serialized form stays in JSON vocabulary.
func (c *Canonicalizer) deepNormalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case string:
		return serial.NormalizeString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = c.deepNormalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = c.deepNormalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = serial.NormalizeString(e)
		}
		return out
	default:
		if f, ok := toFloat(t); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return "non_finite"
			}
			return serial.NormalizeNumber(f)
		}
		return t
	}
}

// normalizeStringSet collapses, dedupes, and sorts a list of strings from
// any accepted shape. Returns nil when the value holds no usable strings.
func normalizeStringSet(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		raw = t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = []string{t}
	default:
		return nil
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = serial.NormalizeString(s); s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// toFloat coerces numeric kinds and numeric text to float64.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func anySlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func anyMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case bag.Bag:
		return map[string]any(t), true
	case map[string]float64:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// GPU strings carry driver and build noise alongside the hardware name.
// stripGPUMetadata removes the tokens that vary per build: trademark
// marks, dotted version numbers, long hex identifiers, and shader model
// tags. Plain integers stay, they are usually the hardware model.
var (
	gpuNoise       = regexp.MustCompile(`(?i)\(\s*(?:r|tm|c)\s*\)|\b(?:0x)?[0-9a-f]{8,}\b|\bv?\d+(?:\.\d+)+\b|\b[vp]s_\d+_\d+\b`)
	gpuDangling    = regexp.MustCompile(`[-_/;:,]+\s*([),])`)
	gpuDanglingEnd = regexp.MustCompile(`[-_/;:,]+\s*$`)
	gpuEmptyParen  = regexp.MustCompile(`\(\s*\)`)
	gpuTight       = regexp.MustCompile(`\s+([),])`)
	gpuOpen        = regexp.MustCompile(`\(\s+`)
)

func stripGPUMetadata(s string) string {
	out := gpuNoise.ReplaceAllString(s, " ")
	out = gpuDangling.ReplaceAllString(out, "$1")
	out = gpuDanglingEnd.ReplaceAllString(out, "")
	out = gpuEmptyParen.ReplaceAllString(out, " ")
	out = serial.NormalizeString(out)
	out = gpuTight.ReplaceAllString(out, "$1")
	out = gpuOpen.ReplaceAllString(out, "(")
	return out
}
