// Package canonical projects raw observations onto the deterministic form
// the fingerprint digest is computed over.
//
// Canonicalization is total and pure: every identity field gets a value in
// the output form no matter what the observation carried, and the same
// observation always projects to the same form. Genuine signals are
// normalized by per-field rules; absent, malformed, and erroring signals
// are replaced by their field's sentinel through the fallback resolver.
// Sentinels enter the form untouched, so a degraded reading can never
// collide with a healthy reading of the same shape.
package canonical

import (
	"regexp"
	"sort"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/fallback"
	"github.com/stableprint/sdk/recorder"
	"github.com/stableprint/sdk/serial"
)

// DefaultShieldPattern matches plugin names injected by privacy tooling.
// Shielded entries are dropped before hashing: they come and go with the
// user's privacy posture, not with the device.
var DefaultShieldPattern = regexp.MustCompile(`(?i)\b(?:privacy|brave|ghostery|duckduckgo|adblock|ublock)\b`)

// Canonicalizer applies the per-field normalization rules. It is stateless
// apart from its resolver and safe for concurrent use.
type Canonicalizer struct {
	resolver *fallback.Resolver
	shield   *regexp.Regexp
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithResolver replaces the default fallback resolver.
func WithResolver(r *fallback.Resolver) Option {
	return func(c *Canonicalizer) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithShieldPattern replaces the privacy-shield plugin filter. A nil
// pattern disables filtering.
func WithShieldPattern(re *regexp.Regexp) Option {
	return func(c *Canonicalizer) {
		c.shield = re
	}
}

// New builds a Canonicalizer with the default resolver and shield pattern,
// then applies options.
func New(opts ...Option) *Canonicalizer {
	c := &Canonicalizer{
		resolver: fallback.NewResolver(),
		shield:   DefaultShieldPattern,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolver returns the fallback resolver in use.
func (c *Canonicalizer) Resolver() *fallback.Resolver {
	return c.resolver
}

// Form is the canonical projection of one observation. Fields holds the
// normalized value for every identity field; Outcomes tags each value as
// genuine or substituted. Two observations produce the same digest exactly
// when their forms render identically.
type Form struct {
	Fields   map[string]any              `json:"fields"`
	Outcomes map[string]fallback.Outcome `json:"outcomes,omitempty"`
}

// Value returns the normalized value for a field.
func (f Form) Value(field string) any {
	return f.Fields[field]
}

// Fallbacks returns the substitution records keyed by field, only for
// fields that did not carry a genuine signal.
func (f Form) Fallbacks() map[string]*fallback.Record {
	out := make(map[string]*fallback.Record)
	for field, o := range f.Outcomes {
		if o.Record != nil {
			out[field] = o.Record
		}
	}
	return out
}

// Degraded reports whether any field hashed with a sentinel.
func (f Form) Degraded() bool {
	for _, o := range f.Outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

// Render serializes the form's fields deterministically.
func (f Form) Render() string {
	return serial.Render(f.Fields)
}

// Digest renders the form and hashes it.
func (f Form) Digest() string {
	return serial.Digest(f.Fields)
}

// Canonicalize projects an observation onto its canonical form. The session
// may be nil; when present it receives one step per transformation,
// substitution, and excluded field.
func (c *Canonicalizer) Canonicalize(b bag.Bag, sess *recorder.Session) Form {
	identity := bag.IdentityFields()
	form := Form{
		Fields:   make(map[string]any, len(identity)),
		Outcomes: make(map[string]fallback.Outcome, len(identity)),
	}

	for _, field := range identity {
		out := c.normalizeField(b, field, sess)
		if !out.OK() {
			sess.LogStep(recorder.StepFallback, field, out.Record.OriginalValue, out.Value,
				map[string]any{"reason": string(out.Record.Reason)})
		}
		form.Fields[field] = out.Value
		form.Outcomes[field] = out
	}

	if sess != nil {
		excluded := make([]string, 0, len(b))
		for key := range b {
			if _, ok := form.Fields[key]; !ok {
				excluded = append(excluded, key)
			}
		}
		sort.Strings(excluded)
		for _, key := range excluded {
			sess.LogStep(recorder.StepExcludeField, key, b[key], nil, nil)
		}
	}

	return form
}
