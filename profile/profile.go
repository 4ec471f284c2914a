// Package profile defines named, versioned canonicalization profiles: the
// operator-tunable surface of the hashing pipeline.
//
// A profile can swap the privacy shield pattern, sentinel values, retry
// policy, recorder limits, and comparator grading. It can never touch the
// rounding precision or the identity field set; those are wire contract and
// live in serial and bag. Checksum gives fleets a cheap way to prove every
// node canonicalizes identically.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stableprint/sdk/canonical"
	"github.com/stableprint/sdk/diff"
	"github.com/stableprint/sdk/fallback"
	"github.com/stableprint/sdk/recorder"
	"github.com/stableprint/sdk/serial"
)

// Profile is a profile.yaml file.
type Profile struct {
	// Identity
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// ShieldPattern replaces the default privacy-plugin filter. The value
	// is a Go regexp; add (?i) for case-insensitive matching.
	ShieldPattern string `yaml:"shield_pattern,omitempty" json:"shield_pattern,omitempty"`

	// DisableShield turns plugin filtering off entirely.
	DisableShield bool `yaml:"disable_shield,omitempty" json:"disable_shield,omitempty"`

	// Sentinels overrides the substitute value per field.
	Sentinels map[string]any `yaml:"sentinels,omitempty" json:"sentinels,omitempty"`

	Retry    *RetryConfig    `yaml:"retry,omitempty" json:"retry,omitempty"`
	Recorder *RecorderConfig `yaml:"recorder,omitempty" json:"recorder,omitempty"`

	// SeverityOverrides pins comparator severities per property or path.
	SeverityOverrides map[string]string `yaml:"severity_overrides,omitempty" json:"severity_overrides,omitempty"`

	// CriticalProperties replaces the comparator's critical set.
	CriticalProperties []string `yaml:"critical_properties,omitempty" json:"critical_properties,omitempty"`
}

// RetryConfig tunes the fallback resolver's backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of collection attempts.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`

	// BaseDelay is the wait after the first failure.
	// Format: Go duration string (e.g., "100ms", "1s").
	BaseDelay string `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`

	// Multiplier grows the delay per attempt.
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`

	// MaxDelay caps the backoff.
	// Format: Go duration string (e.g., "2s").
	MaxDelay string `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
}

// Policy resolves the config against the default retry policy. Unset or
// invalid values keep the default.
func (r *RetryConfig) Policy() fallback.RetryPolicy {
	policy := fallback.DefaultRetryPolicy()
	if r == nil {
		return policy
	}
	if r.MaxAttempts > 0 {
		policy.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay != "" {
		if d, err := time.ParseDuration(r.BaseDelay); err == nil && d > 0 {
			policy.BaseDelay = d
		}
	}
	if r.Multiplier >= 1 {
		policy.Multiplier = r.Multiplier
	}
	if r.MaxDelay != "" {
		if d, err := time.ParseDuration(r.MaxDelay); err == nil && d > 0 {
			policy.MaxDelay = d
		}
	}
	return policy
}

// RecorderConfig tunes debug sessions.
type RecorderConfig struct {
	// MaxEntries bounds a session's shared log/step budget.
	MaxEntries int `yaml:"max_entries,omitempty" json:"max_entries,omitempty"`

	// Level is the minimum kept log level: debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`
}

// GetMaxEntries returns the configured budget or the default.
func (r *RecorderConfig) GetMaxEntries() int {
	if r == nil || r.MaxEntries <= 0 {
		return recorder.DefaultMaxEntries
	}
	return r.MaxEntries
}

// GetLevel returns the configured level or debug.
func (r *RecorderConfig) GetLevel() recorder.Level {
	if r == nil {
		return recorder.LevelDebug
	}
	if l := recorder.Level(r.Level); l.IsValid() {
		return l
	}
	return recorder.LevelDebug
}

// Default returns the stock profile. Its checksum is the fleet baseline.
func Default() *Profile {
	return &Profile{
		Name:        "default",
		Version:     "1.0.0",
		Description: "stock canonicalization profile",
	}
}

// Validate checks the profile for correctness without building anything.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile is missing required field 'name'")
	}
	if p.Version == "" {
		return fmt.Errorf("profile %s is missing required field 'version'", p.Name)
	}
	if !p.DisableShield && p.ShieldPattern != "" {
		if _, err := regexp.Compile(p.ShieldPattern); err != nil {
			return fmt.Errorf("profile %s: invalid shield pattern: %w", p.Name, err)
		}
	}
	if p.Retry != nil {
		if p.Retry.MaxAttempts < 0 {
			return fmt.Errorf("profile %s: retry max_attempts cannot be negative", p.Name)
		}
		if p.Retry.Multiplier < 0 {
			return fmt.Errorf("profile %s: retry multiplier cannot be negative", p.Name)
		}
		for field, raw := range map[string]string{"base_delay": p.Retry.BaseDelay, "max_delay": p.Retry.MaxDelay} {
			if raw == "" {
				continue
			}
			if _, err := time.ParseDuration(raw); err != nil {
				return fmt.Errorf("profile %s: invalid retry %s %q: %w", p.Name, field, raw, err)
			}
		}
	}
	if p.Recorder != nil && p.Recorder.Level != "" {
		if !recorder.Level(p.Recorder.Level).IsValid() {
			return fmt.Errorf("profile %s: unknown recorder level %q", p.Name, p.Recorder.Level)
		}
	}
	for prop, s := range p.SeverityOverrides {
		if !diff.Severity(s).IsValid() {
			return fmt.Errorf("profile %s: invalid severity %q for property %s", p.Name, s, prop)
		}
	}
	for i, prop := range p.CriticalProperties {
		if prop == "" {
			return fmt.Errorf("profile %s: critical property at index %d is empty", p.Name, i)
		}
	}
	return nil
}

// Checksum returns a deterministic digest of the profile's semantic
// content. Two nodes whose profiles share a checksum canonicalize
// identically; fleet drift detection compares nothing else.
func (p *Profile) Checksum() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("profile %s: encoding for checksum: %w", p.Name, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("profile %s: decoding for checksum: %w", p.Name, err)
	}
	return serial.Digest(v), nil
}

// Shield returns the compiled plugin filter: nil when disabled, the stock
// pattern when unset.
func (p *Profile) Shield() (*regexp.Regexp, error) {
	if p.DisableShield {
		return nil, nil
	}
	if p.ShieldPattern == "" {
		return canonical.DefaultShieldPattern, nil
	}
	re, err := regexp.Compile(p.ShieldPattern)
	if err != nil {
		return nil, fmt.Errorf("profile %s: invalid shield pattern: %w", p.Name, err)
	}
	return re, nil
}

// Resolver builds the fallback resolver this profile describes.
func (p *Profile) Resolver() *fallback.Resolver {
	opts := []fallback.Option{fallback.WithRetryPolicy(p.Retry.Policy())}
	if len(p.Sentinels) > 0 {
		opts = append(opts, fallback.WithSentinels(p.Sentinels))
	}
	return fallback.NewResolver(opts...)
}

// Canonicalizer builds the canonicalizer this profile describes.
func (p *Profile) Canonicalizer() (*canonical.Canonicalizer, error) {
	shield, err := p.Shield()
	if err != nil {
		return nil, err
	}
	return canonical.New(
		canonical.WithResolver(p.Resolver()),
		canonical.WithShieldPattern(shield),
	), nil
}

// GradingOptions returns the comparator options for this profile's severity
// overrides and critical set, without binding a canonicalizer. Callers that
// already hold the canonicalizer combine the two themselves.
func (p *Profile) GradingOptions() ([]diff.Option, error) {
	var opts []diff.Option
	if len(p.SeverityOverrides) > 0 {
		overrides := make(map[string]diff.Severity, len(p.SeverityOverrides))
		for prop, s := range p.SeverityOverrides {
			sev := diff.Severity(s)
			if !sev.IsValid() {
				return nil, fmt.Errorf("profile %s: invalid severity %q for property %s", p.Name, s, prop)
			}
			overrides[prop] = sev
		}
		opts = append(opts, diff.WithSeverityOverrides(overrides))
	}
	if len(p.CriticalProperties) > 0 {
		opts = append(opts, diff.WithCriticalProperties(p.CriticalProperties...))
	}
	return opts, nil
}

// Comparator builds a comparator whose hash-impact verdicts match this
// profile's canonicalizer.
func (p *Profile) Comparator() (*diff.Comparator, error) {
	canon, err := p.Canonicalizer()
	if err != nil {
		return nil, err
	}
	opts, err := p.GradingOptions()
	if err != nil {
		return nil, err
	}
	return diff.NewComparator(append(opts, diff.WithCanonicalizer(canon))...), nil
}

// NewRecorder builds a debug recorder with this profile's limits.
func (p *Profile) NewRecorder() *recorder.Recorder {
	return recorder.New(
		recorder.WithLevel(p.Recorder.GetLevel()),
		recorder.WithMaxEntries(p.Recorder.GetMaxEntries()),
	)
}

// Load reads and parses a profile.yaml file from the given path. If the
// path is a directory, it looks for profile.yaml or profile.yml in that
// directory. The result is validated before being returned.
func Load(path string) (*Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var profilePath string
	if info.IsDir() {
		yamlPath := filepath.Join(path, "profile.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			profilePath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "profile.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				profilePath = ymlPath
			} else {
				return nil, fmt.Errorf("no profile.yaml or profile.yml found in %s", path)
			}
		}
	} else {
		profilePath = path
	}

	data, err := os.ReadFile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}
	return &p, nil
}

// LoadFromDir searches for profile.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Profile, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		p, err := Load(absDir)
		if err == nil {
			return p, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no profile.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// Save writes the profile as YAML. The profile is validated first.
func (p *Profile) Save(path string) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}
