package troubleshoot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stableprint/sdk/bag"
)

// Modification is one declarative edit to apply to a cloned baseline.
// Property is a dotted path, so nested composite fields can be targeted.
type Modification struct {
	Property string `json:"property" yaml:"property"`
	NewValue any    `json:"new_value" yaml:"new_value"`
}

// Pattern declares one variation to generate: the edits to apply and
// whether the digest is expected to survive them.
type Pattern struct {
	Name           string         `json:"name" yaml:"name"`
	Modifications  []Modification `json:"modifications" yaml:"modifications"`
	ShouldBeStable bool           `json:"should_be_stable" yaml:"should_be_stable"`
}

// Variation is one concrete generated observation with its expectation.
type Variation struct {
	Name           string  `json:"name" yaml:"name"`
	Observation    bag.Bag `json:"observation" yaml:"observation"`
	ShouldBeStable bool    `json:"should_be_stable" yaml:"should_be_stable"`
}

// Suite is a self-contained regression suite: a baseline observation plus
// variations with expected hash outcomes.
type Suite struct {
	Name       string      `json:"name" yaml:"name"`
	Version    string      `json:"version,omitempty" yaml:"version,omitempty"`
	Baseline   bag.Bag     `json:"baseline" yaml:"baseline"`
	Variations []Variation `json:"variations" yaml:"variations"`
}

// GenerateSuite expands declarative patterns into a concrete suite. Each
// variation is a structural clone of the baseline with the pattern's
// modifications applied, so the baseline is never shared or mutated.
func GenerateSuite(name string, baseline bag.Bag, patterns []Pattern) (*Suite, error) {
	if len(baseline) == 0 {
		return nil, fmt.Errorf("troubleshoot: suite baseline is empty")
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("troubleshoot: suite needs at least one pattern")
	}

	suite := &Suite{
		Name:       name,
		Baseline:   bag.Clone(baseline),
		Variations: make([]Variation, 0, len(patterns)),
	}
	for i, p := range patterns {
		obs := bag.Clone(baseline)
		for _, mod := range p.Modifications {
			if err := bag.SetPath(obs, mod.Property, mod.NewValue); err != nil {
				return nil, fmt.Errorf("troubleshoot: pattern %d: %w", i, err)
			}
		}
		varName := p.Name
		if varName == "" {
			varName = fmt.Sprintf("variation-%d", i+1)
		}
		suite.Variations = append(suite.Variations, Variation{
			Name:           varName,
			Observation:    obs,
			ShouldBeStable: p.ShouldBeStable,
		})
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// Validate checks the suite structure for correctness: a non-empty baseline
// and uniquely named variations that each carry an observation.
func (s *Suite) Validate() error {
	if len(s.Baseline) == 0 {
		return fmt.Errorf("suite %q is missing a baseline", s.Name)
	}

	seen := make(map[string]bool, len(s.Variations))
	for i, v := range s.Variations {
		if v.Name == "" {
			return fmt.Errorf("variation at index %d is missing required field 'name'", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variation name found: %s", v.Name)
		}
		seen[v.Name] = true
		if len(v.Observation) == 0 {
			return fmt.Errorf("variation %s at index %d is missing an observation", v.Name, i)
		}
	}
	return nil
}

// LoadSuite reads a suite from a file. The format is detected by extension
// (.json, .yaml, .yml) and the result is validated before being returned.
func LoadSuite(path string) (*Suite, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("suite file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite Suite
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("failed to parse JSON suite: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &suite); err != nil {
			return nil, fmt.Errorf("failed to parse YAML suite: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported suite format: %s (supported: .json, .yaml, .yml)", ext)
	}

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("suite validation failed: %w", err)
	}
	return &suite, nil
}

// SaveSuite writes a suite to a file in the format its extension names.
func SaveSuite(path string, suite *Suite) error {
	if err := suite.Validate(); err != nil {
		return fmt.Errorf("suite validation failed: %w", err)
	}

	var data []byte
	var err error
	switch ext := filepath.Ext(path); ext {
	case ".json":
		data, err = json.MarshalIndent(suite, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(suite)
	default:
		return fmt.Errorf("unsupported suite format: %s (supported: .json, .yaml, .yml)", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode suite: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write suite file: %w", err)
	}
	return nil
}
