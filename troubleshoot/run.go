package troubleshoot

import (
	"context"
	"fmt"
	"time"

	"github.com/stableprint/sdk/stability"
)

// VariationResult records how one variation hashed against the baseline.
type VariationResult struct {
	Name            string `json:"name"`
	Digest          string `json:"digest"`
	MatchedBaseline bool   `json:"matched_baseline"`
	ShouldBeStable  bool   `json:"should_be_stable"`
	Passed          bool   `json:"passed"`
}

// SuiteResult is the outcome of running one suite.
type SuiteResult struct {
	Suite          string            `json:"suite"`
	RanAt          time.Time         `json:"ran_at"`
	BaselineDigest string            `json:"baseline_digest"`
	Results        []VariationResult `json:"results"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	PassRate       float64           `json:"pass_rate"`
}

// Pass reports whether every variation met its expectation.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// Failures returns the results that did not meet their expectation.
func (r *SuiteResult) Failures() []VariationResult {
	var out []VariationResult
	for _, v := range r.Results {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}

// RunSuite hashes the baseline and every variation, then scores each
// variation's digest equality against its declared expectation. This is the
// acceptance harness for the whole pipeline: a normalization regression
// shows up here as a failed variation.
func RunSuite(ctx context.Context, suite *Suite, hasher stability.Hasher) (*SuiteResult, error) {
	if suite == nil {
		return nil, fmt.Errorf("troubleshoot: suite is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("troubleshoot: hasher is required")
	}
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("troubleshoot: %w", err)
	}

	baseline, err := hasher.Generate(ctx, suite.Baseline)
	if err != nil {
		return nil, fmt.Errorf("troubleshoot: hashing baseline: %w", err)
	}

	result := &SuiteResult{
		Suite:          suite.Name,
		RanAt:          time.Now().UTC(),
		BaselineDigest: baseline,
		Results:        make([]VariationResult, 0, len(suite.Variations)),
	}

	for _, v := range suite.Variations {
		digest, err := hasher.Generate(ctx, v.Observation)
		if err != nil {
			return nil, fmt.Errorf("troubleshoot: hashing variation %s: %w", v.Name, err)
		}
		matched := digest == baseline
		passed := matched == v.ShouldBeStable

		result.Results = append(result.Results, VariationResult{
			Name:            v.Name,
			Digest:          digest,
			MatchedBaseline: matched,
			ShouldBeStable:  v.ShouldBeStable,
			Passed:          passed,
		})
		if passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if n := len(result.Results); n > 0 {
		result.PassRate = float64(result.Passed) / float64(n)
	} else {
		result.PassRate = 1.0
	}
	return result, nil
}
