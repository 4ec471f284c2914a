package troubleshoot

import (
	"context"
	"os"
	"testing"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/canonical"
	"github.com/stableprint/sdk/stability"
)

// Run executes a stability suite as a Go test, skipping unless the
// GOSTABILITY=1 environment variable is set. Suites can live in the normal
// test tree without slowing every run down.
//
// Example:
//
//	func TestBrowserUpdateSuite(t *testing.T) {
//	    troubleshoot.Run(t, "browser_update", func(h *troubleshoot.H) {
//	        h.RunSuiteFile("testdata/browser_update.yaml")
//	    })
//	}
func Run(t *testing.T, name string, f func(h *H)) {
	if os.Getenv("GOSTABILITY") != "1" {
		t.Skip("GOSTABILITY=1 not set")
		return
	}

	t.Run(name, func(t *testing.T) {
		f(&H{T: t, hasher: defaultHasher{canon: canonical.New()}})
	})
}

// H wraps testing.T with suite execution helpers. The default hasher is the
// canonical pipeline with default options; UseHasher swaps in a production
// engine when the suite must run against custom configuration.
type H struct {
	T      testing.TB
	hasher stability.Hasher
}

// UseHasher replaces the hasher for subsequent suite runs.
func (h *H) UseHasher(hasher stability.Hasher) {
	if hasher != nil {
		h.hasher = hasher
	}
}

// RunSuite executes a suite and fails the test on any execution error. The
// result is returned for further assertions; it is not judged here.
func (h *H) RunSuite(suite *Suite) *SuiteResult {
	result, err := RunSuite(context.Background(), suite, h.hasher)
	if err != nil {
		h.T.Fatalf("suite run failed: %v", err)
	}
	for _, v := range result.Failures() {
		h.T.Logf("variation %s: matched_baseline=%t want stable=%t", v.Name, v.MatchedBaseline, v.ShouldBeStable)
	}
	return result
}

// RequirePass fails the test unless every variation met its expectation.
func (h *H) RequirePass(result *SuiteResult) {
	if result == nil {
		h.T.Fatal("no suite result")
		return
	}
	if !result.Pass() {
		h.T.Fatalf("suite %s: %d of %d variations failed", result.Suite, result.Failed, len(result.Results))
	}
}

// RunSuiteFile loads a suite from disk, runs it, and requires a pass.
func (h *H) RunSuiteFile(path string) *SuiteResult {
	suite, err := LoadSuite(path)
	if err != nil {
		h.T.Fatalf("loading suite: %v", err)
	}
	result := h.RunSuite(suite)
	h.RequirePass(result)
	return result
}

// defaultHasher is the canonicalization pipeline without the engine wrapper.
type defaultHasher struct {
	canon *canonical.Canonicalizer
}

func (d defaultHasher) Generate(_ context.Context, b bag.Bag) (string, error) {
	return d.canon.Canonicalize(b, nil).Digest(), nil
}
