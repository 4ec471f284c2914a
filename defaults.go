package sdk

import (
	"context"
	"sync"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/diff"
)

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the shared stock engine. The stock profile is valid by
// construction, so initialization cannot fail.
func Default() *Engine {
	defaultOnce.Do(func() {
		e, err := New()
		if err != nil {
			panic("sdk: stock engine failed to initialize: " + err.Error())
		}
		defaultEngine = e
	})
	return defaultEngine
}

// Generate hashes an observation with the shared stock engine.
func Generate(ctx context.Context, b bag.Bag) (string, error) {
	return Default().Generate(ctx, b)
}

// Compare diffs two observations with the shared stock engine.
func Compare(a, b bag.Bag) *diff.Report {
	return Default().Compare(a, b)
}
