package fallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stableprint/sdk/bag"
)

// fastPolicy keeps backoff waits out of the test run.
func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   map[Category]bool{CategoryTemporary: true},
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		field    string
		attempt  int
		expected bool
	}{
		{
			name:     "temporary below max retries",
			err:      errors.New("canvas read timed out"),
			field:    bag.FieldCanvasFingerprint,
			attempt:  1,
			expected: true,
		},
		{
			name:     "temporary at max attempts stops",
			err:      errors.New("canvas read timed out"),
			field:    bag.FieldCanvasFingerprint,
			attempt:  3,
			expected: false,
		},
		{
			name:     "permanent never retries",
			err:      errors.New("WebGL not supported"),
			field:    bag.FieldWebGLFingerprint,
			attempt:  1,
			expected: false,
		},
		{
			name:     "security never retries",
			err:      errors.New("read blocked by permissions policy"),
			field:    bag.FieldCanvasFingerprint,
			attempt:  1,
			expected: false,
		},
		{
			name:     "unknown never retries",
			err:      errors.New("something odd"),
			field:    bag.FieldUserAgent,
			attempt:  1,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(WithRetryPolicy(fastPolicy()))
			assert.Equal(t, tt.expected, r.ShouldRetry(tt.err, tt.field, tt.attempt))
		})
	}
}

func TestShouldRetryRecordsHistory(t *testing.T) {
	r := NewResolver(WithRetryPolicy(fastPolicy()))
	r.ShouldRetry(errors.New("gpu busy, try again"), bag.FieldGPURenderer, 1)
	r.ShouldRetry(errors.New("gpu busy, try again"), bag.FieldGPURenderer, 2)

	events := r.History(bag.FieldGPURenderer)
	require.Len(t, events, 2)
	assert.Equal(t, CategoryTemporary, events[0].Category)
	assert.Equal(t, 1, events[0].Attempt)
	assert.Equal(t, 2, events[1].Attempt)
	assert.Nil(t, events[0].Record, "observed errors carry no substitution record")
}

func TestRetryDelay(t *testing.T) {
	r := NewResolver(WithRetryPolicy(RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    2 * time.Second,
		Retryable:   map[Category]bool{CategoryTemporary: true},
	}))

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, 2 * time.Second},
		{50, 2 * time.Second},
		{0, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, r.RetryDelay(tt.attempt))
		})
	}
}

func TestExecuteWithRetrySucceedsFirstTry(t *testing.T) {
	r := NewResolver(WithRetryPolicy(fastPolicy()))

	calls := 0
	out := r.ExecuteWithRetry(context.Background(), bag.FieldUserAgent, func(context.Context) (any, error) {
		calls++
		return "Mozilla/5.0", nil
	})

	require.True(t, out.OK())
	assert.Equal(t, "Mozilla/5.0", out.Value)
	assert.Equal(t, 1, calls)
	assert.Empty(t, r.History(bag.FieldUserAgent))
}

func TestExecuteWithRetryRecoversAfterTransientFailures(t *testing.T) {
	r := NewResolver(WithRetryPolicy(fastPolicy()))

	calls := 0
	out := r.ExecuteWithRetry(context.Background(), bag.FieldWebGLFingerprint, func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("WebGL context lost")
		}
		return "webgl-hash-abc", nil
	})

	require.True(t, out.OK())
	assert.Equal(t, "webgl-hash-abc", out.Value)
	assert.Equal(t, 3, calls)
	assert.Len(t, r.History(bag.FieldWebGLFingerprint), 2)
}

func TestExecuteWithRetryPermanentFailureShortCircuits(t *testing.T) {
	r := NewResolver(WithRetryPolicy(fastPolicy()))

	calls := 0
	out := r.ExecuteWithRetry(context.Background(), bag.FieldAudioFingerprint, func(context.Context) (any, error) {
		calls++
		return nil, errors.New("AudioContext not supported")
	})

	require.False(t, out.OK())
	assert.Equal(t, 1, calls, "permanent failures must not retry")
	assert.Equal(t, "audio_unavailable", out.Value)
	require.NotNil(t, out.Record)
	assert.Equal(t, ReasonPermanentFailure, out.Record.Reason)
	assert.Equal(t, bag.FieldAudioFingerprint, out.Record.Property)
}

func TestExecuteWithRetryExhaustionSubstitutes(t *testing.T) {
	r := NewResolver(WithRetryPolicy(fastPolicy()))

	calls := 0
	out := r.ExecuteWithRetry(context.Background(), bag.FieldCanvasFingerprint, func(context.Context) (any, error) {
		calls++
		return nil, errors.New("canvas read timed out")
	})

	require.False(t, out.OK())
	assert.Equal(t, 3, calls)
	assert.Equal(t, "canvas_unavailable", out.Value)
	require.NotNil(t, out.Record)
	assert.Equal(t, ReasonTemporaryFailure, out.Record.Reason)

	// Three observed errors plus the final substitution.
	assert.Len(t, r.History(bag.FieldCanvasFingerprint), 4)
}

func TestExecuteWithRetryHonorsContextCancellation(t *testing.T) {
	r := NewResolver(WithRetryPolicy(RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Minute, // would hang if cancellation were ignored
		Multiplier:  2.0,
		MaxDelay:    time.Minute,
		Retryable:   map[Category]bool{CategoryTemporary: true},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	done := make(chan Outcome, 1)
	go func() {
		done <- r.ExecuteWithRetry(ctx, bag.FieldFonts, func(context.Context) (any, error) {
			calls++
			return nil, errors.New("font enumeration not ready")
		})
	}()

	select {
	case out := <-done:
		require.False(t, out.OK())
		assert.Equal(t, SentinelNoFonts, out.Value)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("ExecuteWithRetry did not observe context cancellation")
	}
}

func TestExecuteWithRetryDeterministicSubstitute(t *testing.T) {
	fail := func(context.Context) (any, error) {
		return nil, errors.New("plugin scan disabled")
	}

	a := NewResolver(WithRetryPolicy(fastPolicy())).
		ExecuteWithRetry(context.Background(), bag.FieldPlugins, fail)
	b := NewResolver(WithRetryPolicy(fastPolicy())).
		ExecuteWithRetry(context.Background(), bag.FieldPlugins, fail)

	assert.Equal(t, a.Value, b.Value, "same failure must substitute the same sentinel")
}

func TestResolve(t *testing.T) {
	r := NewResolver()

	out := r.Resolve(bag.FieldScreenResolution, "garbage-value", ReasonMalformedData)

	require.False(t, out.OK())
	assert.Equal(t, "0x0", out.Value)
	require.NotNil(t, out.Record)
	assert.Equal(t, bag.FieldScreenResolution, out.Record.Property)
	assert.Equal(t, ReasonMalformedData, out.Record.Reason)
	assert.Equal(t, "garbage-value", out.Record.OriginalValue)
	assert.Equal(t, "0x0", out.Record.FallbackValue)
	assert.False(t, out.Record.Timestamp.IsZero())

	events := r.History(bag.FieldScreenResolution)
	require.Len(t, events, 1)
	assert.Equal(t, CategoryMalformed, events[0].Category)
	require.NotNil(t, events[0].Record)
}

func TestHistoryBounded(t *testing.T) {
	r := NewResolver(WithMaxHistory(5))

	for i := 0; i < 12; i++ {
		r.Resolve(bag.FieldUserAgent, fmt.Sprintf("v%d", i), ReasonMissingProperty)
	}

	events := r.History(bag.FieldUserAgent)
	require.Len(t, events, 5)
	// Oldest entries evicted first.
	assert.Equal(t, "v7", events[0].Record.OriginalValue)
	assert.Equal(t, "v11", events[4].Record.OriginalValue)
}

func TestHistoryReturnsCopy(t *testing.T) {
	r := NewResolver()
	r.Resolve(bag.FieldPlatform, nil, ReasonMissingProperty)

	events := r.History(bag.FieldPlatform)
	require.Len(t, events, 1)
	events[0].Field = "mutated"

	assert.Equal(t, bag.FieldPlatform, r.History(bag.FieldPlatform)[0].Field)
}

func TestHistoryPerFieldIsolation(t *testing.T) {
	r := NewResolver()
	r.Resolve(bag.FieldUserAgent, nil, ReasonMissingProperty)
	r.Resolve(bag.FieldPlatform, nil, ReasonMissingProperty)
	r.Resolve(bag.FieldPlatform, nil, ReasonMissingProperty)

	assert.Len(t, r.History(bag.FieldUserAgent), 1)
	assert.Len(t, r.History(bag.FieldPlatform), 2)
	assert.Empty(t, r.History(bag.FieldFonts))
}

func TestHistoryConcurrentAccess(t *testing.T) {
	r := NewResolver(WithMaxHistory(50))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Resolve(bag.FieldWebGLFingerprint, nil, ReasonTemporaryFailure)
				r.History(bag.FieldWebGLFingerprint)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, r.History(bag.FieldWebGLFingerprint), 50)
}

func TestSentinelDefaults(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		field    string
		expected any
	}{
		{bag.FieldUserAgent, "user_agent_unavailable"},
		{bag.FieldPlatform, "platform_unavailable"},
		{bag.FieldScreenResolution, "0x0"},
		{bag.FieldColorDepth, float64(0)},
		{bag.FieldPixelRatio, float64(0)},
		{bag.FieldHardwareConcurrency, float64(0)},
		{bag.FieldDeviceMemory, float64(0)},
		{bag.FieldGPUVendor, "gpu_vendor_unavailable"},
		{bag.FieldGPURenderer, "gpu_renderer_unavailable"},
		{bag.FieldWebGLFingerprint, "webgl_unavailable"},
		{bag.FieldCanvasFingerprint, "canvas_unavailable"},
		{bag.FieldAudioFingerprint, "audio_unavailable"},
		{bag.FieldFonts, SentinelNoFonts},
		{bag.FieldPlugins, "no_plugins_detected"},
		{bag.FieldMathConstants, "math_constants_unavailable"},
		{bag.FieldTouchSupport, "touch_support_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Sentinel(tt.field))
		})
	}
}

func TestSentinelDerivedForUnknownField(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "batteryLevel_unavailable", r.Sentinel("batteryLevel"))
}

func TestSentinelOverrides(t *testing.T) {
	r := NewResolver(
		WithSentinel(bag.FieldUserAgent, "ua_redacted"),
		WithSentinels(map[string]any{
			bag.FieldFonts:   "fonts_redacted",
			bag.FieldPlugins: "plugins_redacted",
		}),
	)

	assert.Equal(t, "ua_redacted", r.Sentinel(bag.FieldUserAgent))
	assert.Equal(t, "fonts_redacted", r.Sentinel(bag.FieldFonts))
	assert.Equal(t, "plugins_redacted", r.Sentinel(bag.FieldPlugins))
	// Untouched fields keep their defaults.
	assert.Equal(t, "platform_unavailable", r.Sentinel(bag.FieldPlatform))
}

func TestOutcomeOK(t *testing.T) {
	assert.True(t, Ok("value").OK())
	assert.False(t, Outcome{Value: "x", Record: &Record{}}.OK())
}
