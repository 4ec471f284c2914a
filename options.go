package sdk

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stableprint/sdk/canonical"
	"github.com/stableprint/sdk/profile"
	"github.com/stableprint/sdk/recorder"
)

// Option configures an Engine during New. Options are applied in order;
// explicitly supplied components win over profile-derived ones regardless
// of that order.
type Option func(*Engine) error

// WithLogger sets the structured logger for engine operations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return NewConfigurationError("WithLogger", fmt.Errorf("logger is nil: %w", ErrInvalidConfig))
		}
		e.logger = logger
		return nil
	}
}

// WithProfile sets the canonicalization profile. The profile is validated
// here; the canonicalizer, recorder, and comparator it describes are built
// during New unless explicitly overridden.
func WithProfile(p *profile.Profile) Option {
	return func(e *Engine) error {
		if p == nil {
			return NewConfigurationError("WithProfile", fmt.Errorf("profile is nil: %w", ErrInvalidConfig))
		}
		if err := p.Validate(); err != nil {
			return NewConfigurationError("WithProfile", err)
		}
		e.profile = p
		return nil
	}
}

// WithCanonicalizer replaces the profile-derived canonicalizer.
func WithCanonicalizer(c *canonical.Canonicalizer) Option {
	return func(e *Engine) error {
		if c == nil {
			return NewConfigurationError("WithCanonicalizer", fmt.Errorf("canonicalizer is nil: %w", ErrInvalidConfig))
		}
		e.canon = c
		return nil
	}
}

// WithRecorder replaces the profile-derived debug recorder.
func WithRecorder(r *recorder.Recorder) Option {
	return func(e *Engine) error {
		if r == nil {
			return NewConfigurationError("WithRecorder", fmt.Errorf("recorder is nil: %w", ErrInvalidConfig))
		}
		e.rec = r
		return nil
	}
}

// WithSecurityGate installs an inspection gate that every observation must
// clear before hashing.
func WithSecurityGate(g SecurityGate) Option {
	return func(e *Engine) error {
		e.gate = g
		return nil
	}
}

// WithMeterProvider enables metric instrumentation through the given
// provider. Without it, metrics are a no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) error {
		e.meterProvider = mp
		return nil
	}
}

// WithTracerProvider enables span creation through the given provider.
// Without it, tracing is a no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) error {
		e.tracerProvider = tp
		return nil
	}
}
