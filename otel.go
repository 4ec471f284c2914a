package sdk

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instruments holds the OpenTelemetry instruments for the engine. They are
// created once during option application and reused for every hash. A nil
// receiver is a no-op, so the hot path never branches on configuration.
type instruments struct {
	// hashDuration records end-to-end hash latency in milliseconds.
	hashDuration metric.Float64Histogram

	// hashCount increments per digest produced.
	hashCount metric.Int64Counter

	// fallbackCount increments per sentinel substitution applied.
	fallbackCount metric.Int64Counter

	tracer trace.Tracer
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*instruments, error) {
	inst := &instruments{}
	if tp != nil {
		inst.tracer = tp.Tracer("stableprint")
	}
	if mp == nil {
		return inst, nil
	}

	meter := mp.Meter("stableprint")
	var err error

	inst.hashDuration, err = meter.Float64Histogram(
		"fingerprint.hash.duration",
		metric.WithDescription("End-to-end fingerprint hash latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create hash duration histogram: %w", err)
	}

	inst.hashCount, err = meter.Int64Counter(
		"fingerprint.hash.count",
		metric.WithDescription("Number of fingerprint digests produced"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create hash counter: %w", err)
	}

	inst.fallbackCount, err = meter.Int64Counter(
		"fingerprint.fallback.count",
		metric.WithDescription("Number of sentinel substitutions applied"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create fallback counter: %w", err)
	}

	return inst, nil
}

// startSpan opens a span when a tracer is configured; the returned end
// function is always safe to defer.
func (i *instruments) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if i == nil || i.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := i.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}

// recordHash captures latency and counters for one digest.
func (i *instruments) recordHash(ctx context.Context, d time.Duration, fallbacks int) {
	if i == nil {
		return
	}
	degraded := attribute.Bool("degraded", fallbacks > 0)
	if i.hashDuration != nil {
		i.hashDuration.Record(ctx, float64(d.Microseconds())/1000.0, metric.WithAttributes(degraded))
	}
	if i.hashCount != nil {
		i.hashCount.Add(ctx, 1, metric.WithAttributes(degraded))
	}
	if i.fallbackCount != nil && fallbacks > 0 {
		i.fallbackCount.Add(ctx, int64(fallbacks))
	}
}
