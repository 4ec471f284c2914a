package sdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stableprint/sdk/bag"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestInstrumentationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	e := newTestEngine(t, WithMeterProvider(mp))

	mustGenerate(t, e, baseBag())
	degraded := baseBag()
	delete(degraded, bag.FieldCanvasFingerprint)
	mustGenerate(t, e, degraded)

	byName := collectMetrics(t, reader)

	count, ok := byName["fingerprint.hash.count"]
	require.True(t, ok, "hash counter should be exported")
	sum, ok := count.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var hashes int64
	var sawDegraded bool
	for _, dp := range sum.DataPoints {
		hashes += dp.Value
		if v, found := dp.Attributes.Value(attribute.Key("degraded")); found && v.AsBool() {
			sawDegraded = true
		}
	}
	assert.Equal(t, int64(2), hashes)
	assert.True(t, sawDegraded, "run with a missing field should be tagged degraded")

	duration, ok := byName["fingerprint.hash.duration"]
	require.True(t, ok, "duration histogram should be exported")
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var samples uint64
	for _, dp := range hist.DataPoints {
		samples += dp.Count
	}
	assert.Equal(t, uint64(2), samples)

	fallbacks, ok := byName["fingerprint.fallback.count"]
	require.True(t, ok, "fallback counter should be exported")
	fsum, ok := fallbacks.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var substituted int64
	for _, dp := range fsum.DataPoints {
		substituted += dp.Value
	}
	assert.Equal(t, int64(1), substituted, "one sentinel substitution expected")
}

func TestInstrumentationFallbackCounterSilentWhenClean(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	e := newTestEngine(t, WithMeterProvider(mp))
	mustGenerate(t, e, baseBag())

	byName := collectMetrics(t, reader)
	if m, ok := byName["fingerprint.fallback.count"]; ok {
		sum, isSum := m.Data.(metricdata.Sum[int64])
		require.True(t, isSum)
		for _, dp := range sum.DataPoints {
			assert.Zero(t, dp.Value)
		}
	}
}

func TestInstrumentationSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e := newTestEngine(t, WithTracerProvider(tp))

	mustGenerate(t, e, baseBag())
	_, err := e.GenerateWithDebug(context.Background(), baseBag())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "fingerprint.generate", spans[0].Name())
	assert.Equal(t, "fingerprint.generate_debug", spans[1].Name())
}

func TestInstrumentationDisabledByDefault(t *testing.T) {
	e := newTestEngine(t)
	require.NotNil(t, e.inst)
	assert.Nil(t, e.inst.tracer)

	// A nil instruments value is the documented no-op form.
	var inst *instruments
	ctx, end := inst.startSpan(context.Background(), "noop")
	end()
	inst.recordHash(ctx, 0, 3)
}
