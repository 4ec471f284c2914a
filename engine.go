package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/canonical"
	"github.com/stableprint/sdk/diff"
	"github.com/stableprint/sdk/fallback"
	"github.com/stableprint/sdk/profile"
	"github.com/stableprint/sdk/recorder"
	"github.com/stableprint/sdk/schema"
	"github.com/stableprint/sdk/stability"
	"github.com/stableprint/sdk/troubleshoot"
)

// SecurityGate inspects raw observations before hashing. A non-nil
// Violation aborts the pipeline: tampered input must never reach the
// digest.
type SecurityGate interface {
	Inspect(ctx context.Context, b bag.Bag) *Violation
}

// Violation reports why the gate rejected an observation.
type Violation struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (v *Violation) Error() string {
	if v.Field == "" {
		return fmt.Sprintf("security violation: %s", v.Reason)
	}
	return fmt.Sprintf("security violation on %s: %s", v.Field, v.Reason)
}

// Is lets errors.Is match any Violation against ErrSecurityViolation.
func (v *Violation) Is(target error) bool {
	return target == ErrSecurityViolation
}

// Engine is the fingerprinting facade: one configuration shared by
// canonicalization, hashing, comparison, and debugging. It is safe for
// concurrent use; only GenerateWithDebug serializes, because a debug
// session records global pipeline state.
type Engine struct {
	logger  *slog.Logger
	profile *profile.Profile
	canon   *canonical.Canonicalizer
	cmp     *diff.Comparator
	rec     *recorder.Recorder
	gate    SecurityGate
	inst    *instruments

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// New creates an Engine. With no options it runs the stock profile.
//
// Example:
//
//	engine, err := sdk.New(
//	    sdk.WithProfile(prof),
//	    sdk.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	digest, err := engine.Generate(ctx, observation)
func New(opts ...Option) (*Engine, error) {
	e := &Engine{profile: profile.Default()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if e.canon == nil {
		canon, err := e.profile.Canonicalizer()
		if err != nil {
			return nil, NewConfigurationError("sdk.New", err)
		}
		e.canon = canon
	}
	if e.rec == nil {
		e.rec = e.profile.NewRecorder()
	}

	grading, err := e.profile.GradingOptions()
	if err != nil {
		return nil, NewConfigurationError("sdk.New", err)
	}
	e.cmp = diff.NewComparator(append(grading, diff.WithCanonicalizer(e.canon))...)

	inst, err := newInstruments(e.meterProvider, e.tracerProvider)
	if err != nil {
		return nil, NewConfigurationError("sdk.New", err)
	}
	e.inst = inst

	return e, nil
}

// Generate canonicalizes an observation and returns its digest: 64
// lowercase hex characters. Equal observations up to declared noise yield
// equal digests; missing or malformed fields degrade to sentinels rather
// than failing.
func (e *Engine) Generate(ctx context.Context, b bag.Bag) (string, error) {
	ctx, end := e.inst.startSpan(ctx, "fingerprint.generate")
	defer end()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return "", NewInternalError("Engine.Generate", err)
	}
	if e.gate != nil {
		if v := e.gate.Inspect(ctx, b); v != nil {
			e.logger.Warn("observation rejected",
				"field", v.Field,
				"reason", v.Reason)
			return "", NewSecurityError("Engine.Generate", v.Field, v)
		}
	}

	form := e.canon.Canonicalize(b, nil)
	digest := form.Digest()

	e.inst.recordHash(ctx, time.Since(start), len(form.Fallbacks()))
	e.logger.Debug("fingerprint generated",
		"digest", digest,
		"fallbacks", len(form.Fallbacks()),
		"duration_ms", time.Since(start).Milliseconds())
	return digest, nil
}

// DebugResult is the full intermediate state of one hash.
type DebugResult struct {
	Digest string `json:"digest"`

	// Serialized is the exact string the digest was computed over.
	Serialized string `json:"serialized"`

	CanonicalForm canonical.Form `json:"canonical_form"`

	// Fallbacks maps each degraded field to its substitution record.
	Fallbacks map[string]*fallback.Record `json:"fallbacks,omitempty"`

	// ValidationIssues are advisory; they never block hashing.
	ValidationIssues []schema.Issue `json:"validation_issues,omitempty"`

	// Session is the full recorded trail: every entry, every step, and
	// the frozen summary.
	Session        recorder.Export `json:"session"`
	ProcessingTime time.Duration   `json:"processing_time"`
}

// GenerateWithDebug hashes like Generate while recording every
// normalization step, fallback, and validation issue into a session
// summary. One debug session runs at a time; a second concurrent call
// fails with recorder.ErrActiveSession.
func (e *Engine) GenerateWithDebug(ctx context.Context, b bag.Bag) (*DebugResult, error) {
	ctx, end := e.inst.startSpan(ctx, "fingerprint.generate_debug")
	defer end()
	start := time.Now()

	sess, err := e.rec.Start()
	if err != nil {
		return nil, NewInternalError("Engine.GenerateWithDebug", err)
	}

	issues := schema.Validate(b)
	for _, issue := range issues {
		sess.Log(recorder.LevelWarn, recorder.CategoryValidation, issue.String())
	}

	if e.gate != nil {
		if v := e.gate.Inspect(ctx, b); v != nil {
			sess.Log(recorder.LevelError, "security", v.Error())
			sess.End()
			return nil, NewSecurityError("Engine.GenerateWithDebug", v.Field, v)
		}
	}

	form := e.canon.Canonicalize(b, sess)
	digest := form.Digest()
	serialized := form.Render()
	sess.End()

	e.inst.recordHash(ctx, time.Since(start), len(form.Fallbacks()))
	return &DebugResult{
		Digest:           digest,
		Serialized:       serialized,
		CanonicalForm:    form,
		Fallbacks:        form.Fallbacks(),
		ValidationIssues: issues,
		Session:          sess.Export(),
		ProcessingTime:   time.Since(start),
	}, nil
}

// Compare explains how two observations diverge, with hash-impact verdicts
// computed by this engine's own canonicalizer.
func (e *Engine) Compare(a, b bag.Bag) *diff.Report {
	return e.cmp.Compare(a, b)
}

// Diagnose runs comparison plus root-cause analysis for one pair.
func (e *Engine) Diagnose(a, b bag.Bag) *troubleshoot.Diagnosis {
	return troubleshoot.NewDiagnoser(troubleshoot.WithComparator(e.cmp)).Diagnose(a, b)
}

// Analyze measures hash stability across a population of observations of
// the same device.
func (e *Engine) Analyze(ctx context.Context, inputs []bag.Bag) (*stability.Report, error) {
	analyzer, err := stability.NewAnalyzer(e,
		stability.WithComparator(e.cmp),
		stability.WithLogger(e.logger),
	)
	if err != nil {
		return nil, NewInternalError("Engine.Analyze", err)
	}
	return analyzer.Analyze(ctx, inputs)
}

// RunSuite executes a regression suite against this engine's hashing.
func (e *Engine) RunSuite(ctx context.Context, suite *troubleshoot.Suite) (*troubleshoot.SuiteResult, error) {
	return troubleshoot.RunSuite(ctx, suite, e)
}

// Profile returns the engine's profile.
func (e *Engine) Profile() *profile.Profile {
	return e.profile
}

// Recorder returns the engine's debug recorder.
func (e *Engine) Recorder() *recorder.Recorder {
	return e.rec
}

// Canonicalizer returns the engine's canonicalizer.
func (e *Engine) Canonicalizer() *canonical.Canonicalizer {
	return e.canon
}

// Comparator returns the engine's comparator.
func (e *Engine) Comparator() *diff.Comparator {
	return e.cmp
}
