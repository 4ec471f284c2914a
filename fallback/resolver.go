package fallback

import (
	"context"
	"math"
	"sync"
	"time"
)

// Record documents one field substitution: what was replaced, with what,
// and why. Records surface in debug output and in the resolver's bounded
// per-field history.
type Record struct {
	Property      string    `json:"property"`
	Reason        Reason    `json:"reason"`
	OriginalValue any       `json:"original_value,omitempty"`
	FallbackValue any       `json:"fallback_value"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event is one entry in a field's history: either an observed collection
// error (Record nil) or an applied substitution (Record set).
type Event struct {
	Field     string    `json:"field"`
	Message   string    `json:"message,omitempty"`
	Category  Category  `json:"category"`
	Attempt   int       `json:"attempt,omitempty"`
	Record    *Record   `json:"record,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is the tagged result of resolving one field: the value to
// canonicalize plus, when the real signal was replaced, the substitution
// record. Record == nil means the value is the genuine signal.
type Outcome struct {
	Value  any     `json:"value"`
	Record *Record `json:"record,omitempty"`
}

// Ok wraps a genuine signal value.
func Ok(v any) Outcome {
	return Outcome{Value: v}
}

// OK reports whether the outcome carries the genuine signal rather than a
// substitute.
func (o Outcome) OK() bool {
	return o.Record == nil
}

// RetryPolicy bounds how collection closures are retried before the
// sentinel takes over.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls to the collection closure,
	// including the first.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// Multiplier grows the delay exponentially per attempt.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// MaxDelay caps the backoff.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Retryable is the set of error categories worth retrying.
	Retryable map[Category]bool `json:"retryable" yaml:"retryable"`
}

// DefaultRetryPolicy retries temporary failures three times with a
// 100ms/2x/2s backoff curve.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    2 * time.Second,
		Retryable:   map[Category]bool{CategoryTemporary: true},
	}
}

// DefaultMaxHistory bounds the per-field event history.
const DefaultMaxHistory = 100

// Resolver owns the sentinels, the retry policy, and the bounded per-field
// history of errors and substitutions. A Resolver is safe for concurrent
// use; history append and trim happen under one lock.
type Resolver struct {
	policy     RetryPolicy
	sentinels  map[string]any
	maxHistory int

	mu      sync.Mutex
	history map[string][]Event
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Resolver) {
		r.policy = p
	}
}

// WithSentinel overrides the substitute value for one field.
func WithSentinel(field string, value any) Option {
	return func(r *Resolver) {
		r.sentinels[field] = value
	}
}

// WithSentinels overrides substitute values in bulk.
func WithSentinels(sentinels map[string]any) Option {
	return func(r *Resolver) {
		for k, v := range sentinels {
			r.sentinels[k] = v
		}
	}
}

// WithMaxHistory changes the per-field history bound.
func WithMaxHistory(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHistory = n
		}
	}
}

// NewResolver builds a resolver with default sentinels and policy, then
// applies options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		policy:     DefaultRetryPolicy(),
		sentinels:  defaultSentinels(),
		maxHistory: DefaultMaxHistory,
		history:    make(map[string][]Event),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.MaxAttempts < 1 {
		r.policy.MaxAttempts = 1
	}
	return r
}

// Policy returns the active retry policy.
func (r *Resolver) Policy() RetryPolicy {
	return r.policy
}

// ShouldRetry decides whether a failed collection attempt is worth
// repeating. The error is recorded into the field's history regardless of
// the decision. Attempts are 1-based; once attempt reaches MaxAttempts the
// answer is always no.
func (r *Resolver) ShouldRetry(err error, field string, attempt int) bool {
	category := Categorize(err, field)
	r.record(Event{
		Field:     field,
		Message:   errMessage(err),
		Category:  category,
		Attempt:   attempt,
		Timestamp: time.Now().UTC(),
	})

	if attempt >= r.policy.MaxAttempts {
		return false
	}
	return r.policy.Retryable[category]
}

// RetryDelay computes the exponential backoff for a 1-based attempt:
// min(base·multiplier^(attempt−1), maxDelay).
func (r *Resolver) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(r.policy.BaseDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1)))
	if d > r.policy.MaxDelay || d < 0 {
		d = r.policy.MaxDelay
	}
	return d
}

// ExecuteWithRetry runs a collection closure under the retry policy. On
// success the genuine value is returned; on exhaustion, a non-retryable
// category, or context cancellation, the field's sentinel is returned with
// a Record tagged by the final error category. The closure's error never
// propagates: one failing signal must not abort the whole computation.
func (r *Resolver) ExecuteWithRetry(ctx context.Context, field string, fn func(context.Context) (any, error)) Outcome {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return Ok(v)
		}
		lastErr = err

		if !r.ShouldRetry(err, field, attempt) {
			break
		}

		timer := time.NewTimer(r.RetryDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return r.substitute(field, nil, lastErr)
		case <-timer.C:
		}
	}

	return r.substitute(field, nil, lastErr)
}

// Resolve substitutes a field directly, without retries. The canonicalizer
// uses it for absent, malformed, and validation-rejected values where
// retrying cannot help.
func (r *Resolver) Resolve(field string, original any, reason Reason) Outcome {
	sentinel := r.Sentinel(field)
	rec := &Record{
		Property:      field,
		Reason:        reason,
		OriginalValue: original,
		FallbackValue: sentinel,
		Timestamp:     time.Now().UTC(),
	}
	r.record(Event{
		Field:     field,
		Category:  categoryForReason(reason),
		Record:    rec,
		Timestamp: rec.Timestamp,
	})
	return Outcome{Value: sentinel, Record: rec}
}

// History returns a copy of the recorded events for a field, oldest first.
func (r *Resolver) History(field string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.history[field]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

func (r *Resolver) substitute(field string, original any, err error) Outcome {
	category := Categorize(err, field)
	sentinel := r.Sentinel(field)
	rec := &Record{
		Property:      field,
		Reason:        ReasonForCategory(category),
		OriginalValue: original,
		FallbackValue: sentinel,
		Timestamp:     time.Now().UTC(),
	}
	r.record(Event{
		Field:     field,
		Message:   errMessage(err),
		Category:  category,
		Record:    rec,
		Timestamp: rec.Timestamp,
	})
	return Outcome{Value: sentinel, Record: rec}
}

// record appends under the lock and trims oldest-first to the bound.
func (r *Resolver) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.history[e.Field], e)
	if len(events) > r.maxHistory {
		events = events[len(events)-r.maxHistory:]
	}
	r.history[e.Field] = events
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func categoryForReason(reason Reason) Category {
	switch reason {
	case ReasonTemporaryFailure:
		return CategoryTemporary
	case ReasonMalformedData:
		return CategoryMalformed
	case ReasonValidationFailed:
		return CategorySecurity
	case ReasonMissingProperty:
		return CategoryUnknown
	default:
		return CategoryPermanent
	}
}
