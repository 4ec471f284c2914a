// Package recorder captures debug sessions around fingerprint computations.
//
// A Recorder hands out at most one active Session at a time. The session
// accumulates leveled log entries and normalization steps under a shared
// entry budget, then freezes into a Summary when ended. A nil *Session is a
// valid no-op sink, so pipeline code can thread the handle through
// unconditionally and only pay for recording when a debug run asked for it.
package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level grades log entries so a session can be tuned down to warnings and
// errors on noisy pipelines.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// AllLevels returns every defined level, least severe first.
func AllLevels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// Weight returns the numeric rank of a level for threshold comparison.
// Unknown levels rank below debug so they are always filtered.
func (l Level) Weight() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return -1
	}
}

// IsValid returns true if the level is one of the defined constants.
func (l Level) IsValid() bool {
	return l.Weight() >= 0
}

// AtLeast reports whether l meets or exceeds the threshold min.
func (l Level) AtLeast(min Level) bool {
	return l.Weight() >= min.Weight()
}

// StepType names one class of normalization work applied to a field value.
type StepType string

const (
	// StepNormalizeString records whitespace collapse and trimming.
	StepNormalizeString StepType = "normalize_string"

	// StepNormalizeNumber records rounding to the fixed precision.
	StepNormalizeNumber StepType = "normalize_number"

	// StepStripMetadata records removal of driver and version tokens from
	// GPU strings.
	StepStripMetadata StepType = "strip_metadata"

	// StepCoerceValue records a shape coercion, such as a resolution object
	// rewritten to "WxH" text.
	StepCoerceValue StepType = "coerce_value"

	// StepSortList records deduplication and ordering of a list field.
	StepSortList StepType = "sort_list"

	// StepFilterList records entries dropped from a list field.
	StepFilterList StepType = "filter_list"

	// StepDegradeBlock records a composite block replaced by its named
	// placeholder because it carried an error marker.
	StepDegradeBlock StepType = "degrade_block"

	// StepExcludeField records a field left out of the canonical projection.
	StepExcludeField StepType = "exclude_field"

	// StepFallback records a sentinel substitution.
	StepFallback StepType = "fallback"

	// StepValidation records a schema finding observed during computation.
	StepValidation StepType = "validation"
)

// DefaultMaxEntries bounds a session's combined entry and step count.
const DefaultMaxEntries = 1000

// ErrActiveSession is returned by Start while a prior session is still open.
var ErrActiveSession = errors.New("recorder: a session is already active")

// Recorder creates debug sessions. The zero value is not usable; call New.
type Recorder struct {
	level      Level
	maxEntries int

	mu     sync.Mutex
	active *Session
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLevel sets the minimum level a log entry needs to be kept.
func WithLevel(l Level) Option {
	return func(r *Recorder) {
		if l.IsValid() {
			r.level = l
		}
	}
}

// WithMaxEntries changes the combined entry and step budget per session.
func WithMaxEntries(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.maxEntries = n
		}
	}
}

// New builds a Recorder that keeps everything down to debug level and caps
// sessions at DefaultMaxEntries, then applies options.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		level:      LevelDebug,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a new session. Only one session may be active per Recorder;
// starting a second before the first ends is a caller bug and fails
// immediately with ErrActiveSession.
func (r *Recorder) Start() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && !r.active.Ended() {
		return nil, ErrActiveSession
	}

	s := &Session{
		recorder:  r,
		id:        uuid.New().String(),
		startedAt: time.Now().UTC(),
		level:     r.level,
		budget:    r.maxEntries,
	}
	r.active = s
	return s, nil
}

// Active returns the session currently open on this recorder, or nil.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Ended() {
		return nil
	}
	return r.active
}

// release clears the active slot once a session ends.
func (r *Recorder) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}
