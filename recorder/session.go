package recorder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one leveled log line recorded during a session.
type Entry struct {
	Level     Level     `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Step is one normalization action applied to a field, with the value
// before and after.
type Step struct {
	Type      StepType       `json:"type"`
	Property  string         `json:"property"`
	Before    any            `json:"before,omitempty"`
	After     any            `json:"after,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Summary is the frozen account of a finished session.
type Summary struct {
	SessionID        string           `json:"session_id"`
	StartedAt        time.Time        `json:"started_at"`
	EndedAt          time.Time        `json:"ended_at"`
	Duration         time.Duration    `json:"duration"`
	Entries          int              `json:"entries"`
	Steps            int              `json:"steps"`
	StepCounts       map[StepType]int `json:"step_counts,omitempty"`
	FallbacksApplied int              `json:"fallbacks_applied"`
	ValidationIssues int              `json:"validation_issues"`
	Dropped          int              `json:"dropped,omitempty"`
}

// Export is the plain structured form of a session for embedding in debug
// results or writing to disk.
type Export struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Entries   []Entry   `json:"entries,omitempty"`
	Steps     []Step    `json:"steps,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
}

// CategoryValidation is the log category the summary counts as validation
// issues.
const CategoryValidation = "validation"

// Session accumulates one computation's debug trail. All methods are safe
// on a nil receiver and after End; writes are simply dropped.
type Session struct {
	recorder  *Recorder
	id        string
	startedAt time.Time
	level     Level
	budget    int

	mu      sync.Mutex
	endedAt time.Time
	entries []Entry
	steps   []Step
	dropped int
	summary *Summary
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.startedAt
}

// Log records one leveled entry. Entries below the recorder's threshold are
// filtered; entries beyond the session budget are counted but not stored.
func (s *Session) Log(level Level, category, message string) {
	if s == nil || !level.AtLeast(s.level) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return
	}
	if len(s.entries)+len(s.steps) >= s.budget {
		s.dropped++
		return
	}
	s.entries = append(s.entries, Entry{
		Level:     level,
		Category:  category,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Logf records one leveled entry with a formatted message.
func (s *Session) Logf(level Level, category, format string, args ...any) {
	if s == nil {
		return
	}
	s.Log(level, category, fmt.Sprintf(format, args...))
}

// LogStep records one normalization step. Steps share the entry budget but
// bypass the level threshold: they are the trace a debug run exists for.
func (s *Session) LogStep(typ StepType, property string, before, after any, meta map[string]any) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return
	}
	if len(s.entries)+len(s.steps) >= s.budget {
		s.dropped++
		return
	}
	s.steps = append(s.steps, Step{
		Type:      typ,
		Property:  property,
		Before:    before,
		After:     after,
		Meta:      meta,
		Timestamp: time.Now().UTC(),
	})
}

// Ended reports whether the session has been closed.
func (s *Session) Ended() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary != nil
}

// End freezes the session, computes its summary, and releases the slot on
// the owning recorder. Ending twice returns the same summary.
func (s *Session) End() Summary {
	if s == nil {
		return Summary{}
	}

	s.mu.Lock()
	if s.summary == nil {
		s.endedAt = time.Now().UTC()
		s.summary = s.summarizeLocked()
	}
	summary := *s.summary
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.release(s)
	}
	return summary
}

func (s *Session) summarizeLocked() *Summary {
	counts := make(map[StepType]int, len(s.steps))
	fallbacks := 0
	for _, st := range s.steps {
		counts[st.Type]++
		if st.Type == StepFallback {
			fallbacks++
		}
	}

	validation := counts[StepValidation]
	for _, e := range s.entries {
		if e.Category == CategoryValidation {
			validation++
		}
	}

	return &Summary{
		SessionID:        s.id,
		StartedAt:        s.startedAt,
		EndedAt:          s.endedAt,
		Duration:         s.endedAt.Sub(s.startedAt),
		Entries:          len(s.entries),
		Steps:            len(s.steps),
		StepCounts:       counts,
		FallbacksApplied: fallbacks,
		ValidationIssues: validation,
		Dropped:          s.dropped,
	}
}

// Export returns the session's recorded data as a plain structure. For an
// open session the summary is nil and the slices reflect the state so far.
func (s *Session) Export() Export {
	if s == nil {
		return Export{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Export{
		SessionID: s.id,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		Entries:   append([]Entry(nil), s.entries...),
		Steps:     append([]Step(nil), s.steps...),
	}
	if s.summary != nil {
		summary := *s.summary
		out.Summary = &summary
	}
	return out
}

// Report renders a short human-readable digest of the session.
func (s *Session) Report() string {
	if s == nil {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "session %s", s.id)
	if !s.endedAt.IsZero() {
		fmt.Fprintf(&b, " (%s)", s.endedAt.Sub(s.startedAt).Round(time.Microsecond))
	}
	b.WriteByte('\n')

	types := make([]string, 0, 8)
	counts := make(map[string]int)
	for _, st := range s.steps {
		key := string(st.Type)
		if counts[key] == 0 {
			types = append(types, key)
		}
		counts[key]++
	}
	sort.Strings(types)

	fmt.Fprintf(&b, "  steps: %d", len(s.steps))
	for i, typ := range types {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %d", typ, counts[typ])
	}
	if len(types) > 0 {
		b.WriteString(")")
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "  log entries: %d\n", len(s.entries))
	if s.dropped > 0 {
		fmt.Fprintf(&b, "  dropped over budget: %d\n", s.dropped)
	}
	return b.String()
}
