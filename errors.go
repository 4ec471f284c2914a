package sdk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common SDK error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates the provided configuration is invalid or
	// incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSecurityViolation indicates the security gate rejected an
	// observation before hashing.
	ErrSecurityViolation = errors.New("security violation")

	// ErrStoreUnavailable indicates the observation store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNodeNotFound indicates the requested fleet node is not registered.
	ErrNodeNotFound = errors.New("node not found")
)

// Error kinds categorize errors by their type.
const (
	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindSecurity represents rejections by the security gate.
	KindSecurity = "security"

	// KindStore represents errors from the observation store.
	KindStore = "store"

	// KindRegistry represents errors from the fleet registry.
	KindRegistry = "registry"

	// KindParse represents errors while parsing observation input.
	KindParse = "parse"

	// KindInternal represents internal SDK errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// context about the operation that failed and the category of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g., "Engine.Generate").
	Op string

	// Kind categorizes the error (e.g., KindSecurity, KindStore).
	Kind string

	// Field is the observation field involved, when one is.
	Field string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional debugging information (optional).
	Context map[string]any
}

// Error implements the error interface, returning a formatted message that
// includes the operation, kind, field, and underlying error.
func (e *Error) Error() string {
	field := ""
	if e.Field != "" {
		field = fmt.Sprintf(" field=%s", e.Field)
	}
	if e.Err == nil {
		return fmt.Sprintf("sdk: %s: %s%s", e.Op, e.Kind, field)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("sdk: %s (%s)%s: %v [context: %+v]", e.Op, e.Kind, field, e.Err, e.Context)
	}
	return fmt.Sprintf("sdk: %s (%s)%s: %v", e.Op, e.Kind, field, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on the
// underlying error or a kind-only template Error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context added.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewSecurityError creates a new Error with KindSecurity for a field.
func NewSecurityError(op, field string, err error) *Error {
	return &Error{Op: op, Kind: KindSecurity, Field: field, Err: err}
}

// NewStoreError creates a new Error with KindStore.
func NewStoreError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStore, Err: err}
}

// NewRegistryError creates a new Error with KindRegistry.
func NewRegistryError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindRegistry, Err: err}
}

// NewParseError creates a new Error with KindParse.
func NewParseError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindParse, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements so cleanup
// errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g.,
// "store", "registry client"). If logger is nil, slog.Default() is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
