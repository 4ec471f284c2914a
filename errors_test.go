package sdk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestSentinelErrors verifies that all sentinel errors are defined correctly.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "ErrInvalidConfig",
			err:  ErrInvalidConfig,
			want: "invalid configuration",
		},
		{
			name: "ErrSecurityViolation",
			err:  ErrSecurityViolation,
			want: "security violation",
		},
		{
			name: "ErrStoreUnavailable",
			err:  ErrStoreUnavailable,
			want: "store unavailable",
		},
		{
			name: "ErrNodeNotFound",
			err:  ErrNodeNotFound,
			want: "node not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("sentinel error %s is nil", tt.name)
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("error message = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestErrorError verifies the Error() method formatting.
func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "basic error",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			want: "sdk: Engine.Generate (security): security violation",
		},
		{
			name: "error with field",
			err: &Error{
				Op:    "Engine.Generate",
				Kind:  KindSecurity,
				Field: "userAgent",
				Err:   errors.New("length exceeds limit"),
			},
			want: "sdk: Engine.Generate (security) field=userAgent: length exceeds limit",
		},
		{
			name: "error with context",
			err: &Error{
				Op:   "Store.Append",
				Kind: KindStore,
				Err:  ErrStoreUnavailable,
				Context: map[string]any{
					"key": "device-7",
				},
			},
			want: "sdk: Store.Append (store): store unavailable [context:",
		},
		{
			name: "error without underlying error",
			err: &Error{
				Op:   "Profile.Validate",
				Kind: KindConfiguration,
			},
			want: "sdk: Profile.Validate: configuration",
		},
		{
			name: "error with wrapped error",
			err: &Error{
				Op:   "sdk.New",
				Kind: KindConfiguration,
				Err:  fmt.Errorf("failed to load profile: %w", ErrInvalidConfig),
			},
			want: "sdk: sdk.New (configuration): failed to load profile: invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}

// TestErrorUnwrap verifies the Unwrap() method.
func TestErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := &Error{
		Op:   "Test.Operation",
		Kind: KindInternal,
		Err:  underlyingErr,
	}

	unwrapped := err.Unwrap()
	if unwrapped != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlyingErr)
	}

	// Test with nil underlying error
	errNil := &Error{
		Op:   "Test.Operation",
		Kind: KindInternal,
	}
	if unwrapped := errNil.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() with nil Err = %v, want nil", unwrapped)
	}
}

// TestErrorIs verifies the Is() method and errors.Is() compatibility.
func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name: "matches underlying sentinel error",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: ErrSecurityViolation,
			want:   true,
		},
		{
			name: "matches wrapped error",
			err: &Error{
				Op:   "Store.List",
				Kind: KindStore,
				Err:  fmt.Errorf("wrapped: %w", ErrStoreUnavailable),
			},
			target: ErrStoreUnavailable,
			want:   true,
		},
		{
			name: "matches Error by kind",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: &Error{Kind: KindSecurity},
			want:   true,
		},
		{
			name: "matches Error by kind and op",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
			},
			want: true,
		},
		{
			name: "does not match different kind",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: &Error{Kind: KindStore},
			want:   false,
		},
		{
			name: "does not match different underlying error",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: ErrNodeNotFound,
			want:   false,
		},
		{
			name: "does not match nil",
			err: &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			},
			target: nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestErrorAs verifies errors.As() compatibility.
func TestErrorAs(t *testing.T) {
	originalErr := &Error{
		Op:    "Engine.Generate",
		Kind:  KindSecurity,
		Field: "canvasFingerprint",
		Err:   ErrSecurityViolation,
		Context: map[string]any{
			"node": "edge-3",
		},
	}

	wrappedErr := fmt.Errorf("outer error: %w", originalErr)

	var sdkErr *Error
	if !errors.As(wrappedErr, &sdkErr) {
		t.Fatal("errors.As() failed to extract Error")
	}

	if sdkErr.Op != originalErr.Op {
		t.Errorf("Op = %q, want %q", sdkErr.Op, originalErr.Op)
	}
	if sdkErr.Kind != originalErr.Kind {
		t.Errorf("Kind = %q, want %q", sdkErr.Kind, originalErr.Kind)
	}
	if sdkErr.Field != "canvasFingerprint" {
		t.Errorf("Field = %q, want canvasFingerprint", sdkErr.Field)
	}
	if sdkErr.Context["node"] != "edge-3" {
		t.Errorf("Context[node] = %v, want edge-3", sdkErr.Context["node"])
	}
}

// TestErrorWithContext verifies the WithContext() method.
func TestErrorWithContext(t *testing.T) {
	original := &Error{
		Op:   "Engine.Analyze",
		Kind: KindInternal,
		Err:  errors.New("pool exhausted"),
	}

	// Add context
	withCtx := original.WithContext(map[string]any{
		"observations": 12,
		"workers":      4,
	})

	// Verify new error has context
	if withCtx.Context["observations"] != 12 {
		t.Errorf("Context[observations] = %v, want 12", withCtx.Context["observations"])
	}
	if withCtx.Context["workers"] != 4 {
		t.Errorf("Context[workers] = %v, want 4", withCtx.Context["workers"])
	}

	// Verify original error is unchanged
	if original.Context != nil {
		t.Error("original error Context was modified")
	}

	// Add more context
	withMoreCtx := withCtx.WithContext(map[string]any{
		"pairs": 66,
	})

	// Verify all context is present
	if withMoreCtx.Context["observations"] != 12 {
		t.Error("observations context was lost")
	}
	if withMoreCtx.Context["pairs"] != 66 {
		t.Error("pairs context was not added")
	}
}

// TestNewErrorFunctions verifies all the New*Error() constructor functions.
func TestNewErrorFunctions(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string, error) *Error
		wantKind string
	}{
		{
			name:     "NewConfigurationError",
			fn:       NewConfigurationError,
			wantKind: KindConfiguration,
		},
		{
			name:     "NewStoreError",
			fn:       NewStoreError,
			wantKind: KindStore,
		},
		{
			name:     "NewRegistryError",
			fn:       NewRegistryError,
			wantKind: KindRegistry,
		},
		{
			name:     "NewParseError",
			fn:       NewParseError,
			wantKind: KindParse,
		},
		{
			name:     "NewInternalError",
			fn:       NewInternalError,
			wantKind: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := "Test.Operation"
			underlyingErr := errors.New("test error")

			err := tt.fn(op, underlyingErr)

			if err.Op != op {
				t.Errorf("Op = %q, want %q", err.Op, op)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.wantKind)
			}
			if !errors.Is(err, underlyingErr) {
				t.Error("underlying error not preserved")
			}
		})
	}
}

// TestNewSecurityError verifies the field-carrying constructor.
func TestNewSecurityError(t *testing.T) {
	underlyingErr := errors.New("entropy too low")
	err := NewSecurityError("Engine.Generate", "canvasFingerprint", underlyingErr)

	if err.Kind != KindSecurity {
		t.Errorf("Kind = %q, want %q", err.Kind, KindSecurity)
	}
	if err.Field != "canvasFingerprint" {
		t.Errorf("Field = %q, want canvasFingerprint", err.Field)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("underlying error not preserved")
	}
}

// TestErrorKinds verifies all error kind constants are defined.
func TestErrorKinds(t *testing.T) {
	kinds := []struct {
		name  string
		value string
	}{
		{"KindConfiguration", KindConfiguration},
		{"KindSecurity", KindSecurity},
		{"KindStore", KindStore},
		{"KindRegistry", KindRegistry},
		{"KindParse", KindParse},
		{"KindInternal", KindInternal},
	}

	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			if k.value == "" {
				t.Errorf("constant %s is empty", k.name)
			}
		})
	}
}

// TestErrorChaining verifies that error chains work correctly.
func TestErrorChaining(t *testing.T) {
	// Create a chain: baseErr -> wrappedErr -> sdkErr -> outerErr
	baseErr := errors.New("base error")
	wrappedErr := fmt.Errorf("wrapped: %w", baseErr)
	sdkErr := &Error{
		Op:   "Engine.Generate",
		Kind: KindInternal,
		Err:  wrappedErr,
	}
	outerErr := fmt.Errorf("outer: %w", sdkErr)

	// Verify we can find the base error
	if !errors.Is(outerErr, baseErr) {
		t.Error("failed to find base error in chain")
	}

	// Verify we can find the SDK error
	var extracted *Error
	if !errors.As(outerErr, &extracted) {
		t.Error("failed to extract SDK error from chain")
	}

	if extracted.Op != "Engine.Generate" {
		t.Errorf("extracted SDK error has wrong Op: %q", extracted.Op)
	}
}

// BenchmarkErrorCreation benchmarks error creation.
func BenchmarkErrorCreation(b *testing.B) {
	b.Run("basic", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			}
		}
	})

	b.Run("with_context", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			err := &Error{
				Op:   "Engine.Generate",
				Kind: KindSecurity,
				Err:  ErrSecurityViolation,
			}
			_ = err.WithContext(map[string]any{
				"field": "userAgent",
			})
		}
	})
}

// BenchmarkErrorError benchmarks the Error() method.
func BenchmarkErrorError(b *testing.B) {
	err := &Error{
		Op:    "Engine.Generate",
		Kind:  KindSecurity,
		Field: "userAgent",
		Err:   ErrSecurityViolation,
		Context: map[string]any{
			"node": "edge-3",
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}

// BenchmarkErrorsIs benchmarks errors.Is() with Error.
func BenchmarkErrorsIs(b *testing.B) {
	err := &Error{
		Op:   "Engine.Generate",
		Kind: KindSecurity,
		Err:  ErrSecurityViolation,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = errors.Is(err, ErrSecurityViolation)
	}
}
