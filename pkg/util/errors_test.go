package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFieldError(t *testing.T) {
	err := NewFieldError("set-bool", "$TX_MTU", "field type is u32", ErrNotSupported)

	msg := err.Error()
	for _, want := range []string{"set-bool", "$TX_MTU", "not supported", "field type is u32"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message should contain %q: %s", want, msg)
		}
	}
	if !errors.Is(err, ErrNotSupported) {
		t.Error("FieldError should unwrap to its sentinel")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("FieldError should not match an unrelated sentinel")
	}
}

func TestFieldErrorNoReason(t *testing.T) {
	err := NewFieldError("get-u32", "$RX_MTU", "", ErrInvalidArgument)
	if strings.HasSuffix(err.Error(), ")") {
		t.Errorf("Error message should not carry an empty reason: %s", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("$SPEED is required")
		if !strings.Contains(err.Error(), "$SPEED is required") {
			t.Errorf("Error message should contain the error: %s", err.Error())
		}
		if !errors.Is(err, ErrInvalidArgument) {
			t.Error("ValidationError should unwrap to ErrInvalidArgument")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("$SPEED is required", "$FEC is required")
		msg := err.Error()
		if !strings.Contains(msg, "$SPEED") || !strings.Contains(msg, "$FEC") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")
		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
	})

	t.Run("accumulates", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(false, "missing speed").AddErrorf("unknown fec %q", "BOGUS")
		if !v.HasErrors() {
			t.Fatal("expected errors")
		}
		var ve *ValidationError
		if !errors.As(v.Build(), &ve) {
			t.Fatal("Build() should return *ValidationError")
		}
		if len(ve.Errors) != 2 {
			t.Errorf("len(Errors) = %d, want 2", len(ve.Errors))
		}
	})
}

func TestStatusName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrInvalidArgument, "invalid-argument"},
		{fmt.Errorf("wrapped: %w", ErrObjectNotFound), "object-not-found"},
		{NewFieldError("set", "$FEC", "", ErrNotSupported), "not-supported"},
		{ErrNoSystemResources, "no-system-resources"},
		{fmt.Errorf("gate: %w", ErrPermissionDenied), "permission-denied"},
		{errors.New("serdes busy"), "driver"},
	}
	for _, tt := range tests {
		if got := StatusName(tt.err); got != tt.want {
			t.Errorf("StatusName(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
