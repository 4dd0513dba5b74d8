package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrColumnNotFound", ErrColumnNotFound, "column not found"},
		{"ErrDuplicateID", ErrDuplicateID, "duplicate record id"},
		{"ErrIndexProvisioning", ErrIndexProvisioning, "index provisioning failed"},
		{"ErrModelService", ErrModelService, "model service error"},
		{"ErrLockNotAcquired", ErrLockNotAcquired, "lock not acquired"},
		{"ErrInvalidProvider", ErrInvalidProvider, "invalid provider"},
		{"ErrServiceUnavailable", ErrServiceUnavailable, "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrColumnNotFound,
		ErrDuplicateID,
		ErrIndexProvisioning,
		ErrModelService,
		ErrLockNotAcquired,
		ErrInvalidProvider,
		ErrServiceUnavailable,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorsIs_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("%w: create index quickstart: 409 conflict", ErrIndexProvisioning)
	if !errors.Is(wrapped, ErrIndexProvisioning) {
		t.Error("expected wrapped error to match ErrIndexProvisioning")
	}
	if errors.Is(wrapped, ErrModelService) {
		t.Error("wrapped provisioning error must not match ErrModelService")
	}
}
