package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsValidation_MatchesWrapped(t *testing.T) {
	err := fmt.Errorf("create request: %w", NewValidation("title", "must not be empty"))

	if !IsValidation(err) {
		t.Error("IsValidation() = false for wrapped ValidationError")
	}
	if IsPreconditionFailed(err) {
		t.Error("IsPreconditionFailed() = true for ValidationError")
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	err := &PreconditionFailedError{Collection: "requests", ID: "r1", Message: "already accepted"}

	if !IsPreconditionFailed(err) {
		t.Error("IsPreconditionFailed() = false")
	}
	if got := err.Error(); got != "precondition failed on requests/r1: already accepted" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	root := errors.New("database is locked")
	err := &TransientError{Attempts: 5, Err: root}

	if !errors.Is(err, root) {
		t.Error("errors.Is() does not reach wrapped error")
	}
	if !IsTransient(fmt.Errorf("feed: %w", err)) {
		t.Error("IsTransient() = false for wrapped TransientError")
	}
}

func TestPartialFanoutError_Message(t *testing.T) {
	err := &PartialFanoutError{
		Intended: 3,
		Notified: 2,
		Errs:     []error{errors.New("disk full")},
	}

	want := "notified 2 of 3 recipients: disk full"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsPartialFanout(err) {
		t.Error("IsPartialFanout() = false")
	}
}
