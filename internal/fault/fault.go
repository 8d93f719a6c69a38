// Package fault defines the error taxonomy shared by the LendHand engines.
//
// Four categories matter to callers:
//   - Validation: bad input, surfaced immediately, never retried
//   - PreconditionFailed: a conditional write lost its race (e.g. a second
//     acceptor on an already-accepted request)
//   - Transient: store connectivity trouble; retried internally with backoff
//   - PartialFanout: some notification writes failed; reported, never
//     escalated to a failure of the triggering operation
//
// All types support errors.As through the Is* helpers so callers can branch
// on category without depending on concrete fields.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports rejected input. It is terminal for the operation
// that produced it and must not be retried.
type ValidationError struct {
	// Field names the offending input ("title", "text", "location").
	Field string

	// Message is a human-readable description.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// NewValidation creates a ValidationError for the named field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PreconditionFailedError reports a conditional write whose server-checked
// predicate no longer held at write time. The caller should re-read and
// surface the current state ("already accepted"), not retry the write.
type PreconditionFailedError struct {
	// Collection and ID identify the contended record.
	Collection string
	ID         string

	// Message describes the failed precondition in user terms.
	Message string
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("precondition failed on %s/%s: %s", e.Collection, e.ID, e.Message)
}

// IsPreconditionFailed reports whether err is (or wraps) a
// PreconditionFailedError.
func IsPreconditionFailed(err error) bool {
	var pe *PreconditionFailedError
	return errors.As(err, &pe)
}

// NotFoundError reports a record that does not exist (or was deleted between
// a failed conditional write and the follow-up read).
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s: not found", e.Collection, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// TransientError wraps a store error that exhausted its retry budget.
// Subscription streams emit it as their terminal event; callers must surface
// it rather than continue on stale data.
type TransientError struct {
	// Attempts is how many tries were made before giving up.
	Attempts int

	// Err is the last underlying error.
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PartialFanoutError reports a fan-out where a subset of the intended
// notification writes failed. The triggering request creation is still
// considered successful; this error exists so the shortfall is visible
// instead of silently swallowed.
type PartialFanoutError struct {
	// Intended is the resolved recipient count.
	Intended int

	// Notified is how many writes succeeded.
	Notified int

	// Errs holds one error per failed write.
	Errs []error
}

func (e *PartialFanoutError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("notified %d of %d recipients: %s",
		e.Notified, e.Intended, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual write failures to errors.Is/As.
func (e *PartialFanoutError) Unwrap() []error { return e.Errs }

// IsPartialFanout reports whether err is (or wraps) a PartialFanoutError.
func IsPartialFanout(err error) bool {
	var fe *PartialFanoutError
	return errors.As(err, &fe)
}
