package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is returned when an operation is not valid for the request's current status
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when the transition table forbids a move.
	// It matches ErrInvalidState as well.
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed", ErrInvalidState)

	// ErrNoPendingStep is returned when a decision is attempted with nothing pending
	ErrNoPendingStep = errors.New("no pending approval step")

	// ErrRoleMismatch is returned when the actor's role differs from the current step's role
	ErrRoleMismatch = errors.New("actor role does not match approver role")

	// ErrNotFound is returned when a referenced request, step or rule does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a concurrent mutation won the race for the request
	ErrConflict = errors.New("concurrent modification")

	// ErrForbidden is returned when the actor may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrValidationFailed matches every *ValidationError
	ErrValidationFailed = errors.New("validation failed")
)

// Violation is a single failed field rule
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found, not just the first
type ValidationError struct {
	Violations []Violation
}

// NewValidationError returns nil when there are no violations
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidationFailed) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Has reports whether a violation was recorded for field
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the violations keyed by field, joining repeated messages
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Violations))
	for _, v := range e.Violations {
		if prev, ok := out[v.Field]; ok {
			out[v.Field] = prev + "; " + v.Message
			continue
		}
		out[v.Field] = v.Message
	}
	return out
}

// KindOf classifies err for metrics and logs. Infrastructure failures are "error".
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrNoPendingStep):
		return "no_pending_step"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// IsBusinessError reports whether err is one of the workflow rule failures
func IsBusinessError(err error) bool {
	kind := KindOf(err)
	return kind != "ok" && kind != "error"
}
