package workflow

import (
	"fmt"
	"strings"
)

// Table is an immutable mapping from a state to its legal successor states
type Table struct {
	successors map[State][]State
}

var lifecycle = buildLifecycle()

func buildLifecycle() *Table {
	b := NewBuilder()
	b.Configure(StateDraft).Permit(StateSubmitted, StateCancelled)
	b.Configure(StateSubmitted).Permit(StateInReview, StateCancelled)
	b.Configure(StateInReview).Permit(StateApproved, StateRejected, StateReturned, StateCancelled)
	b.Configure(StateReturned).Permit(StateSubmitted, StateCancelled)
	b.Configure(StateApproved).Permit(StateArchived)
	b.Configure(StateRejected).Permit(StateArchived)
	b.Configure(StateCancelled).Permit(StateArchived)
	b.Configure(StateArchived)
	return b.Build()
}

// Lifecycle returns the request status transition table
func Lifecycle() *Table {
	return lifecycle
}

// CanTransition reports whether to is a legal successor of from
func (t *Table) CanTransition(from, to State) bool {
	for _, s := range t.successors[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the legal successor states of from
func (t *Table) Successors(from State) []State {
	return append([]State(nil), t.successors[from]...)
}

// Check returns an ErrInvalidTransition error when from -> to is not permitted.
// The message lists the moves that are allowed from the current state.
func (t *Table) Check(from, to State) error {
	if t.CanTransition(from, to) {
		return nil
	}

	allowed := t.Successors(from)
	if len(allowed) == 0 {
		return fmt.Errorf("%w: %s -> %s (%s is final)", ErrInvalidTransition, from, to, from)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = s.String()
	}
	return fmt.Errorf("%w: %s -> %s (allowed: %s)", ErrInvalidTransition, from, to, strings.Join(names, ", "))
}
