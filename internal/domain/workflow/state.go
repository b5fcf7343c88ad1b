package workflow

// State is the lifecycle status of a purchase request
type State string

const (
	StateDraft     State = "DRAFT"
	StateSubmitted State = "SUBMITTED"
	StateInReview  State = "IN_REVIEW"
	StateReturned  State = "RETURNED"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateCancelled State = "CANCELLED"
	StateArchived  State = "ARCHIVED"
)

var validStates = func() map[State]bool {
	m := make(map[State]bool)
	for _, s := range AllStates() {
		m[s] = true
	}
	return m
}()

// AllStates returns every state in lifecycle order
func AllStates() []State {
	return []State{
		StateDraft,
		StateSubmitted,
		StateInReview,
		StateReturned,
		StateApproved,
		StateRejected,
		StateCancelled,
		StateArchived,
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known request status
func (s State) IsValid() bool {
	return validStates[s]
}

// Ptr returns a pointer to a copy of s, for nullable from-status fields
func (s State) Ptr() *State {
	return &s
}
