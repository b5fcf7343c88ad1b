package workflow

// Audit action labels
const (
	ActionCreated       = "created"
	ActionSubmitted     = "submitted"
	ActionMovedToReview = "moved_to_review"
	ActionApproved      = "approved"
	ActionRejected      = "rejected"
	ActionReturned      = "returned"
	ActionCancelled     = "cancelled"
	ActionArchived      = "archived"
	ActionUpdated       = "updated"
)

var actionByTarget = map[State]string{
	StateSubmitted: ActionSubmitted,
	StateInReview:  ActionMovedToReview,
	StateApproved:  ActionApproved,
	StateRejected:  ActionRejected,
	StateReturned:  ActionReturned,
	StateCancelled: ActionCancelled,
	StateArchived:  ActionArchived,
}

// ActionFor derives the audit action label for a from -> to entry.
// A nil from marks the creation event.
func ActionFor(from *State, to State) string {
	if from == nil {
		return ActionCreated
	}
	if action, ok := actionByTarget[to]; ok {
		return action
	}
	return ActionUpdated
}
