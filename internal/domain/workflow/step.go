package workflow

// StepStatus is the status of a single approval step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepReturned  StepStatus = "returned"
	StepCancelled StepStatus = "cancelled"
)

// IsValid returns true if the step status is known
func (s StepStatus) IsValid() bool {
	switch s {
	case StepPending, StepApproved, StepRejected, StepReturned, StepCancelled:
		return true
	}
	return false
}

// IsDecided reports whether the step has left pending. Decided steps never change again.
func (s StepStatus) IsDecided() bool {
	return s.IsValid() && s != StepPending
}

// CanResolve reports whether a step in status s may move to target.
// Only pending steps move, and only to a decided status.
func (s StepStatus) CanResolve(target StepStatus) bool {
	return s == StepPending && target.IsDecided()
}

// String returns the string representation of the step status
func (s StepStatus) String() string {
	return string(s)
}
