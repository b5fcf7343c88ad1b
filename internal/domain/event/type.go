package event

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted  Type = "request.submitted"
	TypeApprovalRequested Type = "approval.requested"
	TypeRequestApproved   Type = "request.approved"
	TypeRequestRejected   Type = "request.rejected"
	TypeRequestReturned   Type = "request.returned"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeApprovalRequested,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestReturned:
		return true
	default:
		return false
	}
}

// AllTypes lists every notification-bearing event type
func AllTypes() []Type {
	return []Type{
		TypeRequestSubmitted,
		TypeApprovalRequested,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestReturned,
	}
}
