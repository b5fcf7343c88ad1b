package entity

import (
	"time"

	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// Request is a purchase request, the aggregate root of the approval workflow
type Request struct {
	ID              int64          `json:"id"`
	UserID          int64          `json:"user_id"`
	DepartmentID    int64          `json:"department_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        Category       `json:"category"`
	Amount          int64          `json:"amount"`
	VendorName      string         `json:"vendor_name,omitempty"`
	Urgency         Urgency        `json:"urgency"`
	UrgencyReason   string         `json:"urgency_reason,omitempty"`
	TravelStartDate *time.Time     `json:"travel_start_date,omitempty"`
	TravelEndDate   *time.Time     `json:"travel_end_date,omitempty"`
	Status          workflow.State `json:"status"`
	// Cycle counts submissions. Zero while the request has never been submitted.
	Cycle int `json:"cycle"`
	// Version increases on every write and guards against concurrent updates.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether userID created the request
func (r *Request) IsOwnedBy(userID int64) bool {
	return r.UserID == userID
}

// Snapshot returns a copy that is safe to hand to asynchronous consumers
func (r *Request) Snapshot() Request {
	cp := *r
	if r.TravelStartDate != nil {
		t := *r.TravelStartDate
		cp.TravelStartDate = &t
	}
	if r.TravelEndDate != nil {
		t := *r.TravelEndDate
		cp.TravelEndDate = &t
	}
	return cp
}

// RequestFilter narrows request listings. Zero values mean no constraint.
type RequestFilter struct {
	UserID       int64
	DepartmentID int64
	Status       workflow.State
	Category     Category
	MinAmount    *int64
	MaxAmount    *int64
	// CreatedFrom and CreatedTo bound created_at; CreatedTo is exclusive
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
