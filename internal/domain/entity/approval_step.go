package entity

import (
	"time"

	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// ApprovalStep is one ordered gate in a request's approval sequence
type ApprovalStep struct {
	ID           int64               `json:"id"`
	RequestID    int64               `json:"request_id"`
	Cycle        int                 `json:"cycle"`
	StepNumber   int                 `json:"step_number"`
	ApproverRole Role                `json:"approver_role"`
	Status       workflow.StepStatus `json:"status"`
	ActedBy      *int64              `json:"acted_by,omitempty"`
	Comment      string              `json:"comment,omitempty"`
	DecidedAt    *time.Time          `json:"decided_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// IsPending reports whether the step still awaits a decision
func (s *ApprovalStep) IsPending() bool {
	return s.Status == workflow.StepPending
}

// NewStepBatch builds the pending steps for one submission cycle, numbered from 1
func NewStepBatch(requestID int64, cycle int, roles []Role, now time.Time) []*ApprovalStep {
	steps := make([]*ApprovalStep, 0, len(roles))
	for i, role := range roles {
		steps = append(steps, &ApprovalStep{
			RequestID:    requestID,
			Cycle:        cycle,
			StepNumber:   i + 1,
			ApproverRole: role,
			Status:       workflow.StepPending,
			CreatedAt:    now,
		})
	}
	return steps
}
