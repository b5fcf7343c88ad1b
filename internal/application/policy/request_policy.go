// Package policy decides which users may act on a request before the
// workflow services run. Ownership and role failures yield
// workflow.ErrForbidden; status preconditions yield workflow.ErrInvalidState.
package policy

import (
	"context"
	"fmt"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// RequestPolicy authorizes request operations
type RequestPolicy struct {
	steps port.ApprovalStepRepository
}

// NewRequestPolicy creates a new RequestPolicy
func NewRequestPolicy(steps port.ApprovalStepRepository) *RequestPolicy {
	return &RequestPolicy{steps: steps}
}

// View allows admins, the owner, and users whose role holds a pending step
func (p *RequestPolicy) View(ctx context.Context, user *entity.User, req *entity.Request) error {
	if user.Role.IsAdmin() || req.IsOwnedBy(user.ID) {
		return nil
	}

	steps, err := p.steps.ListByCycle(ctx, req.ID, req.Cycle)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	for _, s := range steps {
		if s.IsPending() && s.ApproverRole == user.Role {
			return nil
		}
	}
	return forbidden(user, "view", req)
}

// Update allows the owner to edit a DRAFT
func (p *RequestPolicy) Update(user *entity.User, req *entity.Request) error {
	return ownerIn(user, "update", req, workflow.StateDraft)
}

// Submit allows the owner to submit a DRAFT
func (p *RequestPolicy) Submit(user *entity.User, req *entity.Request) error {
	return ownerIn(user, "submit", req, workflow.StateDraft)
}

// Resubmit allows the owner to resubmit a RETURNED request
func (p *RequestPolicy) Resubmit(user *entity.User, req *entity.Request) error {
	return ownerIn(user, "resubmit", req, workflow.StateReturned)
}

// Cancel allows the owner to withdraw a request before a final decision
func (p *RequestPolicy) Cancel(user *entity.User, req *entity.Request) error {
	if !req.IsOwnedBy(user.ID) {
		return forbidden(user, "cancel", req)
	}
	switch req.Status {
	case workflow.StateApproved, workflow.StateRejected, workflow.StateArchived:
		return fmt.Errorf("%w: cannot cancel a %s request", workflow.ErrInvalidState, req.Status)
	}
	return nil
}

// Archive is limited to admins
func (p *RequestPolicy) Archive(user *entity.User, req *entity.Request) error {
	if !user.Role.IsAdmin() {
		return forbidden(user, "archive", req)
	}
	return nil
}

// ManageRules is limited to admins
func ManageRules(user *entity.User) error {
	if !user.Role.IsAdmin() {
		return fmt.Errorf("%w: role %s cannot manage rules", workflow.ErrForbidden, user.Role)
	}
	return nil
}

// ViewAllAudit is limited to super admins
func ViewAllAudit(user *entity.User) error {
	if user.Role != entity.RoleSuperAdmin {
		return fmt.Errorf("%w: only %s can list every audit entry", workflow.ErrForbidden, entity.RoleSuperAdmin)
	}
	return nil
}

func ownerIn(user *entity.User, action string, req *entity.Request, status workflow.State) error {
	if !req.IsOwnedBy(user.ID) {
		return forbidden(user, action, req)
	}
	if req.Status != status {
		return fmt.Errorf("%w: %s requires %s, request is %s", workflow.ErrInvalidState, action, status, req.Status)
	}
	return nil
}

func forbidden(user *entity.User, action string, req *entity.Request) error {
	return fmt.Errorf("%w: user %d cannot %s request %d", workflow.ErrForbidden, user.ID, action, req.ID)
}
