package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// StateMachine applies lifecycle transitions to requests and appends the audit trail.
// Callers provide the transaction through ctx.
type StateMachine struct {
	table    *workflow.Table
	requests port.RequestRepository
	audits   port.AuditLogRepository
}

// NewStateMachine creates a state machine over the request lifecycle table
func NewStateMachine(requests port.RequestRepository, audits port.AuditLogRepository) *StateMachine {
	return &StateMachine{
		table:    workflow.Lifecycle(),
		requests: requests,
		audits:   audits,
	}
}

// CanTransition reports whether req may move to the target status
func (m *StateMachine) CanTransition(req *entity.Request, to workflow.State) bool {
	return m.table.CanTransition(req.Status, to)
}

// Transition moves req to the target status and records one audit entry.
// On failure req keeps its previous status.
func (m *StateMachine) Transition(ctx context.Context, req *entity.Request, to workflow.State, actor *entity.User, metadata map[string]interface{}) error {
	from := req.Status
	if err := m.table.Check(from, to); err != nil {
		return fmt.Errorf("request %d: %w", req.ID, err)
	}

	req.Status = to
	if err := m.requests.Save(ctx, req); err != nil {
		req.Status = from
		return err
	}

	return m.LogTransition(ctx, req, actor, &from, to, metadata)
}

// LogTransition appends an audit entry without touching the request. A nil
// from records the creation event; from == to records an in-place decision.
func (m *StateMachine) LogTransition(ctx context.Context, req *entity.Request, actor *entity.User, from *workflow.State, to workflow.State, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	var fromCopy *workflow.State
	if from != nil {
		fromCopy = from.Ptr()
	}

	log := &entity.AuditLog{
		RequestID:  req.ID,
		UserID:     actor.ID,
		Action:     workflow.ActionFor(from, to),
		FromStatus: fromCopy,
		ToStatus:   to,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	return m.audits.Append(ctx, log)
}
