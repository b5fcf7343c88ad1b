package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/event"
	"github.com/garyjia/purchase-approval/internal/domain/rule"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// MaxCommentLength bounds decision comments
const MaxCommentLength = 1000

// ApprovalService drives requests through submission and the approval steps.
// Every mutating call takes the caller's snapshot of the request; a snapshot
// whose version is stale fails with workflow.ErrConflict. On success the
// snapshot is refreshed in place.
type ApprovalService interface {
	Submit(ctx context.Context, req *entity.Request, actor *entity.User) error
	Resubmit(ctx context.Context, req *entity.Request, actor *entity.User) error
	Approve(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error
	Reject(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error
	Return(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error
	Cancel(ctx context.Context, req *entity.Request, actor *entity.User) error
	Archive(ctx context.Context, req *entity.Request, actor *entity.User) error

	// CurrentPendingStep returns the lowest numbered pending step of the current cycle, or nil
	CurrentPendingStep(ctx context.Context, requestID int64) (*entity.ApprovalStep, error)
	// Steps returns the steps of every cycle, oldest cycle first
	Steps(ctx context.Context, requestID int64) ([]*entity.ApprovalStep, error)
	// Inbox returns the requests whose current step waits on the actor's role
	Inbox(ctx context.Context, actor *entity.User) ([]*entity.Request, error)
}

type approvalServiceImpl struct {
	aggregate
	notifier port.Notifier
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	repos Repositories,
	txManager port.TransactionManager,
	machine *StateMachine,
	notifier port.Notifier,
	metrics port.WorkflowMetrics,
	logger Logger,
) ApprovalService {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &approvalServiceImpl{
		aggregate: aggregate{
			repos:     repos,
			txManager: txManager,
			machine:   machine,
			metrics:   metrics,
			logger:    logger,
		},
		notifier: notifier,
	}
}

func (s *approvalServiceImpl) Submit(ctx context.Context, req *entity.Request, actor *entity.User) error {
	var first *entity.ApprovalStep
	err := s.mutate(ctx, "submit", req, func(txCtx context.Context, current *entity.Request) error {
		if current.Status != workflow.StateDraft {
			return fmt.Errorf("%w: submit requires %s, request is %s", workflow.ErrInvalidState, workflow.StateDraft, current.Status)
		}
		var err error
		first, err = s.enterReview(txCtx, current, actor)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyOwner(ctx, req, event.TypeRequestSubmitted, "")
	s.notifyRole(ctx, req, first.ApproverRole)
	return nil
}

func (s *approvalServiceImpl) Resubmit(ctx context.Context, req *entity.Request, actor *entity.User) error {
	var first *entity.ApprovalStep
	err := s.mutate(ctx, "resubmit", req, func(txCtx context.Context, current *entity.Request) error {
		if current.Status != workflow.StateReturned {
			return fmt.Errorf("%w: resubmit requires %s, request is %s", workflow.ErrInvalidState, workflow.StateReturned, current.Status)
		}
		var err error
		first, err = s.enterReview(txCtx, current, actor)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyOwner(ctx, req, event.TypeRequestSubmitted, "")
	s.notifyRole(ctx, req, first.ApproverRole)
	return nil
}

// enterReview validates req, opens a new cycle with a fresh step batch and
// moves the request to IN_REVIEW through SUBMITTED. Older cycles stay untouched.
func (s *approvalServiceImpl) enterReview(ctx context.Context, req *entity.Request, actor *entity.User) (*entity.ApprovalStep, error) {
	if err := workflow.NewValidationError(rule.ValidateCategory(rule.FieldsOf(req))); err != nil {
		return nil, err
	}

	rules, err := s.repos.Rules.List(ctx, true)
	if err != nil {
		return nil, err
	}
	resolution := rule.StepsFor(rules, req.Amount, req.Category)

	now := time.Now().UTC()
	req.Cycle++
	steps := entity.NewStepBatch(req.ID, req.Cycle, resolution.Roles, now)
	if err := s.repos.Steps.CreateBatch(ctx, steps); err != nil {
		return nil, err
	}

	meta := map[string]interface{}{
		"submitted_at": now.Format(time.RFC3339),
		"cycle":        req.Cycle,
		"step_count":   len(steps),
	}
	if resolution.RuleID != nil {
		meta["rule_id"] = *resolution.RuleID
	}

	if err := s.machine.Transition(ctx, req, workflow.StateSubmitted, actor, meta); err != nil {
		return nil, err
	}
	if err := s.machine.Transition(ctx, req, workflow.StateInReview, actor, map[string]interface{}{"cycle": req.Cycle}); err != nil {
		return nil, err
	}
	return steps[0], nil
}

func (s *approvalServiceImpl) Approve(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error {
	if err := validateComment(comment, false); err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	var next *entity.ApprovalStep
	err := s.mutate(ctx, "approve", req, func(txCtx context.Context, current *entity.Request) error {
		step, err := s.actionableStep(txCtx, current, actor)
		if err != nil {
			return err
		}
		if err := s.decide(txCtx, step, workflow.StepApproved, actor, comment); err != nil {
			return err
		}

		inReview := workflow.StateInReview
		meta := map[string]interface{}{
			"step_approved": step.StepNumber,
			"approver_role": string(step.ApproverRole),
		}
		if comment != "" {
			meta["comment"] = comment
		}
		if err := s.machine.LogTransition(txCtx, current, actor, &inReview, inReview, meta); err != nil {
			return err
		}

		next, err = s.repos.Steps.CurrentPending(txCtx, current.ID, current.Cycle)
		if err != nil {
			return err
		}
		if next == nil {
			return s.machine.Transition(txCtx, current, workflow.StateApproved, actor, map[string]interface{}{
				"step_number": step.StepNumber,
			})
		}
		// Status is unchanged but the aggregate moved on; bump the version so racing snapshots conflict.
		return s.repos.Requests.Save(txCtx, current)
	})
	if err != nil {
		return err
	}

	if next == nil {
		s.notifyOwner(ctx, req, event.TypeRequestApproved, comment)
	} else {
		s.notifyRole(ctx, req, next.ApproverRole)
	}
	return nil
}

func (s *approvalServiceImpl) Reject(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error {
	return s.conclude(ctx, "reject", req, actor, comment, workflow.StepRejected, workflow.StateRejected, event.TypeRequestRejected)
}

func (s *approvalServiceImpl) Return(ctx context.Context, req *entity.Request, actor *entity.User, comment string) error {
	return s.conclude(ctx, "return", req, actor, comment, workflow.StepReturned, workflow.StateReturned, event.TypeRequestReturned)
}

// conclude ends the current cycle with a negative decision on its current
// step. Later steps of the cycle are cancelled, so a request outside
// IN_REVIEW never has a pending step.
func (s *approvalServiceImpl) conclude(
	ctx context.Context,
	op string,
	req *entity.Request,
	actor *entity.User,
	comment string,
	decision workflow.StepStatus,
	target workflow.State,
	notice event.Type,
) error {
	if err := validateComment(comment, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.mutate(ctx, op, req, func(txCtx context.Context, current *entity.Request) error {
		step, err := s.actionableStep(txCtx, current, actor)
		if err != nil {
			return err
		}
		if err := s.decide(txCtx, step, decision, actor, comment); err != nil {
			return err
		}

		cancelled, err := s.repos.Steps.CancelPending(txCtx, current.ID, current.Cycle, time.Now().UTC())
		if err != nil {
			return err
		}

		return s.machine.Transition(txCtx, current, target, actor, map[string]interface{}{
			"comment":         comment,
			"step_number":     step.StepNumber,
			"cancelled_steps": cancelled,
		})
	})
	if err != nil {
		return err
	}

	s.notifyOwner(ctx, req, notice, comment)
	return nil
}

func (s *approvalServiceImpl) Cancel(ctx context.Context, req *entity.Request, actor *entity.User) error {
	return s.mutate(ctx, "cancel", req, func(txCtx context.Context, current *entity.Request) error {
		if !s.machine.CanTransition(current, workflow.StateCancelled) {
			return fmt.Errorf("request %d: %w", current.ID, workflow.Lifecycle().Check(current.Status, workflow.StateCancelled))
		}

		var cancelled int64
		if current.Status == workflow.StateInReview {
			var err error
			cancelled, err = s.repos.Steps.CancelPending(txCtx, current.ID, current.Cycle, time.Now().UTC())
			if err != nil {
				return err
			}
		}

		return s.machine.Transition(txCtx, current, workflow.StateCancelled, actor, map[string]interface{}{
			"cancelled_steps": cancelled,
		})
	})
}

func (s *approvalServiceImpl) Archive(ctx context.Context, req *entity.Request, actor *entity.User) error {
	return s.mutate(ctx, "archive", req, func(txCtx context.Context, current *entity.Request) error {
		return s.machine.Transition(txCtx, current, workflow.StateArchived, actor, nil)
	})
}

func (s *approvalServiceImpl) CurrentPendingStep(ctx context.Context, requestID int64) (*entity.ApprovalStep, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.repos.Steps.CurrentPending(ctx, req.ID, req.Cycle)
}

func (s *approvalServiceImpl) Steps(ctx context.Context, requestID int64) ([]*entity.ApprovalStep, error) {
	if _, err := s.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.repos.Steps.ListByRequest(ctx, requestID)
}

func (s *approvalServiceImpl) Inbox(ctx context.Context, actor *entity.User) ([]*entity.Request, error) {
	if !actor.Role.CanApprove() {
		return []*entity.Request{}, nil
	}
	return s.repos.Requests.ListAwaitingRole(ctx, actor.Role)
}

// actionableStep returns the step actor may decide on now
func (s *approvalServiceImpl) actionableStep(ctx context.Context, req *entity.Request, actor *entity.User) (*entity.ApprovalStep, error) {
	if req.Status != workflow.StateInReview {
		return nil, fmt.Errorf("%w: decisions require %s, request is %s", workflow.ErrInvalidState, workflow.StateInReview, req.Status)
	}

	step, err := s.repos.Steps.CurrentPending(ctx, req.ID, req.Cycle)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, fmt.Errorf("request %d: %w", req.ID, workflow.ErrNoPendingStep)
	}
	if actor.Role != step.ApproverRole {
		return nil, fmt.Errorf("%w: step %d requires %s, actor is %s",
			workflow.ErrRoleMismatch, step.StepNumber, step.ApproverRole, actor.Role)
	}
	return step, nil
}

func (s *approvalServiceImpl) decide(ctx context.Context, step *entity.ApprovalStep, status workflow.StepStatus, actor *entity.User, comment string) error {
	now := time.Now().UTC()
	actorID := actor.ID
	step.Status = status
	step.ActedBy = &actorID
	step.Comment = comment
	step.DecidedAt = &now
	return s.repos.Steps.Decide(ctx, step)
}

// notifyOwner and notifyRole run after commit. Failures are logged and never returned.
func (s *approvalServiceImpl) notifyOwner(ctx context.Context, req *entity.Request, typ event.Type, comment string) {
	owner, err := s.repos.Users.GetByID(ctx, req.UserID)
	if err != nil || owner == nil {
		s.logger.Error("Failed to resolve notification recipient", "request_id", req.ID, "user_id", req.UserID, "error", err)
		return
	}
	s.send(ctx, req, typ, []*entity.User{owner}, comment)
}

func (s *approvalServiceImpl) notifyRole(ctx context.Context, req *entity.Request, role entity.Role) {
	users, err := s.repos.Users.ListByRole(ctx, role)
	if err != nil {
		s.logger.Error("Failed to resolve approvers", "request_id", req.ID, "role", role, "error", err)
		return
	}
	if len(users) == 0 {
		s.logger.Info("No users hold approver role", "request_id", req.ID, "role", role)
		return
	}
	s.send(ctx, req, event.TypeApprovalRequested, users, "")
}

func (s *approvalServiceImpl) send(ctx context.Context, req *entity.Request, typ event.Type, recipients []*entity.User, comment string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, port.Notice{
		Type:       typ,
		Recipients: recipients,
		Request:    req.Snapshot(),
		Comment:    comment,
	})
}

func validateComment(comment string, required bool) error {
	var violations []workflow.Violation
	if required && strings.TrimSpace(comment) == "" {
		violations = append(violations, workflow.Violation{Field: "comment", Message: "comment is required"})
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		violations = append(violations, workflow.Violation{Field: "comment", Message: "comment must be at most 1000 characters"})
	}
	return workflow.NewValidationError(violations)
}
