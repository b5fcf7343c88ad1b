package service

import (
	"context"
	"fmt"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// DefaultPageSize is used when a listing is requested without a limit
const DefaultPageSize = 50

// RequestService manages drafts and request lookups
type RequestService interface {
	CreateDraft(ctx context.Context, owner *entity.User, departmentID int64, fields DraftFields) (*entity.Request, error)
	UpdateDraft(ctx context.Context, req *entity.Request, actor *entity.User, fields DraftFields) error
	// Get returns workflow.ErrNotFound when the request does not exist
	Get(ctx context.Context, id int64) (*entity.Request, error)
	// List restricts requesters to their own requests
	List(ctx context.Context, actor *entity.User, filter entity.RequestFilter, limit, offset int) ([]*entity.Request, error)
}

type requestServiceImpl struct {
	aggregate
	validator *DraftValidator
}

// NewRequestService creates a new RequestService
func NewRequestService(
	repos Repositories,
	txManager port.TransactionManager,
	machine *StateMachine,
	metrics port.WorkflowMetrics,
	logger Logger,
) RequestService {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &requestServiceImpl{
		aggregate: aggregate{
			repos:     repos,
			txManager: txManager,
			machine:   machine,
			metrics:   metrics,
			logger:    logger,
		},
		validator: NewDraftValidator(),
	}
}

// CreateDraft stores a new DRAFT request and its creation audit entry atomically
func (s *requestServiceImpl) CreateDraft(ctx context.Context, owner *entity.User, departmentID int64, fields DraftFields) (*entity.Request, error) {
	if err := s.validator.Validate(fields); err != nil {
		s.metrics.OperationCompleted("create_draft", workflow.KindOf(err))
		return nil, fmt.Errorf("create draft: %w", err)
	}

	req := &entity.Request{
		UserID:       owner.ID,
		DepartmentID: departmentID,
		Status:       workflow.StateDraft,
	}
	fields.Apply(req)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.Requests.Create(txCtx, req); err != nil {
			return err
		}
		return s.machine.LogTransition(txCtx, req, owner, nil, workflow.StateDraft, map[string]interface{}{
			"title":  req.Title,
			"amount": req.Amount,
		})
	})
	s.metrics.OperationCompleted("create_draft", workflow.KindOf(err))
	if err != nil {
		s.logger.Error("Failed to create draft", "user_id", owner.ID, "error", err)
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.logger.Info("Draft created", "request_id", req.ID, "user_id", owner.ID)
	return req, nil
}

// UpdateDraft changes the fields of a DRAFT request owned by actor
func (s *requestServiceImpl) UpdateDraft(ctx context.Context, req *entity.Request, actor *entity.User, fields DraftFields) error {
	if err := s.validator.Validate(fields); err != nil {
		return fmt.Errorf("update draft: %w", err)
	}

	return s.mutate(ctx, "update_draft", req, func(txCtx context.Context, current *entity.Request) error {
		if current.Status != workflow.StateDraft {
			return fmt.Errorf("%w: only %s requests can be edited, request is %s", workflow.ErrInvalidState, workflow.StateDraft, current.Status)
		}
		if !current.IsOwnedBy(actor.ID) {
			return fmt.Errorf("%w: user %d does not own request %d", workflow.ErrForbidden, actor.ID, current.ID)
		}
		fields.Apply(current)
		return s.repos.Requests.Save(txCtx, current)
	})
}

func (s *requestServiceImpl) Get(ctx context.Context, id int64) (*entity.Request, error) {
	return s.getRequest(ctx, id)
}

func (s *requestServiceImpl) List(ctx context.Context, actor *entity.User, filter entity.RequestFilter, limit, offset int) ([]*entity.Request, error) {
	if actor.Role == entity.RoleRequester {
		filter.UserID = actor.ID
	}
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	requests, err := s.repos.Requests.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*entity.Request{}
	}
	return requests, nil
}
