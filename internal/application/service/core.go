package service

import (
	"context"
	"fmt"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Repositories bundles the persistence ports the services share
type Repositories struct {
	Requests      port.RequestRepository
	Steps         port.ApprovalStepRepository
	AuditLogs     port.AuditLogRepository
	Rules         port.RuleRepository
	Users         port.UserRepository
	Notifications port.NotificationRepository
}

type nopMetrics struct{}

func (nopMetrics) OperationCompleted(string, string)    {}
func (nopMetrics) TransitionRecorded(string, string)    {}
func (nopMetrics) NotificationDelivered(string, string) {}

// NopMetrics discards every observation
func NopMetrics() port.WorkflowMetrics {
	return nopMetrics{}
}

// aggregate runs mutations of one request aggregate
type aggregate struct {
	repos     Repositories
	txManager port.TransactionManager
	machine   *StateMachine
	metrics   port.WorkflowMetrics
	logger    Logger
}

// mutate runs fn in one transaction against a freshly loaded copy of req.
// The copy must carry the caller's version, otherwise the call fails with
// ErrConflict. req is refreshed only after a successful commit.
func (a *aggregate) mutate(ctx context.Context, op string, req *entity.Request, fn func(ctx context.Context, current *entity.Request) error) error {
	if req == nil {
		return fmt.Errorf("%s: %w", op, workflow.ErrNotFound)
	}

	from := req.Status
	var current *entity.Request

	err := a.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := a.repos.Requests.GetByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		if loaded == nil {
			return fmt.Errorf("request %d: %w", req.ID, workflow.ErrNotFound)
		}
		if loaded.Version != req.Version {
			return fmt.Errorf("request %d is at version %d, caller holds %d: %w",
				req.ID, loaded.Version, req.Version, workflow.ErrConflict)
		}
		if err := fn(txCtx, loaded); err != nil {
			return err
		}
		current = loaded
		return nil
	})

	a.metrics.OperationCompleted(op, workflow.KindOf(err))
	if err != nil {
		if workflow.IsBusinessError(err) {
			a.logger.Info("Workflow operation refused", "operation", op, "request_id", req.ID, "reason", err.Error())
		} else {
			a.logger.Error("Workflow operation failed", "operation", op, "request_id", req.ID, "error", err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	*req = *current
	if from != req.Status {
		a.metrics.TransitionRecorded(string(from), string(req.Status))
	}
	a.logger.Info("Workflow operation completed",
		"operation", op,
		"request_id", req.ID,
		"status", req.Status,
		"version", req.Version,
	)
	return nil
}

func (a *aggregate) getRequest(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := a.repos.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", id, workflow.ErrNotFound)
	}
	return req, nil
}
