package service

import (
	"context"
	"fmt"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// AuditService reads the audit trail. There is no write path besides the StateMachine.
type AuditService interface {
	// Trail returns the entries of one request oldest-first
	Trail(ctx context.Context, requestID int64) ([]*entity.AuditLog, error)
	// List returns every entry newest-first, one page at a time
	List(ctx context.Context, page int) ([]*entity.AuditLog, error)
	// Export renders the trail of one request as an xlsx workbook
	Export(ctx context.Context, requestID int64) (*AuditExport, error)
}

type auditServiceImpl struct {
	requests port.RequestRepository
	audits   port.AuditLogRepository
	users    port.UserRepository
	logger   Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(
	requests port.RequestRepository,
	audits port.AuditLogRepository,
	users port.UserRepository,
	logger Logger,
) AuditService {
	return &auditServiceImpl{
		requests: requests,
		audits:   audits,
		users:    users,
		logger:   logger,
	}
}

func (s *auditServiceImpl) Trail(ctx context.Context, requestID int64) ([]*entity.AuditLog, error) {
	if _, err := s.request(ctx, requestID); err != nil {
		return nil, err
	}

	logs, err := s.audits.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	if logs == nil {
		logs = []*entity.AuditLog{}
	}
	return logs, nil
}

func (s *auditServiceImpl) List(ctx context.Context, page int) ([]*entity.AuditLog, error) {
	if page < 1 {
		page = 1
	}

	logs, err := s.audits.List(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	if logs == nil {
		logs = []*entity.AuditLog{}
	}
	return logs, nil
}

func (s *auditServiceImpl) Export(ctx context.Context, requestID int64) (*AuditExport, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}

	logs, err := s.audits.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}

	names := make(map[int64]string)
	for _, l := range logs {
		if _, seen := names[l.UserID]; seen {
			continue
		}
		user, err := s.users.GetByID(ctx, l.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", l.UserID, err)
		}
		if user != nil {
			names[l.UserID] = user.Name
		} else {
			names[l.UserID] = ""
		}
	}

	export, err := renderAuditWorkbook(req, logs, names)
	if err != nil {
		s.logger.Error("Failed to render audit export", "request_id", requestID, "error", err)
		return nil, err
	}

	s.logger.Info("Audit export generated", "request_id", requestID, "entries", len(logs), "bytes", export.Content.Len())
	return export, nil
}

func (s *auditServiceImpl) request(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %d: %w", id, workflow.ErrNotFound)
	}
	return req, nil
}
