package port

import (
	"context"
	"time"

	"github.com/garyjia/purchase-approval/internal/domain/entity"
)

// RequestRepository defines persistence operations for Request.
// GetByID returns nil, nil when the request does not exist.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	// Save writes every mutable column when the stored version equals req.Version,
	// then increments req.Version. A stale version yields a conflict error.
	Save(ctx context.Context, req *entity.Request) error
	List(ctx context.Context, filter entity.RequestFilter, limit, offset int) ([]*entity.Request, error)
	// ListAwaitingRole returns IN_REVIEW requests whose current pending step belongs to role
	ListAwaitingRole(ctx context.Context, role entity.Role) ([]*entity.Request, error)
}

// ApprovalStepRepository defines persistence operations for ApprovalStep
type ApprovalStepRepository interface {
	// CreateBatch inserts the ordered steps of one cycle
	CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.ApprovalStep, error)
	ListByCycle(ctx context.Context, requestID int64, cycle int) ([]*entity.ApprovalStep, error)
	// CurrentPending returns the lowest numbered pending step of the cycle, or nil
	CurrentPending(ctx context.Context, requestID int64, cycle int) (*entity.ApprovalStep, error)
	// Decide resolves a pending step. A step that is no longer pending yields a conflict error.
	Decide(ctx context.Context, step *entity.ApprovalStep) error
	// CancelPending marks every pending step of the cycle cancelled and returns how many changed
	CancelPending(ctx context.Context, requestID int64, cycle int, at time.Time) (int64, error)
}

// AuditLogRepository is append-only
type AuditLogRepository interface {
	Append(ctx context.Context, log *entity.AuditLog) error
	// ListByRequest returns the trail oldest-first
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.AuditLog, error)
	// List returns every entry newest-first
	List(ctx context.Context, limit, offset int) ([]*entity.AuditLog, error)
}

// RuleRepository defines persistence operations for Rule
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.Rule) error
	GetByID(ctx context.Context, id int64) (*entity.Rule, error)
	// List returns rules ordered by min amount
	List(ctx context.Context, activeOnly bool) ([]*entity.Rule, error)
	Update(ctx context.Context, rule *entity.Rule) error
	Delete(ctx context.Context, id int64) error
}

// UserRepository defines read access to users
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)
}

// NotificationRepository is the notification outbox
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id int64) (*entity.Notification, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	// ListRetryable returns FAILED rows with fewer than maxAttempts attempts and
	// PENDING rows created before staleBefore, oldest first
	ListRetryable(ctx context.Context, maxAttempts int, staleBefore time.Time, limit int) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn in a transaction carried by ctx. Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
