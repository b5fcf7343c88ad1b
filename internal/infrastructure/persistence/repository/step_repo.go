package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
)

const stepColumns = `id, request_id, cycle, step_number, approver_role, status,
	acted_by, comment, decided_at, created_at`

// ApprovalStepRepository implements port.ApprovalStepRepository
type ApprovalStepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalStepRepository creates a new approval step repository
func NewApprovalStepRepository(db *sql.DB, logger *zap.Logger) port.ApprovalStepRepository {
	return &ApprovalStepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts steps in order. Callers run it inside a transaction so the batch is atomic.
func (r *ApprovalStepRepository) CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps (
			request_id, cycle, step_number, approver_role, status, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	exec := sqlite.Conn(ctx, r.db)
	for _, step := range steps {
		if step.CreatedAt.IsZero() {
			step.CreatedAt = time.Now().UTC()
		}
		result, err := exec.ExecContext(ctx, query,
			step.RequestID,
			step.Cycle,
			step.StepNumber,
			step.ApproverRole,
			step.Status,
			step.Comment,
			step.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create approval step",
				zap.Int64("request_id", step.RequestID),
				zap.Int("step_number", step.StepNumber),
				zap.Error(err))
			return fmt.Errorf("failed to create approval step %d: %w", step.StepNumber, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		step.ID = id
	}

	return nil
}

// ListByRequest returns every step of every cycle, ordered by cycle then step number
func (r *ApprovalStepRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps
		WHERE request_id = ?
		ORDER BY cycle ASC, step_number ASC`
	return r.query(ctx, query, requestID)
}

// ListByCycle returns the steps of one cycle in step order
func (r *ApprovalStepRepository) ListByCycle(ctx context.Context, requestID int64, cycle int) ([]*entity.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps
		WHERE request_id = ? AND cycle = ?
		ORDER BY step_number ASC`
	return r.query(ctx, query, requestID, cycle)
}

// CurrentPending returns nil, nil when every step of the cycle is decided
func (r *ApprovalStepRepository) CurrentPending(ctx context.Context, requestID int64, cycle int) (*entity.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps
		WHERE request_id = ? AND cycle = ? AND status = ?
		ORDER BY step_number ASC
		LIMIT 1`

	step, err := scanStep(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, requestID, cycle, workflow.StepPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending step", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending step: %w", err)
	}
	return step, nil
}

// Decide only touches rows that are still pending
func (r *ApprovalStepRepository) Decide(ctx context.Context, step *entity.ApprovalStep) error {
	if !workflow.StepPending.CanResolve(step.Status) {
		return fmt.Errorf("%w: step cannot be resolved to %s", workflow.ErrInvalidState, step.Status)
	}
	if step.DecidedAt == nil {
		now := time.Now().UTC()
		step.DecidedAt = &now
	}

	query := `
		UPDATE approval_steps
		SET status = ?, acted_by = ?, comment = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		step.Status,
		nullableInt64(step.ActedBy),
		step.Comment,
		step.DecidedAt.UTC(),
		step.ID,
		workflow.StepPending,
	)
	if err != nil {
		r.logger.Error("Failed to decide approval step", zap.Int64("id", step.ID), zap.Error(err))
		return fmt.Errorf("failed to decide approval step: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("approval step %d is no longer pending: %w", step.ID, workflow.ErrConflict)
	}
	return nil
}

// CancelPending voids the remaining pending steps of a cycle
func (r *ApprovalStepRepository) CancelPending(ctx context.Context, requestID int64, cycle int, at time.Time) (int64, error) {
	query := `
		UPDATE approval_steps
		SET status = ?, decided_at = ?
		WHERE request_id = ? AND cycle = ? AND status = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		workflow.StepCancelled,
		at.UTC(),
		requestID,
		cycle,
		workflow.StepPending,
	)
	if err != nil {
		r.logger.Error("Failed to cancel pending steps", zap.Int64("request_id", requestID), zap.Error(err))
		return 0, fmt.Errorf("failed to cancel pending steps: %w", err)
	}
	return result.RowsAffected()
}

func (r *ApprovalStepRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalStep, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approval steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStep(row rowScanner) (*entity.ApprovalStep, error) {
	var step entity.ApprovalStep
	var actedBy sql.NullInt64
	var decidedAt sql.NullTime

	err := row.Scan(
		&step.ID,
		&step.RequestID,
		&step.Cycle,
		&step.StepNumber,
		&step.ApproverRole,
		&step.Status,
		&actedBy,
		&step.Comment,
		&decidedAt,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.ActedBy = int64Ptr(actedBy)
	step.DecidedAt = timePtr(decidedAt)
	return &step, nil
}

var _ port.ApprovalStepRepository = (*ApprovalStepRepository)(nil)
