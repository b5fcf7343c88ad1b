package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `id, user_id, department_id, title, description, category, amount,
	vendor_name, urgency, urgency_reason, travel_start_date, travel_end_date,
	status, cycle, version, created_at, updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts req at version 1
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	now := time.Now().UTC()
	if req.Status == "" {
		req.Status = workflow.StateDraft
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = req.CreatedAt
	req.Version = 1

	query := `
		INSERT INTO requests (
			user_id, department_id, title, description, category, amount,
			vendor_name, urgency, urgency_reason, travel_start_date, travel_end_date,
			status, cycle, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		req.UserID,
		req.DepartmentID,
		req.Title,
		req.Description,
		req.Category,
		req.Amount,
		req.VendorName,
		req.Urgency,
		req.UrgencyReason,
		nullableTime(req.TravelStartDate),
		nullableTime(req.TravelEndDate),
		req.Status,
		req.Cycle,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID returns nil, nil when the request does not exist
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// Save is a compare-and-set on version
func (r *RequestRepository) Save(ctx context.Context, req *entity.Request) error {
	req.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE requests SET
			department_id = ?, title = ?, description = ?, category = ?, amount = ?,
			vendor_name = ?, urgency = ?, urgency_reason = ?,
			travel_start_date = ?, travel_end_date = ?,
			status = ?, cycle = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		req.DepartmentID,
		req.Title,
		req.Description,
		req.Category,
		req.Amount,
		req.VendorName,
		req.Urgency,
		req.UrgencyReason,
		nullableTime(req.TravelStartDate),
		nullableTime(req.TravelEndDate),
		req.Status,
		req.Cycle,
		req.UpdatedAt,
		req.ID,
		req.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to save request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("request %d at version %d: %w", req.ID, req.Version, workflow.ErrConflict)
	}

	req.Version++
	return nil
}

// List returns requests newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter, limit, offset int) ([]*entity.Request, error) {
	var conds []string
	var args []interface{}

	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DepartmentID != 0 {
		conds = append(conds, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MinAmount != nil {
		conds = append(conds, "amount >= ?")
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		conds = append(conds, "amount <= ?")
		args = append(args, *filter.MaxAmount)
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.CreatedTo.UTC())
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return r.query(ctx, query, args...)
}

// ListAwaitingRole returns IN_REVIEW requests whose lowest pending step in the current cycle belongs to role
func (r *RequestRepository) ListAwaitingRole(ctx context.Context, role entity.Role) ([]*entity.Request, error) {
	query := `
		SELECT ` + requestColumns + ` FROM requests r
		WHERE r.status = ?
		AND (
			SELECT s.approver_role FROM approval_steps s
			WHERE s.request_id = r.id AND s.cycle = r.cycle AND s.status = ?
			ORDER BY s.step_number ASC
			LIMIT 1
		) = ?
		ORDER BY r.created_at ASC, r.id ASC
	`
	return r.query(ctx, query, workflow.StateInReview, workflow.StepPending, role)
}

func (r *RequestRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Request, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var start, end sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.DepartmentID,
		&req.Title,
		&req.Description,
		&req.Category,
		&req.Amount,
		&req.VendorName,
		&req.Urgency,
		&req.UrgencyReason,
		&start,
		&end,
		&req.Status,
		&req.Cycle,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.TravelStartDate = timePtr(start)
	req.TravelEndDate = timePtr(end)
	return &req, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
