package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
)

const auditColumns = `id, request_id, user_id, action, from_status, to_status, metadata, created_at`

// AuditLogRepository implements port.AuditLogRepository. It has no update or delete path.
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) port.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit entry
func (r *AuditLogRepository) Append(ctx context.Context, log *entity.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.Metadata == nil {
		log.Metadata = map[string]interface{}{}
	}

	metadata, err := json.Marshal(log.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	var from interface{}
	if log.FromStatus != nil {
		from = string(*log.FromStatus)
	}

	query := `
		INSERT INTO audit_logs (request_id, user_id, action, from_status, to_status, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		log.RequestID,
		log.UserID,
		log.Action,
		from,
		log.ToStatus,
		string(metadata),
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit log",
			zap.Int64("request_id", log.RequestID),
			zap.String("action", log.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id
	return nil
}

// ListByRequest returns the trail oldest-first; id breaks timestamp ties
func (r *AuditLogRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC`
	return r.query(ctx, query, requestID)
}

// List returns all entries newest-first
func (r *AuditLogRepository) List(ctx context.Context, limit, offset int) ([]*entity.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	return r.query(ctx, query, limit, offset)
}

func (r *AuditLogRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.AuditLog, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var log entity.AuditLog
		var from sql.NullString
		var metadata string

		if err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.UserID,
			&log.Action,
			&from,
			&log.ToStatus,
			&metadata,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if from.Valid {
			state := workflow.State(from.String)
			log.FromStatus = &state
		}
		if err := json.Unmarshal([]byte(metadata), &log.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata %d: %w", log.ID, err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
