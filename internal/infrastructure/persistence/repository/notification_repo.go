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
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
)

const notificationColumns = `id, request_id, recipient_id, event_type, comment, status,
	attempts, last_error, sent_at, created_at, updated_at`

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an outbox row in PENDING
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	now := time.Now().UTC()
	n.Status = entity.NotificationStatusPending
	n.CreatedAt, n.UpdatedAt = now, now

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notifications (request_id, recipient_id, event_type, comment, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, n.RequestID, n.RecipientID, n.EventType, n.Comment, n.Status, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("request_id", n.RequestID),
			zap.Int64("recipient_id", n.RecipientID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// GetByID returns nil, nil when the notification does not exist
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	n, err := scanNotification(sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// MarkSent records a successful delivery attempt
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = '', sent_at = ?, updated_at = ?
		WHERE id = ?
	`, entity.NotificationStatusSent, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?
	`, entity.NotificationStatusFailed, errMsg, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// ListRetryable returns failed rows that still have attempts left, plus pending
// rows older than staleBefore whose delivery never ran
func (r *NotificationRepository) ListRetryable(ctx context.Context, maxAttempts int, staleBefore time.Time, limit int) ([]*entity.Notification, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE (status = ? AND attempts < ?)
		   OR (status = ? AND created_at < ?)
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`, entity.NotificationStatusFailed, maxAttempts,
		entity.NotificationStatusPending, staleBefore.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list retryable notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list retryable notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var sentAt sql.NullTime
	if err := row.Scan(
		&n.ID,
		&n.RequestID,
		&n.RecipientID,
		&n.EventType,
		&n.Comment,
		&n.Status,
		&n.Attempts,
		&n.LastError,
		&sentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.SentAt = timePtr(sentAt)
	return &n, nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
