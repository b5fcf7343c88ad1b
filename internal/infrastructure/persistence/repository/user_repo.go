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

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (name, email, role, department_id, lark_open_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Name, user.Email, user.Role, user.DepartmentID, user.LarkOpenID, user.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID returns nil, nil when the user does not exist
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, email, role, department_id, lark_open_id, created_at
		FROM users WHERE id = ?
	`, id)

	var user entity.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.DepartmentID, &user.LarkOpenID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListByRole returns every user holding role
func (r *UserRepository) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, name, email, role, department_id, lark_open_id, created_at
		FROM users WHERE role = ?
		ORDER BY id ASC
	`, role)
	if err != nil {
		r.logger.Error("Failed to list users by role", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var user entity.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.DepartmentID, &user.LarkOpenID, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

var _ port.UserRepository = (*UserRepository)(nil)
