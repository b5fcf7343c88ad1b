package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
)

const ruleColumns = `id, name, min_amount, max_amount, approval_steps, category, is_active, created_at, updated_at`

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a rule
func (r *RuleRepository) Create(ctx context.Context, rule *entity.Rule) error {
	steps, err := json.Marshal(rule.ApprovalSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal approval steps: %w", err)
	}

	now := time.Now().UTC()
	rule.CreatedAt, rule.UpdatedAt = now, now

	query := `
		INSERT INTO rules (name, min_amount, max_amount, approval_steps, category, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		rule.Name,
		rule.MinAmount,
		nullableInt64(rule.MaxAmount),
		string(steps),
		nullableCategory(rule.Category),
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.String("name", rule.Name), zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

// GetByID returns nil, nil when the rule does not exist
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*entity.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	rule, err := scanRule(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rule", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns rules ordered by min amount
func (r *RuleRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY min_amount ASC, id ASC`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update overwrites a rule's definition
func (r *RuleRepository) Update(ctx context.Context, rule *entity.Rule) error {
	steps, err := json.Marshal(rule.ApprovalSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal approval steps: %w", err)
	}
	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE rules
		SET name = ?, min_amount = ?, max_amount = ?, approval_steps = ?, category = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		rule.Name,
		rule.MinAmount,
		nullableInt64(rule.MaxAmount),
		string(steps),
		nullableCategory(rule.Category),
		rule.IsActive,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Int64("id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return requireAffected(result, "rule", rule.ID)
}

// Delete removes a rule
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireAffected(result, "rule", id)
}

func requireAffected(result sql.Result, what string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", what, id, workflow.ErrNotFound)
	}
	return nil
}

func nullableCategory(c *entity.Category) interface{} {
	if c == nil {
		return nil
	}
	return string(*c)
}

func scanRule(row rowScanner) (*entity.Rule, error) {
	var rule entity.Rule
	var maxAmount sql.NullInt64
	var category sql.NullString
	var steps string

	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.MinAmount,
		&maxAmount,
		&steps,
		&category,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(steps), &rule.ApprovalSteps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval steps of rule %d: %w", rule.ID, err)
	}
	rule.MaxAmount = int64Ptr(maxAmount)
	if category.Valid {
		c := entity.Category(category.String)
		rule.Category = &c
	}
	return &rule, nil
}

var _ port.RuleRepository = (*RuleRepository)(nil)
