package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/internal/domain/rule"
	"github.com/garyjia/purchase-approval/internal/domain/workflow"
)

// RuleService manages approval rules. Changes apply to later submissions only;
// steps already generated for a cycle are never rewritten.
type RuleService interface {
	List(ctx context.Context) ([]*entity.Rule, error)
	Get(ctx context.Context, id int64) (*entity.Rule, error)
	Create(ctx context.Context, r *entity.Rule) error
	Update(ctx context.Context, r *entity.Rule) error
	Delete(ctx context.Context, id int64) error
}

type ruleServiceImpl struct {
	rules  port.RuleRepository
	logger Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(rules port.RuleRepository, logger Logger) RuleService {
	return &ruleServiceImpl{
		rules:  rules,
		logger: logger,
	}
}

func (s *ruleServiceImpl) List(ctx context.Context) ([]*entity.Rule, error) {
	rules, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if rules == nil {
		rules = []*entity.Rule{}
	}
	return rules, nil
}

func (s *ruleServiceImpl) Get(ctx context.Context, id int64) (*entity.Rule, error) {
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("rule %d: %w", id, workflow.ErrNotFound)
	}
	return r, nil
}

func (s *ruleServiceImpl) Create(ctx context.Context, r *entity.Rule) error {
	r.Name = strings.TrimSpace(r.Name)
	if err := workflow.NewValidationError(rule.ValidateDefinition(r)); err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	if err := s.rules.Create(ctx, r); err != nil {
		s.logger.Error("Failed to create rule", "name", r.Name, "error", err)
		return fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("Rule created", "rule_id", r.ID, "name", r.Name, "steps", len(r.ApprovalSteps))
	return nil
}

func (s *ruleServiceImpl) Update(ctx context.Context, r *entity.Rule) error {
	r.Name = strings.TrimSpace(r.Name)
	if err := workflow.NewValidationError(rule.ValidateDefinition(r)); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	if err := s.rules.Update(ctx, r); err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}

	s.logger.Info("Rule updated", "rule_id", r.ID, "active", r.IsActive)
	return nil
}

func (s *ruleServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}

	s.logger.Info("Rule deleted", "rule_id", id)
	return nil
}
