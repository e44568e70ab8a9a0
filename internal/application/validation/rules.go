package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/expression"
)

// RuleRequest carries the authorable fields of a validation rule
type RuleRequest struct {
	RuleCode             string   `json:"rule_code" yaml:"rule_code" validate:"required,max=64"`
	RuleName             string   `json:"rule_name" yaml:"rule_name" validate:"required,max=200"`
	Description          string   `json:"description,omitempty" yaml:"description"`
	RuleType             string   `json:"rule_type" yaml:"rule_type" validate:"required,oneof=required format range cross_field date_logic custom"`
	Severity             string   `json:"severity" yaml:"severity" validate:"required,oneof=error warning info"`
	ConditionExpression  string   `json:"condition_expression,omitempty" yaml:"condition_expression"`
	ValidationExpression string   `json:"validation_expression" yaml:"validation_expression" validate:"required"`
	ErrorMessage         string   `json:"error_message" yaml:"error_message" validate:"required"`
	FieldPath            string   `json:"field_path,omitempty" yaml:"field_path"`
	RelatedFields        []string `json:"related_fields,omitempty" yaml:"related_fields"`
}

func (r RuleRequest) toRule() *entity.ValidationRule {
	return &entity.ValidationRule{
		RuleCode:             strings.TrimSpace(r.RuleCode),
		RuleName:             r.RuleName,
		Description:          r.Description,
		RuleType:             r.RuleType,
		Severity:             r.Severity,
		ConditionExpression:  expression.Normalize(r.ConditionExpression),
		ValidationExpression: expression.Normalize(r.ValidationExpression),
		ErrorMessage:         r.ErrorMessage,
		FieldPath:            r.FieldPath,
		RelatedFields:        r.RelatedFields,
	}
}

// RuleService manages validation rule definitions
type RuleService interface {
	GetRules(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error)
	GetRule(ctx context.Context, id int64) (*entity.ValidationRule, error)
	CreateRule(ctx context.Context, req RuleRequest, createdBy string) (*entity.ValidationRule, error)
	// UpdateRule replaces a custom rule's definition. The rule code cannot change.
	UpdateRule(ctx context.Context, id int64, req RuleRequest, updatedBy string) (*entity.ValidationRule, error)
	// ToggleRule activates or deactivates any rule, system rules included
	ToggleRule(ctx context.Context, id int64, active bool, updatedBy string) (*entity.ValidationRule, error)
	DeleteRule(ctx context.Context, id int64, deletedBy string) error
	// SeedSystemRules inserts bundled system rules whose codes are missing
	SeedSystemRules(ctx context.Context) (int, error)
}

type ruleServiceImpl struct {
	rules     port.RuleRepository
	audit     port.AuditLog
	txManager port.TransactionManager
	evaluator *expression.Evaluator
	validate  *validator.Validate
	logger    Logger
	now       func() time.Time
}

// NewRuleService creates a new RuleService
func NewRuleService(
	rules port.RuleRepository,
	audit port.AuditLog,
	txManager port.TransactionManager,
	evaluator *expression.Evaluator,
	logger Logger,
) RuleService {
	return &ruleServiceImpl{
		rules:     rules,
		audit:     audit,
		txManager: txManager,
		evaluator: evaluator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ruleServiceImpl) GetRules(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error) {
	list, err := s.rules.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return list, nil
}

func (s *ruleServiceImpl) GetRule(ctx context.Context, id int64) (*entity.ValidationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

func (s *ruleServiceImpl) CreateRule(ctx context.Context, req RuleRequest, createdBy string) (*entity.ValidationRule, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	rule := req.toRule()
	rule.IsActive = true
	rule.CreatedBy = createdBy
	rule.CreatedAt = s.now()
	rule.UpdatedAt = rule.CreatedAt

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.rules.GetByCode(txCtx, rule.RuleCode)
		if err != nil {
			return fmt.Errorf("get rule by code: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleCode, rule.RuleCode)
		}
		if err := s.rules.Create(txCtx, rule); err != nil {
			return fmt.Errorf("create rule: %w", err)
		}
		return s.appendAudit(txCtx, createdBy, entity.AuditActionRuleCreated, rule)
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Validation rule created", "rule_id", rule.ID, "rule_code", rule.RuleCode, "user_id", createdBy)
	return rule, nil
}

func (s *ruleServiceImpl) UpdateRule(ctx context.Context, id int64, req RuleRequest, updatedBy string) (*entity.ValidationRule, error) {
	var updated *entity.ValidationRule

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.GetRule(txCtx, id)
		if err != nil {
			return err
		}
		if existing.IsSystem {
			return ErrSystemRuleImmutable
		}

		// the code identifies the rule and is never rewritten
		req.RuleCode = existing.RuleCode
		if err := s.check(req); err != nil {
			return err
		}

		updated = req.toRule()
		updated.ID = existing.ID
		updated.IsActive = existing.IsActive
		updated.CreatedBy = existing.CreatedBy
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = s.now()

		if err := s.rules.Update(txCtx, updated); err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		return s.appendAudit(txCtx, updatedBy, entity.AuditActionRuleUpdated, updated)
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Validation rule updated", "rule_id", id, "user_id", updatedBy)
	return updated, nil
}

func (s *ruleServiceImpl) ToggleRule(ctx context.Context, id int64, active bool, updatedBy string) (*entity.ValidationRule, error) {
	var rule *entity.ValidationRule

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		rule, err = s.GetRule(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.rules.SetActive(txCtx, id, active); err != nil {
			return fmt.Errorf("set rule active: %w", err)
		}
		rule.IsActive = active
		return s.appendAudit(txCtx, updatedBy, entity.AuditActionRuleToggled, rule)
	})
	if err != nil {
		return nil, err
	}

	s.logInfo("Validation rule toggled", "rule_id", id, "active", active, "user_id", updatedBy)
	return rule, nil
}

func (s *ruleServiceImpl) DeleteRule(ctx context.Context, id int64, deletedBy string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		rule, err := s.GetRule(txCtx, id)
		if err != nil {
			return err
		}
		if rule.IsSystem {
			return ErrSystemRuleImmutable
		}
		if err := s.rules.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		return s.appendAudit(txCtx, deletedBy, entity.AuditActionRuleDeleted, rule)
	})
	if err != nil {
		return err
	}

	s.logInfo("Validation rule deleted", "rule_id", id, "user_id", deletedBy)
	return nil
}

// check validates the request fields and dry-runs both expressions
func (s *ruleServiceImpl) check(req RuleRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidRule, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if !expression.IsAlways(req.ConditionExpression) {
		if err := s.evaluator.Check(req.ConditionExpression); err != nil {
			return fmt.Errorf("%w: condition expression: %v", ErrInvalidRule, err)
		}
	}
	if err := s.evaluator.Check(req.ValidationExpression); err != nil {
		return fmt.Errorf("%w: validation expression: %v", ErrInvalidRule, err)
	}
	return nil
}

func (s *ruleServiceImpl) appendAudit(ctx context.Context, userID, action string, rule *entity.ValidationRule) error {
	details, err := json.Marshal(map[string]interface{}{
		"rule_code": rule.RuleCode,
		"is_active": rule.IsActive,
	})
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	if err := s.audit.Append(ctx, &entity.AuditEvent{
		UserID:     userID,
		Action:     action,
		EntityType: entity.EntityTypeValidationRule,
		EntityID:   fmt.Sprintf("%d", rule.ID),
		Details:    details,
		CreatedAt:  s.now(),
	}); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *ruleServiceImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, keysAndValues...)
	}
}
