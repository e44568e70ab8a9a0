package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new validation rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `id, rule_code, rule_name, description, rule_type, severity, condition_expression,
	validation_expression, error_message, field_path, related_fields, is_system, is_active,
	created_by, created_at, updated_at`

// Create inserts a rule and assigns its ID
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ValidationRule) error {
	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO validation_rules (
			rule_code, rule_name, description, rule_type, severity, condition_expression,
			validation_expression, error_message, field_path, related_fields, is_system, is_active,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		rule.RuleCode,
		rule.RuleName,
		rule.Description,
		rule.RuleType,
		rule.Severity,
		rule.ConditionExpression,
		rule.ValidationExpression,
		rule.ErrorMessage,
		rule.FieldPath,
		encodeStrings(rule.RelatedFields),
		boolToInt(rule.IsSystem),
		boolToInt(rule.IsActive),
		rule.CreatedBy,
		utc(rule.CreatedAt),
		utc(rule.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create validation rule", zap.String("rule_code", rule.RuleCode), zap.Error(err))
		return fmt.Errorf("failed to create validation rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

// GetByID retrieves a rule, returning nil when absent
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*entity.ValidationRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM validation_rules WHERE id = ?`, id)
}

// GetByCode retrieves a rule by its unique code, returning nil when absent
func (r *RuleRepository) GetByCode(ctx context.Context, code string) (*entity.ValidationRule, error) {
	return r.getOne(ctx, `SELECT `+ruleColumns+` FROM validation_rules WHERE rule_code = ?`, code)
}

func (r *RuleRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.ValidationRule, error) {
	rule, err := scanRule(executorFor(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get validation rule", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get validation rule: %w", err)
	}
	return rule, nil
}

// List returns rules matching the filter ordered by severity then code
func (r *RuleRepository) List(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error) {
	var where []string
	var args []interface{}

	if filter.RuleType != nil {
		where = append(where, "rule_type = ?")
		args = append(args, *filter.RuleType)
	}
	if filter.Severity != nil {
		where = append(where, "severity = ?")
		args = append(args, *filter.Severity)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolToInt(*filter.IsActive))
	}
	if filter.IsSystem != nil {
		where = append(where, "is_system = ?")
		args = append(args, boolToInt(*filter.IsSystem))
	}
	if filter.Search != "" {
		where = append(where, "(rule_name LIKE ? OR rule_code LIKE ? OR description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + ruleColumns + ` FROM validation_rules`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY CASE severity WHEN 'error' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, rule_code ASC`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list validation rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list validation rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ValidationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update rewrites a rule's editable fields. Code, system flag and author are kept.
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ValidationRule) error {
	rule.UpdatedAt = time.Now()

	query := `
		UPDATE validation_rules SET
			rule_name = ?, description = ?, rule_type = ?, severity = ?, condition_expression = ?,
			validation_expression = ?, error_message = ?, field_path = ?, related_fields = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		rule.RuleName,
		rule.Description,
		rule.RuleType,
		rule.Severity,
		rule.ConditionExpression,
		rule.ValidationExpression,
		rule.ErrorMessage,
		rule.FieldPath,
		encodeStrings(rule.RelatedFields),
		boolToInt(rule.IsActive),
		utc(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update validation rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update validation rule: %w", err)
	}
	return nil
}

// SetActive toggles a rule
func (r *RuleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE validation_rules SET is_active = ?, updated_at = ? WHERE id = ?`

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, boolToInt(active), utc(time.Now()), id); err != nil {
		r.logger.Error("Failed to toggle validation rule", zap.Int64("rule_id", id), zap.Error(err))
		return fmt.Errorf("failed to toggle validation rule: %w", err)
	}
	return nil
}

// Delete removes a rule. Stored results keep their copied code and name.
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	if _, err := executorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM validation_rules WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete validation rule", zap.Int64("rule_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete validation rule: %w", err)
	}
	return nil
}

func scanRule(row scanner) (*entity.ValidationRule, error) {
	var rule entity.ValidationRule
	var related string

	if err := row.Scan(
		&rule.ID,
		&rule.RuleCode,
		&rule.RuleName,
		&rule.Description,
		&rule.RuleType,
		&rule.Severity,
		&rule.ConditionExpression,
		&rule.ValidationExpression,
		&rule.ErrorMessage,
		&rule.FieldPath,
		&related,
		&rule.IsSystem,
		&rule.IsActive,
		&rule.CreatedBy,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.RelatedFields = decodeStrings(related)
	return &rule, nil
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
