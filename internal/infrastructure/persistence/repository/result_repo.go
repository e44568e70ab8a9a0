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

// ResultRepository implements port.ResultRepository
type ResultRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewResultRepository creates a new validation result repository
func NewResultRepository(db *sql.DB, logger *zap.Logger) *ResultRepository {
	return &ResultRepository{db: db, logger: logger}
}

// ReplaceForCase swaps the case's stored results for a new run.
// Callers run it inside WithTransaction so readers never see a partial set.
func (r *ResultRepository) ReplaceForCase(ctx context.Context, caseID string, results []entity.ValidationResult) error {
	exec := executorFor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM validation_results WHERE case_id = ?`, caseID); err != nil {
		r.logger.Error("Failed to clear validation results", zap.String("case_id", caseID), zap.Error(err))
		return fmt.Errorf("failed to clear validation results: %w", err)
	}

	query := `
		INSERT INTO validation_results (
			case_id, rule_id, rule_code, rule_name, severity, message, field_path, field_value,
			is_acknowledged, validated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`
	for i := range results {
		res := &results[i]
		res.CaseID = caseID
		if res.ValidatedAt.IsZero() {
			res.ValidatedAt = time.Now()
		}

		result, err := exec.ExecContext(ctx, query,
			caseID,
			res.RuleID,
			res.RuleCode,
			res.RuleName,
			res.Severity,
			res.Message,
			res.FieldPath,
			res.FieldValue,
			utc(res.ValidatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to insert validation result",
				zap.String("case_id", caseID),
				zap.String("rule_code", res.RuleCode),
				zap.Error(err))
			return fmt.Errorf("failed to insert validation result: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		res.ID = id
	}

	return nil
}

// ListByCase returns the case's stored results in run order
func (r *ResultRepository) ListByCase(ctx context.Context, caseID string) ([]entity.ValidationResult, error) {
	query := `
		SELECT id, case_id, rule_id, rule_code, rule_name, severity, message, field_path, field_value,
			is_acknowledged, acknowledged_by, acknowledged_at, acknowledgment_notes, validated_at
		FROM validation_results
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list validation results", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list validation results: %w", err)
	}
	defer rows.Close()

	var results []entity.ValidationResult
	for rows.Next() {
		var res entity.ValidationResult
		var acknowledgedAt sql.NullTime
		if err := rows.Scan(
			&res.ID,
			&res.CaseID,
			&res.RuleID,
			&res.RuleCode,
			&res.RuleName,
			&res.Severity,
			&res.Message,
			&res.FieldPath,
			&res.FieldValue,
			&res.IsAcknowledged,
			&res.AcknowledgedBy,
			&acknowledgedAt,
			&res.AcknowledgmentNotes,
			&res.ValidatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan validation result: %w", err)
		}
		res.AcknowledgedAt = timePtr(acknowledgedAt)
		results = append(results, res)
	}
	return results, rows.Err()
}

// AcknowledgeWarnings marks the listed warning rows acknowledged. Errors and infos are untouched.
func (r *ResultRepository) AcknowledgeWarnings(ctx context.Context, caseID string, ids []int64, by, notes string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		UPDATE validation_results
		SET is_acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?, acknowledgment_notes = ?
		WHERE case_id = ? AND severity = ? AND is_acknowledged = 0 AND id IN (` + placeholders + `)
	`

	args := []interface{}{by, utc(at), notes, caseID, entity.SeverityWarning}
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := executorFor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to acknowledge warnings", zap.String("case_id", caseID), zap.Error(err))
		return 0, fmt.Errorf("failed to acknowledge warnings: %w", err)
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return changed, nil
}

// Verify interface compliance
var _ port.ResultRepository = (*ResultRepository)(nil)
