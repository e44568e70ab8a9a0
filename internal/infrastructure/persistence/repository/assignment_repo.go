package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"go.uber.org/zap"
)

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

const assignmentColumns = `id, case_id, assigned_to, assigned_by, assigned_at, due_date, priority, notes, is_current`

// Create inserts an assignment record
func (r *AssignmentRepository) Create(ctx context.Context, a *entity.CaseAssignment) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = r.now()
	}
	if a.Priority == "" {
		a.Priority = entity.PriorityNormal
	}

	query := `INSERT INTO case_assignments (` + assignmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		a.ID,
		a.CaseID,
		a.AssignedTo,
		a.AssignedBy,
		utc(a.AssignedAt),
		nullableTime(a.DueDate),
		a.Priority,
		a.Notes,
		boolToInt(a.IsCurrent),
	)
	if err != nil {
		r.logger.Error("Failed to create assignment",
			zap.String("case_id", a.CaseID),
			zap.String("assigned_to", a.AssignedTo),
			zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// SetCurrent demotes every other assignment of the case and marks this one current
func (r *AssignmentRepository) SetCurrent(ctx context.Context, caseID, assignmentID string) error {
	query := `UPDATE case_assignments SET is_current = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE case_id = ?`

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, assignmentID, caseID); err != nil {
		r.logger.Error("Failed to set current assignment",
			zap.String("case_id", caseID),
			zap.String("assignment_id", assignmentID),
			zap.Error(err))
		return fmt.Errorf("failed to set current assignment: %w", err)
	}
	return nil
}

// ClearCurrent demotes the case's current assignment, if any
func (r *AssignmentRepository) ClearCurrent(ctx context.Context, caseID string) error {
	query := `UPDATE case_assignments SET is_current = 0 WHERE case_id = ? AND is_current = 1`

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, caseID); err != nil {
		r.logger.Error("Failed to clear current assignment",
			zap.String("case_id", caseID),
			zap.Error(err))
		return fmt.Errorf("failed to clear current assignment: %w", err)
	}
	return nil
}

// GetCurrent returns the case's current assignment, or nil
func (r *AssignmentRepository) GetCurrent(ctx context.Context, caseID string) (*entity.CaseAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM case_assignments WHERE case_id = ? AND is_current = 1 LIMIT 1`

	a, err := scanAssignment(executorFor(ctx, r.db).QueryRowContext(ctx, query, caseID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get current assignment", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get current assignment: %w", err)
	}
	return a, nil
}

// ListByCase returns every assignment of the case in insertion order
func (r *AssignmentRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM case_assignments WHERE case_id = ? ORDER BY assigned_at ASC, rowid ASC`
	return r.list(ctx, query, caseID)
}

// ListOverdue returns current assignments whose due date is before now
func (r *AssignmentRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.CaseAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM case_assignments
		WHERE is_current = 1 AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date ASC
	`
	return r.list(ctx, query, utc(now))
}

// ListCurrentByUser returns the user's work queue joined with case status
func (r *AssignmentRepository) ListCurrentByUser(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error) {
	query := `
		SELECT a.id, a.case_id, c.workflow_status, a.assigned_by, a.assigned_at, a.due_date, a.priority, a.notes
		FROM case_assignments a
		JOIN cases c ON c.id = a.case_id
		WHERE a.assigned_to = ? AND a.is_current = 1
	`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list user cases", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list user cases: %w", err)
	}
	defer rows.Close()

	now := r.now()
	var summaries []*entity.MyCaseSummary
	for rows.Next() {
		var s entity.MyCaseSummary
		var dueDate sql.NullTime
		if err := rows.Scan(
			&s.AssignmentID,
			&s.CaseID,
			&s.WorkflowStatus,
			&s.AssignedBy,
			&s.AssignedAt,
			&dueDate,
			&s.Priority,
			&s.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user case: %w", err)
		}
		s.DueDate = timePtr(dueDate)
		s.IsOverdue = s.DueDate != nil && s.DueDate.Before(now)
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.CaseAssignment, error) {
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.CaseAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(row scanner) (*entity.CaseAssignment, error) {
	var a entity.CaseAssignment
	var dueDate sql.NullTime

	if err := row.Scan(
		&a.ID,
		&a.CaseID,
		&a.AssignedTo,
		&a.AssignedBy,
		&a.AssignedAt,
		&dueDate,
		&a.Priority,
		&a.Notes,
		&a.IsCurrent,
	); err != nil {
		return nil, err
	}

	a.DueDate = timePtr(dueDate)
	return &a, nil
}

// Verify interface compliance
var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
