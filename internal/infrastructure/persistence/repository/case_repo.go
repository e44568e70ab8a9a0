package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaseRepository implements port.CaseStore
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
	// rejections is false until the schema carries cases.rejection_count
	rejections bool
}

// NewCaseRepository creates a case repository for the applied schema capabilities
func NewCaseRepository(db *sql.DB, caps workflow.Capabilities, logger *zap.Logger) *CaseRepository {
	return &CaseRepository{
		db:         db,
		logger:     logger,
		rejections: caps.RejectionTracking,
	}
}

func (r *CaseRepository) columns() string {
	rejection := "0"
	if r.rejections {
		rejection = "rejection_count"
	}
	return `id, workflow_status, current_owner, current_assignee, due_date, due_date_type,
		version, ` + rejection + `, data, created_at, updated_at`
}

// Create inserts a case. Missing identity, status and version get defaults.
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.WorkflowStatus == "" {
		c.WorkflowStatus = workflow.InitialStatus
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if len(c.Data) == 0 {
		c.Data = []byte("{}")
	}
	now := utc(time.Now())
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO cases (
			id, workflow_status, current_owner, current_assignee, due_date, due_date_type,
			version, data, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		string(c.WorkflowStatus),
		c.CurrentOwner,
		c.CurrentAssignee,
		nullableTime(c.DueDate),
		c.DueDateType,
		c.Version,
		string(c.Data),
		utc(c.CreatedAt),
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// GetByID retrieves a case, returning nil when absent
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	query := `SELECT ` + r.columns() + ` FROM cases WHERE id = ?`

	c, err := scanCase(executorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// Update applies a compare-and-set write on the case version
func (r *CaseRepository) Update(ctx context.Context, id string, update entity.CaseUpdate) (*entity.Case, error) {
	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []interface{}{utc(time.Now())}

	if update.WorkflowStatus != "" {
		sets = append(sets, "workflow_status = ?")
		args = append(args, string(update.WorkflowStatus))
	}
	if update.CurrentAssignee != nil {
		sets = append(sets, "current_assignee = ?")
		args = append(args, *update.CurrentAssignee)
	}
	if update.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, update.DueDate.UTC())
	}
	if update.IncrementRejections && r.rejections {
		sets = append(sets, "rejection_count = rejection_count + 1")
	}

	query := `UPDATE cases SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND version = ?`
	args = append(args, id, update.ExpectedVersion)

	exec := executorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update case", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		r.logger.Warn("Case version conflict",
			zap.String("case_id", id),
			zap.Int64("expected_version", update.ExpectedVersion),
			zap.Int64("stored_version", existing.Version))
		return nil, port.ErrVersionConflict
	}

	return r.GetByID(ctx, id)
}

// UpdateData replaces the case document without touching workflow fields
func (r *CaseRepository) UpdateData(ctx context.Context, id string, data []byte) error {
	query := `UPDATE cases SET data = ?, updated_at = ? WHERE id = ?`

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, query, string(data), utc(time.Now()), id); err != nil {
		r.logger.Error("Failed to update case data", zap.String("case_id", id), zap.Error(err))
		return fmt.Errorf("failed to update case data: %w", err)
	}
	return nil
}

func scanCase(row scanner) (*entity.Case, error) {
	var c entity.Case
	var status, data string
	var dueDate sql.NullTime

	if err := row.Scan(
		&c.ID,
		&status,
		&c.CurrentOwner,
		&c.CurrentAssignee,
		&dueDate,
		&c.DueDateType,
		&c.Version,
		&c.RejectionCount,
		&data,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.WorkflowStatus = workflow.Status(status)
	c.DueDate = timePtr(dueDate)
	c.Data = []byte(data)
	return &c, nil
}

// Verify interface compliance
var _ port.CaseStore = (*CaseRepository)(nil)
