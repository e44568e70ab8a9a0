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

// AuditRepository implements port.AuditLog on the append-only audit_log table
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append records an audit event and assigns its ID
func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var details interface{}
	if len(e.Details) > 0 {
		details = string(e.Details)
	}

	query := `
		INSERT INTO audit_log (user_id, session_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		e.UserID,
		e.SessionID,
		e.Action,
		e.EntityType,
		e.EntityID,
		details,
		utc(e.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// ListByEntity returns the entity's audit trail oldest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEvent, error) {
	query := `
		SELECT id, user_id, session_id, action, entity_type, entity_id, details, created_at
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id ASC
	`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit events", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*entity.AuditEvent
	for rows.Next() {
		var e entity.AuditEvent
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Action, &e.EntityType, &e.EntityID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if details.Valid && details.String != "" {
			e.Details = []byte(details.String)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Verify interface compliance
var _ port.AuditLog = (*AuditRepository)(nil)
