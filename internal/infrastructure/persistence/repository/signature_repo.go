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

// SignatureRepository implements port.SignatureRepository. Rows are write-once.
type SignatureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *sql.DB, logger *zap.Logger) *SignatureRepository {
	return &SignatureRepository{db: db, logger: logger}
}

// Create records a signature
func (r *SignatureRepository) Create(ctx context.Context, s *entity.ElectronicSignature) error {
	if s.SignedAt.IsZero() {
		s.SignedAt = time.Now()
	}

	query := `
		INSERT INTO electronic_signatures (
			id, user_id, entity_type, entity_id, entity_version, action, meaning, session_id, signed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.EntityType,
		s.EntityID,
		s.EntityVersion,
		s.Action,
		s.Meaning,
		s.SessionID,
		utc(s.SignedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create signature",
			zap.String("entity_id", s.EntityID),
			zap.String("user_id", s.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create signature: %w", err)
	}
	return nil
}

// ListByEntity returns the entity's signatures oldest first
func (r *SignatureRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ElectronicSignature, error) {
	query := `
		SELECT id, user_id, entity_type, entity_id, entity_version, action, meaning, session_id, signed_at
		FROM electronic_signatures
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY signed_at ASC, rowid ASC
	`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list signatures", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var signatures []*entity.ElectronicSignature
	for rows.Next() {
		var s entity.ElectronicSignature
		if err := rows.Scan(&s.ID, &s.UserID, &s.EntityType, &s.EntityID, &s.EntityVersion, &s.Action, &s.Meaning, &s.SessionID, &s.SignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		signatures = append(signatures, &s)
	}
	return signatures, rows.Err()
}

// Verify interface compliance
var _ port.SignatureRepository = (*SignatureRepository)(nil)
