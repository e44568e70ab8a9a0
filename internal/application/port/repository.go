package port

import (
	"context"
	"time"

	"github.com/garyjia/icsr-workflow/internal/domain/entity"
)

// CaseStore defines persistence operations for the workflow fields of a case
type CaseStore interface {
	Create(ctx context.Context, c *entity.Case) error
	GetByID(ctx context.Context, id string) (*entity.Case, error)
	// Update applies a versioned write and returns the updated case.
	// It returns ErrVersionConflict when the stored version differs from update.ExpectedVersion.
	Update(ctx context.Context, id string, update entity.CaseUpdate) (*entity.Case, error)
	UpdateData(ctx context.Context, id string, data []byte) error
}

// AssignmentRepository defines persistence operations for CaseAssignment
type AssignmentRepository interface {
	Create(ctx context.Context, a *entity.CaseAssignment) error
	// SetCurrent demotes every other assignment of the case and marks this one current
	SetCurrent(ctx context.Context, caseID, assignmentID string) error
	// ClearCurrent demotes the case's current assignment, if any
	ClearCurrent(ctx context.Context, caseID string) error
	GetCurrent(ctx context.Context, caseID string) (*entity.CaseAssignment, error)
	ListByCase(ctx context.Context, caseID string) ([]*entity.CaseAssignment, error)
	ListCurrentByUser(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*entity.CaseAssignment, error)
}

// CommentRepository defines persistence operations for CaseComment
type CommentRepository interface {
	Create(ctx context.Context, c *entity.CaseComment) error
	ListByCase(ctx context.Context, caseID string) ([]*entity.CaseComment, error)
}

// NoteRepository defines persistence operations for CaseNote
type NoteRepository interface {
	Create(ctx context.Context, n *entity.CaseNote) error
	GetByID(ctx context.Context, id string) (*entity.CaseNote, error)
	ListByCase(ctx context.Context, caseID string) ([]*entity.CaseNote, error)
	// Resolve sets the resolution fields only if unset, reporting whether a row changed
	Resolve(ctx context.Context, id, resolvedBy string, resolvedAt time.Time) (bool, error)
}

// SignatureRepository defines persistence operations for ElectronicSignature
type SignatureRepository interface {
	Create(ctx context.Context, s *entity.ElectronicSignature) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ElectronicSignature, error)
}

// AuditLog is the append-only audit trail
type AuditLog interface {
	Append(ctx context.Context, e *entity.AuditEvent) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEvent, error)
}

// RuleRepository defines persistence operations for ValidationRule
type RuleRepository interface {
	Create(ctx context.Context, r *entity.ValidationRule) error
	GetByID(ctx context.Context, id int64) (*entity.ValidationRule, error)
	GetByCode(ctx context.Context, code string) (*entity.ValidationRule, error)
	List(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error)
	Update(ctx context.Context, r *entity.ValidationRule) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

// ResultRepository defines persistence operations for ValidationResult
type ResultRepository interface {
	// ReplaceForCase deletes the case's stored results and inserts the new set, assigning IDs
	ReplaceForCase(ctx context.Context, caseID string, results []entity.ValidationResult) error
	ListByCase(ctx context.Context, caseID string) ([]entity.ValidationResult, error)
	// AcknowledgeWarnings marks warning rows of the case acknowledged, returning rows changed
	AcknowledgeWarnings(ctx context.Context, caseID string, ids []int64, by, notes string, at time.Time) (int64, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	UpdateDelivery(ctx context.Context, id, status, errorMsg string, at time.Time) error
	ExistsSince(ctx context.Context, userID, notificationType, entityID string, since time.Time) (bool, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
