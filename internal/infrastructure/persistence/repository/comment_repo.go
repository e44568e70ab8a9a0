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

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sql.DB, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{db: db, logger: logger}
}

// Create appends a comment. Mentions are stored as a JSON array.
func (r *CommentRepository) Create(ctx context.Context, c *entity.CaseComment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO case_comments (id, case_id, user_id, comment_type, content, mentions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		c.ID,
		c.CaseID,
		c.UserID,
		c.CommentType,
		c.Content,
		encodeStrings(c.Mentions),
		utc(c.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create comment", zap.String("case_id", c.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByCase returns the case's comments oldest first
func (r *CommentRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseComment, error) {
	query := `
		SELECT id, case_id, user_id, comment_type, content, mentions, created_at
		FROM case_comments
		WHERE case_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*entity.CaseComment
	for rows.Next() {
		var c entity.CaseComment
		var mentions string
		if err := rows.Scan(&c.ID, &c.CaseID, &c.UserID, &c.CommentType, &c.Content, &mentions, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Mentions = decodeStrings(mentions)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// NoteRepository implements port.NoteRepository
type NoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB, logger *zap.Logger) *NoteRepository {
	return &NoteRepository{db: db, logger: logger}
}

const noteColumns = `id, case_id, user_id, visibility, content, created_at, resolved_at, resolved_by`

// Create inserts a note
func (r *NoteRepository) Create(ctx context.Context, n *entity.CaseNote) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `INSERT INTO case_notes (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.CaseID,
		n.UserID,
		n.Visibility,
		n.Content,
		utc(n.CreatedAt),
		nullableTime(n.ResolvedAt),
		n.ResolvedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create note", zap.String("case_id", n.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// GetByID retrieves a note, returning nil when absent
func (r *NoteRepository) GetByID(ctx context.Context, id string) (*entity.CaseNote, error) {
	query := `SELECT ` + noteColumns + ` FROM case_notes WHERE id = ?`

	n, err := scanNote(executorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get note", zap.String("note_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// ListByCase returns the case's notes oldest first
func (r *NoteRepository) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseNote, error) {
	query := `SELECT ` + noteColumns + ` FROM case_notes WHERE case_id = ? ORDER BY created_at ASC, rowid ASC`

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, caseID)
	if err != nil {
		r.logger.Error("Failed to list notes", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*entity.CaseNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Resolve sets the resolution fields only when the note is unresolved
func (r *NoteRepository) Resolve(ctx context.Context, id, resolvedBy string, resolvedAt time.Time) (bool, error) {
	query := `UPDATE case_notes SET resolved_at = ?, resolved_by = ? WHERE id = ? AND resolved_at IS NULL`

	result, err := executorFor(ctx, r.db).ExecContext(ctx, query, utc(resolvedAt), resolvedBy, id)
	if err != nil {
		r.logger.Error("Failed to resolve note", zap.String("note_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to resolve note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func scanNote(row scanner) (*entity.CaseNote, error) {
	var n entity.CaseNote
	var resolvedAt sql.NullTime

	if err := row.Scan(
		&n.ID,
		&n.CaseID,
		&n.UserID,
		&n.Visibility,
		&n.Content,
		&n.CreatedAt,
		&resolvedAt,
		&n.ResolvedBy,
	); err != nil {
		return nil, err
	}

	n.ResolvedAt = timePtr(resolvedAt)
	return &n, nil
}

// Verify interface compliance
var (
	_ port.CommentRepository = (*CommentRepository)(nil)
	_ port.NoteRepository    = (*NoteRepository)(nil)
)
