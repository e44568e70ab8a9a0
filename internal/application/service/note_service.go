package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
)

// AddNoteRequest adds a working note to a case
type AddNoteRequest struct {
	CaseID     string `json:"case_id" validate:"required"`
	Visibility string `json:"visibility" validate:"required,oneof=personal team"`
	Content    string `json:"content" validate:"required,max=10000"`
}

// NoteService manages case notes
type NoteService interface {
	AddNote(ctx context.Context, req AddNoteRequest, userID string) (*entity.CaseNote, error)
	// GetNotes returns team notes plus the user's own personal notes
	GetNotes(ctx context.Context, caseID, userID string) ([]*entity.CaseNote, error)
	// ResolveNote resolves a note exactly once
	ResolveNote(ctx context.Context, noteID, userID string) (*entity.CaseNote, error)
}

type noteServiceImpl struct {
	cases  port.CaseStore
	notes  port.NoteRepository
	logger Logger
	now    func() time.Time
}

// NewNoteService creates a new NoteService
func NewNoteService(cases port.CaseStore, notes port.NoteRepository, logger Logger) NoteService {
	return &noteServiceImpl{
		cases:  cases,
		notes:  notes,
		logger: loggerOrNoop(logger),
		now:    time.Now,
	}
}

func (s *noteServiceImpl) AddNote(ctx context.Context, req AddNoteRequest, userID string) (*entity.CaseNote, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	c, err := s.cases.GetByID(ctx, req.CaseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, ErrCaseNotFound
	}

	note := &entity.CaseNote{
		ID:         uuid.NewString(),
		CaseID:     req.CaseID,
		UserID:     userID,
		Visibility: req.Visibility,
		Content:    req.Content,
		CreatedAt:  s.now(),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Error("Failed to create note", "error", err, "case_id", req.CaseID)
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

func (s *noteServiceImpl) GetNotes(ctx context.Context, caseID, userID string) ([]*entity.CaseNote, error) {
	all, err := s.notes.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	visible := make([]*entity.CaseNote, 0, len(all))
	for _, n := range all {
		if n.VisibleTo(userID) {
			visible = append(visible, n)
		}
	}
	return visible, nil
}

func (s *noteServiceImpl) ResolveNote(ctx context.Context, noteID, userID string) (*entity.CaseNote, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	if !note.VisibleTo(userID) {
		return nil, ErrNoteNotVisible
	}
	if note.IsResolved() {
		return nil, ErrNoteAlreadyResolved
	}

	at := s.now()
	changed, err := s.notes.Resolve(ctx, noteID, userID, at)
	if err != nil {
		s.logger.Error("Failed to resolve note", "error", err, "note_id", noteID)
		return nil, fmt.Errorf("resolve note: %w", err)
	}
	// lost a race with another resolver
	if !changed {
		return nil, ErrNoteAlreadyResolved
	}

	note.ResolvedAt = &at
	note.ResolvedBy = userID
	return note, nil
}
