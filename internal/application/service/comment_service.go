package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

// AddCommentRequest adds a comment to a case
type AddCommentRequest struct {
	CaseID      string   `json:"case_id" validate:"required"`
	CommentType string   `json:"comment_type" validate:"required,oneof=general query response rejection workflow"`
	Content     string   `json:"content" validate:"required,max=10000"`
	Mentions    []string `json:"mentions,omitempty" validate:"dive,required"`
}

// CommentService manages append-only case comments
type CommentService interface {
	AddComment(ctx context.Context, req AddCommentRequest, userID string) (*entity.CaseComment, error)
	// GetComments returns the case's comments oldest first
	GetComments(ctx context.Context, caseID string) ([]*entity.CaseComment, error)
}

type commentServiceImpl struct {
	cases      port.CaseStore
	comments   port.CommentRepository
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewCommentService creates a new CommentService
func NewCommentService(cases port.CaseStore, comments port.CommentRepository, d dispatcher.Dispatcher, logger Logger) CommentService {
	return &commentServiceImpl{
		cases:      cases,
		comments:   comments,
		dispatcher: d,
		logger:     loggerOrNoop(logger),
		now:        time.Now,
	}
}

func (s *commentServiceImpl) AddComment(ctx context.Context, req AddCommentRequest, userID string) (*entity.CaseComment, error) {
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

	comment := &entity.CaseComment{
		ID:          uuid.NewString(),
		CaseID:      req.CaseID,
		UserID:      userID,
		CommentType: req.CommentType,
		Content:     req.Content,
		Mentions:    uniqueMentions(req.Mentions),
		CreatedAt:   s.now(),
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("Failed to create comment", "error", err, "case_id", req.CaseID)
		return nil, fmt.Errorf("create comment: %w", err)
	}

	notify := make([]string, 0, len(comment.Mentions))
	for _, m := range comment.Mentions {
		if m != userID {
			notify = append(notify, m)
		}
	}
	if len(notify) > 0 && s.dispatcher != nil {
		s.dispatcher.Publish(ctx, event.NewEvent(event.TypeCommentMentioned, req.CaseID, map[string]interface{}{
			event.KeyActorID:      userID,
			event.KeyComment:      comment.Content,
			event.KeyMentionedIDs: notify,
		}))
	}

	s.logger.Info("Comment added",
		"case_id", req.CaseID,
		"comment_id", comment.ID,
		"mentions", len(notify))

	return comment, nil
}

func (s *commentServiceImpl) GetComments(ctx context.Context, caseID string) ([]*entity.CaseComment, error) {
	list, err := s.comments.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func uniqueMentions(mentions []string) []string {
	if len(mentions) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(mentions))
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
