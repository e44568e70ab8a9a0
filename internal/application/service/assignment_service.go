package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

// CreateAssignmentRequest assigns a case to a user outside of a workflow transition
type CreateAssignmentRequest struct {
	CaseID     string     `json:"case_id" validate:"required"`
	AssignedTo string     `json:"assigned_to" validate:"required"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Priority   string     `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Notes      string     `json:"notes,omitempty" validate:"max=2000"`
}

// AssignmentService manages case assignments.
// At most one assignment per case is current at any time.
type AssignmentService interface {
	// CreateAssignment records a new current assignment and updates the case's assignee
	CreateAssignment(ctx context.Context, req CreateAssignmentRequest, assignedBy string) (*entity.CaseAssignment, error)

	// GetCurrentAssignment returns nil when the case has no current assignment
	GetCurrentAssignment(ctx context.Context, caseID string) (*entity.CaseAssignment, error)

	// GetAssignmentHistory returns every assignment of the case, newest first
	GetAssignmentHistory(ctx context.Context, caseID string) ([]*entity.CaseAssignment, error)

	// GetMyCases returns the user's work queue ordered by urgency
	GetMyCases(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error)
}

type assignmentServiceImpl struct {
	cases       port.CaseStore
	assignments port.AssignmentRepository
	audit       port.AuditLog
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	cases port.CaseStore,
	assignments port.AssignmentRepository,
	audit port.AuditLog,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) AssignmentService {
	return &assignmentServiceImpl{
		cases:       cases,
		assignments: assignments,
		audit:       audit,
		txManager:   txManager,
		dispatcher:  d,
		logger:      loggerOrNoop(logger),
		now:         time.Now,
	}
}

// CreateAssignment demotes the previous current assignment and updates the case in one transaction
func (s *assignmentServiceImpl) CreateAssignment(ctx context.Context, req CreateAssignmentRequest, assignedBy string) (*entity.CaseAssignment, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityNormal
	}

	assignment := &entity.CaseAssignment{
		ID:         uuid.NewString(),
		CaseID:     req.CaseID,
		AssignedTo: req.AssignedTo,
		AssignedBy: assignedBy,
		AssignedAt: s.now(),
		DueDate:    req.DueDate,
		Priority:   priority,
		Notes:      req.Notes,
		IsCurrent:  true,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.cases.GetByID(txCtx, req.CaseID)
		if err != nil {
			return fmt.Errorf("get case: %w", err)
		}
		if c == nil {
			return ErrCaseNotFound
		}

		if err := s.assignments.Create(txCtx, assignment); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		if err := s.assignments.SetCurrent(txCtx, req.CaseID, assignment.ID); err != nil {
			return fmt.Errorf("set current assignment: %w", err)
		}

		assignee := req.AssignedTo
		if _, err := s.cases.Update(txCtx, c.ID, entity.CaseUpdate{
			ExpectedVersion: c.Version,
			WorkflowStatus:  c.WorkflowStatus,
			CurrentAssignee: &assignee,
			DueDate:         req.DueDate,
		}); err != nil {
			return fmt.Errorf("update case assignee: %w", err)
		}

		details, err := json.Marshal(map[string]interface{}{
			"assignment_id": assignment.ID,
			"assigned_to":   assignment.AssignedTo,
			"priority":      assignment.Priority,
		})
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		if err := s.audit.Append(txCtx, &entity.AuditEvent{
			UserID:     assignedBy,
			Action:     entity.AuditActionAssignmentCreated,
			EntityType: entity.EntityTypeCase,
			EntityID:   c.ID,
			Details:    details,
			CreatedAt:  assignment.AssignedAt,
		}); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCaseNotFound) {
			s.logger.Error("Failed to create assignment",
				"error", err,
				"case_id", req.CaseID,
				"assigned_to", req.AssignedTo)
		}
		return nil, err
	}

	s.logger.Info("Assignment created",
		"case_id", req.CaseID,
		"assignment_id", assignment.ID,
		"assigned_to", assignment.AssignedTo,
		"assigned_by", assignedBy)

	if s.dispatcher != nil && assignment.AssignedTo != assignedBy {
		payload := map[string]interface{}{
			event.KeyActorID:      assignedBy,
			event.KeyAssigneeID:   assignment.AssignedTo,
			event.KeyAssignmentID: assignment.ID,
		}
		if assignment.DueDate != nil {
			payload[event.KeyDueDate] = *assignment.DueDate
		}
		s.dispatcher.Publish(ctx, event.NewEvent(event.TypeCaseAssigned, req.CaseID, payload))
	}

	return assignment, nil
}

// GetCurrentAssignment returns nil when the case has no current assignment
func (s *assignmentServiceImpl) GetCurrentAssignment(ctx context.Context, caseID string) (*entity.CaseAssignment, error) {
	a, err := s.assignments.GetCurrent(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get current assignment: %w", err)
	}
	return a, nil
}

// GetAssignmentHistory returns every assignment of the case, newest first
func (s *assignmentServiceImpl) GetAssignmentHistory(ctx context.Context, caseID string) ([]*entity.CaseAssignment, error) {
	list, err := s.assignments.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].AssignedAt.After(list[j].AssignedAt)
	})
	return list, nil
}

// GetMyCases orders overdue first, then by due date (none last), then by priority
func (s *assignmentServiceImpl) GetMyCases(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error) {
	list, err := s.assignments.ListCurrentByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list current assignments: %w", err)
	}

	now := s.now()
	for _, item := range list {
		item.IsOverdue = item.DueDate != nil && item.DueDate.Before(now)
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsOverdue != b.IsOverdue {
			return a.IsOverdue
		}
		switch {
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return entity.PriorityRank(a.Priority) < entity.PriorityRank(b.Priority)
	})

	return list, nil
}
