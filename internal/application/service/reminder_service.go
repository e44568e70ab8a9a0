package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

// ReminderService raises overdue events for current assignments past their due date
type ReminderService interface {
	// RemindOverdue publishes at most one overdue event per assignment per calendar day.
	// It returns the number of reminders raised.
	RemindOverdue(ctx context.Context) (int, error)
}

type reminderServiceImpl struct {
	assignments   port.AssignmentRepository
	notifications port.NotificationRepository
	dispatcher    dispatcher.Dispatcher
	logger        Logger
	now           func() time.Time
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	assignments port.AssignmentRepository,
	notifications port.NotificationRepository,
	d dispatcher.Dispatcher,
	logger Logger,
) ReminderService {
	return &reminderServiceImpl{
		assignments:   assignments,
		notifications: notifications,
		dispatcher:    d,
		logger:        loggerOrNoop(logger),
		now:           time.Now,
	}
}

func (s *reminderServiceImpl) RemindOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.assignments.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue assignments: %w", err)
	}

	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	sent := 0
	for _, a := range overdue {
		exists, err := s.notifications.ExistsSince(ctx, a.AssignedTo, entity.NotificationTypeOverdue, a.ID, dayStart)
		if err != nil {
			s.logger.Error("Failed to check overdue reminder", "error", err, "assignment_id", a.ID)
			continue
		}
		if exists {
			continue
		}

		payload := map[string]interface{}{
			event.KeyAssigneeID:   a.AssignedTo,
			event.KeyAssignmentID: a.ID,
		}
		if a.DueDate != nil {
			payload[event.KeyDueDate] = *a.DueDate
		}
		s.dispatcher.Publish(ctx, event.NewEvent(event.TypeAssignmentOverdue, a.CaseID, payload))
		sent++
	}

	if sent > 0 {
		s.logger.Info("Overdue reminders raised", "count", sent, "overdue", len(overdue))
	}
	return sent, nil
}
