package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

// NotifyRequest describes one notification to persist and deliver
type NotifyRequest struct {
	UserID     string `validate:"required"`
	Type       string `validate:"required,oneof=assignment rejection approval mention overdue"`
	Title      string `validate:"required"`
	Message    string `validate:"required"`
	EntityType string `validate:"required"`
	EntityID   string `validate:"required"`
}

// NotificationService manages per-user notifications
type NotificationService interface {
	// Notify persists a notification and pushes it to Lark when the user has an open id
	Notify(ctx context.Context, req NotifyRequest) (*entity.Notification, error)

	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error)

	MarkRead(ctx context.Context, notificationID, userID string) error

	// RegisterHandlers subscribes the service to workflow events
	RegisterHandlers(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	notifications port.NotificationRepository
	users         port.UserRepository
	messageSender port.MessageSender
	logger        Logger
	now           func() time.Time
}

// NewNotificationService creates a new NotificationService.
// messageSender may be nil, in which case notifications are stored but not pushed.
func NewNotificationService(
	notifications port.NotificationRepository,
	users port.UserRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notifications: notifications,
		users:         users,
		messageSender: messageSender,
		logger:        loggerOrNoop(logger),
		now:           time.Now,
	}
}

// Notify persists the notification first, then attempts delivery and records its outcome
func (s *notificationServiceImpl) Notify(ctx context.Context, req NotifyRequest) (*entity.Notification, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	n := &entity.Notification{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Type:           req.Type,
		Title:          req.Title,
		Message:        req.Message,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		DeliveryStatus: entity.NotificationStatusPending,
		CreatedAt:      s.now(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Error("Failed to create notification", "error", err, "user_id", req.UserID, "type", req.Type)
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.deliver(ctx, n)
	return n, nil
}

// deliver pushes the notification over Lark. Failures are recorded on the row, never returned.
func (s *notificationServiceImpl) deliver(ctx context.Context, n *entity.Notification) {
	status, errMsg := entity.NotificationStatusSkipped, ""

	if s.messageSender != nil && s.users != nil {
		user, err := s.users.GetByID(ctx, n.UserID)
		switch {
		case err != nil:
			status, errMsg = entity.NotificationStatusFailed, fmt.Sprintf("lookup user: %v", err)
		case user == nil || user.LarkOpenID == "":
			// no chat account, in-app only
		default:
			text := n.Title + "\n\n" + n.Message
			if err := s.messageSender.SendText(ctx, user.LarkOpenID, text); err != nil {
				status, errMsg = entity.NotificationStatusFailed, err.Error()
			} else {
				status = entity.NotificationStatusSent
			}
		}
	}

	if status == entity.NotificationStatusFailed {
		s.logger.Error("Notification delivery failed",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"error", errMsg)
	}

	at := s.now()
	if err := s.notifications.UpdateDelivery(ctx, n.ID, status, errMsg, at); err != nil {
		s.logger.Error("Failed to record notification delivery", "error", err, "notification_id", n.ID)
		return
	}
	n.DeliveryStatus = status
	n.ErrorMessage = errMsg
	if status == entity.NotificationStatusSent {
		n.DeliveredAt = &at
	}
}

func (s *notificationServiceImpl) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := s.notifications.MarkRead(ctx, notificationID, userID, s.now()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// RegisterHandlers subscribes the service to workflow events
func (s *notificationServiceImpl) RegisterHandlers(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeCaseAssigned, "notify-assignee", s.onCaseAssigned)
	d.SubscribeNamed(event.TypeCaseRejected, "notify-owner-rejected", s.onCaseRejected)
	d.SubscribeNamed(event.TypeCaseApproved, "notify-owner-approved", s.onCaseApproved)
	d.SubscribeNamed(event.TypeCommentMentioned, "notify-mentioned", s.onCommentMentioned)
	d.SubscribeNamed(event.TypeAssignmentOverdue, "notify-overdue", s.onAssignmentOverdue)
}

func (s *notificationServiceImpl) onCaseAssigned(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString(event.KeyAssigneeID)
	if assignee == "" {
		return nil
	}

	msg := fmt.Sprintf("Case %s was assigned to you by %s.", evt.CaseID, evt.GetPayloadString(event.KeyActorID))
	if due := evt.GetPayloadTime(event.KeyDueDate); due != nil {
		msg += fmt.Sprintf(" Due %s.", due.Format("2006-01-02"))
	}

	_, err := s.Notify(ctx, NotifyRequest{
		UserID:     assignee,
		Type:       entity.NotificationTypeAssignment,
		Title:      "New case assignment",
		Message:    msg,
		EntityType: entity.EntityTypeCase,
		EntityID:   evt.CaseID,
	})
	return err
}

func (s *notificationServiceImpl) onCaseRejected(ctx context.Context, evt *event.Event) error {
	owner := evt.GetPayloadString(event.KeyOwnerID)
	if owner == "" || owner == evt.GetPayloadString(event.KeyActorID) {
		return nil
	}

	msg := fmt.Sprintf("Case %s was rejected by %s.", evt.CaseID, evt.GetPayloadString(event.KeyActorID))
	if reason := strings.TrimSpace(evt.GetPayloadString(event.KeyComment)); reason != "" {
		msg += " Reason: " + reason
	}

	_, err := s.Notify(ctx, NotifyRequest{
		UserID:     owner,
		Type:       entity.NotificationTypeRejection,
		Title:      "Case rejected",
		Message:    msg,
		EntityType: entity.EntityTypeCase,
		EntityID:   evt.CaseID,
	})
	return err
}

func (s *notificationServiceImpl) onCaseApproved(ctx context.Context, evt *event.Event) error {
	owner := evt.GetPayloadString(event.KeyOwnerID)
	if owner == "" || owner == evt.GetPayloadString(event.KeyActorID) {
		return nil
	}

	_, err := s.Notify(ctx, NotifyRequest{
		UserID:     owner,
		Type:       entity.NotificationTypeApproval,
		Title:      "Case approved",
		Message:    fmt.Sprintf("Case %s was approved by %s.", evt.CaseID, evt.GetPayloadString(event.KeyActorID)),
		EntityType: entity.EntityTypeCase,
		EntityID:   evt.CaseID,
	})
	return err
}

func (s *notificationServiceImpl) onCommentMentioned(ctx context.Context, evt *event.Event) error {
	actor := evt.GetPayloadString(event.KeyActorID)
	var failed []string

	for _, userID := range evt.GetPayloadStrings(event.KeyMentionedIDs) {
		if userID == actor {
			continue
		}
		if _, err := s.Notify(ctx, NotifyRequest{
			UserID:     userID,
			Type:       entity.NotificationTypeMention,
			Title:      "You were mentioned",
			Message:    fmt.Sprintf("%s mentioned you on case %s: %s", actor, evt.CaseID, evt.GetPayloadString(event.KeyComment)),
			EntityType: entity.EntityTypeCase,
			EntityID:   evt.CaseID,
		}); err != nil {
			failed = append(failed, userID)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("notify mentioned users %v", failed)
	}
	return nil
}

func (s *notificationServiceImpl) onAssignmentOverdue(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString(event.KeyAssigneeID)
	assignmentID := evt.GetPayloadString(event.KeyAssignmentID)
	if assignee == "" || assignmentID == "" {
		return nil
	}

	msg := fmt.Sprintf("Your assignment on case %s is overdue.", evt.CaseID)
	if due := evt.GetPayloadTime(event.KeyDueDate); due != nil {
		msg = fmt.Sprintf("Your assignment on case %s was due %s.", evt.CaseID, due.Format("2006-01-02"))
	}

	_, err := s.Notify(ctx, NotifyRequest{
		UserID:     assignee,
		Type:       entity.NotificationTypeOverdue,
		Title:      "Assignment overdue",
		Message:    msg,
		EntityType: entity.EntityTypeAssignment,
		EntityID:   assignmentID,
	})
	return err
}
