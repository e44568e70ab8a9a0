package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

func newNotificationFixture(sender *mockMessageSender) (*notificationServiceImpl, *mockNotificationRepo) {
	repo := &mockNotificationRepo{}
	users := &mockUserRepo{users: map[string]*entity.User{
		"md-1":  {ID: "md-1", LarkOpenID: "ou_md1"},
		"owner": {ID: "owner"},
	}}
	var s NotificationService
	if sender == nil {
		s = NewNotificationService(repo, users, nil, &mockLogger{})
	} else {
		s = NewNotificationService(repo, users, sender, &mockLogger{})
	}
	return s.(*notificationServiceImpl), repo
}

func TestNotificationService_NotifyDelivery(t *testing.T) {
	sender := &mockMessageSender{}
	svc, _ := newNotificationFixture(sender)
	ctx := context.Background()

	withLark, err := svc.Notify(ctx, NotifyRequest{
		UserID: "md-1", Type: entity.NotificationTypeAssignment, Title: "t", Message: "m",
		EntityType: entity.EntityTypeCase, EntityID: "case-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSent, withLark.DeliveryStatus)
	assert.NotNil(t, withLark.DeliveredAt)
	assert.Equal(t, []string{"ou_md1"}, sender.sent)

	inAppOnly, err := svc.Notify(ctx, NotifyRequest{
		UserID: "owner", Type: entity.NotificationTypeApproval, Title: "t", Message: "m",
		EntityType: entity.EntityTypeCase, EntityID: "case-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSkipped, inAppOnly.DeliveryStatus)
}

func TestNotificationService_NotifyDeliveryFailureIsRecorded(t *testing.T) {
	sender := &mockMessageSender{sendTextFunc: func(ctx context.Context, openID, text string) error {
		return errBoom
	}}
	svc, repo := newNotificationFixture(sender)

	n, err := svc.Notify(context.Background(), NotifyRequest{
		UserID: "md-1", Type: entity.NotificationTypeMention, Title: "t", Message: "m",
		EntityType: entity.EntityTypeCase, EntityID: "case-1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusFailed, n.DeliveryStatus)
	assert.Equal(t, "boom", n.ErrorMessage)
	assert.Len(t, repo.notifications, 1)
}

func TestNotificationService_NotifyRejectsUnknownType(t *testing.T) {
	svc, repo := newNotificationFixture(nil)

	_, err := svc.Notify(context.Background(), NotifyRequest{
		UserID: "md-1", Type: "gossip", Title: "t", Message: "m", EntityType: "case", EntityID: "c",
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, repo.notifications)
}

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	svc, _ := newNotificationFixture(nil)
	ctx := context.Background()

	n, err := svc.Notify(ctx, NotifyRequest{
		UserID: "md-1", Type: entity.NotificationTypeOverdue, Title: "t", Message: "m",
		EntityType: entity.EntityTypeAssignment, EntityID: "a-1",
	})
	require.NoError(t, err)

	unread, err := svc.ListNotifications(ctx, "md-1", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	require.NoError(t, svc.MarkRead(ctx, n.ID, "md-1"))

	unread, err = svc.ListNotifications(ctx, "md-1", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := svc.ListNotifications(ctx, "md-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNotificationService_EventHandlers(t *testing.T) {
	svc, repo := newNotificationFixture(nil)
	d := dispatcher.NewDispatcher()
	svc.RegisterHandlers(d)
	ctx := context.Background()

	d.Publish(ctx, event.NewEvent(event.TypeCaseAssigned, "case-1", map[string]interface{}{
		event.KeyActorID:    "coord",
		event.KeyAssigneeID: "md-1",
	}))
	d.Publish(ctx, event.NewEvent(event.TypeCaseRejected, "case-1", map[string]interface{}{
		event.KeyActorID: "md-1",
		event.KeyOwnerID: "owner",
		event.KeyComment: "Narrative incomplete",
	}))
	d.Publish(ctx, event.NewEvent(event.TypeCaseApproved, "case-1", map[string]interface{}{
		event.KeyActorID: "qa",
		event.KeyOwnerID: "owner",
	}))
	d.Publish(ctx, event.NewEvent(event.TypeCommentMentioned, "case-1", map[string]interface{}{
		event.KeyActorID:      "owner",
		event.KeyMentionedIDs: []string{"md-1", "owner"},
	}))

	mdTypes := []string{}
	for _, n := range repo.forUser("md-1") {
		mdTypes = append(mdTypes, n.Type)
	}
	assert.Equal(t, []string{entity.NotificationTypeAssignment, entity.NotificationTypeMention}, mdTypes)

	owner := repo.forUser("owner")
	require.Len(t, owner, 2)
	assert.Equal(t, entity.NotificationTypeRejection, owner[0].Type)
	assert.Contains(t, owner[0].Message, "Narrative incomplete")
	assert.Equal(t, entity.NotificationTypeApproval, owner[1].Type)
}

func TestNotificationService_OwnerActingAloneIsSilent(t *testing.T) {
	svc, repo := newNotificationFixture(nil)
	d := dispatcher.NewDispatcher()
	svc.RegisterHandlers(d)

	d.Publish(context.Background(), event.NewEvent(event.TypeCaseApproved, "case-1", map[string]interface{}{
		event.KeyActorID: "owner",
		event.KeyOwnerID: "owner",
	}))

	assert.Empty(t, repo.notifications)
}

func TestReminderService_RemindOverdueOncePerDay(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	assignments := &mockAssignmentRepo{assignments: []*entity.CaseAssignment{
		{ID: "a-1", CaseID: "case-1", AssignedTo: "md-1", DueDate: &past, IsCurrent: true},
		{ID: "a-2", CaseID: "case-2", AssignedTo: "md-1", DueDate: &future, IsCurrent: true},
		{ID: "a-3", CaseID: "case-3", AssignedTo: "md-2", DueDate: &past, IsCurrent: false},
	}}

	notifier, repo := newNotificationFixture(nil)
	notifier.now = func() time.Time { return now }
	d := dispatcher.NewDispatcher()
	notifier.RegisterHandlers(d)

	reminder := NewReminderService(assignments, repo, d, nil).(*reminderServiceImpl)
	reminder.now = func() time.Time { return now }
	ctx := context.Background()

	sent, err := reminder.RemindOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = reminder.RemindOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	require.Len(t, repo.notifications, 1)
	assert.Equal(t, entity.NotificationTypeOverdue, repo.notifications[0].Type)
	assert.Equal(t, "a-1", repo.notifications[0].EntityID)

	tomorrow := now.Add(24 * time.Hour)
	notifier.now = func() time.Time { return tomorrow }
	reminder.now = func() time.Time { return tomorrow }
	sent, err = reminder.RemindOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}
