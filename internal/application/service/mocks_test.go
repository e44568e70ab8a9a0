package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
)

type mockLogger struct {
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  { m.infos = append(m.infos, msg) }
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) { m.errors = append(m.errors, msg) }

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockCaseStore struct {
	cases     map[string]*entity.Case
	updateErr error
}

func newMockCaseStore(cases ...*entity.Case) *mockCaseStore {
	m := &mockCaseStore{cases: map[string]*entity.Case{}}
	for _, c := range cases {
		m.cases[c.ID] = c
	}
	return m
}

func (m *mockCaseStore) Create(ctx context.Context, c *entity.Case) error {
	m.cases[c.ID] = c
	return nil
}

func (m *mockCaseStore) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	c, ok := m.cases[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *mockCaseStore) Update(ctx context.Context, id string, update entity.CaseUpdate) (*entity.Case, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	c := m.cases[id]
	if c.Version != update.ExpectedVersion {
		return nil, port.ErrVersionConflict
	}
	c.WorkflowStatus = update.WorkflowStatus
	if update.CurrentAssignee != nil {
		c.CurrentAssignee = *update.CurrentAssignee
	}
	if update.DueDate != nil {
		c.DueDate = update.DueDate
	}
	c.Version++
	copied := *c
	return &copied, nil
}

func (m *mockCaseStore) UpdateData(ctx context.Context, id string, data []byte) error {
	return nil
}

type mockAssignmentRepo struct {
	assignments []*entity.CaseAssignment
	summaries   []*entity.MyCaseSummary
	createErr   error
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *entity.CaseAssignment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *mockAssignmentRepo) SetCurrent(ctx context.Context, caseID, assignmentID string) error {
	for _, a := range m.assignments {
		if a.CaseID == caseID {
			a.IsCurrent = a.ID == assignmentID
		}
	}
	return nil
}

func (m *mockAssignmentRepo) ClearCurrent(ctx context.Context, caseID string) error {
	for _, a := range m.assignments {
		if a.CaseID == caseID {
			a.IsCurrent = false
		}
	}
	return nil
}

func (m *mockAssignmentRepo) GetCurrent(ctx context.Context, caseID string) (*entity.CaseAssignment, error) {
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.IsCurrent {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAssignmentRepo) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseAssignment, error) {
	var out []*entity.CaseAssignment
	for _, a := range m.assignments {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) ListCurrentByUser(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error) {
	return m.summaries, nil
}

func (m *mockAssignmentRepo) ListOverdue(ctx context.Context, now time.Time) ([]*entity.CaseAssignment, error) {
	var out []*entity.CaseAssignment
	for _, a := range m.assignments {
		if a.IsCurrent && a.IsOverdue(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockCommentRepo struct {
	comments []*entity.CaseComment
}

func (m *mockCommentRepo) Create(ctx context.Context, c *entity.CaseComment) error {
	m.comments = append(m.comments, c)
	return nil
}

func (m *mockCommentRepo) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseComment, error) {
	return append([]*entity.CaseComment(nil), m.comments...), nil
}

type mockNoteRepo struct {
	notes map[string]*entity.CaseNote
	order []string
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: map[string]*entity.CaseNote{}}
}

func (m *mockNoteRepo) Create(ctx context.Context, n *entity.CaseNote) error {
	m.notes[n.ID] = n
	m.order = append(m.order, n.ID)
	return nil
}

func (m *mockNoteRepo) GetByID(ctx context.Context, id string) (*entity.CaseNote, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (m *mockNoteRepo) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseNote, error) {
	var out []*entity.CaseNote
	for _, id := range m.order {
		if n := m.notes[id]; n.CaseID == caseID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNoteRepo) Resolve(ctx context.Context, id, resolvedBy string, resolvedAt time.Time) (bool, error) {
	n, ok := m.notes[id]
	if !ok || n.ResolvedAt != nil {
		return false, nil
	}
	n.ResolvedAt = &resolvedAt
	n.ResolvedBy = resolvedBy
	return true, nil
}

type mockAuditLog struct {
	events []*entity.AuditEvent
}

func (m *mockAuditLog) Append(ctx context.Context, e *entity.AuditEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *mockAuditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEvent, error) {
	return m.events, nil
}

type mockNotificationRepo struct {
	notifications []*entity.Notification
	createErr     error
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	for _, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			n.ReadAt = &at
		}
	}
	return nil
}

func (m *mockNotificationRepo) UpdateDelivery(ctx context.Context, id, status, errorMsg string, at time.Time) error {
	return nil
}

func (m *mockNotificationRepo) ExistsSince(ctx context.Context, userID, notificationType, entityID string, since time.Time) (bool, error) {
	for _, n := range m.notifications {
		if n.UserID == userID && n.Type == notificationType && n.EntityID == entityID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) forUser(userID string) []*entity.Notification {
	out, _ := m.ListByUser(context.Background(), userID, false)
	return out
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, u *entity.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

type mockMessageSender struct {
	sendTextFunc func(ctx context.Context, openID, text string) error
	sent         []string
}

func (m *mockMessageSender) SendText(ctx context.Context, openID, text string) error {
	if m.sendTextFunc != nil {
		if err := m.sendTextFunc(ctx, openID, text); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, openID)
	return nil
}

type mockDispatcher struct {
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) Publish(ctx context.Context, evt *event.Event) {
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

var errBoom = errors.New("boom")
