package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// Mock implementations

type mockCaseStore struct {
	cases     map[string]*entity.Case
	getErr    error
	updateErr error
	conflict  bool
	vanished  bool
}

func (m *mockCaseStore) Create(ctx context.Context, c *entity.Case) error {
	m.cases[c.ID] = c
	return nil
}

func (m *mockCaseStore) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, exists := m.cases[id]
	if !exists {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *mockCaseStore) Update(ctx context.Context, id string, update entity.CaseUpdate) (*entity.Case, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.vanished {
		return nil, nil
	}
	c := m.cases[id]
	if m.conflict || c.Version != update.ExpectedVersion {
		return nil, port.ErrVersionConflict
	}
	c.WorkflowStatus = update.WorkflowStatus
	if update.CurrentAssignee != nil {
		c.CurrentAssignee = *update.CurrentAssignee
	}
	if update.DueDate != nil {
		c.DueDate = update.DueDate
	}
	if update.IncrementRejections {
		c.RejectionCount++
	}
	c.Version++
	copied := *c
	return &copied, nil
}

func (m *mockCaseStore) UpdateData(ctx context.Context, id string, data []byte) error {
	m.cases[id].Data = data
	return nil
}

type mockAssignmentRepo struct {
	assignments []*entity.CaseAssignment
}

func (m *mockAssignmentRepo) Create(ctx context.Context, a *entity.CaseAssignment) error {
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
	return m.assignments, nil
}

func (m *mockAssignmentRepo) ListCurrentByUser(ctx context.Context, userID string) ([]*entity.MyCaseSummary, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) ListOverdue(ctx context.Context, now time.Time) ([]*entity.CaseAssignment, error) {
	return nil, nil
}

func (m *mockAssignmentRepo) currentCount(caseID string) int {
	n := 0
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.IsCurrent {
			n++
		}
	}
	return n
}

type mockCommentRepo struct {
	comments []*entity.CaseComment
}

func (m *mockCommentRepo) Create(ctx context.Context, c *entity.CaseComment) error {
	m.comments = append(m.comments, c)
	return nil
}

func (m *mockCommentRepo) ListByCase(ctx context.Context, caseID string) ([]*entity.CaseComment, error) {
	return m.comments, nil
}

type mockSignatureRepo struct {
	signatures []*entity.ElectronicSignature
}

func (m *mockSignatureRepo) Create(ctx context.Context, s *entity.ElectronicSignature) error {
	m.signatures = append(m.signatures, s)
	return nil
}

func (m *mockSignatureRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ElectronicSignature, error) {
	return m.signatures, nil
}

type mockAuditLog struct {
	events    []*entity.AuditEvent
	appendErr error
}

func (m *mockAuditLog) Append(ctx context.Context, e *entity.AuditEvent) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *mockAuditLog) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditEvent, error) {
	var out []*entity.AuditEvent
	for _, e := range m.events {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditLog) actions() []string {
	var out []string
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockVerifier struct {
	passwords map[string]string
	err       error
}

func (m *mockVerifier) Verify(ctx context.Context, userID, secret string) error {
	if m.err != nil {
		return m.err
	}
	if m.passwords[userID] != secret {
		return port.ErrInvalidCredential
	}
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

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	var out []event.Type
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockMetrics struct {
	outcomes []string
}

func (m *mockMetrics) ObserveTransition(from, to, outcome string, duration time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}

// Fixture

type engineFixture struct {
	cases       *mockCaseStore
	assignments *mockAssignmentRepo
	comments    *mockCommentRepo
	signatures  *mockSignatureRepo
	audit       *mockAuditLog
	tx          *mockTxManager
	verifier    *mockVerifier
	dispatcher  *mockDispatcher
	metrics     *mockMetrics
	engine      WorkflowEngine
}

func newFixture(t *testing.T, c *entity.Case, opts ...EngineOption) *engineFixture {
	t.Helper()

	f := &engineFixture{
		cases:       &mockCaseStore{cases: map[string]*entity.Case{}},
		assignments: &mockAssignmentRepo{},
		comments:    &mockCommentRepo{},
		signatures:  &mockSignatureRepo{},
		audit:       &mockAuditLog{},
		tx:          &mockTxManager{},
		verifier:    &mockVerifier{passwords: map[string]string{"qa-lead": "correct horse"}},
		dispatcher:  &mockDispatcher{},
		metrics:     &mockMetrics{},
	}
	if c != nil {
		f.cases.cases[c.ID] = c
	}

	opts = append([]EngineOption{WithDispatcher(f.dispatcher), WithMetrics(f.metrics)}, opts...)
	f.engine = NewEngine(Stores{
		Cases:       f.cases,
		Assignments: f.assignments,
		Comments:    f.comments,
		Signatures:  f.signatures,
		Audit:       f.audit,
	}, f.tx, f.verifier, opts...)

	return f
}

func caseAt(status domainwf.Status) *entity.Case {
	return &entity.Case{
		ID:             "case-123",
		WorkflowStatus: status,
		CurrentOwner:   "owner-1",
		Version:        3,
	}
}

func perms(p ...string) domainwf.PermissionSet {
	return domainwf.PermissionSet(p)
}

// Tests

func TestEngine_GetAvailableActions(t *testing.T) {
	f := newFixture(t, nil)

	actions := f.engine.GetAvailableActions(domainwf.StatusInMedicalReview, perms(domainwf.PermissionApprove, domainwf.PermissionReject), true, false)
	require.Len(t, actions, 2)
	assert.Equal(t, domainwf.StatusMedicalReviewComplete, actions[0].To)
	assert.Equal(t, domainwf.StatusRejected, actions[1].To)

	actions = f.engine.GetAvailableActions(domainwf.StatusInMedicalReview, perms(domainwf.PermissionApprove), false, false)
	assert.Empty(t, actions)

	actions = f.engine.GetAvailableActions(domainwf.StatusRejected, perms(domainwf.PermissionWildcard), false, false)
	require.Len(t, actions, 1)
	assert.Equal(t, domainwf.StatusDraft, actions[0].To)
}

func TestEngine_GetAvailableActionsForCase(t *testing.T) {
	c := caseAt(domainwf.StatusInQCReview)
	c.CurrentAssignee = "reviewer"
	f := newFixture(t, c)

	actions, err := f.engine.GetAvailableActionsForCase(context.Background(), c.ID, Caller{
		UserID:      "reviewer",
		Permissions: perms(domainwf.PermissionApprove),
	})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domainwf.StatusQCComplete, actions[0].To)

	actions, err = f.engine.GetAvailableActionsForCase(context.Background(), "missing", Caller{})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestEngine_TransitionCaseNotFound(t *testing.T) {
	f := newFixture(t, nil)

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: "nope", ToStatus: domainwf.StatusDataEntryComplete}, Caller{UserID: "u1", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Equal(t, "Case not found", result.Error)
	assert.Equal(t, []string{OutcomeNotFound}, f.metrics.outcomes)
}

func TestEngine_TransitionInvalidHasNoSideEffects(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)

	result := f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:   c.ID,
		ToStatus: domainwf.StatusApproved,
		Comment:  "skip ahead",
		AssignTo: "someone",
	}, Caller{UserID: "u1", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Equal(t, "Invalid transition from Draft to Approved", result.Error)
	assert.Equal(t, domainwf.StatusDraft, f.cases.cases[c.ID].WorkflowStatus)
	assert.Equal(t, int64(3), f.cases.cases[c.ID].Version)
	assert.Empty(t, f.audit.events)
	assert.Empty(t, f.comments.comments)
	assert.Empty(t, f.assignments.assignments)
	assert.Empty(t, f.dispatcher.events)
}

func TestEngine_TransitionPermissionDeniedIsAudited(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1", Permissions: perms(domainwf.PermissionApprove), SessionID: "sess-1"})

	assert.False(t, result.Success)
	assert.Equal(t, "Permission denied", result.Error)
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, entity.AuditActionPermissionDenied, f.audit.events[0].Action)
	assert.Equal(t, "sess-1", f.audit.events[0].SessionID)
	assert.Equal(t, domainwf.StatusDraft, f.cases.cases[c.ID].WorkflowStatus)
}

func TestEngine_TransitionDeniedWhenAuditFails(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)
	f.audit.appendErr = errors.New("disk full")

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1"})

	assert.Equal(t, "Permission denied", result.Error)
}

func TestEngine_TransitionRoleGuards(t *testing.T) {
	tests := []struct {
		name    string
		status  domainwf.Status
		to      domainwf.Status
		caller  Caller
		success bool
	}{
		{
			name:    "assignee completes review",
			status:  domainwf.StatusInMedicalReview,
			to:      domainwf.StatusMedicalReviewComplete,
			caller:  Caller{UserID: "reviewer", Permissions: perms(domainwf.PermissionApprove)},
			success: true,
		},
		{
			name:   "non assignee completes review",
			status: domainwf.StatusInMedicalReview,
			to:     domainwf.StatusMedicalReviewComplete,
			caller: Caller{UserID: "other", Permissions: perms(domainwf.PermissionApprove)},
		},
		{
			name:    "view all completes review",
			status:  domainwf.StatusInQCReview,
			to:      domainwf.StatusQCComplete,
			caller:  Caller{UserID: "lead", Permissions: perms(domainwf.PermissionApprove, domainwf.PermissionViewAll)},
			success: true,
		},
		{
			name:    "owner returns to draft",
			status:  domainwf.StatusRejected,
			to:      domainwf.StatusDraft,
			caller:  Caller{UserID: "owner-1", Permissions: perms(domainwf.PermissionEditOwn)},
			success: true,
		},
		{
			name:   "non owner returns to draft",
			status: domainwf.StatusRejected,
			to:     domainwf.StatusDraft,
			caller: Caller{UserID: "other", Permissions: perms(domainwf.PermissionEditOwn)},
		},
		{
			name:    "edit all returns to draft",
			status:  domainwf.StatusRejected,
			to:      domainwf.StatusDraft,
			caller:  Caller{UserID: "other", Permissions: perms(domainwf.PermissionEditOwn, domainwf.PermissionEditAll)},
			success: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := caseAt(tt.status)
			c.CurrentAssignee = "reviewer"
			f := newFixture(t, c)

			result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: tt.to}, tt.caller)

			assert.Equal(t, tt.success, result.Success, result.Error)
			if !tt.success {
				assert.Equal(t, "Permission denied", result.Error)
			}
		})
	}
}

func TestEngine_RejectRequiresComment(t *testing.T) {
	c := caseAt(domainwf.StatusInMedicalReview)
	c.CurrentAssignee = "reviewer"
	f := newFixture(t, c)
	caller := Caller{UserID: "reviewer", Permissions: perms(domainwf.PermissionReject)}

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusRejected, Comment: "   "}, caller)
	assert.False(t, result.Success)
	assert.Equal(t, "Comment is required for this action", result.Error)

	result = f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusRejected, Comment: "Dose missing"}, caller)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, domainwf.StatusRejected, result.Case.WorkflowStatus)

	stored := f.cases.cases[c.ID]
	assert.Equal(t, 1, stored.RejectionCount)
	assert.Empty(t, stored.CurrentAssignee)
	require.Len(t, f.comments.comments, 1)
	assert.Equal(t, entity.CommentTypeRejection, f.comments.comments[0].CommentType)
	assert.Equal(t, []event.Type{event.TypeStatusChanged, event.TypeCaseRejected}, f.dispatcher.types())
	assert.Equal(t, "owner-1", f.dispatcher.events[1].GetPayloadString(event.KeyOwnerID))
}

func TestEngine_AssignmentRequired(t *testing.T) {
	c := caseAt(domainwf.StatusMedicalReviewComplete)
	f := newFixture(t, c)
	caller := Caller{UserID: "coordinator", Permissions: perms(domainwf.PermissionCaseAssign)}

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusInQCReview}, caller)
	assert.Equal(t, &TransitionResult{Success: false, Error: "Assignment is required for this action"}, result)

	due := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	result = f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:   c.ID,
		ToStatus: domainwf.StatusInQCReview,
		AssignTo: "user-456",
		DueDate:  &due,
		Priority: entity.PriorityHigh,
	}, caller)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "case-123", result.Case.CaseID)
	assert.Equal(t, domainwf.StatusInQCReview, result.Case.WorkflowStatus)
	assert.Equal(t, "user-456", result.Case.CurrentAssignee)
	assert.Equal(t, int64(4), result.Case.Version)

	require.Len(t, f.assignments.assignments, 1)
	a := f.assignments.assignments[0]
	assert.True(t, a.IsCurrent)
	assert.Equal(t, "user-456", a.AssignedTo)
	assert.Equal(t, "coordinator", a.AssignedBy)
	assert.Equal(t, entity.PriorityHigh, a.Priority)
	assert.Equal(t, 1, f.assignments.currentCount(c.ID))
	assert.Contains(t, f.dispatcher.types(), event.TypeCaseAssigned)
}

func TestEngine_SelfAssignmentDoesNotNotify(t *testing.T) {
	c := caseAt(domainwf.StatusDataEntryComplete)
	f := newFixture(t, c)

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusInMedicalReview, AssignTo: "me"},
		Caller{UserID: "me", Permissions: perms("*")})

	require.True(t, result.Success)
	assert.NotContains(t, f.dispatcher.types(), event.TypeCaseAssigned)
	assert.Equal(t, entity.PriorityNormal, f.assignments.assignments[0].Priority)
}

func TestEngine_SignatureRequired(t *testing.T) {
	c := caseAt(domainwf.StatusQCComplete)
	f := newFixture(t, c)
	caller := Caller{UserID: "qa-lead", Permissions: perms(domainwf.PermissionApprove), SessionID: "s-9"}

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusApproved}, caller)
	assert.Equal(t, "Electronic signature is required for this action", result.Error)

	result = f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:    c.ID,
		ToStatus:  domainwf.StatusApproved,
		Signature: &SignatureInput{Password: "wrong"},
	}, caller)
	assert.Equal(t, "Invalid signature", result.Error)
	assert.Empty(t, f.signatures.signatures)

	result = f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:    c.ID,
		ToStatus:  domainwf.StatusApproved,
		Signature: &SignatureInput{Password: "correct horse", Meaning: "Approved for submission"},
	}, caller)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, domainwf.StatusApproved, result.Case.WorkflowStatus)

	require.Len(t, f.signatures.signatures, 1)
	sig := f.signatures.signatures[0]
	assert.Equal(t, int64(3), sig.EntityVersion)
	assert.Equal(t, "Approved for submission", sig.Meaning)
	assert.Equal(t, "qa-lead", sig.UserID)
	assert.Equal(t, "s-9", sig.SessionID)
	assert.Equal(t, []string{entity.AuditActionElectronicSignature, entity.AuditActionWorkflowTransition}, f.audit.actions())
	assert.Contains(t, f.dispatcher.types(), event.TypeCaseApproved)
}

func TestEngine_SignatureVerifierError(t *testing.T) {
	c := caseAt(domainwf.StatusQCComplete)
	f := newFixture(t, c)
	f.verifier.err = errors.New("user store offline")

	result := f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:    c.ID,
		ToStatus:  domainwf.StatusApproved,
		Signature: &SignatureInput{Password: "x"},
	}, Caller{UserID: "qa-lead", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "user store offline")
}

func TestEngine_CheckOrder(t *testing.T) {
	c := caseAt(domainwf.StatusInMedicalReview)
	c.CurrentAssignee = "reviewer"
	f := newFixture(t, c)

	// permission is checked before the missing comment
	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusRejected},
		Caller{UserID: "reviewer", Permissions: perms(domainwf.PermissionApprove)})
	assert.Equal(t, "Permission denied", result.Error)

	// structure is checked before permission
	result = f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusSubmitted},
		Caller{UserID: "reviewer"})
	assert.Equal(t, "Invalid transition from In Medical Review to Submitted", result.Error)
}

func TestEngine_RoundTripThroughRejection(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)
	ctx := context.Background()

	owner := Caller{UserID: "owner-1", Permissions: perms(domainwf.PermissionSubmitReview, domainwf.PermissionEditOwn)}
	coordinator := Caller{UserID: "coord", Permissions: perms(domainwf.PermissionCaseAssign)}
	reviewer := Caller{UserID: "md-1", Permissions: perms(domainwf.PermissionReject)}

	steps := []struct {
		req    TransitionRequest
		caller Caller
	}{
		{TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete}, owner},
		{TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusInMedicalReview, AssignTo: "md-1"}, coordinator},
		{TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusRejected, Comment: "Narrative incomplete"}, reviewer},
		{TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDraft, Comment: "Reworking"}, owner},
	}

	for _, step := range steps {
		result := f.engine.Transition(ctx, step.req, step.caller)
		require.True(t, result.Success, "%s: %s", step.req.ToStatus, result.Error)
	}

	stored := f.cases.cases[c.ID]
	assert.Equal(t, domainwf.StatusDraft, stored.WorkflowStatus)
	assert.Equal(t, 1, stored.RejectionCount)
	assert.Empty(t, stored.CurrentAssignee)
	assert.Equal(t, int64(7), stored.Version)
	assert.Equal(t, 0, f.assignments.currentCount(c.ID), "rejection releases the reviewer")

	history, err := f.engine.GetCaseHistory(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "Draft", history[0].FromStatus)
	assert.Equal(t, "Rejected", history[2].ToStatus)
	assert.Equal(t, "Narrative incomplete", history[2].Comment)
	assert.Equal(t, entity.CommentTypeWorkflow, f.comments.comments[1].CommentType)
}

func TestEngine_VersionConflict(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)
	f.cases.conflict = true

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Equal(t, domainwf.ReasonVersionConflict, result.Error)
	assert.Empty(t, f.dispatcher.events)
	assert.Equal(t, []string{OutcomeConflict}, f.metrics.outcomes)
}

func TestEngine_PersistenceFailure(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)
	f.cases.updateErr = errors.New("database is locked")

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "database is locked")
	assert.Empty(t, f.dispatcher.events)

	f.cases.updateErr = nil
	f.tx.commitErr = errors.New("commit failed")
	result = f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1", Permissions: perms("*")})
	assert.Contains(t, result.Error, "commit failed")
}

func TestEngine_CaseDeletedDuringTransition(t *testing.T) {
	c := caseAt(domainwf.StatusDraft)
	f := newFixture(t, c)
	f.cases.vanished = true

	result := f.engine.Transition(context.Background(), TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusDataEntryComplete},
		Caller{UserID: "u1", Permissions: perms("*")})

	assert.False(t, result.Success)
	assert.Equal(t, domainwf.ReasonCaseNotFound, result.Error)
	assert.Nil(t, result.Case)
	assert.Empty(t, f.dispatcher.events)
	assert.Equal(t, []string{OutcomeNotFound}, f.metrics.outcomes)
}

func TestEngine_LeavingReviewReleasesAssignment(t *testing.T) {
	c := caseAt(domainwf.StatusDataEntryComplete)
	f := newFixture(t, c)
	ctx := context.Background()

	due := time.Now().Add(-48 * time.Hour)
	result := f.engine.Transition(ctx, TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusInMedicalReview, AssignTo: "reviewer", DueDate: &due},
		Caller{UserID: "coordinator", Permissions: perms(domainwf.PermissionCaseAssign)})
	require.True(t, result.Success, result.Error)

	current, err := f.assignments.GetCurrent(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "reviewer", current.AssignedTo)

	result = f.engine.Transition(ctx, TransitionRequest{CaseID: c.ID, ToStatus: domainwf.StatusMedicalReviewComplete},
		Caller{UserID: "reviewer", Permissions: perms(domainwf.PermissionApprove)})
	require.True(t, result.Success, result.Error)
	assert.Empty(t, result.Case.CurrentAssignee)

	current, err = f.assignments.GetCurrent(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Len(t, f.assignments.assignments, 1, "history is kept")
}

func TestEngine_NotificationFailureDoesNotFailTransition(t *testing.T) {
	c := caseAt(domainwf.StatusQCComplete)
	f := newFixture(t, c)

	d := dispatcher.NewDispatcher()
	d.Subscribe(event.TypeCaseApproved, func(ctx context.Context, evt *event.Event) error {
		return errors.New("lark unavailable")
	})
	d.Subscribe(event.TypeCaseApproved, func(ctx context.Context, evt *event.Event) error {
		panic("handler bug")
	})
	engine := NewEngine(Stores{
		Cases:       f.cases,
		Assignments: f.assignments,
		Comments:    f.comments,
		Signatures:  f.signatures,
		Audit:       f.audit,
	}, f.tx, f.verifier, WithDispatcher(d))

	result := engine.Transition(context.Background(), TransitionRequest{
		CaseID:    c.ID,
		ToStatus:  domainwf.StatusApproved,
		Signature: &SignatureInput{Password: "correct horse"},
	}, Caller{UserID: "qa-lead", Permissions: perms(domainwf.PermissionApprove)})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, DefaultSignatureMeaning, f.signatures.signatures[0].Meaning)
}

func TestEngine_CapabilitiesDisableOptionalWrites(t *testing.T) {
	c := caseAt(domainwf.StatusQCComplete)
	f := newFixture(t, c, WithCapabilities(domainwf.CapabilitiesForSchema(1)))

	result := f.engine.Transition(context.Background(), TransitionRequest{
		CaseID:    c.ID,
		ToStatus:  domainwf.StatusApproved,
		Signature: &SignatureInput{Password: "correct horse"},
	}, Caller{UserID: "qa-lead", Permissions: perms("*")})
	require.True(t, result.Success, result.Error)
	assert.Empty(t, f.signatures.signatures)

	c2 := caseAt(domainwf.StatusDataEntryComplete)
	c2.ID = "case-2"
	f.cases.cases[c2.ID] = c2
	result = f.engine.Transition(context.Background(), TransitionRequest{CaseID: c2.ID, ToStatus: domainwf.StatusInMedicalReview, AssignTo: "md"},
		Caller{UserID: "coord", Permissions: perms("*")})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "md", f.cases.cases[c2.ID].CurrentAssignee)
	assert.Empty(t, f.assignments.assignments)
	assert.False(t, f.engine.Capabilities().SignatureRecords)
}

func TestEngine_ReadOperations(t *testing.T) {
	c := caseAt(domainwf.StatusApproved)
	c.CurrentAssignee = "a1"
	f := newFixture(t, c)
	ctx := context.Background()

	status, err := f.engine.GetCaseWorkflowStatus(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, domainwf.StatusApproved, *status)

	details, err := f.engine.GetCaseWorkflowDetails(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", details.CurrentOwner)
	assert.Equal(t, "a1", details.CurrentAssignee)
	assert.Equal(t, int64(3), details.Version)

	status, err = f.engine.GetCaseWorkflowStatus(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, status)

	details, err = f.engine.GetCaseWorkflowDetails(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, details)

	f.cases.getErr = errors.New("io")
	_, err = f.engine.GetCaseWorkflowDetails(ctx, c.ID)
	assert.Error(t, err)
}
