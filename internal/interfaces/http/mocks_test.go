package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/service"
	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/application/workflow"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockWorkflowEngine struct {
	lastCaller  workflow.Caller
	lastRequest workflow.TransitionRequest

	availableFn  func(status domainwf.Status, perms domainwf.PermissionSet, isAssignee, isOwner bool) []domainwf.Transition
	transitionFn func(req workflow.TransitionRequest, caller workflow.Caller) *workflow.TransitionResult
	statusFn     func(caseID string) (*domainwf.Status, error)
	detailsFn    func(caseID string) (*entity.CaseWorkflowDetails, error)
}

func (m *mockWorkflowEngine) GetAvailableActions(status domainwf.Status, perms domainwf.PermissionSet, isAssignee, isOwner bool) []domainwf.Transition {
	if m.availableFn != nil {
		return m.availableFn(status, perms, isAssignee, isOwner)
	}
	return nil
}

func (m *mockWorkflowEngine) GetAvailableActionsForCase(ctx context.Context, caseID string, caller workflow.Caller) ([]domainwf.Transition, error) {
	m.lastCaller = caller
	return []domainwf.Transition{}, nil
}

func (m *mockWorkflowEngine) Transition(ctx context.Context, req workflow.TransitionRequest, caller workflow.Caller) *workflow.TransitionResult {
	m.lastRequest = req
	m.lastCaller = caller
	return m.transitionFn(req, caller)
}

func (m *mockWorkflowEngine) GetCaseWorkflowStatus(ctx context.Context, caseID string) (*domainwf.Status, error) {
	return m.statusFn(caseID)
}

func (m *mockWorkflowEngine) GetCaseWorkflowDetails(ctx context.Context, caseID string) (*entity.CaseWorkflowDetails, error) {
	return m.detailsFn(caseID)
}

func (m *mockWorkflowEngine) GetCaseHistory(ctx context.Context, caseID string) ([]entity.CaseHistoryEntry, error) {
	return []entity.CaseHistoryEntry{}, nil
}

func (m *mockWorkflowEngine) Capabilities() domainwf.Capabilities {
	return domainwf.Capabilities{}
}

type mockValidationEngine struct {
	runFn         func(caseID, userID string) (*entity.ValidationSummary, error)
	acknowledgeFn func(caseID string, ids []int64, userID, notes string) (*entity.ValidationSummary, error)
	testFn        func(req validation.RuleRequest, sample json.RawMessage) *entity.RuleTestResult
}

func (m *mockValidationEngine) RunValidation(ctx context.Context, caseID, userID string) (*entity.ValidationSummary, error) {
	return m.runFn(caseID, userID)
}

func (m *mockValidationEngine) GetValidationResults(ctx context.Context, caseID string) (*entity.ValidationSummary, error) {
	return entity.NewValidationSummary(caseID, nil), nil
}

func (m *mockValidationEngine) AcknowledgeWarnings(ctx context.Context, caseID string, ids []int64, userID, notes string) (*entity.ValidationSummary, error) {
	return m.acknowledgeFn(caseID, ids, userID, notes)
}

func (m *mockValidationEngine) TestRule(ctx context.Context, req validation.RuleRequest, sample json.RawMessage) *entity.RuleTestResult {
	return m.testFn(req, sample)
}

type mockRuleService struct {
	getFn    func(id int64) (*entity.ValidationRule, error)
	listFn   func(filter entity.RuleFilter) ([]*entity.ValidationRule, error)
	createFn func(req validation.RuleRequest, by string) (*entity.ValidationRule, error)
	deleteFn func(id int64, by string) error
}

func (m *mockRuleService) GetRules(ctx context.Context, filter entity.RuleFilter) ([]*entity.ValidationRule, error) {
	return m.listFn(filter)
}

func (m *mockRuleService) GetRule(ctx context.Context, id int64) (*entity.ValidationRule, error) {
	return m.getFn(id)
}

func (m *mockRuleService) CreateRule(ctx context.Context, req validation.RuleRequest, createdBy string) (*entity.ValidationRule, error) {
	return m.createFn(req, createdBy)
}

func (m *mockRuleService) UpdateRule(ctx context.Context, id int64, req validation.RuleRequest, updatedBy string) (*entity.ValidationRule, error) {
	return nil, validation.ErrSystemRuleImmutable
}

func (m *mockRuleService) ToggleRule(ctx context.Context, id int64, active bool, updatedBy string) (*entity.ValidationRule, error) {
	return &entity.ValidationRule{ID: id, IsActive: active}, nil
}

func (m *mockRuleService) DeleteRule(ctx context.Context, id int64, deletedBy string) error {
	return m.deleteFn(id, deletedBy)
}

func (m *mockRuleService) SeedSystemRules(ctx context.Context) (int, error) {
	return 3, nil
}

type mockNoteService struct {
	resolveFn func(noteID, userID string) (*entity.CaseNote, error)
}

func (m *mockNoteService) AddNote(ctx context.Context, req service.AddNoteRequest, userID string) (*entity.CaseNote, error) {
	return &entity.CaseNote{ID: "n-1", CaseID: req.CaseID, UserID: userID, Visibility: req.Visibility, Content: req.Content}, nil
}

func (m *mockNoteService) GetNotes(ctx context.Context, caseID, userID string) ([]*entity.CaseNote, error) {
	return nil, nil
}

func (m *mockNoteService) ResolveNote(ctx context.Context, noteID, userID string) (*entity.CaseNote, error) {
	return m.resolveFn(noteID, userID)
}

type mockNotificationService struct {
	listUnreadOnly bool
	markedID       string
	markedUser     string
}

func (m *mockNotificationService) Notify(ctx context.Context, req service.NotifyRequest) (*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*entity.Notification, error) {
	m.listUnreadOnly = unreadOnly
	return []*entity.Notification{{ID: "nt-1", UserID: userID, CreatedAt: time.Now()}}, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	m.markedID = notificationID
	m.markedUser = userID
	return nil
}

func (m *mockNotificationService) RegisterHandlers(d dispatcher.Dispatcher) {}

type mockReporter struct {
	data []byte
	err  error
}

func (m *mockReporter) ExportValidationReport(ctx context.Context, caseID string) ([]byte, error) {
	return m.data, m.err
}

type recordingObserver struct {
	routes []string
}

func (r *recordingObserver) ObserveRequest(route, method string, status int, d time.Duration) {
	r.routes = append(r.routes, method+" "+route)
}
