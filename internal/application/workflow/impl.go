package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/icsr-workflow/internal/application/dispatcher"
	"github.com/garyjia/icsr-workflow/internal/application/port"
	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	"github.com/garyjia/icsr-workflow/internal/domain/event"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// DefaultSignatureMeaning is recorded when a signer supplies no attestation text
const DefaultSignatureMeaning = "I approve this case for submission"

// Stores groups the persistence collaborators used by the engine
type Stores struct {
	Cases       port.CaseStore
	Assignments port.AssignmentRepository
	Comments    port.CommentRepository
	Signatures  port.SignatureRepository
	Audit       port.AuditLog
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	stores      Stores
	txManager   port.TransactionManager
	credentials port.CredentialVerifier
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	metrics     MetricsRecorder

	table            *domainwf.Table
	capabilities     domainwf.Capabilities
	signatureMeaning string
	now              func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher used for notifications
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithCapabilities sets which optional side effects the store supports
func WithCapabilities(c domainwf.Capabilities) EngineOption {
	return func(e *engineImpl) {
		e.capabilities = c
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithMetrics sets the recorder for transition outcomes
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithSignatureMeaning overrides DefaultSignatureMeaning
func WithSignatureMeaning(meaning string) EngineOption {
	return func(e *engineImpl) {
		if meaning != "" {
			e.signatureMeaning = meaning
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine over the default transition table
func NewEngine(
	stores Stores,
	txManager port.TransactionManager,
	credentials port.CredentialVerifier,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		stores:           stores,
		txManager:        txManager,
		credentials:      credentials,
		table:            domainwf.DefaultTable(),
		capabilities:     domainwf.FullCapabilities(),
		signatureMeaning: DefaultSignatureMeaning,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Capabilities reports which optional side effects are enabled
func (e *engineImpl) Capabilities() domainwf.Capabilities {
	return e.capabilities
}

// GetAvailableActions lists the edges leaving currentStatus that the actor may take
func (e *engineImpl) GetAvailableActions(currentStatus domainwf.Status, permissions domainwf.PermissionSet, isAssignee, isOwner bool) []domainwf.Transition {
	return e.table.Available(currentStatus, domainwf.Actor{
		Permissions: permissions,
		IsAssignee:  isAssignee,
		IsOwner:     isOwner,
	})
}

// GetAvailableActionsForCase resolves assignee and owner from the stored case
func (e *engineImpl) GetAvailableActionsForCase(ctx context.Context, caseID string, caller Caller) ([]domainwf.Transition, error) {
	c, err := e.stores.Cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return []domainwf.Transition{}, nil
	}

	actor := actorFor(c, caller)
	return e.table.Available(c.WorkflowStatus, actor), nil
}

// GetCaseWorkflowStatus returns nil when the case does not exist
func (e *engineImpl) GetCaseWorkflowStatus(ctx context.Context, caseID string) (*domainwf.Status, error) {
	c, err := e.stores.Cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	status := c.WorkflowStatus
	return &status, nil
}

// GetCaseWorkflowDetails returns nil when the case does not exist
func (e *engineImpl) GetCaseWorkflowDetails(ctx context.Context, caseID string) (*entity.CaseWorkflowDetails, error) {
	c, err := e.stores.Cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	return c.Details(), nil
}

// GetCaseHistory derives the case's history from the audit log
func (e *engineImpl) GetCaseHistory(ctx context.Context, caseID string) ([]entity.CaseHistoryEntry, error) {
	events, err := e.stores.Audit.ListByEntity(ctx, entity.EntityTypeCase, caseID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	history := make([]entity.CaseHistoryEntry, 0, len(events))
	for _, evt := range events {
		history = append(history, evt.HistoryEntry())
	}
	return history, nil
}

// Transition moves a case along one edge, applying its side effects atomically
func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest, caller Caller) *TransitionResult {
	started := e.now()
	result, from, outcome := e.transition(ctx, req, caller)

	if e.metrics != nil {
		e.metrics.ObserveTransition(from.String(), req.ToStatus.String(), outcome, e.now().Sub(started))
	}
	if e.logger != nil {
		if result.Success {
			e.logger.Info("Case transitioned",
				"case_id", req.CaseID,
				"from", from,
				"to", req.ToStatus,
				"user_id", caller.UserID,
			)
		} else {
			e.logger.Info("Case transition refused",
				"case_id", req.CaseID,
				"from", from,
				"to", req.ToStatus,
				"user_id", caller.UserID,
				"outcome", outcome,
				"reason", result.Error,
			)
		}
	}

	return result
}

func (e *engineImpl) transition(ctx context.Context, req TransitionRequest, caller Caller) (*TransitionResult, domainwf.Status, string) {
	c, err := e.stores.Cases.GetByID(ctx, req.CaseID)
	if err != nil {
		return failure(fmt.Sprintf("Failed to load case: %v", err)), "", OutcomeError
	}
	if c == nil {
		return failure(domainwf.ReasonCaseNotFound), "", OutcomeNotFound
	}
	from := c.WorkflowStatus

	edge, err := e.table.Lookup(from, req.ToStatus)
	if err != nil {
		return failure(domainwf.InvalidTransitionReason(from, req.ToStatus)), from, OutcomeInvalidTransition
	}

	if err := edge.Authorize(actorFor(c, caller)); err != nil {
		e.recordDenial(ctx, c, edge, caller, err)
		return failure(domainwf.ReasonPermissionDenied), from, OutcomePermissionDenied
	}

	comment := strings.TrimSpace(req.Comment)
	if edge.RequiresComment && comment == "" {
		return failure(domainwf.ReasonCommentRequired), from, OutcomePreconditionFailed
	}

	assignTo := strings.TrimSpace(req.AssignTo)
	if edge.RequiresAssignment && assignTo == "" {
		return failure(domainwf.ReasonAssignmentRequired), from, OutcomePreconditionFailed
	}

	if edge.RequiresSignature {
		if req.Signature == nil || req.Signature.Password == "" {
			return failure(domainwf.ReasonSignatureRequired), from, OutcomePreconditionFailed
		}
		if err := e.credentials.Verify(ctx, caller.UserID, req.Signature.Password); err != nil {
			if errors.Is(err, port.ErrInvalidCredential) {
				return failure(domainwf.ReasonInvalidSignature), from, OutcomePreconditionFailed
			}
			return failure(fmt.Sprintf("Failed to verify signature: %v", err)), from, OutcomeError
		}
	}

	var updated *entity.Case
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = e.apply(txCtx, c, edge, req, caller, comment, assignTo)
		return err
	})
	if err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return failure(domainwf.ReasonVersionConflict), from, OutcomeConflict
		}
		if errors.Is(err, errCaseGone) {
			return failure(domainwf.ReasonCaseNotFound), from, OutcomeNotFound
		}
		return failure(fmt.Sprintf("Transition failed: %v", err)), from, OutcomeError
	}

	e.notify(ctx, c, edge, caller, comment, assignTo)

	return &TransitionResult{Success: true, Case: updated.Details()}, from, OutcomeSuccess
}

// errCaseGone reports that the case row disappeared between read and write
var errCaseGone = errors.New("case no longer exists")

// apply performs the authoritative writes. It runs inside a transaction.
func (e *engineImpl) apply(
	ctx context.Context,
	c *entity.Case,
	edge domainwf.Transition,
	req TransitionRequest,
	caller Caller,
	comment, assignTo string,
) (*entity.Case, error) {
	now := e.now()

	if edge.RequiresSignature && e.capabilities.SignatureRecords {
		meaning := e.signatureMeaning
		if req.Signature.Meaning != "" {
			meaning = req.Signature.Meaning
		}
		sig := &entity.ElectronicSignature{
			ID:            uuid.NewString(),
			UserID:        caller.UserID,
			EntityType:    entity.EntityTypeCase,
			EntityID:      c.ID,
			EntityVersion: c.Version,
			Action:        edge.Label,
			Meaning:       meaning,
			SessionID:     caller.SessionID,
			SignedAt:      now,
		}
		if err := e.stores.Signatures.Create(ctx, sig); err != nil {
			return nil, fmt.Errorf("record signature: %w", err)
		}
		if err := e.appendAudit(ctx, caller, entity.AuditActionElectronicSignature, c.ID, map[string]interface{}{
			"signature_id": sig.ID,
			"action":       sig.Action,
			"meaning":      sig.Meaning,
			"version":      sig.EntityVersion,
		}); err != nil {
			return nil, err
		}
	}

	update := entity.CaseUpdate{
		ExpectedVersion:     c.Version,
		WorkflowStatus:      edge.To,
		IncrementRejections: edge.To == domainwf.StatusRejected && e.capabilities.RejectionTracking,
	}
	if assignTo != "" {
		update.CurrentAssignee = &assignTo
		update.DueDate = req.DueDate
	} else if !edge.To.IsReview() {
		cleared := ""
		update.CurrentAssignee = &cleared
	}

	updated, err := e.stores.Cases.Update(ctx, c.ID, update)
	if err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}
	if updated == nil {
		return nil, errCaseGone
	}

	if assignTo == "" && !edge.To.IsReview() && e.capabilities.AssignmentTracking {
		if err := e.stores.Assignments.ClearCurrent(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("clear current assignment: %w", err)
		}
	}

	if assignTo != "" && e.capabilities.AssignmentTracking {
		priority := req.Priority
		if priority == "" {
			priority = entity.PriorityNormal
		}
		assignment := &entity.CaseAssignment{
			ID:         uuid.NewString(),
			CaseID:     c.ID,
			AssignedTo: assignTo,
			AssignedBy: caller.UserID,
			AssignedAt: now,
			DueDate:    req.DueDate,
			Priority:   priority,
			Notes:      comment,
			IsCurrent:  true,
		}
		if err := e.stores.Assignments.Create(ctx, assignment); err != nil {
			return nil, fmt.Errorf("create assignment: %w", err)
		}
		if err := e.stores.Assignments.SetCurrent(ctx, c.ID, assignment.ID); err != nil {
			return nil, fmt.Errorf("set current assignment: %w", err)
		}
	}

	if comment != "" {
		commentType := entity.CommentTypeWorkflow
		if edge.To == domainwf.StatusRejected {
			commentType = entity.CommentTypeRejection
		}
		if err := e.stores.Comments.Create(ctx, &entity.CaseComment{
			ID:          uuid.NewString(),
			CaseID:      c.ID,
			UserID:      caller.UserID,
			CommentType: commentType,
			Content:     comment,
			CreatedAt:   now,
		}); err != nil {
			return nil, fmt.Errorf("create comment: %w", err)
		}
	}

	if err := e.appendAudit(ctx, caller, entity.AuditActionWorkflowTransition, c.ID, entity.TransitionDetails{
		FromStatus: c.WorkflowStatus.String(),
		ToStatus:   edge.To.String(),
		Comment:    comment,
		AssignedTo: assignTo,
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// recordDenial writes a permission_denied audit entry. Failures are logged only.
func (e *engineImpl) recordDenial(ctx context.Context, c *entity.Case, edge domainwf.Transition, caller Caller, cause error) {
	err := e.appendAudit(ctx, caller, entity.AuditActionPermissionDenied, c.ID, entity.TransitionDetails{
		FromStatus: edge.From.String(),
		ToStatus:   edge.To.String(),
		Reason:     cause.Error(),
	})
	if err != nil && e.logger != nil {
		e.logger.Error("Failed to audit permission denial",
			"case_id", c.ID,
			"user_id", caller.UserID,
			"error", err,
		)
	}
}

func (e *engineImpl) appendAudit(ctx context.Context, caller Caller, action, caseID string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	if err := e.stores.Audit.Append(ctx, &entity.AuditEvent{
		UserID:     caller.UserID,
		SessionID:  caller.SessionID,
		Action:     action,
		EntityType: entity.EntityTypeCase,
		EntityID:   caseID,
		Details:    raw,
		CreatedAt:  e.now(),
	}); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// notify publishes post-commit events. Handler failures never reach the caller.
func (e *engineImpl) notify(ctx context.Context, c *entity.Case, edge domainwf.Transition, caller Caller, comment, assignTo string) {
	if e.dispatcher == nil {
		return
	}

	base := map[string]interface{}{
		event.KeyActorID:    caller.UserID,
		event.KeyFromStatus: edge.From.String(),
		event.KeyToStatus:   edge.To.String(),
		event.KeyOwnerID:    c.CurrentOwner,
	}
	changed := event.NewEvent(event.TypeStatusChanged, c.ID, base)
	e.dispatcher.Publish(ctx, changed)

	follow := func(eventType event.Type, extra map[string]interface{}) *event.Event {
		payload := make(map[string]interface{}, len(base)+len(extra))
		for k, v := range base {
			payload[k] = v
		}
		for k, v := range extra {
			payload[k] = v
		}
		return event.NewEventWithCorrelation(eventType, c.ID, payload, changed.CorrelationID)
	}

	if assignTo != "" && assignTo != caller.UserID {
		e.dispatcher.Publish(ctx, follow(event.TypeCaseAssigned, map[string]interface{}{
			event.KeyAssigneeID: assignTo,
		}))
	}

	switch edge.To {
	case domainwf.StatusRejected:
		e.dispatcher.Publish(ctx, follow(event.TypeCaseRejected, map[string]interface{}{
			event.KeyComment: comment,
		}))
	case domainwf.StatusApproved:
		e.dispatcher.Publish(ctx, follow(event.TypeCaseApproved, nil))
	}
}

func actorFor(c *entity.Case, caller Caller) domainwf.Actor {
	return domainwf.Actor{
		Permissions: caller.Permissions,
		IsAssignee:  c.CurrentAssignee != "" && c.CurrentAssignee == caller.UserID,
		IsOwner:     c.CurrentOwner != "" && c.CurrentOwner == caller.UserID,
	}
}

func failure(reason string) *TransitionResult {
	return &TransitionResult{Success: false, Error: reason}
}
