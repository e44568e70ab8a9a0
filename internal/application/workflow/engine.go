package workflow

import (
	"context"
	"time"

	"github.com/garyjia/icsr-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// Caller identifies who is acting. It is always passed explicitly.
type Caller struct {
	UserID      string
	Permissions domainwf.PermissionSet
	SessionID   string
}

// SignatureInput carries the re-authentication secret and attestation for a signed transition
type SignatureInput struct {
	Password string `json:"password"`
	Meaning  string `json:"meaning,omitempty"`
}

// TransitionRequest asks to move a case to a new status
type TransitionRequest struct {
	CaseID    string          `json:"case_id"`
	ToStatus  domainwf.Status `json:"to_status"`
	Comment   string          `json:"comment,omitempty"`
	AssignTo  string          `json:"assign_to,omitempty"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	Priority  string          `json:"priority,omitempty"`
	Signature *SignatureInput `json:"signature,omitempty"`
}

// TransitionResult is the outcome of a transition. Failures carry a reason string, never a Go error.
type TransitionResult struct {
	Success bool                        `json:"success"`
	Case    *entity.CaseWorkflowDetails `json:"case,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// WorkflowEngine enforces the case workflow
type WorkflowEngine interface {
	// GetAvailableActions lists the edges leaving currentStatus that the actor may take
	GetAvailableActions(currentStatus domainwf.Status, permissions domainwf.PermissionSet, isAssignee, isOwner bool) []domainwf.Transition

	// GetAvailableActionsForCase resolves assignee and owner from the stored case
	GetAvailableActionsForCase(ctx context.Context, caseID string, caller Caller) ([]domainwf.Transition, error)

	// Transition moves a case along one edge, applying its side effects atomically
	Transition(ctx context.Context, req TransitionRequest, caller Caller) *TransitionResult

	// GetCaseWorkflowStatus returns nil when the case does not exist
	GetCaseWorkflowStatus(ctx context.Context, caseID string) (*domainwf.Status, error)

	// GetCaseWorkflowDetails returns nil when the case does not exist
	GetCaseWorkflowDetails(ctx context.Context, caseID string) (*entity.CaseWorkflowDetails, error)

	// GetCaseHistory derives the case's history from the audit log
	GetCaseHistory(ctx context.Context, caseID string) ([]entity.CaseHistoryEntry, error)

	// Capabilities reports which optional side effects are enabled
	Capabilities() domainwf.Capabilities
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsRecorder receives transition outcomes
type MetricsRecorder interface {
	ObserveTransition(from, to, outcome string, duration time.Duration)
}

// Transition outcome labels
const (
	OutcomeSuccess            = "success"
	OutcomeNotFound           = "not_found"
	OutcomeInvalidTransition  = "invalid_transition"
	OutcomePermissionDenied   = "permission_denied"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeConflict           = "conflict"
	OutcomeError              = "error"
)
