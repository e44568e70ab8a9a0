package entity

import (
	"encoding/json"
	"time"

	"github.com/garyjia/icsr-workflow/internal/domain/workflow"
)

// Case is the workflow-relevant projection of an ICSR case record
type Case struct {
	ID              string          `json:"id"`
	WorkflowStatus  workflow.Status `json:"workflow_status"`
	CurrentOwner    string          `json:"current_owner,omitempty"`
	CurrentAssignee string          `json:"current_assignee,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	DueDateType     string          `json:"due_date_type,omitempty"`
	Version         int64           `json:"version"`
	RejectionCount  int             `json:"rejection_count"`
	// Data is the full case document used as the validation snapshot
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CaseWorkflowDetails is the read model returned to workflow callers
type CaseWorkflowDetails struct {
	CaseID          string          `json:"case_id"`
	WorkflowStatus  workflow.Status `json:"workflow_status"`
	CurrentOwner    string          `json:"current_owner,omitempty"`
	CurrentAssignee string          `json:"current_assignee,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	DueDateType     string          `json:"due_date_type,omitempty"`
	Version         int64           `json:"version"`
}

// Details projects the case onto its workflow details
func (c *Case) Details() *CaseWorkflowDetails {
	return &CaseWorkflowDetails{
		CaseID:          c.ID,
		WorkflowStatus:  c.WorkflowStatus,
		CurrentOwner:    c.CurrentOwner,
		CurrentAssignee: c.CurrentAssignee,
		DueDate:         c.DueDate,
		DueDateType:     c.DueDateType,
		Version:         c.Version,
	}
}

// CaseUpdate describes a versioned write to a case's workflow fields.
// A nil pointer leaves the field unchanged; an empty string clears it.
type CaseUpdate struct {
	ExpectedVersion     int64
	WorkflowStatus      workflow.Status
	CurrentAssignee     *string
	DueDate             *time.Time
	IncrementRejections bool
}
