package entity

import "time"

// CaseAssignment records one assignment action. Only IsCurrent changes after insert.
type CaseAssignment struct {
	ID         string     `json:"id"`
	CaseID     string     `json:"case_id"`
	AssignedTo string     `json:"assigned_to"`
	AssignedBy string     `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Priority   string     `json:"priority"`
	Notes      string     `json:"notes,omitempty"`
	IsCurrent  bool       `json:"is_current"`
}

// IsOverdue reports whether the assignment's due date has passed at now
func (a *CaseAssignment) IsOverdue(now time.Time) bool {
	return a.DueDate != nil && a.DueDate.Before(now)
}

// MyCaseSummary is a current assignment as shown in a user's work queue
type MyCaseSummary struct {
	AssignmentID   string     `json:"assignment_id"`
	CaseID         string     `json:"case_id"`
	WorkflowStatus string     `json:"workflow_status"`
	AssignedBy     string     `json:"assigned_by"`
	AssignedAt     time.Time  `json:"assigned_at"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Priority       string     `json:"priority"`
	Notes          string     `json:"notes,omitempty"`
	IsOverdue      bool       `json:"is_overdue"`
}
