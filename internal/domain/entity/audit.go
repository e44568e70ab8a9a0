package entity

import (
	"encoding/json"
	"time"
)

// AuditEvent is an append-only audit trail entry
type AuditEvent struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	SessionID  string          `json:"session_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransitionDetails is the payload recorded for workflow transitions and denials
type TransitionDetails struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Comment    string `json:"comment,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CaseHistoryEntry is one row of a case's derived history
type CaseHistoryEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	UserID     string    `json:"user_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryEntry derives a history entry from an audit event. Unparseable details are ignored.
func (e *AuditEvent) HistoryEntry() CaseHistoryEntry {
	entry := CaseHistoryEntry{
		ID:        e.ID,
		Action:    e.Action,
		UserID:    e.UserID,
		Timestamp: e.CreatedAt,
	}

	var details TransitionDetails
	if len(e.Details) > 0 && json.Unmarshal(e.Details, &details) == nil {
		entry.FromStatus = details.FromStatus
		entry.ToStatus = details.ToStatus
		entry.Comment = details.Comment
	}

	return entry
}
