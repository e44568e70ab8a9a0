package entity

import "time"

// CaseComment is an append-only remark on a case
type CaseComment struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	UserID      string    `json:"user_id"`
	CommentType string    `json:"comment_type"`
	Content     string    `json:"content"`
	Mentions    []string  `json:"mentions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CaseNote is a working note on a case. Resolution fields are set at most once.
type CaseNote struct {
	ID         string     `json:"id"`
	CaseID     string     `json:"case_id"`
	UserID     string     `json:"user_id"`
	Visibility string     `json:"visibility"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// IsResolved reports whether the note has been resolved
func (n *CaseNote) IsResolved() bool {
	return n.ResolvedAt != nil
}

// VisibleTo reports whether the user may read the note
func (n *CaseNote) VisibleTo(userID string) bool {
	return n.Visibility == NoteVisibilityTeam || n.UserID == userID
}
