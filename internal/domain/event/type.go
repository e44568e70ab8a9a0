package event

// Type identifies the type of domain event
type Type string

const (
	TypeStatusChanged      Type = "case.status_changed"
	TypeCaseAssigned       Type = "case.assigned"
	TypeCaseRejected       Type = "case.rejected"
	TypeCaseApproved       Type = "case.approved"
	TypeAssignmentOverdue  Type = "assignment.overdue"
	TypeCommentMentioned   Type = "comment.mentioned"
	TypeValidationComplete Type = "validation.completed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeStatusChanged,
		TypeCaseAssigned,
		TypeCaseRejected,
		TypeCaseApproved,
		TypeAssignmentOverdue,
		TypeCommentMentioned,
		TypeValidationComplete:
		return true
	default:
		return false
	}
}

// Payload keys shared by publishers and handlers
const (
	KeyActorID      = "actor_id"
	KeyFromStatus   = "from_status"
	KeyToStatus     = "to_status"
	KeyOwnerID      = "owner_id"
	KeyAssigneeID   = "assignee_id"
	KeyComment      = "comment"
	KeyAssignmentID = "assignment_id"
	KeyDueDate      = "due_date"
	KeyMentionedIDs = "mentioned_ids"
	KeyErrorCount   = "error_count"
	KeyWarningCount = "warning_count"
)
