package entity

// Assignment priority constants
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Comment type constants
const (
	CommentTypeGeneral   = "general"
	CommentTypeQuery     = "query"
	CommentTypeResponse  = "response"
	CommentTypeRejection = "rejection"
	CommentTypeWorkflow  = "workflow"
)

// Note visibility constants
const (
	NoteVisibilityPersonal = "personal"
	NoteVisibilityTeam     = "team"
)

// Notification type constants
const (
	NotificationTypeAssignment = "assignment"
	NotificationTypeRejection  = "rejection"
	NotificationTypeApproval   = "approval"
	NotificationTypeMention    = "mention"
	NotificationTypeOverdue    = "overdue"
)

// Notification delivery status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
	NotificationStatusSkipped = "SKIPPED"
)

// Audit action constants
const (
	AuditActionPermissionDenied     = "permission_denied"
	AuditActionWorkflowTransition   = "workflow_transition"
	AuditActionElectronicSignature  = "electronic_signature"
	AuditActionAssignmentCreated    = "assignment_created"
	AuditActionValidationRun        = "validation_run"
	AuditActionWarningsAcknowledged = "warnings_acknowledged"
	AuditActionRuleCreated          = "validation_rule_created"
	AuditActionRuleUpdated          = "validation_rule_updated"
	AuditActionRuleToggled          = "validation_rule_toggled"
	AuditActionRuleDeleted          = "validation_rule_deleted"
)

// Entity type constants used by the audit log and signatures
const (
	EntityTypeCase           = "case"
	EntityTypeAssignment     = "case_assignment"
	EntityTypeValidationRule = "validation_rule"
)

// Validation rule type constants
const (
	RuleTypeRequired   = "required"
	RuleTypeFormat     = "format"
	RuleTypeRange      = "range"
	RuleTypeCrossField = "cross_field"
	RuleTypeDateLogic  = "date_logic"
	RuleTypeCustom     = "custom"
)

// Validation severity constants
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

var priorityRank = map[string]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// PriorityRank orders priorities from most to least urgent. Unknown priorities sort last.
func PriorityRank(priority string) int {
	if rank, ok := priorityRank[priority]; ok {
		return rank
	}
	return len(priorityRank)
}
