package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when no edge connects two statuses
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not valid
	ErrInvalidStatus = errors.New("invalid status")

	// ErrPermissionDenied is returned when the actor fails a permission or role check
	ErrPermissionDenied = errors.New("permission denied")
)

// Reason strings returned to callers of a transition. Callers match on these literally.
const (
	ReasonCaseNotFound       = "Case not found"
	ReasonPermissionDenied   = "Permission denied"
	ReasonCommentRequired    = "Comment is required for this action"
	ReasonAssignmentRequired = "Assignment is required for this action"
	ReasonSignatureRequired  = "Electronic signature is required for this action"
	ReasonInvalidSignature   = "Invalid signature"
	ReasonVersionConflict    = "Case was modified by another user; reload and try again"
)

// InvalidTransitionReason formats the reason for a missing edge
func InvalidTransitionReason(from, to Status) string {
	return fmt.Sprintf("Invalid transition from %s to %s", from, to)
}
