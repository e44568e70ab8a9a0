package workflow

// Status represents a case's position in the review and approval lifecycle
type Status string

const (
	StatusDraft                 Status = "Draft"
	StatusDataEntryComplete     Status = "Data Entry Complete"
	StatusInMedicalReview       Status = "In Medical Review"
	StatusMedicalReviewComplete Status = "Medical Review Complete"
	StatusInQCReview            Status = "In QC Review"
	StatusQCComplete            Status = "QC Complete"
	StatusApproved              Status = "Approved"
	StatusSubmitted             Status = "Submitted"
	StatusAcknowledged          Status = "Acknowledged"
	StatusRejected              Status = "Rejected"

	// PSR aggregation statuses are owned by the periodic report flow.
	StatusPendingPSR    Status = "Pending PSR"
	StatusIncludedInPSR Status = "Included in PSR"
)

// InitialStatus is the status every case starts in
const InitialStatus = StatusDraft

var terminalStatuses = map[Status]bool{
	StatusAcknowledged: true,
}

var reviewStatuses = map[Status]bool{
	StatusInMedicalReview: true,
	StatusInQCReview:      true,
}

// IsTerminal returns true if no further transitions leave the status
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsReview returns true for statuses in which an assignee is actively reviewing
func (s Status) IsReview() bool {
	return reviewStatuses[s]
}

// IsPSR returns true for the periodic report aggregation statuses
func (s Status) IsPSR() bool {
	return s == StatusPendingPSR || s == StatusIncludedInPSR
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known workflow status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusDataEntryComplete, StatusInMedicalReview, StatusMedicalReviewComplete,
		StatusInQCReview, StatusQCComplete, StatusApproved, StatusSubmitted, StatusAcknowledged,
		StatusRejected, StatusPendingPSR, StatusIncludedInPSR:
		return true
	}
	return false
}
