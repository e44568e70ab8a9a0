package workflow

import (
	"fmt"
	"sync"
)

// Table is the fixed set of legal case transitions
type Table struct {
	edges map[Status][]Transition
	order []Status
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns the case workflow used by the engine.
// The table is built on first use and never changes afterwards.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = newDefaultTable()
	})
	return defaultTable
}

func newDefaultTable() *Table {
	b := NewBuilder()

	b.Configure(StatusDraft).
		Permit(StatusDataEntryComplete, PermissionSubmitReview, "Submit for Review")

	b.Configure(StatusDataEntryComplete).
		Permit(StatusInMedicalReview, PermissionCaseAssign, "Assign for Medical Review",
			RequireAssignment())

	b.Configure(StatusInMedicalReview).
		Permit(StatusMedicalReviewComplete, PermissionApprove, "Complete Medical Review",
			GuardedBy(GuardAssigneeOrViewAll)).
		Permit(StatusRejected, PermissionReject, "Reject",
			RequireComment(), GuardedBy(GuardAssigneeOrViewAll))

	b.Configure(StatusMedicalReviewComplete).
		Permit(StatusInQCReview, PermissionCaseAssign, "Assign for QC Review",
			RequireAssignment())

	b.Configure(StatusInQCReview).
		Permit(StatusQCComplete, PermissionApprove, "Complete QC Review",
			GuardedBy(GuardAssigneeOrViewAll)).
		Permit(StatusRejected, PermissionReject, "Reject",
			RequireComment(), GuardedBy(GuardAssigneeOrViewAll))

	b.Configure(StatusQCComplete).
		Permit(StatusApproved, PermissionApprove, "Approve",
			RequireSignature())

	b.Configure(StatusApproved).
		Permit(StatusSubmitted, PermissionSubmitFDA, "Submit to FDA")

	b.Configure(StatusSubmitted).
		Permit(StatusAcknowledged, PermissionSubmitFDA, "Record Acknowledgment")

	b.Configure(StatusRejected).
		Permit(StatusDraft, PermissionEditOwn, "Return to Draft",
			GuardedBy(GuardOwnerOrEditAll))

	return b.Build()
}

// Lookup returns the edge between two statuses
func (t *Table) Lookup(from, to Status) (Transition, error) {
	for _, edge := range t.edges[from] {
		if edge.To == to {
			return edge, nil
		}
	}
	return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// From returns every edge leaving the status
func (t *Table) From(from Status) []Transition {
	return append([]Transition{}, t.edges[from]...)
}

// Available returns the edges leaving the status that the actor may take
func (t *Table) Available(from Status, actor Actor) []Transition {
	available := make([]Transition, 0, len(t.edges[from]))
	for _, edge := range t.edges[from] {
		if edge.Allows(actor) {
			available = append(available, edge)
		}
	}
	return available
}

// All returns every edge in configuration order
func (t *Table) All() []Transition {
	var all []Transition
	for _, from := range t.order {
		all = append(all, t.edges[from]...)
	}
	return all
}
