package workflow

import "strings"

// Permission codes checked by the transition table
const (
	PermissionWildcard     = "*"
	PermissionSubmitReview = "submit_review"
	PermissionCaseAssign   = "case.assign"
	PermissionApprove      = "workflow.approve"
	PermissionReject       = "workflow.reject"
	PermissionSubmitFDA    = "workflow.submit_fda"
	PermissionEditOwn      = "case.edit.own"
	PermissionEditAll      = "case.edit.all"
	PermissionViewAll      = "case.view.all"
)

// PermissionSet is the set of permission codes held by the acting user
type PermissionSet []string

// ParsePermissions splits a comma separated permission list, dropping blanks
func ParsePermissions(raw string) PermissionSet {
	var perms PermissionSet
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

// Has reports whether the set grants the permission. The wildcard grants everything.
func (p PermissionSet) Has(permission string) bool {
	for _, held := range p {
		if held == PermissionWildcard || held == permission {
			return true
		}
	}
	return false
}
