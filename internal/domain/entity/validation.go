package entity

import "time"

// ValidationRule is a configurable condition and check evaluated against a case snapshot
type ValidationRule struct {
	ID                   int64     `json:"id"`
	RuleCode             string    `json:"rule_code"`
	RuleName             string    `json:"rule_name"`
	Description          string    `json:"description,omitempty"`
	RuleType             string    `json:"rule_type"`
	Severity             string    `json:"severity"`
	ConditionExpression  string    `json:"condition_expression,omitempty"`
	ValidationExpression string    `json:"validation_expression"`
	ErrorMessage         string    `json:"error_message"`
	FieldPath            string    `json:"field_path,omitempty"`
	RelatedFields        []string  `json:"related_fields,omitempty"`
	IsSystem             bool      `json:"is_system"`
	IsActive             bool      `json:"is_active"`
	CreatedBy            string    `json:"created_by,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RuleFilter narrows a rule listing. Nil fields do not filter.
type RuleFilter struct {
	RuleType *string `json:"rule_type,omitempty"`
	Severity *string `json:"severity,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	IsSystem *bool   `json:"is_system,omitempty"`
	Search   string  `json:"search,omitempty"`
}

// ValidationResult is one violated rule from a validation run
type ValidationResult struct {
	ID                  int64      `json:"id"`
	CaseID              string     `json:"case_id"`
	RuleID              int64      `json:"rule_id"`
	RuleCode            string     `json:"rule_code"`
	RuleName            string     `json:"rule_name"`
	Severity            string     `json:"severity"`
	Message             string     `json:"message"`
	FieldPath           string     `json:"field_path,omitempty"`
	FieldValue          string     `json:"field_value,omitempty"`
	IsAcknowledged      bool       `json:"is_acknowledged"`
	AcknowledgedBy      string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt      *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgmentNotes string     `json:"acknowledgment_notes,omitempty"`
	ValidatedAt         time.Time  `json:"validated_at"`
}

// ValidationSummary aggregates a case's stored validation results
type ValidationSummary struct {
	CaseID                    string             `json:"case_id"`
	ErrorCount                int                `json:"error_count"`
	WarningCount              int                `json:"warning_count"`
	InfoCount                 int                `json:"info_count"`
	IsValid                   bool               `json:"is_valid"`
	HasUnacknowledgedWarnings bool               `json:"has_unacknowledged_warnings"`
	CanSubmit                 bool               `json:"can_submit"`
	Results                   []ValidationResult `json:"results"`
	ValidatedAt               *time.Time         `json:"validated_at,omitempty"`
}

// NewValidationSummary computes counts and submission gates over results
func NewValidationSummary(caseID string, results []ValidationResult) *ValidationSummary {
	summary := &ValidationSummary{
		CaseID:  caseID,
		Results: results,
	}
	if summary.Results == nil {
		summary.Results = []ValidationResult{}
	}

	for i := range results {
		r := &results[i]
		switch r.Severity {
		case SeverityError:
			summary.ErrorCount++
		case SeverityWarning:
			summary.WarningCount++
			if !r.IsAcknowledged {
				summary.HasUnacknowledgedWarnings = true
			}
		case SeverityInfo:
			summary.InfoCount++
		}
		if summary.ValidatedAt == nil || r.ValidatedAt.After(*summary.ValidatedAt) {
			validatedAt := r.ValidatedAt
			summary.ValidatedAt = &validatedAt
		}
	}

	summary.IsValid = summary.ErrorCount == 0
	summary.CanSubmit = summary.IsValid && !summary.HasUnacknowledgedWarnings

	return summary
}

// RuleTestResult is the outcome of dry-running a rule against sample data
type RuleTestResult struct {
	Passed    bool              `json:"passed"`
	Triggered bool              `json:"triggered"`
	Result    *ValidationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}
