package validation

import "errors"

var (
	// ErrCaseNotFound is returned when validating a case that does not exist
	ErrCaseNotFound = errors.New("case not found")

	// ErrRuleNotFound is returned when the referenced rule does not exist
	ErrRuleNotFound = errors.New("validation rule not found")

	// ErrDuplicateRuleCode is returned when creating a rule whose code is taken
	ErrDuplicateRuleCode = errors.New("validation rule code already exists")

	// ErrSystemRuleImmutable is returned when editing or deleting a system rule
	ErrSystemRuleImmutable = errors.New("system rules cannot be modified or deleted")

	// ErrInvalidRule wraps request validation failures and expressions that fail their dry run
	ErrInvalidRule = errors.New("invalid validation rule")
)
