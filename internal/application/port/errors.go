package port

import "errors"

var (
	// ErrVersionConflict is returned by versioned writes when the stored version moved on
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidCredential is returned when a re-authentication secret does not match
	ErrInvalidCredential = errors.New("invalid credential")
)
