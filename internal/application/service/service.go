package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrCaseNotFound is returned when the referenced case does not exist
	ErrCaseNotFound = errors.New("case not found")

	// ErrNoteNotFound is returned when the referenced note does not exist
	ErrNoteNotFound = errors.New("note not found")

	// ErrNoteAlreadyResolved is returned on a second resolve of the same note
	ErrNoteAlreadyResolved = errors.New("note already resolved")

	// ErrNoteNotVisible is returned when acting on another user's personal note
	ErrNoteNotVisible = errors.New("note not visible to user")

	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest checks a request struct's validate tags
func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
