package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned for illegal transitions and business-rule violations
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an optimistic-lock version check fails
	ErrConflict = errors.New("version conflict")

	// ErrNotFound is returned when an aggregate is absent under the given tenant
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrValidation)

	// ErrInvalidRecord is returned when a persisted row cannot be rebuilt into a valid aggregate
	ErrInvalidRecord = errors.New("invalid persisted record")
)

// NotFoundError names the missing entity
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError names the entity whose version did not match
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// DefinitionInvalidError carries every issue reported by the definition validator
type DefinitionInvalidError struct {
	Issues []ValidationIssue
}

func (e *DefinitionInvalidError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Message)
	}
	return fmt.Sprintf("definition is invalid: %s", strings.Join(msgs, "; "))
}

func (e *DefinitionInvalidError) Unwrap() error {
	return ErrValidation
}

// NewNotFound builds a NotFoundError
func NewNotFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// NewConflict builds a ConflictError
func NewConflict(entity string, id fmt.Stringer) error {
	return &ConflictError{Entity: entity, ID: id.String()}
}

// CheckVersion returns a ConflictError when the caller's expected version is stale
func CheckVersion(entity string, id fmt.Stringer, actual, expected int) error {
	if actual != expected {
		return NewConflict(entity, id)
	}
	return nil
}

func invalidRecordf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// Validationf builds an error that wraps ErrValidation
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Forbiddenf builds an error that wraps ErrForbidden
func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the caller should re-fetch and retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// ErrorKind classifies an error for metrics and transport mapping
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
