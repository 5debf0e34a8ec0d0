package todo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no record has the requested id.
var ErrNotFound = errors.New("todo not found")

// ValidationError reports text rejected at creation.
type ValidationError struct {
	// Field names the offending input field.
	Field string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorKind categorizes a failed operation for the display layer.
type ErrorKind string

const (
	// KindFetchFailed indicates the list could not be retrieved.
	KindFetchFailed ErrorKind = "FETCH_FAILED"

	// KindCreateFailed indicates the store failed to create a record.
	KindCreateFailed ErrorKind = "CREATE_FAILED"

	// KindValidationFailed indicates empty or too-long text.
	KindValidationFailed ErrorKind = "VALIDATION_FAILED"

	// KindToggleFailed indicates the store failed to update completion.
	KindToggleFailed ErrorKind = "TOGGLE_FAILED"

	// KindDeleteFailed indicates the store failed to delete a record.
	KindDeleteFailed ErrorKind = "DELETE_FAILED"

	// KindNotFound indicates a stale or unknown id.
	KindNotFound ErrorKind = "NOT_FOUND"
)

// Message returns the text shown to the user for this kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindFetchFailed:
		return "Failed to fetch todos"
	case KindCreateFailed:
		return "Failed to create todo"
	case KindValidationFailed:
		return "Todo text must be 1-200 characters"
	case KindToggleFailed:
		return "Failed to toggle todo"
	case KindDeleteFailed:
		return "Failed to delete todo"
	case KindNotFound:
		return "Todo not found"
	default:
		return string(k)
	}
}

// Classify maps a store error to an ErrorKind. fallback is used for errors
// that are neither ErrNotFound nor a *ValidationError.
func Classify(err error, fallback ErrorKind) ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return KindNotFound
	case IsValidation(err):
		return KindValidationFailed
	default:
		return fallback
	}
}
