// Package errors provides consistent error types for medremind.
// It defines three main categories: UserError (fixable by user), SystemError (system issues),
// and RecoverableError (can be automatically retried).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common conditions.
var (
	ErrMedicationNotFound  = errors.New("medication not found")
	ErrMedicationInactive  = errors.New("medication is inactive")
	ErrDuplicateMedication = errors.New("medication already exists")
	ErrNameRequired        = errors.New("medication name is required")
	ErrReminderNotFound    = errors.New("reminder not found")
	ErrInvalidClock        = errors.New("invalid reminder time")
	ErrUserRequired        = errors.New("user id is required")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrWebhookNotFound     = errors.New("webhook not found")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrDiskFull            = errors.New("disk full")
	ErrDatabaseCorrupted   = errors.New("database corrupted")
	ErrNetworkUnavailable  = errors.New("network unavailable")
	ErrLockHeld            = errors.New("database locked by another process")
	ErrTimeout             = errors.New("operation timed out")
	ErrPermissionDenied    = errors.New("permission denied")
)

// UserError represents an error that the user can fix.
// Examples: invalid input, duplicate medication name, unknown id.
type UserError struct {
	Message    string // What happened
	Suggestion string // How to fix it
	Field      string // The field/input that caused the error (optional)
	Value      string // The invalid value (optional)
	Cause      error  // Sentinel or underlying error (optional)
}

func (e *UserError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// NotFound creates a UserError for a missing entity that still matches the
// sentinel with errors.Is.
func NotFound(sentinel error, id string) *UserError {
	return &UserError{
		Message:    sentinel.Error(),
		Field:      "id",
		Value:      id,
		Suggestion: Suggestions[sentinel],
		Cause:      sentinel,
	}
}

// Invalid creates a UserError for a bad field value that matches the
// sentinel with errors.Is.
func Invalid(sentinel error, field, value string) *UserError {
	return &UserError{
		Message:    sentinel.Error(),
		Field:      field,
		Value:      value,
		Suggestion: Suggestions[sentinel],
		Cause:      sentinel,
	}
}

// SystemError represents a system-level error that the user cannot directly fix.
// Examples: disk full, database unreachable.
type SystemError struct {
	Message string // What happened
	Cause   error  // The underlying error
	Op      string // The operation that failed (optional)
}

func (e *SystemError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	return e.Message
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// RecoverableError represents an error that can be automatically retried.
// Examples: transaction conflict, webhook endpoint temporarily down.
type RecoverableError struct {
	Message    string // What happened
	Cause      error  // The underlying error
	RetryCount int    // Number of retries attempted so far
	MaxRetries int    // Maximum number of retries allowed
	CanRetry   bool   // Whether retry is still possible
}

func (e *RecoverableError) Error() string {
	if e.RetryCount > 0 {
		return fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.RetryCount, e.MaxRetries)
	}
	return e.Message
}

func (e *RecoverableError) Unwrap() error {
	return e.Cause
}

// NewRecoverableError creates a new RecoverableError.
func NewRecoverableError(message string, cause error, maxRetries int) *RecoverableError {
	return &RecoverableError{
		Message:    message,
		Cause:      cause,
		MaxRetries: maxRetries,
		CanRetry:   true,
	}
}

// IncrementRetry increments the retry count and updates CanRetry.
func (e *RecoverableError) IncrementRetry() {
	e.RetryCount++
	e.CanRetry = e.RetryCount < e.MaxRetries
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsRecoverableError checks if an error is a RecoverableError.
func IsRecoverableError(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// HTTPStatus maps an error to the status code the HTTP surface reports.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMedicationNotFound),
		errors.Is(err, ErrReminderNotFound),
		errors.Is(err, ErrWebhookNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateMedication):
		return http.StatusConflict
	case errors.Is(err, ErrMedicationInactive):
		return http.StatusGone
	case IsUserError(err):
		return http.StatusBadRequest
	case IsRecoverableCategory(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
