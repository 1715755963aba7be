package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/medremind/internal/errors"
)

// TimeParseError represents a time parsing error with helpful suggestions.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// Unwrap lets errors.Is match the generic timestamp sentinel.
func (e *TimeParseError) Unwrap() error {
	return errors.ErrInvalidTimestamp
}

// FormatWithExamples returns the error message with example suggestions.
func (e *TimeParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// TimestampExamples provides example timestamp formats.
var TimestampExamples = []string{
	"9am",
	"8:00pm",
	"20:00",
	"tomorrow at 9am",
	"2 hours ago",
	"now",
}

// DateRangeExamples provides example date range formats.
var DateRangeExamples = []string{
	"today",
	"yesterday",
	"this week",
	"last week",
	"this month",
	"last month",
}

// NewTimestampError creates a timestamp parse error with standard examples.
func NewTimestampError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "timestamp",
		Message:    "could not parse time",
		Examples:   TimestampExamples,
		Suggestion: "Try using natural language like '9am', 'tomorrow 8pm', or '14:30'.",
	}
}

// NewDateRangeError creates a date range parse error with standard examples.
func NewDateRangeError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "date range",
		Message:    "could not parse date range",
		Examples:   DateRangeExamples,
		Suggestion: "Use period names like 'today', 'this week', or 'last month'.",
	}
}

// ToUserError converts a TimeParseError to a UserError for consistent
// handling. The parse error stays in the chain.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if len(e.Examples) > 0 && suggestion == "" {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}

	ue := errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
	ue.Cause = e
	return ue
}
