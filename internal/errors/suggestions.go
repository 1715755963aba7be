package errors

import "errors"

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	// User input errors
	ErrMedicationNotFound:  "Use 'medremind medication list' to see active medications.",
	ErrMedicationInactive:  "The medication was removed. Add it again with 'medremind medication add'.",
	ErrDuplicateMedication: "An active medication with this name exists. Update its frequency instead.",
	ErrNameRequired:        "Provide a medication name, e.g. 'medremind medication add Amoxicillin'.",
	ErrReminderNotFound:    "Use 'medremind reminder list' to see active reminders.",
	ErrInvalidClock:        "Reminder times use 24h HH:MM format, like '09:00' or '20:00'.",
	ErrUserRequired:        "Pass --user or set MEDREMIND_USER.",
	ErrInvalidTimestamp:    "Try formats like '9am', 'tomorrow 8pm', or '20:00'.",
	ErrWebhookNotFound:     "Use 'medremind webhook list' to see configured webhooks.",
	ErrInvalidURL:          "Provide a valid URL starting with https:// (or http:// for localhost).",

	// System errors
	ErrDiskFull:           "Free up disk space and try again.",
	ErrDatabaseCorrupted:  "Stop the daemon and restore the data directory from a backup.",
	ErrNetworkUnavailable: "Check your internet connection. Webhook notifications will retry automatically.",
	ErrLockHeld:           "Another medremind instance holds the database. Use 'medremind daemon stop' or check for stale processes.",
	ErrTimeout:            "The operation took too long. Try again.",
	ErrPermissionDenied:   "Check file permissions in your data directory (~/.local/share/medremind/).",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}

	return ""
}

// CommandExamples provides example commands for common errors.
var CommandExamples = map[error][]string{
	ErrNameRequired: {
		"medremind medication add Amoxicillin --dosage 500mg --frequency 1-0-1",
		"medremind medication add \"Vitamin D\" --frequency morning",
	},
	ErrInvalidTimestamp: {
		"medremind reminder tick --at 9am",
		"medremind reminder tick --at \"tomorrow 20:00\"",
	},
	ErrUserRequired: {
		"medremind --user alice medication list",
	},
}

// GetExamples returns example commands for an error.
func GetExamples(err error) []string {
	for knownErr, examples := range CommandExamples {
		if errors.Is(err, knownErr) {
			return examples
		}
	}
	return nil
}
