// Package model defines the domain models for medremind.
package model

import "strings"

// Model is the interface that all database models must implement.
type Model interface {
	// SetKey sets the database key for this model.
	SetKey(key string)
	// GetKey returns the database key for this model.
	GetKey() string
}

// KeyPrefix constants for database key generation.
const (
	PrefixMedication      = "medication"
	PrefixReminder        = "reminder"
	PrefixMedicationLog   = "medlog"
	PrefixReminderIndex   = "reminderidx"
	PrefixMedicationIndex = "mednameidx"
)

// idFromKey strips a "prefix:" from key and returns the remainder.
func idFromKey(prefix, key string) string {
	return strings.TrimPrefix(key, prefix+":")
}
