package model

import (
	"fmt"
	"strings"
	"time"
)

// MedicationLog records that a user took a medication. Logs are append-only.
type MedicationLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	MedicationID string    `json:"medication_id"`
	TakenAt      time.Time `json:"taken_at"`
	Notes        string    `json:"notes,omitempty"`
}

// SetKey sets the database key for this log entry.
func (l *MedicationLog) SetKey(key string) {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		l.ID = key[i+1:]
	}
}

// GetKey returns the database key for this log entry. Keys sort by time
// within a user.
func (l *MedicationLog) GetKey() string {
	return GenerateMedicationLogKey(l.UserID, l.TakenAt, l.ID)
}

// GenerateMedicationLogKey generates a database key for a log entry.
func GenerateMedicationLogKey(userID string, takenAt time.Time, id string) string {
	return fmt.Sprintf("%s%020d:%s", MedicationLogPrefix(userID), takenAt.UnixNano(), id)
}

// MedicationLogPrefix returns the key prefix of all logs of a user.
func MedicationLogPrefix(userID string) string {
	return fmt.Sprintf("%s:%s:", PrefixMedicationLog, userID)
}

// NewMedicationLog creates a log entry taken now.
func NewMedicationLog(userID, medicationID, notes string) *MedicationLog {
	return &MedicationLog{
		UserID:       userID,
		MedicationID: medicationID,
		TakenAt:      time.Now(),
		Notes:        notes,
	}
}
