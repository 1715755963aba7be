package model

import (
	"fmt"
	"strings"
	"time"
)

// Medication sources.
const (
	SourceManual    = "manual"
	SourceExtracted = "extracted"
)

// DefaultExtractionConfidence is used when the extraction pipeline does not
// report a confidence score for a candidate.
const DefaultExtractionConfidence = 0.8

// Medication is a drug a user takes on a daily schedule.
type Medication struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name" validate:"required,max=128"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	Instructions string    `json:"instructions"`
	Duration     string    `json:"duration,omitempty"`
	Active       bool      `json:"active"`
	Source       string    `json:"source"`
	Confidence   *float64  `json:"confidence,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetKey sets the database key for this medication.
func (m *Medication) SetKey(key string) {
	m.ID = idFromKey(PrefixMedication, key)
}

// GetKey returns the database key for this medication.
func (m *Medication) GetKey() string {
	return GenerateMedicationKey(m.ID)
}

// IsExtracted returns true if the medication came from prescription extraction.
func (m *Medication) IsExtracted() bool {
	return m.Source == SourceExtracted
}

// NameIndexKey returns the key reserving this medication's name for its user.
func (m *Medication) NameIndexKey() string {
	return GenerateMedicationNameIndexKey(m.UserID, m.Name)
}

// GenerateMedicationKey generates a database key for a medication.
func GenerateMedicationKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixMedication, id)
}

// GenerateMedicationNameIndexKey generates the key that reserves a medication
// name for a user while the medication is active.
func GenerateMedicationNameIndexKey(userID, name string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixMedicationIndex, userID, NormalizeName(name))
}

// NormalizeName folds a medication name for comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewMedication creates a new active, manually entered medication.
func NewMedication(userID, name, dosage, frequency, instructions string) *Medication {
	now := time.Now()
	return &Medication{
		UserID:       userID,
		Name:         strings.TrimSpace(name),
		Dosage:       dosage,
		Frequency:    frequency,
		Instructions: instructions,
		Active:       true,
		Source:       SourceManual,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
