package model

import "time"

// EventType names a realtime event delivered on a user's channel.
type EventType string

// Event types.
const (
	EventMedicationReminder EventType = "medication_reminder"
	EventMedicationAdded    EventType = "medication_added"
	EventMedicationTaken    EventType = "medication_taken"
	EventTest               EventType = "test"
)

// Alert is the payload of a fired reminder. Field names are part of the
// client contract and must not change.
type Alert struct {
	ReminderID     string    `json:"reminderId"`
	MedicationID   string    `json:"medicationId"`
	MedicationName string    `json:"medicationName"`
	Dosage         string    `json:"dosage"`
	Instructions   string    `json:"instructions"`
	Time           string    `json:"time"`
	FiredAt        time.Time `json:"firedAt"`
}

// NewAlert builds the alert for a reminder of med fired at firedAt.
func NewAlert(r *Reminder, med *Medication, firedAt time.Time) Alert {
	return Alert{
		ReminderID:     r.ID,
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Dosage:         med.Dosage,
		Instructions:   med.Instructions,
		Time:           r.Time,
		FiredAt:        firedAt,
	}
}

// Event is one message on a user's channel.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped now.
func NewEvent(t EventType, userID string, data any) Event {
	return Event{
		Type:      t,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// MedicationTaken is the data of an EventMedicationTaken event.
type MedicationTaken struct {
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	TakenAt        time.Time `json:"taken_at"`
}

// Title returns a short human-readable headline for the event.
func (e Event) Title() string {
	switch e.Type {
	case EventMedicationReminder:
		if a, ok := e.Data.(Alert); ok {
			return "Time to take " + a.MedicationName
		}
		return "Medication reminder"
	case EventMedicationAdded:
		if m, ok := e.Data.(*Medication); ok {
			return "Medication added: " + m.Name
		}
		return "Medication added"
	case EventMedicationTaken:
		if t, ok := e.Data.(MedicationTaken); ok {
			return "Medication taken: " + t.MedicationName
		}
		return "Medication taken"
	case EventTest:
		return "medremind test"
	default:
		return string(e.Type)
	}
}
