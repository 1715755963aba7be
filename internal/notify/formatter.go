// Package notify delivers per-user events to live sessions and webhooks.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/manav03panchal/medremind/internal/model"
)

// Formatter formats events for a specific webhook type.
type Formatter interface {
	// Format converts an event into the webhook-specific payload.
	Format(e model.Event) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the appropriate formatter for a webhook type.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case model.WebhookTypeDiscord:
		return &DiscordFormatter{}
	case model.WebhookTypeSlack:
		return &SlackFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// Event colors.
const (
	ColorReminder = 0xF1C40F
	ColorAdded    = 0x2ECC71
	ColorTaken    = 0x3498DB
	ColorDefault  = 0x95A5A6
)

// colorFor returns the embed color of an event type.
func colorFor(t model.EventType) int {
	switch t {
	case model.EventMedicationReminder:
		return ColorReminder
	case model.EventMedicationAdded:
		return ColorAdded
	case model.EventMedicationTaken:
		return ColorTaken
	default:
		return ColorDefault
	}
}

// field is one labelled value shown by chat formatters. Fields are kept in a
// slice so payloads render in a stable order.
type field struct {
	Name  string
	Value string
}

// eventMessage returns the body line shown under the event title.
func eventMessage(e model.Event) string {
	switch data := e.Data.(type) {
	case model.Alert:
		if data.Dosage != "" {
			return fmt.Sprintf("Take %s of %s (scheduled %s).", data.Dosage, data.MedicationName, data.Time)
		}
		return fmt.Sprintf("Take %s (scheduled %s).", data.MedicationName, data.Time)
	case *model.Medication:
		return fmt.Sprintf("%s was added to your medications.", data.Name)
	case model.MedicationTaken:
		return fmt.Sprintf("%s logged at %s.", data.MedicationName, model.FormatClock(data.TakenAt))
	case string:
		return data
	default:
		return ""
	}
}

// eventFields returns the non-empty detail fields of an event.
func eventFields(e model.Event) []field {
	var fields []field
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, field{Name: name, Value: value})
		}
	}

	switch data := e.Data.(type) {
	case model.Alert:
		add("Dosage", data.Dosage)
		add("Time", data.Time)
		add("Instructions", data.Instructions)
	case *model.Medication:
		add("Dosage", data.Dosage)
		add("Frequency", data.Frequency)
		add("Instructions", data.Instructions)
	case model.MedicationTaken:
		add("Taken at", data.TakenAt.Format(time.RFC3339))
	}
	return fields
}
