package notify

import (
	"encoding/json"
	"time"

	"github.com/manav03panchal/medremind/internal/model"
)

// GenericFormatter posts the event itself as JSON. For reminders the data
// object is the alert payload with its client field names.
type GenericFormatter struct{}

// genericPayload is the payload for generic webhooks.
type genericPayload struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Format converts an event to the generic webhook format.
func (f *GenericFormatter) Format(e model.Event) ([]byte, error) {
	return json.Marshal(genericPayload{
		Type:      string(e.Type),
		UserID:    e.UserID,
		Title:     e.Title(),
		Message:   eventMessage(e),
		Data:      e.Data,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	})
}

// ContentType returns the content type for generic webhooks.
func (f *GenericFormatter) ContentType() string {
	return "application/json"
}
