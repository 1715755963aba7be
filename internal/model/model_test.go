package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Medication Tests
// =============================================================================

func TestNewMedication(t *testing.T) {
	med := NewMedication("u1", "  Amoxicillin ", "500mg", "twice daily", "after food")

	assert.Equal(t, "u1", med.UserID)
	assert.Equal(t, "Amoxicillin", med.Name)
	assert.True(t, med.Active)
	assert.Equal(t, SourceManual, med.Source)
	assert.False(t, med.IsExtracted())
	assert.False(t, med.CreatedAt.IsZero())
}

func TestMedicationSetGetKey(t *testing.T) {
	med := &Medication{}
	med.SetKey("medication:abc123")
	assert.Equal(t, "abc123", med.ID)
	assert.Equal(t, "medication:abc123", med.GetKey())
}

func TestMedicationNameIndexKey(t *testing.T) {
	assert.Equal(t, "mednameidx:u1:aspirin", GenerateMedicationNameIndexKey("u1", " Aspirin "))

	med := NewMedication("u1", "ASPIRIN", "", "daily", "")
	assert.Equal(t, "mednameidx:u1:aspirin", med.NameIndexKey())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "07:05", FormatClock(time.Date(2024, 3, 10, 7, 5, 59, 0, time.UTC)))
}

// =============================================================================
// Reminder Tests
// =============================================================================

func TestReminderSetGetKey(t *testing.T) {
	r := &Reminder{}
	r.SetKey("reminder:r-1")
	assert.Equal(t, "r-1", r.ID)
	assert.Equal(t, "reminder:r-1", r.GetKey())
}

func TestReminderIndexKey(t *testing.T) {
	r := NewReminder("u1", "m1", "09:00")
	assert.Equal(t, "reminderidx:u1:m1:09:00", r.IndexKey())
}

func TestReminderDueAt(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 12, 0, time.Local)
	r := NewReminder("u1", "m1", "20:00")

	due, err := r.DueAt(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 20, 0, 0, 0, time.Local), due)

	r.Time = "8pm"
	_, err = r.DueAt(now)
	assert.Error(t, err)
}

func TestReminderFiredOn(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	r := NewReminder("u1", "m1", "09:00")
	assert.False(t, r.FiredOn(now))

	earlier := now.Add(-time.Hour)
	r.LastFiredAt = &earlier
	assert.True(t, r.FiredOn(now))

	yesterday := now.AddDate(0, 0, -1)
	r.LastFiredAt = &yesterday
	assert.False(t, r.FiredOn(now))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"9:00", 0, 0, true},
		{"09:60", 0, 0, true},
		{"0900", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestSameDayAndStartOfDay(t *testing.T) {
	a := time.Date(2024, 3, 10, 0, 0, 1, 0, time.Local)
	b := time.Date(2024, 3, 10, 23, 59, 59, 0, time.Local)
	c := time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local), StartOfDay(b))
}

// =============================================================================
// Alert Tests
// =============================================================================

func TestAlertJSONFieldNames(t *testing.T) {
	firedAt := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	med := &Medication{ID: "m1", Name: "Aspirin", Dosage: "81mg", Instructions: "with food"}
	r := &Reminder{ID: "r1", Time: "09:00"}

	data, err := json.Marshal(NewAlert(r, med, firedAt))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Len(t, fields, 7)
	assert.Equal(t, "r1", fields["reminderId"])
	assert.Equal(t, "m1", fields["medicationId"])
	assert.Equal(t, "Aspirin", fields["medicationName"])
	assert.Equal(t, "81mg", fields["dosage"])
	assert.Equal(t, "with food", fields["instructions"])
	assert.Equal(t, "09:00", fields["time"])
	assert.Equal(t, "2024-03-10T09:00:00Z", fields["firedAt"])
}

func TestEventTitle(t *testing.T) {
	alert := Alert{MedicationName: "Aspirin"}
	assert.Equal(t, "Time to take Aspirin", NewEvent(EventMedicationReminder, "u1", alert).Title())
	assert.Equal(t, "Medication added: Ibuprofen",
		NewEvent(EventMedicationAdded, "u1", &Medication{Name: "Ibuprofen"}).Title())
	assert.Equal(t, "custom", Event{Type: "custom"}.Title())
}

// =============================================================================
// Webhook Tests
// =============================================================================

func TestWebhookKeys(t *testing.T) {
	wh := NewWebhook("u1", "phone", WebhookTypeGeneric, "https://example.com/hook")
	assert.Equal(t, "webhook:u1:phone", wh.GetKey())

	parsed := &Webhook{}
	parsed.SetKey("webhook:u2:desk")
	assert.Equal(t, "u2", parsed.UserID)
	assert.Equal(t, "desk", parsed.Name)
}

func TestDetectWebhookType(t *testing.T) {
	assert.Equal(t, WebhookTypeDiscord, DetectWebhookType("https://discord.com/api/webhooks/1/abc"))
	assert.Equal(t, WebhookTypeSlack, DetectWebhookType("https://hooks.slack.com/services/x"))
	assert.Equal(t, WebhookTypeGeneric, DetectWebhookType("https://example.com/hook"))
}

func TestIsValidWebhookName(t *testing.T) {
	assert.True(t, IsValidWebhookName("phone-1"))
	assert.False(t, IsValidWebhookName(""))
	assert.False(t, IsValidWebhookName("-bad"))
	assert.False(t, IsValidWebhookName("has space"))
}
