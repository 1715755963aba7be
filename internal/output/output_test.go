package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/manav03panchal/medremind/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainCLI() (*CLIFormatter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewCLIFormatter(&Formatter{Writer: &buf, ColorMode: ColorNever}), &buf
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestNewFormatter(t *testing.T) {
	f := NewFormatter()
	assert.NotNil(t, f)
	assert.Equal(t, FormatCLI, f.Format)
	assert.Equal(t, ColorAuto, f.ColorMode)
}

func TestFormatterIsColorEnabled(t *testing.T) {
	t.Run("color_always", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorAlways}
		assert.True(t, f.IsColorEnabled())
	})

	t.Run("color_never", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorNever}
		assert.False(t, f.IsColorEnabled())
	})

	t.Run("color_auto_non_terminal", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Writer: &buf, ColorMode: ColorAuto}
		assert.False(t, f.IsColorEnabled())
	})
}

func TestFormatterPrinting(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	f.Print("a")
	f.Println("b")
	f.Printf("%s-%d", "c", 1)
	assert.Equal(t, "ab\nc-1", buf.String())
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	require.NoError(t, f.JSON(map[string]string{"key": "value"}))
	assert.Contains(t, buf.String(), `"key": "value"`)
}

// =============================================================================
// Time Formatting Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{60 * time.Second, "1m"},
		{90 * time.Second, "1m 30s"},
		{time.Hour, "1h"},
		{time.Hour + 15*time.Minute, "1h 15m"},
		{26 * time.Hour, "26h"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration))
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 10, 9, 5, 7, 0, time.Local)
	assert.Equal(t, "2024-03-10 09:05:07", FormatTime(ts))
	assert.Equal(t, "09:05", FormatTimeOnly(ts))
	assert.Equal(t, "2024-03-10 09:05:07", FormatOptionalTime(&ts))
	assert.Equal(t, "never", FormatOptionalTime(nil))
}

// =============================================================================
// CLI Formatter Tests
// =============================================================================

func TestCLIFormatterMessages(t *testing.T) {
	c, buf := plainCLI()

	c.Title("Title")
	c.Success("done")
	c.Warning("careful")
	c.Error("failed")
	c.Muted("quiet")

	assert.Equal(t, "Title\n✓ done\n⚠ careful\n✗ failed\nquiet\n", buf.String())
}

func TestCLIFormatterColorStyles(t *testing.T) {
	c := NewCLIFormatter(&Formatter{Writer: &bytes.Buffer{}, ColorMode: ColorAlways})
	assert.Contains(t, c.MedicationName("Aspirin"), "Aspirin")
	assert.Contains(t, c.Clock("09:00"), "09:00")

	plain, _ := plainCLI()
	assert.Equal(t, "Aspirin", plain.MedicationName("Aspirin"))
	assert.Equal(t, "09:00", plain.Clock("09:00"))
	assert.Equal(t, "note", plain.Note("note"))
}

func TestPrintMedication(t *testing.T) {
	c, buf := plainCLI()
	conf := 0.8
	med := &model.Medication{
		ID:           "m1",
		Name:         "Amoxicillin",
		Dosage:       "500mg",
		Frequency:    "1-0-1",
		Instructions: "after food",
		Source:       model.SourceExtracted,
		Confidence:   &conf,
		Active:       true,
	}
	reminders := []*model.Reminder{{Time: "09:00"}, {Time: "20:00"}}

	c.PrintMedication(med, reminders)
	out := buf.String()
	assert.Contains(t, out, "Amoxicillin 500mg\n")
	assert.Contains(t, out, "Frequency: 1-0-1")
	assert.Contains(t, out, "Instructions: after food")
	assert.Contains(t, out, "extracted (80% confidence)")
	assert.Contains(t, out, "Reminders: 09:00, 20:00")
	assert.NotContains(t, out, "inactive")
}

func TestPrintMedications(t *testing.T) {
	c, buf := plainCLI()
	c.PrintMedications(nil)
	assert.Contains(t, buf.String(), "No active medications.")

	c, buf = plainCLI()
	c.PrintMedications([]*model.Medication{
		{ID: "0123456789abcdef", Name: "Aspirin", Dosage: "81mg", Frequency: "morning", Source: model.SourceManual},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[2], "01234567")
	assert.NotContains(t, lines[2], "89abcdef")
	assert.Contains(t, lines[2], "Aspirin")
}

func TestPrintReminders(t *testing.T) {
	c, buf := plainCLI()
	c.PrintReminders(nil)
	assert.Contains(t, buf.String(), "No active reminders.")

	c, buf = plainCLI()
	c.PrintReminders([]ReminderRow{
		{ID: "r1", MedicationName: "Aspirin", Time: "09:00", LastFired: "never"},
		{ID: "r2", MedicationName: "Cetirizine", Time: "20:00", LastFired: "never"},
	})
	out := buf.String()
	assert.Contains(t, out, "TIME")
	assert.Less(t, strings.Index(out, "Aspirin"), strings.Index(out, "Cetirizine"))
}

func TestPrintAlert(t *testing.T) {
	c, buf := plainCLI()
	c.PrintAlert(model.Alert{MedicationName: "Aspirin", Dosage: "81mg", Instructions: "with food", Time: "09:00"})
	assert.Equal(t, "09:00  Time to take Aspirin (81mg)\n       with food\n", buf.String())
}

func TestPrintTableAlignment(t *testing.T) {
	c, buf := plainCLI()
	c.PrintTable([]string{"A", "LONGER"}, []TableRow{
		{Columns: []string{"value", "x"}},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "A      LONGER", lines[0])
	assert.Equal(t, "value  x", lines[2])

	c, buf = plainCLI()
	c.PrintTable([]string{"A"}, nil)
	assert.Empty(t, buf.String())
}

// =============================================================================
// JSON Formatter Tests
// =============================================================================

func TestNewMedicationOutput(t *testing.T) {
	med := &model.Medication{ID: "m1", Name: "Aspirin", Active: true}
	out := NewMedicationOutput(med, []*model.Reminder{{Time: "09:00"}})

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Aspirin", fields["name"])
	assert.Equal(t, []any{"09:00"}, fields["reminders"])
}

func TestJSONFormatterPrintMedications(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	require.NoError(t, j.PrintMedications(nil))
	var resp MedicationsResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Medications)
}

func TestJSONFormatterPrintError(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	require.NoError(t, j.PrintError("error", "medication not found", "try list"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "medication not found", resp.Error)
	assert.Equal(t, "try list", resp.Message)
}
