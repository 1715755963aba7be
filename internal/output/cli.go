package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/medremind/internal/model"
)

// Styles for CLI output.
var (
	// Colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#10B981") // Green
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorWarning   = lipgloss.Color("#F59E0B") // Yellow
	colorError     = lipgloss.Color("#EF4444") // Red
	colorSuccess   = lipgloss.Color("#10B981") // Green

	// Styles
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleMedication = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleClock = lipgloss.NewStyle().
			Foreground(colorSecondary)

	styleNote = lipgloss.NewStyle().
			Italic(true).
			Foreground(colorMuted)
)

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// MedicationName formats a medication name.
func (c *CLIFormatter) MedicationName(name string) string {
	return c.render(styleMedication, name)
}

// Clock formats an HH:MM reminder time.
func (c *CLIFormatter) Clock(hhmm string) string {
	return c.render(styleClock, hhmm)
}

// Note formats a note.
func (c *CLIFormatter) Note(text string) string {
	return c.render(styleNote, text)
}

// PrintMedication prints one medication with its reminder times.
func (c *CLIFormatter) PrintMedication(med *model.Medication, reminders []*model.Reminder) {
	c.Printf("%s", c.MedicationName(med.Name))
	if med.Dosage != "" {
		c.Printf(" %s", med.Dosage)
	}
	c.Println()
	c.Printf("  ID: %s\n", med.ID)
	if med.Frequency != "" {
		c.Printf("  Frequency: %s\n", med.Frequency)
	}
	if med.Instructions != "" {
		c.Printf("  Instructions: %s\n", c.Note(med.Instructions))
	}
	if med.IsExtracted() && med.Confidence != nil {
		c.Printf("  Source: extracted (%.0f%% confidence)\n", *med.Confidence*100)
	}
	if len(reminders) > 0 {
		times := make([]string, 0, len(reminders))
		for _, r := range reminders {
			times = append(times, c.Clock(r.Time))
		}
		c.Printf("  Reminders: %s\n", strings.Join(times, ", "))
	}
	if !med.Active {
		c.Muted("  (inactive)")
	}
}

// PrintMedications prints a medication table.
func (c *CLIFormatter) PrintMedications(meds []*model.Medication) {
	if len(meds) == 0 {
		c.Muted("No active medications.")
		c.Muted("Use 'medremind medication add <name>' to add one.")
		return
	}

	rows := make([]TableRow, 0, len(meds))
	for _, m := range meds {
		rows = append(rows, TableRow{Columns: []string{
			shortID(m.ID), m.Name, m.Dosage, m.Frequency, m.Source,
		}})
	}
	c.PrintTable([]string{"ID", "NAME", "DOSAGE", "FREQUENCY", "SOURCE"}, rows)
}

// ReminderRow is one line of a reminder listing.
type ReminderRow struct {
	ID             string
	MedicationName string
	Time           string
	LastFired      string
}

// PrintReminders prints a reminder table.
func (c *CLIFormatter) PrintReminders(rows []ReminderRow) {
	if len(rows) == 0 {
		c.Muted("No active reminders.")
		return
	}

	table := make([]TableRow, 0, len(rows))
	for _, r := range rows {
		table = append(table, TableRow{Columns: []string{r.Time, r.MedicationName, shortID(r.ID), r.LastFired}})
	}
	c.PrintTable([]string{"TIME", "MEDICATION", "ID", "LAST FIRED"}, table)
}

// PrintAlert prints a fired reminder.
func (c *CLIFormatter) PrintAlert(a model.Alert) {
	c.Printf("%s  Time to take %s", c.Clock(a.Time), c.MedicationName(a.MedicationName))
	if a.Dosage != "" {
		c.Printf(" (%s)", a.Dosage)
	}
	c.Println()
	if a.Instructions != "" {
		c.Printf("       %s\n", c.Note(a.Instructions))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TableRow is one row of PrintTable.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple table.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && len(col) > widths[i] {
				widths[i] = len(col)
			}
		}
	}

	var headerLine strings.Builder
	for i, h := range headers {
		headerLine.WriteString(fmt.Sprintf("%-*s  ", widths[i], h))
	}
	c.Println(c.render(styleBold, strings.TrimRight(headerLine.String(), " ")))

	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(strings.TrimRight(sep.String(), " "))

	for _, row := range rows {
		var rowLine strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				rowLine.WriteString(fmt.Sprintf("%-*s  ", widths[i], col))
			}
		}
		c.Println(strings.TrimRight(rowLine.String(), " "))
	}
}
