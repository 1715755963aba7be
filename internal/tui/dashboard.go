package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/output"
)

// Source is the medication data the dashboard reads and writes.
// *medication.Service satisfies it.
type Source interface {
	ListReminders(ctx context.Context, userID string) ([]medication.ReminderView, error)
	History(ctx context.Context, userID string, from, to time.Time) ([]*model.MedicationLog, error)
	MarkTaken(ctx context.Context, userID, id, notes string) (*model.MedicationLog, error)
}

// tickMsg is sent on every clock tick.
type tickMsg time.Time

// refreshMsg asks the model to reload its data.
type refreshMsg struct{}

// DashboardConfig holds configuration for the dashboard.
type DashboardConfig struct {
	Source          Source
	UserID          string
	Location        *time.Location
	RefreshInterval time.Duration
	// ReloadEvery is how many ticks pass between data reloads.
	ReloadEvery int
	Clock       func() time.Time
}

// DashboardModel is the bubbletea model for the dose dashboard.
type DashboardModel struct {
	source Source
	userID string
	loc    *time.Location
	clock  func() time.Time

	doses    []Dose
	selected int

	width      int
	height     int
	err        error
	message    string
	messageExp time.Time

	refreshInterval time.Duration
	reloadEvery     int
	ticks           int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(config DashboardConfig) *DashboardModel {
	if config.RefreshInterval == 0 {
		config.RefreshInterval = time.Second
	}
	if config.ReloadEvery <= 0 {
		config.ReloadEvery = 30
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &DashboardModel{
		source:          config.Source,
		userID:          config.UserID,
		loc:             config.Location,
		clock:           config.Clock,
		refreshInterval: config.RefreshInterval,
		reloadEvery:     config.ReloadEvery,
	}
}

func (m *DashboardModel) now() time.Time {
	return m.clock().In(m.loc)
}

// Init starts the clock and loads the first snapshot.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), refreshCmd)
}

// Update handles messages and updates the model.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.messageExp.IsZero() && m.now().After(m.messageExp) {
			m.message = ""
			m.messageExp = time.Time{}
		}
		m.ticks++
		if m.ticks%m.reloadEvery == 0 {
			m.loadData()
		}
		return m, m.tickCmd()

	case refreshMsg:
		m.loadData()
		return m, nil
	}

	return m, nil
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.doses)-1 {
			m.selected++
		}

	case "t", "enter":
		m.markSelectedTaken()

	case "r":
		m.loadData()
		m.setMessage("Refreshed", time.Second)
	}

	return m, nil
}

// loadData reloads reminders and today's log.
func (m *DashboardModel) loadData() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := m.now()
	views, err := m.source.ListReminders(ctx, m.userID)
	if err != nil {
		m.err = err
		return
	}
	logs, err := m.source.History(ctx, m.userID, model.StartOfDay(now), now.Add(time.Second))
	if err != nil {
		m.err = err
		return
	}

	m.doses = BuildSchedule(views, logs, now)
	if m.selected >= len(m.doses) {
		m.selected = max(len(m.doses)-1, 0)
	}
	m.err = nil
}

func (m *DashboardModel) markSelectedTaken() {
	if len(m.doses) == 0 {
		m.setMessage("Nothing scheduled today", 2*time.Second)
		return
	}
	dose := m.doses[m.selected]
	if dose.Status == StatusTaken {
		m.setMessage(dose.MedicationName+" at "+dose.Time+" is already taken", 2*time.Second)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.source.MarkTaken(ctx, m.userID, dose.MedicationID, ""); err != nil {
		m.err = err
		return
	}
	m.setMessage("Logged "+dose.MedicationName, 2*time.Second)
	m.loadData()
}

func (m *DashboardModel) setMessage(msg string, d time.Duration) {
	m.message = msg
	m.messageExp = m.now().Add(d)
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refreshCmd() tea.Msg {
	return refreshMsg{}
}

// View renders the dashboard.
func (m *DashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	now := m.now()
	sections := []string{m.renderHeader(now)}

	if m.err != nil {
		sections = append(sections, StyleError.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.message != "" {
		sections = append(sections, StyleWarning.Render(m.message))
	}

	sections = append(sections,
		m.renderNext(now),
		m.renderSchedule(),
		HelpBar(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader(now time.Time) string {
	title := StyleTitle.Render("medremind")
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", StyleSubtitle.Render(now.Format("Mon Jan 2, 15:04:05"))) + "\n"
}

func (m *DashboardModel) boxWidth() int {
	return max(m.width-4, 20)
}

// renderNext renders the countdown to the next dose and today's progress.
func (m *DashboardModel) renderNext(now time.Time) string {
	var content strings.Builder
	box := StyleBox

	next := NextDose(m.doses)
	switch {
	case len(m.doses) == 0:
		content.WriteString(StyleSubtitle.Render("No reminders scheduled"))
	case next == nil:
		content.WriteString(StyleSuccess.Render("No more doses today"))
		box = StyleDoneBox
	default:
		wait := next.DueAt.Sub(now).Truncate(time.Second)
		content.WriteString(StyleSubtitle.Render("Next dose"))
		content.WriteString("\n\n")
		content.WriteString(StyleMedication.Render(next.MedicationName))
		content.WriteString(" at ")
		content.WriteString(StyleClock.Render(next.Time))
		content.WriteString("\n")
		content.WriteString(StyleCountdown.Render("in " + output.FormatDuration(wait)))
		if wait < 15*time.Minute {
			box = StyleDueBox
		}
	}

	if taken, total := Progress(m.doses); total > 0 {
		barWidth := max(m.boxWidth()-8, 10)
		content.WriteString("\n\n")
		content.WriteString(ProgressBar(float64(taken)*100/float64(total), barWidth))
		content.WriteString("\n")
		content.WriteString(StyleSubtitle.Render(fmt.Sprintf("%d of %d doses taken", taken, total)))
	}

	return box.Width(m.boxWidth()).Render(content.String())
}

// renderSchedule renders today's doses with the selection cursor.
func (m *DashboardModel) renderSchedule() string {
	var content strings.Builder
	content.WriteString(StyleTitle.Render("Today"))
	content.WriteString("\n")

	if len(m.doses) == 0 {
		content.WriteString(StyleSubtitle.Render("Add one with 'medremind medication add'"))
	}
	for i, d := range m.doses {
		if i > 0 {
			content.WriteString("\n")
		}
		cursor := "  "
		name := StyleMedication.Render(d.MedicationName)
		if i == m.selected {
			cursor = StyleSelected.Render("> ")
			name = StyleSelected.Render(d.MedicationName)
		}
		content.WriteString(cursor)
		content.WriteString(StyleClock.Render(d.Time))
		content.WriteString("  ")
		content.WriteString(name)
		content.WriteString("  ")
		content.WriteString(statusStyles[d.Status].Render(string(d.Status)))
	}

	return StyleBox.Width(m.boxWidth()).Render(content.String())
}

// HelpBar renders the key help line.
func HelpBar() string {
	keys := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "select"},
		{"t", "taken"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, StyleHelpKey.Render(k.key)+" "+StyleHelpDesc.Render(k.desc))
	}
	return StyleHelp.Render(strings.Join(parts, "  •  "))
}

// Run starts the dashboard TUI.
func Run(config DashboardConfig) error {
	p := tea.NewProgram(NewDashboardModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
