package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/notify"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/scheduler"
)

// Reminder command flags.
var (
	reminderTickFlagAt       string
	reminderTickFlagWindow   string
	reminderTickFlagWebhooks bool
)

// reminderCmd represents the reminder command.
var reminderCmd = &cobra.Command{
	Use:     "reminder [command]",
	Aliases: []string{"reminders", "r"},
	Short:   "Inspect and fire reminders",
	RunE:    runReminderList,
}

var reminderListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the user's active reminders",
	RunE:    runReminderList,
}

var reminderTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one dispatch tick and print the fired reminders",
	Long: `Evaluate every active reminder once, as the daemon does each minute, and
fire the due ones. A reminder fires at most once per day, so a tick right
after the daemon's own tick fires nothing.

Examples:
  medremind reminder tick
  medremind reminder tick --at "today 9am"
  medremind reminder tick --at 20:30 --window 0 --webhooks`,
	Args: cobra.NoArgs,
	RunE: runReminderTick,
}

func init() {
	reminderTickCmd.Flags().StringVar(&reminderTickFlagAt, "at", "now",
		"Evaluate at this time instead of now")
	reminderTickCmd.Flags().StringVar(&reminderTickFlagWindow, "window", "",
		"Missed window override, e.g. 30m (default from config)")
	reminderTickCmd.Flags().BoolVar(&reminderTickFlagWebhooks, "webhooks", false,
		"Also deliver fired reminders to the users' webhooks")

	reminderCmd.AddCommand(reminderListCmd)
	reminderCmd.AddCommand(reminderTickCmd)
	rootCmd.AddCommand(reminderCmd)
}

func runReminderList(cmd *cobra.Command, args []string) error {
	userID, err := ctx.RequireUser()
	if err != nil {
		return err
	}

	views, err := ctx.Medications.ListReminders(cmd.Context(), userID)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]any{"reminders": views, "count": len(views)})
	}

	rows := make([]output.ReminderRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, output.ReminderRow{
			ID:             v.ID,
			MedicationName: v.MedicationName,
			Time:           v.Time,
			LastFired:      output.FormatOptionalTime(v.LastFiredAt),
		})
	}
	ctx.CLIFormatter().PrintReminders(rows)
	return nil
}

// collectingPublisher records alerts and optionally forwards them to webhooks.
type collectingPublisher struct {
	mu       sync.Mutex
	alerts   []model.Alert
	webhooks *notify.WebhookDispatcher
}

func (p *collectingPublisher) Publish(ctx context.Context, userID string, alert model.Alert) int {
	p.mu.Lock()
	p.alerts = append(p.alerts, alert)
	p.mu.Unlock()

	if p.webhooks == nil {
		return 1
	}
	delivered := 0
	for _, r := range p.webhooks.Deliver(ctx, model.NewEvent(model.EventMedicationReminder, userID, alert)) {
		if r.Success {
			delivered++
		}
	}
	return delivered
}

func runReminderTick(cmd *cobra.Command, args []string) error {
	at, err := parseTime(reminderTickFlagAt)
	if err != nil {
		return err
	}
	loc, err := config.Global.Location()
	if err != nil {
		return err
	}

	pub := &collectingPublisher{}
	if reminderTickFlagWebhooks {
		pub.webhooks = notify.NewWebhookDispatcherWith(ctx.Store.Webhooks(), notify.NewHTTPClient(), nil, nil)
	}

	dispatcher := scheduler.NewDispatcher(ctx.Store.Medications(), ctx.Store.Reminders(), pub)
	if reminderTickFlagWindow != "" {
		window, err := time.ParseDuration(reminderTickFlagWindow)
		if err != nil || window < 0 {
			return errors.NewUserErrorWithField("window", reminderTickFlagWindow,
				"invalid missed window", "Use a duration like 30m or 0 for exact-minute matching.")
		}
		dispatcher.SetMissedWindow(window)
	}

	result := dispatcher.Tick(cmd.Context(), at.In(loc))

	out := output.TickOutput{
		At:         output.FormatTime(result.At),
		Evaluated:  result.Evaluated,
		Fired:      result.Fired,
		Skipped:    result.Skipped,
		Healed:     result.Healed,
		Failed:     result.Failed,
		DurationMs: result.Duration.Milliseconds(),
		Alerts:     pub.alerts,
	}
	if out.Alerts == nil {
		out.Alerts = []model.Alert{}
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	if ctx.IsJSON() {
		if err := ctx.Formatter.JSON(out); err != nil {
			return err
		}
		return result.Err
	}

	cli := ctx.CLIFormatter()
	for _, a := range out.Alerts {
		cli.PrintAlert(a)
	}
	cli.Muted(formatTickSummary(out))
	return result.Err
}

func formatTickSummary(o output.TickOutput) string {
	return fmt.Sprintf("tick at %s: %d evaluated, %d fired, %d skipped, %d healed, %d failed",
		o.At, o.Evaluated, o.Fired, o.Skipped, o.Healed, o.Failed)
}
