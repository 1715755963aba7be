package scheduler

import (
	"context"
	"time"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/storage"
)

// Publisher delivers a fired reminder to the user's channel.
type Publisher interface {
	Publish(ctx context.Context, userID string, alert model.Alert) int
}

// Dispatcher evaluates active reminders against the clock and fires the due
// ones. It holds no state between ticks; the once-per-day guarantee comes
// from the store's atomic MarkFired.
type Dispatcher struct {
	medications  storage.MedicationStore
	reminders    storage.ReminderStore
	publisher    Publisher
	missedWindow time.Duration
}

// NewDispatcher creates a dispatcher with the configured missed window.
func NewDispatcher(medications storage.MedicationStore, reminders storage.ReminderStore, publisher Publisher) *Dispatcher {
	return &Dispatcher{
		medications:  medications,
		reminders:    reminders,
		publisher:    publisher,
		missedWindow: config.Global.Scheduler.MissedWindow,
	}
}

// SetMissedWindow changes how late a missed reminder may still fire.
// Zero restores exact-minute matching.
func (d *Dispatcher) SetMissedWindow(window time.Duration) {
	d.missedWindow = window
}

// MissedWindow returns the current missed window.
func (d *Dispatcher) MissedWindow() time.Duration {
	return d.missedWindow
}

// TickResult summarises one evaluation.
type TickResult struct {
	At        time.Time     `json:"at"`
	Evaluated int           `json:"evaluated"`
	Due       int           `json:"due"`
	Fired     int           `json:"fired"`
	Skipped   int           `json:"skipped"`
	Healed    int           `json:"healed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Tick runs one evaluation at now. Per-reminder failures are logged and
// counted and never stop the remaining reminders. A failure to list
// reminders is returned in TickResult.Err.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) TickResult {
	timer := metrics.NewTimer()
	minute := now.Truncate(time.Minute)
	result := TickResult{At: minute}
	defer func() {
		result.Duration = timer.Duration()
		timer.ObserveDuration(metrics.TickDuration)
	}()

	reminders, err := d.reminders.ListActive(ctx)
	if err != nil {
		result.Err = err
		metrics.ReminderFailures.WithLabelValues("list").Inc()
		logging.FromContext(ctx).Error("failed to list active reminders", logging.KeyError, err)
		return result
	}

	for _, r := range reminders {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}
		result.Evaluated++

		if !isDue(r, minute, d.missedWindow) {
			continue
		}
		result.Due++

		if r.FiredOn(minute) {
			result.Skipped++
			continue
		}

		switch d.dispatch(ctx, r, now) {
		case outcomeFired:
			result.Fired++
		case outcomeHealed:
			result.Healed++
			result.Skipped++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}

	metrics.RemindersEvaluated.Add(float64(result.Evaluated))
	if result.Fired > 0 || result.Failed > 0 {
		logging.FromContext(ctx).Info("tick dispatched",
			logging.KeyTime, model.FormatClock(minute),
			"due", result.Due,
			"fired", result.Fired,
			"failed", result.Failed)
	}
	return result
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFired
	outcomeHealed
	outcomeFailed
)

// dispatch fires one due reminder.
func (d *Dispatcher) dispatch(ctx context.Context, r *model.Reminder, now time.Time) outcome {
	log := logging.FromContext(ctx).With(
		logging.KeyReminderID, r.ID,
		logging.KeyMedicationID, r.MedicationID,
		logging.KeyUserID, r.UserID)

	med, err := d.medications.Get(ctx, r.MedicationID)
	switch {
	case errors.Is(err, errors.ErrMedicationNotFound):
		return d.heal(ctx, r, "medication missing")
	case err != nil:
		metrics.ReminderFailures.WithLabelValues("medication").Inc()
		log.Warn("failed to load medication, retrying next tick", logging.KeyError, err)
		return outcomeFailed
	case !med.Active:
		return d.heal(ctx, r, "medication inactive")
	}

	updated, fired, err := d.reminders.MarkFired(ctx, r.ID, now)
	if err != nil {
		metrics.ReminderFailures.WithLabelValues("mark").Inc()
		log.Warn("failed to mark reminder fired, retrying next tick", logging.KeyError, err)
		return outcomeFailed
	}
	if !fired {
		// another dispatcher won the day
		return outcomeSkipped
	}

	alert := model.NewAlert(updated, med, now)
	reached := d.publisher.Publish(ctx, r.UserID, alert)
	metrics.RemindersFired.Inc()
	log.Info("reminder fired",
		"medication", med.Name,
		logging.KeyTime, r.Time,
		"sessions", reached)
	return outcomeFired
}

// heal deactivates a reminder whose medication is gone or inactive.
func (d *Dispatcher) heal(ctx context.Context, r *model.Reminder, reason string) outcome {
	if err := d.reminders.Deactivate(ctx, r.ID); err != nil {
		metrics.ReminderFailures.WithLabelValues("heal").Inc()
		logging.WarnContext(ctx, "failed to deactivate stale reminder",
			logging.KeyReminderID, r.ID,
			logging.KeyError, err)
		return outcomeFailed
	}
	metrics.RemindersHealed.Inc()
	logging.InfoContext(ctx, "stale reminder deactivated",
		logging.KeyReminderID, r.ID,
		logging.KeyMedicationID, r.MedicationID,
		"reason", reason)
	return outcomeHealed
}

// isDue reports whether r should fire at minute. An exact match of the
// trigger minute is always due. With a positive window, a trigger that
// passed less than window ago is also due, provided the reminder already
// existed at its trigger time. Callers check FiredOn separately.
func isDue(r *model.Reminder, minute time.Time, window time.Duration) bool {
	due, err := r.DueAt(minute)
	if err != nil {
		return false
	}
	if minute.Equal(due) {
		return true
	}
	if window <= 0 || minute.Before(due) || minute.Sub(due) > window {
		return false
	}
	return r.CreatedAt.Before(due.Add(time.Minute))
}
