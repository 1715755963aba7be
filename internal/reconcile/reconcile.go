// Package reconcile keeps each medication's reminder records in line with its
// frequency text.
//
// Reconciliation is additive: it ensures a reminder exists for every time
// the frequency implies and never deletes records. Times dropped by a
// frequency change stay active until the medication is deactivated.
package reconcile

import (
	"context"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/parser"
	"github.com/manav03panchal/medremind/internal/storage"
)

// Reconciler derives reminder records from medications.
type Reconciler struct {
	medications storage.MedicationStore
	reminders   storage.ReminderStore
}

// New creates a reconciler over the given stores.
func New(medications storage.MedicationStore, reminders storage.ReminderStore) *Reconciler {
	return &Reconciler{
		medications: medications,
		reminders:   reminders,
	}
}

// NewFromStore creates a reconciler over a complete storage backend.
func NewFromStore(store storage.Store) *Reconciler {
	return New(store.Medications(), store.Reminders())
}

// Reconcile ensures a reminder exists for every time interpreted from the
// medication's frequency and returns those reminders in interpreter order.
// Running it again for an unchanged medication writes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, med *model.Medication) ([]*model.Reminder, error) {
	if !med.Active {
		return nil, errors.NotFound(errors.ErrMedicationInactive, med.ID)
	}

	times, rule := parser.InterpretRule(med.Frequency)

	result := make([]*model.Reminder, 0, len(times))
	created := 0
	for _, hhmm := range times {
		rem, isNew, err := r.reminders.Ensure(ctx, med.UserID, med.ID, hhmm)
		if err != nil {
			return result, errors.Wrapf(err, "ensure reminder %s for medication %s", hhmm, med.ID)
		}
		if isNew {
			created++
		}
		result = append(result, rem)
	}

	if created > 0 {
		metrics.RemindersCreated.Add(float64(created))
		logging.InfoContext(ctx, "reminders reconciled",
			logging.KeyUserID, med.UserID,
			logging.KeyMedicationID, med.ID,
			"rule", rule,
			logging.KeyCount, created,
		)
	}
	return result, nil
}

// BackfillResult summarises a Backfill run.
type BackfillResult struct {
	Medications int           `json:"medications"`
	Reminders   int           `json:"reminders"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
}

// Backfill reconciles every active medication of every user. A medication
// that fails is logged and counted; the rest still run.
func (r *Reconciler) Backfill(ctx context.Context) (BackfillResult, error) {
	start := time.Now()
	var result BackfillResult

	meds, err := r.medications.ListActive(ctx)
	if err != nil {
		return result, errors.Wrap(err, "failed to list medications")
	}

	for _, med := range meds {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reminders, err := r.Reconcile(ctx, med)
		if err != nil {
			result.Failed++
			logging.WarnContext(ctx, "backfill failed for medication",
				logging.KeyMedicationID, med.ID,
				logging.KeyUserID, med.UserID,
				logging.KeyError, err,
			)
			continue
		}
		result.Medications++
		result.Reminders += len(reminders)
	}

	result.Duration = time.Since(start)
	logging.LogOperation("backfill", start,
		"medications", result.Medications,
		"reminders", result.Reminders,
		"failed", result.Failed,
	)
	return result, nil
}

// Deactivate soft-deactivates every reminder of the medication and returns
// how many changed. It is safe to call more than once.
func (r *Reconciler) Deactivate(ctx context.Context, med *model.Medication) (int, error) {
	n, err := r.reminders.DeactivateByMedication(ctx, med.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "deactivate reminders of medication %s", med.ID)
	}
	if n > 0 {
		logging.InfoContext(ctx, "reminders deactivated",
			logging.KeyMedicationID, med.ID,
			logging.KeyCount, n,
		)
	}
	return n, nil
}
