package storage

import (
	"context"
	"time"

	"github.com/manav03panchal/medremind/internal/model"
)

// MedicationStore persists medications.
type MedicationStore interface {
	// Create stores a new medication. It fails with ErrDuplicateMedication
	// when the user already has an active medication with the same name.
	Create(ctx context.Context, med *model.Medication) error
	Get(ctx context.Context, id string) (*model.Medication, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*model.Medication, error)
	// ListActive returns the active medications of every user.
	ListActive(ctx context.Context) ([]*model.Medication, error)
	// Update applies fn to the stored medication atomically. Name, owner and
	// active flag are not changeable through Update.
	Update(ctx context.Context, id string, fn func(med *model.Medication) error) (*model.Medication, error)
	// Deactivate soft-deletes a medication and releases its name.
	Deactivate(ctx context.Context, id string) (*model.Medication, error)
}

// ReminderStore is the keyed reminder record store. It knows nothing about
// frequencies; callers decide which times to ensure.
type ReminderStore interface {
	// Ensure returns the reminder for (user, medication, time), creating it if
	// absent. created is true only for the call that inserted the record.
	Ensure(ctx context.Context, userID, medicationID, hhmm string) (r *model.Reminder, created bool, err error)
	Get(ctx context.Context, id string) (*model.Reminder, error)
	ListActive(ctx context.Context) ([]*model.Reminder, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Reminder, error)
	ListByMedication(ctx context.Context, medicationID string) ([]*model.Reminder, error)
	// MarkFired sets LastFiredAt to at unless the reminder already fired on
	// at's calendar date or is inactive, in which case fired is false.
	MarkFired(ctx context.Context, id string, at time.Time) (r *model.Reminder, fired bool, err error)
	Deactivate(ctx context.Context, id string) error
	DeactivateByMedication(ctx context.Context, medicationID string) (int, error)
}

// MedicationLogStore persists the append-only medication intake log.
type MedicationLogStore interface {
	Append(ctx context.Context, log *model.MedicationLog) error
	// ListByUser returns the user's logs with from <= TakenAt < to, oldest first.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.MedicationLog, error)
}

// WebhookStore persists per-user webhook sinks.
type WebhookStore interface {
	Create(ctx context.Context, wh *model.Webhook) error
	Get(ctx context.Context, userID, name string) (*model.Webhook, error)
	List(ctx context.Context, userID string) ([]*model.Webhook, error)
	ListEnabled(ctx context.Context, userID string) ([]*model.Webhook, error)
	Delete(ctx context.Context, userID, name string) error
	UpdateLastUsed(ctx context.Context, userID, name string, lastErr error) error
}

// Store is a complete storage backend.
type Store interface {
	Medications() MedicationStore
	Reminders() ReminderStore
	Logs() MedicationLogStore
	Webhooks() WebhookStore
	Health(ctx context.Context) *HealthStatus
	Close() error
}

// Medications returns the badger medication repository.
func (d *DB) Medications() MedicationStore { return NewMedicationRepo(d) }

// Reminders returns the badger reminder repository.
func (d *DB) Reminders() ReminderStore { return NewReminderRepo(d) }

// Logs returns the badger medication log repository.
func (d *DB) Logs() MedicationLogStore { return NewMedicationLogRepo(d) }

// Webhooks returns the badger webhook repository.
func (d *DB) Webhooks() WebhookStore { return NewWebhookRepo(d) }

var _ Store = (*DB)(nil)
