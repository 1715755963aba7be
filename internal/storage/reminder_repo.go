package storage

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
)

// ReminderRepo provides operations for Reminder entities.
//
// Each reminder is stored under reminder:<id>. A second key,
// reminderidx:<user>:<medication>:<HH:MM>, holds the reminder id and makes
// Ensure idempotent: concurrent Ensure calls for one key read the same index
// key, so badger's conflict detection aborts all but one writer and the
// replayed transaction finds the record the winner created.
type ReminderRepo struct {
	db *DB
}

// NewReminderRepo creates a new reminder repository.
func NewReminderRepo(db *DB) *ReminderRepo {
	return &ReminderRepo{db: db}
}

// Ensure returns the reminder for (user, medication, time), creating it if
// absent. A previously deactivated record for the key is reactivated.
func (r *ReminderRepo) Ensure(ctx context.Context, userID, medicationID, hhmm string) (*model.Reminder, bool, error) {
	if _, _, err := model.ParseClock(hhmm); err != nil {
		return nil, false, errors.Invalid(errors.ErrInvalidClock, "time", hhmm)
	}

	indexKey := []byte(model.GenerateReminderIndexKey(userID, medicationID, hhmm))

	var (
		result  *model.Reminder
		created bool
	)
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		created = false

		item, err := txn.Get(indexKey)
		switch {
		case err == nil:
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			existing := &model.Reminder{}
			if err := getTxn(txn, model.GenerateReminderKey(string(id)), existing); err != nil {
				return err
			}
			result = existing
			if existing.Active {
				return nil
			}
			existing.Active = true
			return setTxn(txn, existing)

		case IsErrKeyNotFound(err):
			reminder := model.NewReminder(userID, medicationID, hhmm)
			reminder.ID = uuid.New().String()
			if err := setTxn(txn, reminder); err != nil {
				return err
			}
			result, created = reminder, true
			return txn.Set([]byte(reminder.IndexKey()), []byte(reminder.ID))

		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Get retrieves a reminder by ID.
func (r *ReminderRepo) Get(ctx context.Context, id string) (*model.Reminder, error) {
	reminder := &model.Reminder{}
	if err := r.db.Get(ctx, model.GenerateReminderKey(id), reminder); err != nil {
		if IsErrKeyNotFound(err) {
			return nil, errors.NotFound(errors.ErrReminderNotFound, id)
		}
		return nil, err
	}
	return reminder, nil
}

// List retrieves all reminders.
func (r *ReminderRepo) List(ctx context.Context) ([]*model.Reminder, error) {
	return GetAllByPrefix(ctx, r.db, model.PrefixReminder+":", func() *model.Reminder {
		return &model.Reminder{}
	})
}

// ListActive retrieves all active reminders.
func (r *ReminderRepo) ListActive(ctx context.Context) ([]*model.Reminder, error) {
	return r.filter(ctx, func(rem *model.Reminder) bool { return rem.Active })
}

// ListByUser retrieves a user's active reminders ordered by time of day.
func (r *ReminderRepo) ListByUser(ctx context.Context, userID string) ([]*model.Reminder, error) {
	return r.filter(ctx, func(rem *model.Reminder) bool { return rem.Active && rem.UserID == userID })
}

// ListByMedication retrieves all reminders of a medication, active or not.
func (r *ReminderRepo) ListByMedication(ctx context.Context, medicationID string) ([]*model.Reminder, error) {
	return r.filter(ctx, func(rem *model.Reminder) bool { return rem.MedicationID == medicationID })
}

func (r *ReminderRepo) filter(ctx context.Context, keep func(*model.Reminder) bool) ([]*model.Reminder, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []*model.Reminder
	for _, rem := range all {
		if keep(rem) {
			result = append(result, rem)
		}
	}
	SortByTime(result)
	return result, nil
}

// MarkFired records that a reminder fired at at. It is a compare-and-set on
// the calendar date: only the first call per date (in at's location) wins.
func (r *ReminderRepo) MarkFired(ctx context.Context, id string, at time.Time) (*model.Reminder, bool, error) {
	var (
		result *model.Reminder
		fired  bool
	)
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		fired = false
		reminder := &model.Reminder{}
		if err := getTxn(txn, model.GenerateReminderKey(id), reminder); err != nil {
			return err
		}
		result = reminder
		if !reminder.Active || reminder.FiredOn(at) {
			return nil
		}
		firedAt := at
		reminder.LastFiredAt = &firedAt
		fired = true
		return setTxn(txn, reminder)
	})
	if IsErrKeyNotFound(err) {
		return nil, false, errors.NotFound(errors.ErrReminderNotFound, id)
	}
	if err != nil {
		return nil, false, err
	}
	return result, fired, nil
}

// Deactivate marks a reminder inactive.
func (r *ReminderRepo) Deactivate(ctx context.Context, id string) error {
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		reminder := &model.Reminder{}
		if err := getTxn(txn, model.GenerateReminderKey(id), reminder); err != nil {
			return err
		}
		if !reminder.Active {
			return nil
		}
		reminder.Active = false
		return setTxn(txn, reminder)
	})
	if IsErrKeyNotFound(err) {
		return errors.NotFound(errors.ErrReminderNotFound, id)
	}
	return err
}

// DeactivateByMedication deactivates every active reminder of a medication
// and returns how many changed.
func (r *ReminderRepo) DeactivateByMedication(ctx context.Context, medicationID string) (int, error) {
	var count int
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		count = 0
		all, err := scanTxn(txn, model.PrefixReminder+":", func() *model.Reminder {
			return &model.Reminder{}
		})
		if err != nil {
			return err
		}
		for _, rem := range all {
			if rem.MedicationID != medicationID || !rem.Active {
				continue
			}
			rem.Active = false
			if err := setTxn(txn, rem); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// SortByTime orders reminders by trigger time, then user and medication.
func SortByTime(reminders []*model.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		a, b := reminders[i], reminders[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.MedicationID < b.MedicationID
	})
}
