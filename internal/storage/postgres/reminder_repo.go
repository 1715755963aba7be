package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
)

const reminderColumns = `id, user_id, medication_id, clock, active, last_fired_at, created_at`

// ReminderRepo stores reminders in the reminders table. The unique
// constraint on (user_id, medication_id, clock) makes Ensure idempotent.
type ReminderRepo struct {
	db *sql.DB
}

// Ensure inserts the reminder unless it exists, reactivating an inactive one.
func (r *ReminderRepo) Ensure(ctx context.Context, userID, medicationID, hhmm string) (*model.Reminder, bool, error) {
	if _, _, err := model.ParseClock(hhmm); err != nil {
		return nil, false, errors.Invalid(errors.ErrInvalidClock, "time", hhmm)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO reminders (id, user_id, medication_id, clock, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (user_id, medication_id, clock) DO NOTHING
		RETURNING `+reminderColumns,
		uuid.New().String(), userID, medicationID, hhmm, time.Now(),
	)
	rem, err := scanReminder(row)
	if err == nil {
		return rem, true, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Reactivate only when needed; an active row is left unwritten.
	row = r.db.QueryRowContext(ctx, `
		UPDATE reminders SET active = TRUE
		WHERE user_id = $1 AND medication_id = $2 AND clock = $3 AND NOT active
		RETURNING `+reminderColumns,
		userID, medicationID, hhmm,
	)
	rem, err = scanReminder(row)
	if err == nil {
		return rem, false, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	rem, err = scanReminder(r.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE user_id = $1 AND medication_id = $2 AND clock = $3`,
		userID, medicationID, hhmm,
	))
	if err != nil {
		return nil, false, err
	}
	return rem, false, nil
}

// Get retrieves a reminder by ID.
func (r *ReminderRepo) Get(ctx context.Context, id string) (*model.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.ErrReminderNotFound, id)
	}
	return rem, err
}

// ListActive returns every active reminder ordered by time of day.
func (r *ReminderRepo) ListActive(ctx context.Context) ([]*model.Reminder, error) {
	return r.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE active ORDER BY clock, id`)
}

// ListByUser returns a user's active reminders ordered by time of day.
func (r *ReminderRepo) ListByUser(ctx context.Context, userID string) ([]*model.Reminder, error) {
	return r.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE active AND user_id = $1 ORDER BY clock, id`, userID)
}

// ListByMedication returns all reminders of a medication, active or not.
func (r *ReminderRepo) ListByMedication(ctx context.Context, medicationID string) ([]*model.Reminder, error) {
	return r.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE medication_id = $1 ORDER BY clock, id`, medicationID)
}

// MarkFired is a conditional update: the row changes only when it is
// active and last_fired_at lies outside at's calendar date.
func (r *ReminderRepo) MarkFired(ctx context.Context, id string, at time.Time) (*model.Reminder, bool, error) {
	start := model.StartOfDay(at)
	end := start.AddDate(0, 0, 1)

	row := r.db.QueryRowContext(ctx, `
		UPDATE reminders SET last_fired_at = $2
		WHERE id = $1 AND active
			AND (last_fired_at IS NULL OR last_fired_at < $3 OR last_fired_at >= $4)
		RETURNING `+reminderColumns,
		id, at, start, end,
	)
	rem, err := scanReminder(row)
	if err == nil {
		return rem, true, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// Deactivate marks a reminder inactive.
func (r *ReminderRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(errors.ErrReminderNotFound, id)
	}
	return nil
}

// DeactivateByMedication deactivates the active reminders of a medication.
func (r *ReminderRepo) DeactivateByMedication(ctx context.Context, medicationID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET active = FALSE WHERE medication_id = $1 AND active`, medicationID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ReminderRepo) query(ctx context.Context, query string, args ...any) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func scanReminder(s scanner) (*model.Reminder, error) {
	var (
		rem       model.Reminder
		lastFired sql.NullTime
	)
	if err := s.Scan(
		&rem.ID,
		&rem.UserID,
		&rem.MedicationID,
		&rem.Time,
		&rem.Active,
		&lastFired,
		&rem.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastFired.Valid {
		t := lastFired.Time
		rem.LastFiredAt = &t
	}
	return &rem, nil
}
