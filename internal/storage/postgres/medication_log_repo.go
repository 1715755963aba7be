package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/manav03panchal/medremind/internal/model"
)

// MedicationLogRepo stores the append-only intake log.
type MedicationLogRepo struct {
	db *sql.DB
}

// Append inserts a log entry.
func (r *MedicationLogRepo) Append(ctx context.Context, log *model.MedicationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.TakenAt.IsZero() {
		log.TakenAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_logs (id, user_id, medication_id, taken_at, notes)
		VALUES ($1,$2,$3,$4,$5)
	`, log.ID, log.UserID, log.MedicationID, log.TakenAt, log.Notes)
	return err
}

// ListByUser returns the user's log entries in [from, to), oldest first.
func (r *MedicationLogRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.MedicationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, medication_id, taken_at, notes
		FROM medication_logs
		WHERE user_id = $1 AND taken_at >= $2 AND taken_at < $3
		ORDER BY taken_at ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MedicationLog
	for rows.Next() {
		var l model.MedicationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.MedicationID, &l.TakenAt, &l.Notes); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
