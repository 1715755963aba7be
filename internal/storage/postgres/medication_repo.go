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

const medicationColumns = `id, user_id, name, dosage, frequency, instructions, duration,
	active, source, confidence, created_at, updated_at`

// MedicationRepo stores medications in the medications table.
type MedicationRepo struct {
	db *sql.DB
}

// Create inserts a medication. The partial unique index on active names
// rejects a second active medication with the same name.
func (r *MedicationRepo) Create(ctx context.Context, med *model.Medication) error {
	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	now := time.Now()
	if med.CreatedAt.IsZero() {
		med.CreatedAt = now
	}
	if med.UpdatedAt.IsZero() {
		med.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		med.ID,
		med.UserID,
		med.Name,
		med.Dosage,
		med.Frequency,
		med.Instructions,
		med.Duration,
		med.Active,
		med.Source,
		toNullFloat(med.Confidence),
		med.CreatedAt,
		med.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.Invalid(errors.ErrDuplicateMedication, "name", med.Name)
	}
	return err
}

// Get retrieves a medication by ID.
func (r *MedicationRepo) Get(ctx context.Context, id string) (*model.Medication, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
	med, err := scanMedication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
	}
	return med, err
}

// ListByUser returns a user's medications, newest first.
func (r *MedicationRepo) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*model.Medication, error) {
	return r.query(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE user_id = $1 AND (active OR NOT $2)
		ORDER BY created_at DESC
	`, userID, activeOnly)
}

// ListActive returns the active medications of every user.
func (r *MedicationRepo) ListActive(ctx context.Context) ([]*model.Medication, error) {
	return r.query(ctx, `SELECT `+medicationColumns+` FROM medications WHERE active ORDER BY created_at`)
}

// Update applies fn under a row lock. Name, owner and active flag are kept.
func (r *MedicationRepo) Update(ctx context.Context, id string, fn func(med *model.Medication) error) (*model.Medication, error) {
	var result *model.Medication
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1 FOR UPDATE`, id)
		med, err := scanMedication(row)
		if err != nil {
			return err
		}
		if err := fn(med); err != nil {
			return err
		}
		med.UpdatedAt = time.Now()

		_, err = tx.ExecContext(ctx, `
			UPDATE medications
			SET dosage = $2, frequency = $3, instructions = $4, duration = $5,
				source = $6, confidence = $7, updated_at = $8
			WHERE id = $1
		`,
			id,
			med.Dosage,
			med.Frequency,
			med.Instructions,
			med.Duration,
			med.Source,
			toNullFloat(med.Confidence),
			med.UpdatedAt,
		)
		if err != nil {
			return err
		}
		// reload so immutable columns come from the row, not from fn
		result, err = scanMedication(tx.QueryRowContext(ctx,
			`SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id))
		return err
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Deactivate clears the active flag. It is a no-op on inactive medications.
func (r *MedicationRepo) Deactivate(ctx context.Context, id string) (*model.Medication, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE medications SET active = FALSE, updated_at = $2 WHERE id = $1 AND active`,
		id, time.Now())
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *MedicationRepo) query(ctx context.Context, query string, args ...any) ([]*model.Medication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, med)
	}
	return out, rows.Err()
}

func scanMedication(s scanner) (*model.Medication, error) {
	var (
		med        model.Medication
		confidence sql.NullFloat64
	)
	if err := s.Scan(
		&med.ID,
		&med.UserID,
		&med.Name,
		&med.Dosage,
		&med.Frequency,
		&med.Instructions,
		&med.Duration,
		&med.Active,
		&med.Source,
		&confidence,
		&med.CreatedAt,
		&med.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if confidence.Valid {
		c := confidence.Float64
		med.Confidence = &c
	}
	return &med, nil
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
