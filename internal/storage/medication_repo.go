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

// MedicationRepo provides operations for Medication entities.
type MedicationRepo struct {
	db *DB
}

// NewMedicationRepo creates a new medication repository.
func NewMedicationRepo(db *DB) *MedicationRepo {
	return &MedicationRepo{db: db}
}

// Create creates a new medication with a generated ID, reserving its name
// for the user while it stays active.
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

	nameKey := []byte(med.NameIndexKey())
	return r.db.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(nameKey)
		if err == nil {
			return errors.Invalid(errors.ErrDuplicateMedication, "name", med.Name)
		}
		if !IsErrKeyNotFound(err) {
			return err
		}
		if err := setTxn(txn, med); err != nil {
			return err
		}
		if med.Active {
			return txn.Set(nameKey, []byte(med.ID))
		}
		return nil
	})
}

// Get retrieves a medication by ID.
func (r *MedicationRepo) Get(ctx context.Context, id string) (*model.Medication, error) {
	med := &model.Medication{}
	if err := r.db.Get(ctx, model.GenerateMedicationKey(id), med); err != nil {
		if IsErrKeyNotFound(err) {
			return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
		}
		return nil, err
	}
	return med, nil
}

// List retrieves all medications of all users.
func (r *MedicationRepo) List(ctx context.Context) ([]*model.Medication, error) {
	return GetAllByPrefix(ctx, r.db, model.PrefixMedication+":", func() *model.Medication {
		return &model.Medication{}
	})
}

// ListByUser retrieves a user's medications, newest first.
func (r *MedicationRepo) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*model.Medication, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []*model.Medication
	for _, med := range all {
		if med.UserID == userID && (med.Active || !activeOnly) {
			result = append(result, med)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// ListActive retrieves every active medication.
func (r *MedicationRepo) ListActive(ctx context.Context) ([]*model.Medication, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var active []*model.Medication
	for _, med := range all {
		if med.Active {
			active = append(active, med)
		}
	}
	return active, nil
}

// Update applies fn to the stored medication inside one transaction.
func (r *MedicationRepo) Update(ctx context.Context, id string, fn func(med *model.Medication) error) (*model.Medication, error) {
	var result *model.Medication
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		med := &model.Medication{}
		if err := getTxn(txn, model.GenerateMedicationKey(id), med); err != nil {
			return err
		}
		name, userID, active := med.Name, med.UserID, med.Active
		if err := fn(med); err != nil {
			return err
		}
		med.Name, med.UserID, med.Active = name, userID, active
		med.UpdatedAt = time.Now()
		result = med
		return setTxn(txn, med)
	})
	if IsErrKeyNotFound(err) {
		return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
	}
	return result, err
}

// Deactivate marks a medication inactive and frees its name. Deactivating an
// inactive medication is a no-op.
func (r *MedicationRepo) Deactivate(ctx context.Context, id string) (*model.Medication, error) {
	var result *model.Medication
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		med := &model.Medication{}
		if err := getTxn(txn, model.GenerateMedicationKey(id), med); err != nil {
			return err
		}
		result = med
		if !med.Active {
			return nil
		}

		med.Active = false
		med.UpdatedAt = time.Now()
		if err := setTxn(txn, med); err != nil {
			return err
		}

		// Only drop the name reservation if it still points at this medication.
		nameKey := []byte(med.NameIndexKey())
		item, err := txn.Get(nameKey)
		if IsErrKeyNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) == med.ID {
			return txn.Delete(nameKey)
		}
		return nil
	})
	if IsErrKeyNotFound(err) {
		return nil, errors.NotFound(errors.ErrMedicationNotFound, id)
	}
	return result, err
}

func sortNewestFirst(meds []*model.Medication) {
	sort.SliceStable(meds, func(i, j int) bool {
		return meds[i].CreatedAt.After(meds[j].CreatedAt)
	})
}
