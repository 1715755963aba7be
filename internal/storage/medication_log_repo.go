package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/manav03panchal/medremind/internal/model"
)

// MedicationLogRepo provides operations for the append-only intake log.
// Keys sort by TakenAt within a user, so range queries are prefix seeks.
type MedicationLogRepo struct {
	db *DB
}

// NewMedicationLogRepo creates a new medication log repository.
func NewMedicationLogRepo(db *DB) *MedicationLogRepo {
	return &MedicationLogRepo{db: db}
}

// Append stores a new log entry.
func (r *MedicationLogRepo) Append(ctx context.Context, log *model.MedicationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.TakenAt.IsZero() {
		log.TakenAt = time.Now()
	}
	return r.db.Set(ctx, log)
}

// ListByUser returns the user's log entries in [from, to), oldest first.
func (r *MedicationLogRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*model.MedicationLog, error) {
	prefix := []byte(model.MedicationLogPrefix(userID))
	start := []byte(fmt.Sprintf("%s%020d", prefix, from.UnixNano()))
	end := fmt.Sprintf("%s%020d", prefix, to.UnixNano())

	var logs []*model.MedicationLog
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if key >= end {
				break
			}
			entry := &model.MedicationLog{}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, entry)
			}); err != nil {
				return err
			}
			entry.SetKey(key)
			logs = append(logs, entry)
		}
		return nil
	})
	return logs, err
}
