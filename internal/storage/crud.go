package storage

import (
	"context"
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/medremind/internal/model"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
)

// IsErrKeyNotFound returns true if the error is a key not found error.
func IsErrKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// Get retrieves a value by key and unmarshals it into v.
func (d *DB) Get(ctx context.Context, key string, v model.Model) error {
	return d.view(ctx, func(txn *badger.Txn) error {
		return getTxn(txn, key, v)
	})
}

// Set stores a model in the database.
func (d *DB) Set(ctx context.Context, v model.Model) error {
	return d.update(ctx, func(txn *badger.Txn) error {
		return setTxn(txn, v)
	})
}

// Delete removes a key from the database.
func (d *DB) Delete(ctx context.Context, key string) error {
	return d.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists in the database.
func (d *DB) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := d.view(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetAllByPrefix retrieves all values with the given prefix.
func GetAllByPrefix[T model.Model](ctx context.Context, d *DB, prefix string, newFunc func() T) ([]T, error) {
	var results []T
	err := d.view(ctx, func(txn *badger.Txn) error {
		var err error
		results, err = scanTxn(txn, prefix, newFunc)
		return err
	})
	return results, err
}

// getTxn reads key inside txn and unmarshals it into v.
func getTxn(txn *badger.Txn, key string, v model.Model) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
}

// setTxn writes v under its key inside txn.
func setTxn(txn *badger.Txn, v model.Model) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(v.GetKey()), data)
}

// scanTxn decodes every value under prefix inside txn.
func scanTxn[T model.Model](txn *badger.Txn, prefix string, newFunc func() T) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := txn.NewIterator(opts)
	defer it.Close()

	var results []T
	prefixBytes := []byte(prefix)
	for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
		item := it.Item()
		key := string(item.Key())
		err := item.Value(func(val []byte) error {
			v := newFunc()
			if err := json.Unmarshal(val, v); err != nil {
				return err
			}
			v.SetKey(key)
			results = append(results, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
