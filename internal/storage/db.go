// Package storage provides the badger-backed record store for medremind.
package storage

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/medremind/internal/errors"
)

const (
	// AppName is the application name used for data directories.
	AppName = "medremind"

	// maxConflictRetries bounds how often a transaction is replayed after an
	// optimistic concurrency conflict.
	maxConflictRetries = 10
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "db")
}

// Open opens or creates a database at the given path.
func Open(opts Options) (*DB, error) {
	var badgerOpts badger.Options
	var path string

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path = opts.Path
		if err := EnsureDirectory(path); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(path)
	}

	// Reduce logging noise
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	return &DB{db: db, path: path}, nil
}

// classifyOpenError maps badger open failures onto the error taxonomy.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cannot acquire directory lock"):
		return errors.NewSystemErrorWithOp("open database", "database is in use", errors.ErrLockHeld)
	case IsDatabaseCorrupted(err):
		return errors.NewSystemErrorWithOp("open database", err.Error(), errors.ErrDatabaseCorrupted)
	default:
		return errors.NewSystemErrorWithOp("open database", err.Error(), err)
	}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database directory, or "" for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// update runs fn in a read-write transaction, replaying it when badger
// reports a conflict with a concurrent transaction. fn must be safe to run
// more than once.
func (d *DB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	conflict := errors.NewRecoverableError("transaction conflict", nil, maxConflictRetries)
	for conflict.CanRetry {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		conflict.Cause = err
		conflict.IncrementRetry()
	}
	return conflict
}

// view runs fn in a read-only transaction.
func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}
