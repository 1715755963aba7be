package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
)

// HealthStatus represents the result of a database health check.
type HealthStatus struct {
	Backend    string    `json:"backend"`
	Healthy    bool      `json:"healthy"`
	Corrupted  bool      `json:"corrupted"`
	LastCheck  time.Time `json:"last_check"`
	ErrorCount int       `json:"error_count"`
	Errors     []string  `json:"errors,omitempty"`
	// DiskFreePercent is the free space on the data volume; zero for
	// in-memory and remote backends.
	DiskFreePercent float64 `json:"disk_free_percent,omitempty"`
}

// fail records a health check failure.
func (s *HealthStatus) fail(corrupted bool, format string, args ...any) {
	s.Healthy = false
	s.Corrupted = s.Corrupted || corrupted
	s.ErrorCount++
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Health reads a sample of values to detect corruption.
func (d *DB) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Backend:   "badger",
		LastCheck: time.Now(),
		Healthy:   true,
	}

	if d == nil || d.db == nil {
		status.fail(true, "database not initialized")
		return status
	}
	if d.db.IsClosed() {
		status.fail(false, "database closed")
		return status
	}

	err := d.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid() && count < 100; it.Next() {
			item := it.Item()
			if err := item.Value(func([]byte) error { return nil }); err != nil {
				status.fail(true, "corrupted value at key: %s", item.Key())
			}
			count++
		}
		return nil
	})
	if err != nil {
		status.fail(IsDatabaseCorrupted(err), "iteration error: %v", err)
	}

	if d.path != "" {
		if info, err := GetDiskSpace(d.path); err == nil {
			status.DiskFreePercent = info.FreePercent()
		}
	}
	return status
}

// Backup writes a full badger backup stream to w.
func (d *DB) Backup(w io.Writer) error {
	since, err := d.db.Backup(w, 0)
	if err != nil {
		return errors.NewSystemErrorWithOp("backup", "database backup failed", err)
	}
	logging.Info("database backup written", "version", since)
	return nil
}

// Restore loads a backup stream produced by Backup.
func (d *DB) Restore(r io.Reader) error {
	if err := d.db.Load(r, 256); err != nil {
		return errors.NewSystemErrorWithOp("restore", "database restore failed", err)
	}
	return nil
}

// corruptionPatterns are substrings of badger errors that indicate damage.
var corruptionPatterns = []string{
	"checksum mismatch",
	"corrupt",
	"unexpected eof",
	"bad magic",
	"truncated",
}

// IsDatabaseCorrupted checks if the given error indicates database corruption.
func IsDatabaseCorrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrDatabaseCorrupted) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range corruptionPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
