// Package postgres implements the storage interfaces on PostgreSQL through
// pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/storage"
)

//go:embed migrations.sql
var migrations string

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// DB is a PostgreSQL-backed storage.Store.
type DB struct {
	db *sql.DB
}

var _ storage.Store = (*DB)(nil)

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.Invalid(errors.ErrInvalidURL, "dsn", "")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.NewSystemErrorWithOp("open database", "invalid postgres dsn", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.NewRecoverableError("postgres unreachable", stderrors.Join(errors.ErrNetworkUnavailable, err), 0)
	}

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, errors.NewSystemErrorWithOp("migrate", "applying schema failed", err)
	}

	return &DB{db: db}, nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Medications returns the medication repository.
func (d *DB) Medications() storage.MedicationStore { return &MedicationRepo{db: d.db} }

// Reminders returns the reminder repository.
func (d *DB) Reminders() storage.ReminderStore { return &ReminderRepo{db: d.db} }

// Logs returns the medication log repository.
func (d *DB) Logs() storage.MedicationLogStore { return &MedicationLogRepo{db: d.db} }

// Webhooks returns the webhook repository.
func (d *DB) Webhooks() storage.WebhookStore { return &WebhookRepo{db: d.db} }

// Health pings the server and counts the stored reminders.
func (d *DB) Health(ctx context.Context) *storage.HealthStatus {
	status := &storage.HealthStatus{
		Backend:   "postgres",
		Healthy:   true,
		LastCheck: time.Now(),
	}

	if err := d.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.ErrorCount++
		status.Errors = append(status.Errors, "ping: "+err.Error())
		return status
	}

	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM reminders`).Scan(&n); err != nil {
		status.Healthy = false
		status.ErrorCount++
		status.Errors = append(status.Errors, "query: "+err.Error())
	}
	return status
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// inTx runs fn in a transaction, committing when fn returns nil.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
