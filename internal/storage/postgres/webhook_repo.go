package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
)

const webhookColumns = `user_id, name, type, url, enabled, created_at, last_used, last_error`

// WebhookRepo stores per-user webhooks.
type WebhookRepo struct {
	db *sql.DB
}

// Create inserts or replaces a webhook.
func (r *WebhookRepo) Create(ctx context.Context, wh *model.Webhook) error {
	if wh.CreatedAt.IsZero() {
		wh.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhooks (user_id, name, type, url, enabled, created_at, last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id, name) DO UPDATE
		SET type = excluded.type, url = excluded.url, enabled = excluded.enabled
	`, wh.UserID, wh.Name, wh.Type, wh.URL, wh.Enabled, wh.CreatedAt, wh.LastError)
	return err
}

// Get retrieves a user's webhook by name.
func (r *WebhookRepo) Get(ctx context.Context, userID, name string) (*model.Webhook, error) {
	wh, err := scanWebhook(r.db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE user_id = $1 AND name = $2`, userID, name))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.ErrWebhookNotFound, name)
	}
	return wh, err
}

// List returns all webhooks of a user.
func (r *WebhookRepo) List(ctx context.Context, userID string) ([]*model.Webhook, error) {
	return r.query(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE user_id = $1 ORDER BY name`, userID)
}

// ListEnabled returns the enabled webhooks of a user.
func (r *WebhookRepo) ListEnabled(ctx context.Context, userID string) ([]*model.Webhook, error) {
	return r.query(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE user_id = $1 AND enabled ORDER BY name`, userID)
}

// Delete removes a user's webhook.
func (r *WebhookRepo) Delete(ctx context.Context, userID, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(errors.ErrWebhookNotFound, name)
	}
	return nil
}

// UpdateLastUsed records a delivery attempt.
func (r *WebhookRepo) UpdateLastUsed(ctx context.Context, userID, name string, lastErr error) error {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhooks SET last_used = $3, last_error = $4 WHERE user_id = $1 AND name = $2`,
		userID, name, time.Now(), msg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(errors.ErrWebhookNotFound, name)
	}
	return nil
}

func (r *WebhookRepo) query(ctx context.Context, query string, args ...any) ([]*model.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Webhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func scanWebhook(s scanner) (*model.Webhook, error) {
	var (
		wh       model.Webhook
		lastUsed sql.NullTime
	)
	if err := s.Scan(
		&wh.UserID,
		&wh.Name,
		&wh.Type,
		&wh.URL,
		&wh.Enabled,
		&wh.CreatedAt,
		&lastUsed,
		&wh.LastError,
	); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		wh.LastUsed = lastUsed.Time
	}
	return &wh, nil
}
