package storage

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/model"
)

// WebhookRepo provides operations for Webhook entities.
type WebhookRepo struct {
	db *DB
}

// NewWebhookRepo creates a new webhook repository.
func NewWebhookRepo(db *DB) *WebhookRepo {
	return &WebhookRepo{db: db}
}

// Create creates or replaces a webhook.
func (r *WebhookRepo) Create(ctx context.Context, webhook *model.Webhook) error {
	if webhook.CreatedAt.IsZero() {
		webhook.CreatedAt = time.Now()
	}
	return r.db.Set(ctx, webhook)
}

// Get retrieves a user's webhook by name.
func (r *WebhookRepo) Get(ctx context.Context, userID, name string) (*model.Webhook, error) {
	webhook := &model.Webhook{}
	if err := r.db.Get(ctx, model.GenerateWebhookKey(userID, name), webhook); err != nil {
		if IsErrKeyNotFound(err) {
			return nil, errors.NotFound(errors.ErrWebhookNotFound, name)
		}
		return nil, err
	}
	return webhook, nil
}

// List retrieves all webhooks of a user.
func (r *WebhookRepo) List(ctx context.Context, userID string) ([]*model.Webhook, error) {
	return GetAllByPrefix(ctx, r.db, model.WebhookPrefix(userID), func() *model.Webhook {
		return &model.Webhook{}
	})
}

// ListEnabled retrieves all enabled webhooks of a user.
func (r *WebhookRepo) ListEnabled(ctx context.Context, userID string) ([]*model.Webhook, error) {
	all, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var enabled []*model.Webhook
	for _, wh := range all {
		if wh.IsEnabled() {
			enabled = append(enabled, wh)
		}
	}
	return enabled, nil
}

// Delete removes a user's webhook by name.
func (r *WebhookRepo) Delete(ctx context.Context, userID, name string) error {
	key := model.GenerateWebhookKey(userID, name)
	exists, err := r.db.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound(errors.ErrWebhookNotFound, name)
	}
	return r.db.Delete(ctx, key)
}

// UpdateLastUsed updates the last used timestamp and the last error.
func (r *WebhookRepo) UpdateLastUsed(ctx context.Context, userID, name string, lastErr error) error {
	err := r.db.update(ctx, func(txn *badger.Txn) error {
		webhook := &model.Webhook{}
		if err := getTxn(txn, model.GenerateWebhookKey(userID, name), webhook); err != nil {
			return err
		}
		webhook.LastUsed = time.Now()
		webhook.LastError = ""
		if lastErr != nil {
			webhook.LastError = lastErr.Error()
		}
		return setTxn(txn, webhook)
	})
	if IsErrKeyNotFound(err) {
		return errors.NotFound(errors.ErrWebhookNotFound, name)
	}
	return err
}
