package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
	"github.com/manav03panchal/medremind/internal/model"
	"github.com/manav03panchal/medremind/internal/storage"
)

// defaultEventQueue bounds the events waiting for webhook delivery.
const defaultEventQueue = 256

// WebhookDispatcher delivers user events to the user's enabled webhooks.
// Notify only enqueues; a background worker formats, rate limits and sends.
// Failures that may succeed later go to the retry queue.
type WebhookDispatcher struct {
	store   storage.WebhookStore
	client  *HTTPClient
	queue   *RetryQueue
	limiter *rate.Limiter

	mu      sync.Mutex
	events  chan model.Event
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWebhookDispatcher creates a dispatcher using the global configuration.
func NewWebhookDispatcher(store storage.WebhookStore) *WebhookDispatcher {
	client := NewHTTPClient()
	cfg := config.Global.Notify
	return NewWebhookDispatcherWith(store, client, NewRetryQueue(client), rate.NewLimiter(rate.Limit(cfg.WebhookRate), cfg.WebhookBurst))
}

// NewWebhookDispatcherWith creates a dispatcher from explicit parts. A nil
// queue disables retries; a nil limiter disables rate limiting.
func NewWebhookDispatcherWith(store storage.WebhookStore, client *HTTPClient, queue *RetryQueue, limiter *rate.Limiter) *WebhookDispatcher {
	d := &WebhookDispatcher{
		store:   store,
		client:  client,
		queue:   queue,
		limiter: limiter,
		events:  make(chan model.Event, defaultEventQueue),
	}
	if queue != nil {
		queue.OnResult(func(q *QueuedDelivery, err error) {
			d.updateWebhookStatus(q.UserID, q.WebhookName, err)
		})
	}
	return d
}

// DispatchResult contains the result of dispatching to a single webhook.
type DispatchResult struct {
	WebhookName string
	Success     bool
	StatusCode  int
	Duration    time.Duration
	Queued      bool
	Error       error
}

// Start launches the delivery worker and the retry queue.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.queue != nil {
		d.queue.Start()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.Error("panic in webhook worker", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		d.workerLoop()
	}()
}

// Stop stops the worker and the retry queue. Events still buffered are dropped.
func (d *WebhookDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	if d.queue != nil {
		d.queue.Stop()
	}
}

func (d *WebhookDispatcher) workerLoop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-d.events:
			d.Deliver(d.ctx, e)
		}
	}
}

// Notify enqueues e for delivery without blocking. It reports false when the
// buffer is full and the event was dropped.
func (d *WebhookDispatcher) Notify(e model.Event) bool {
	select {
	case d.events <- e:
		return true
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		logging.Warn("webhook event dropped, queue full",
			logging.KeyUserID, e.UserID,
			logging.KeyEvent, string(e.Type))
		return false
	}
}

// Deliver sends e to every enabled webhook of e.UserID concurrently and
// waits for the results.
func (d *WebhookDispatcher) Deliver(ctx context.Context, e model.Event) []DispatchResult {
	webhooks, err := d.store.ListEnabled(ctx, e.UserID)
	if err != nil {
		logging.Warn("failed to list webhooks", logging.KeyUserID, e.UserID, logging.KeyError, err)
		return []DispatchResult{{
			WebhookName: "all",
			Error:       fmt.Errorf("failed to list webhooks: %w", err),
		}}
	}
	if len(webhooks) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, len(webhooks))
	for i, wh := range webhooks {
		wg.Add(1)
		go func(idx int, wh *model.Webhook) {
			defer wg.Done()
			results[idx] = d.sendToWebhook(ctx, e, wh)
		}(i, wh)
	}
	wg.Wait()
	return results
}

func (d *WebhookDispatcher) sendToWebhook(ctx context.Context, e model.Event, wh *model.Webhook) DispatchResult {
	result := DispatchResult{WebhookName: wh.Name}

	formatter := GetFormatter(wh.Type)
	payload, err := formatter.Format(e)
	if err != nil {
		result.Error = fmt.Errorf("failed to format event: %w", err)
		d.updateWebhookStatus(wh.UserID, wh.Name, result.Error)
		return result
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			result.Error = err
			return result
		}
	}

	sent := d.client.Send(ctx, wh.URL, formatter.ContentType(), payload)
	result.StatusCode = sent.StatusCode
	result.Duration = sent.Duration
	result.Error = sent.Error
	result.Success = sent.Error == nil

	switch {
	case result.Success:
		metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	case sent.Retryable && d.queue != nil:
		d.queue.Enqueue(&QueuedDelivery{
			UserID:      wh.UserID,
			WebhookName: wh.Name,
			URL:         wh.URL,
			ContentType: formatter.ContentType(),
			Body:        payload,
			MaxRetries:  len(config.Global.RetryQueue.BackoffSchedule),
		}, sent.Error)
		result.Queued = true
	default:
		metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
		logging.Warn("webhook delivery failed",
			logging.KeyUserID, wh.UserID,
			logging.KeyWebhook, wh.Name,
			"url", wh.URL,
			logging.KeyError, sent.Error)
	}

	d.updateWebhookStatus(wh.UserID, wh.Name, sent.Error)
	return result
}

// updateWebhookStatus records the last attempt; failures to record are not
// worth surfacing.
func (d *WebhookDispatcher) updateWebhookStatus(userID, name string, err error) {
	_ = d.store.UpdateLastUsed(context.Background(), userID, name, err)
}

// SendToSingle sends e to one webhook of a user by name, enabled or not.
func (d *WebhookDispatcher) SendToSingle(ctx context.Context, userID, name string, e model.Event) DispatchResult {
	wh, err := d.store.Get(ctx, userID, name)
	if err != nil {
		return DispatchResult{WebhookName: name, Error: err}
	}
	return d.sendToWebhook(ctx, e, wh)
}

// TestWebhook sends a test event to a user's webhook.
func (d *WebhookDispatcher) TestWebhook(ctx context.Context, userID, name string) DispatchResult {
	e := model.NewEvent(model.EventTest, userID,
		"This is a test notification from medremind. If you see this, your webhook is configured correctly!")
	return d.SendToSingle(ctx, userID, name, e)
}

// Queue returns the retry queue, or nil if retries are disabled.
func (d *WebhookDispatcher) Queue() *RetryQueue {
	return d.queue
}
