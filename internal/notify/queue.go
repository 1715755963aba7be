package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
)

// QueuedDelivery is a webhook payload waiting to be re-sent.
type QueuedDelivery struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	WebhookName string          `json:"webhook_name"`
	URL         string          `json:"url"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
	NextRetry   time.Time       `json:"next_retry"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
}

// RetryQueue re-sends failed webhook deliveries in the background with
// backoff. It lives in memory; pending deliveries are lost on restart.
type RetryQueue struct {
	mu       sync.RWMutex
	queue    []*QueuedDelivery
	client   *HTTPClient
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	interval time.Duration

	// onResult, when set, is told the outcome of every retry.
	onResult func(d *QueuedDelivery, err error)

	totalQueued int
	totalSent   int
	totalFailed int
}

// NewRetryQueue creates a new retry queue with the given HTTP client.
func NewRetryQueue(client *HTTPClient) *RetryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryQueue{
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
		interval: config.Global.RetryQueue.CheckInterval,
	}
}

// OnResult registers a callback invoked after each retry attempt.
func (q *RetryQueue) OnResult(fn func(d *QueuedDelivery, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onResult = fn
}

// Start begins processing the queue in the background.
func (q *RetryQueue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.processLoop()
}

// Stop stops the processor, waits for it to exit and drops deliveries still
// waiting for a retry.
func (q *RetryQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	if n := q.Pending(); n > 0 {
		logging.Warn("dropping queued webhook deliveries", logging.KeyCount, n)
		q.Clear()
	}
}

// Enqueue schedules d for retry. lastErr is the failure that queued it.
func (q *RetryQueue) Enqueue(d *QueuedDelivery, lastErr error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now()
	d.CreatedAt = now
	d.NextRetry = now.Add(calculateBackoff(d.Attempts))
	if lastErr != nil {
		d.LastError = lastErr.Error()
	}

	q.mu.Lock()
	q.queue = append(q.queue, d)
	q.totalQueued++
	size := len(q.queue)
	q.mu.Unlock()

	metrics.WebhookDeliveries.WithLabelValues("queued").Inc()
	logging.Info("webhook delivery queued for retry",
		logging.KeyUserID, d.UserID,
		logging.KeyWebhook, d.WebhookName,
		"queue_size", size,
		logging.KeyError, lastErr)
}

func (q *RetryQueue) processLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processQueue(time.Now())
		}
	}
}

// processQueue sends every delivery due at now.
func (q *RetryQueue) processQueue(now time.Time) {
	q.mu.Lock()
	var ready, remaining []*QueuedDelivery
	for _, d := range q.queue {
		if !d.NextRetry.After(now) {
			ready = append(ready, d)
		} else {
			remaining = append(remaining, d)
		}
	}
	q.queue = remaining
	q.mu.Unlock()

	for _, d := range ready {
		q.processDelivery(d)
	}
}

func (q *RetryQueue) processDelivery(d *QueuedDelivery) {
	d.Attempts++

	logging.DebugLog("retrying webhook delivery",
		logging.KeyWebhook, d.WebhookName,
		"attempt", d.Attempts,
		"max_retries", d.MaxRetries)

	result := q.client.Send(q.ctx, d.URL, d.ContentType, d.Body)

	q.mu.RLock()
	onResult := q.onResult
	q.mu.RUnlock()
	if onResult != nil {
		onResult(d, result.Error)
	}

	if result.Error == nil {
		q.mu.Lock()
		q.totalSent++
		q.mu.Unlock()

		metrics.WebhookDeliveries.WithLabelValues("success").Inc()
		logging.Info("queued webhook delivery sent",
			logging.KeyWebhook, d.WebhookName,
			"attempts", d.Attempts,
			logging.KeyDuration, result.Duration.Milliseconds())
		return
	}

	d.LastError = result.Error.Error()

	if d.Attempts >= d.MaxRetries || !result.Retryable {
		q.mu.Lock()
		q.totalFailed++
		q.mu.Unlock()

		metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
		logging.Warn("webhook delivery abandoned",
			logging.KeyWebhook, d.WebhookName,
			"attempts", d.Attempts,
			logging.KeyError, result.Error)
		return
	}

	d.NextRetry = time.Now().Add(calculateBackoff(d.Attempts))

	q.mu.Lock()
	q.queue = append(q.queue, d)
	q.mu.Unlock()
}

// calculateBackoff returns the wait before retry number attempt, following
// the configured schedule and repeating its last step.
func calculateBackoff(attempt int) time.Duration {
	backoffs := config.Global.RetryQueue.BackoffSchedule
	if len(backoffs) == 0 {
		return time.Minute
	}
	if attempt >= len(backoffs) {
		return backoffs[len(backoffs)-1]
	}
	return backoffs[attempt]
}

// QueueStats returns statistics about the retry queue.
type QueueStats struct {
	QueueSize   int `json:"queue_size"`
	TotalQueued int `json:"total_queued"`
	TotalSent   int `json:"total_sent"`
	TotalFailed int `json:"total_failed"`
}

// Stats returns current queue statistics.
func (q *RetryQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return QueueStats{
		QueueSize:   len(q.queue),
		TotalQueued: q.totalQueued,
		TotalSent:   q.totalSent,
		TotalFailed: q.totalFailed,
	}
}

// Pending returns the number of queued deliveries.
func (q *RetryQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queue)
}

// Clear drops all queued deliveries.
func (q *RetryQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = nil
}
