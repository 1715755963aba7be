package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
)

// userAgent is sent with every webhook request.
const userAgent = "medremind/1.0"

// HTTPClient posts webhook payloads with retry logic.
type HTTPClient struct {
	client     *http.Client
	maxRetries int
	retryDelay []time.Duration
}

// NewHTTPClient creates a client from the global HTTP configuration.
func NewHTTPClient() *HTTPClient {
	cfg := config.Global.HTTP
	return NewHTTPClientWithRetries(cfg.Timeout, cfg.MaxRetries, cfg.RetryDelays)
}

// NewHTTPClientWithRetries creates a client that makes up to maxRetries
// attempts, waiting retryDelay[i] before attempt i.
func NewHTTPClientWithRetries(timeout time.Duration, maxRetries int, retryDelay []time.Duration) *HTTPClient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &HTTPClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
	// Retryable is set when the last failure was a network error, a 429 or
	// a 5xx, so a later attempt may succeed.
	Retryable bool
}

// Send posts body to url, retrying transient failures.
func (c *HTTPClient) Send(ctx context.Context, url, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		if delay := c.delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err()
				return result
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			result.Error = fmt.Errorf("failed to create request: %w", err)
			result.Retryable = false
			return result
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			result.Error = fmt.Errorf("request failed: %w", err)
			result.Retryable = ctx.Err() == nil
			if !result.Retryable {
				return result
			}
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		result.StatusCode = resp.StatusCode

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			result.Error = nil
			result.Retryable = false
			return result
		case resp.StatusCode == http.StatusTooManyRequests:
			result.Error = errors.WithCategory(fmt.Errorf("rate limited (HTTP 429)"), errors.CategoryRecoverable)
			result.Retryable = true
		case resp.StatusCode >= 500:
			result.Error = errors.WithCategory(
				fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, respBody), errors.CategoryRecoverable)
			result.Retryable = true
		default:
			// Client errors will not improve on retry; the webhook needs fixing.
			result.Error = errors.WithCategory(
				fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, respBody), errors.CategoryUser)
			result.Retryable = false
			return result
		}
	}

	if result.Error == nil {
		result.Error = fmt.Errorf("max retries exceeded")
	}
	return result
}

func (c *HTTPClient) delay(attempt int) time.Duration {
	if attempt < len(c.retryDelay) {
		return c.retryDelay[attempt]
	}
	if len(c.retryDelay) == 0 {
		return 0
	}
	return c.retryDelay[len(c.retryDelay)-1]
}
