package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// Retry policy shared by all webhook notifiers.
const (
	defaultMaxAttempts = 2
	defaultBaseDelay   = 5 * time.Second
	defaultRetryAfter  = 5 * time.Second
	maxErrorBodyBytes  = 4 * 1024
)

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError reports whether err is worth another attempt: server
// errors and network errors are, client errors are not. Rate limits are
// handled separately by is429Error.
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// truncate cuts text to maxLength bytes, ending in suffix when cut.
func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	truncateAt := max(maxLength-len(suffix), 0)
	return text[:truncateAt] + suffix
}

// webhookClient posts JSON payloads to a single webhook endpoint with rate
// limiting and the shared retry policy.
type webhookClient struct {
	service     string // "GroupMe", "Discord", "Slack"
	url         string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	maxAttempts int
	baseDelay   time.Duration
}

func newWebhookClient(service, url string, timeout time.Duration, transport http.RoundTripper, limiter *RateLimiter) *webhookClient {
	return &webhookClient{
		service: service,
		url:     url,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		rateLimiter: limiter,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// post sends payload under a fresh request ID. kind and subject only label
// the log lines.
func (w *webhookClient) post(ctx context.Context, kind, subject string, payload any) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("Starting "+w.service+" notification",
		slog.String("request_id", requestID),
		slog.String("kind", kind),
		slog.String("subject", subject))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	waited, err := w.rateLimiter.Wait(ctx)
	if waited > time.Millisecond {
		slog.Debug("waited for rate limiter",
			slog.String("request_id", requestID),
			slog.String("service", w.service),
			slog.Duration("wait", waited))
	}
	if err != nil {
		slog.Error("Rate limiter error",
			slog.String("request_id", requestID),
			slog.String("service", w.service),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return w.sendWithRetry(ctx, subject, body)
}

// sendWithRetry implements the retry policy:
//   - 429: wait for the server's retry_after, then try again
//   - 5xx and network errors: linear backoff (baseDelay, 2*baseDelay, ...)
//   - other 4xx: fail immediately
func (w *webhookClient) sendWithRetry(ctx context.Context, subject string, body []byte) error {
	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.send(ctx, body)
		if err == nil {
			slog.Info(w.service+" notification successful",
				slog.String("request_id", requestID),
				slog.String("subject", subject),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn(w.service+" rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))
			if attempt == w.maxAttempts {
				break
			}
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			slog.Error(w.service+" notification failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.String("subject", subject),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < w.maxAttempts {
			delay := w.baseDelay * time.Duration(attempt)
			slog.Warn(w.service+" API request failed, retrying",
				slog.String("request_id", requestID),
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	slog.Error(w.service+" notification failed after all retries",
		slog.String("request_id", requestID),
		slog.String("subject", subject),
		slog.Any("error", lastErr),
		slog.Int("max_attempts", w.maxAttempts))

	return fmt.Errorf("%s notification failed after %d attempts: %w", w.service, w.maxAttempts, lastErr)
}

// send performs a single POST and classifies the response.
func (w *webhookClient) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    w.service + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, respBody),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error: %s", w.service, string(respBody)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error: %s", w.service, string(respBody)),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
}

// rateLimitBody is the JSON shape Discord uses for 429 responses.
type rateLimitBody struct {
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// extractRetryAfter reads retry_after from a JSON body, then the Retry-After
// header, defaulting to 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var rl rateLimitBody
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}
