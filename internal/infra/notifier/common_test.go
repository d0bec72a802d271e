package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhook(url string) *webhookClient {
	w := newWebhookClient("Test", url, 5*time.Second, nil, NewRateLimiter(1000, 100))
	w.baseDelay = time.Millisecond
	return w
}

func TestWebhookClient_Success(t *testing.T) {
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "text", "", map[string]string{"text": "hi"})

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
}

func TestWebhookClient_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "code", "AAAAAAAAAAA", struct{}{})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "code", "AAAAAAAAAAA", struct{}{})

	require.Error(t, err)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Webhook"}`))
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "text", "", struct{}{})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusNotFound, clientErr.StatusCode)
	assert.Contains(t, clientErr.Error(), "Unknown Webhook")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookClient_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.01}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "text", "", struct{}{})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookClient_RateLimitedOnLastAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"retry_after":0.01}`))
	}))
	defer server.Close()

	err := newTestWebhook(server.URL).post(context.Background(), "text", "", struct{}{})

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 10*time.Millisecond, rl.RetryAfter)
}

func TestWebhookClient_ContextCanceledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	wc := newTestWebhook(server.URL)
	wc.baseDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := wc.post(ctx, "text", "", struct{}{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   string
		want   time.Duration
	}{
		{name: "json body", body: `{"retry_after":1.5}`, want: 1500 * time.Millisecond},
		{name: "header", header: "3", body: `not json`, want: 3 * time.Second},
		{name: "body wins over header", header: "9", body: `{"retry_after":2}`, want: 2 * time.Second},
		{name: "default", want: 5 * time.Second},
		{name: "bad header", header: "soon", want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, extractRetryAfter(resp, []byte(tt.body)))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&ServerError{StatusCode: 500}))
	assert.True(t, isRetryableError(errors.New("connection reset")))
	assert.False(t, isRetryableError(&ClientError{StatusCode: 400}))
	assert.False(t, isRetryableError(&RateLimitError{RetryAfter: time.Second}))
	assert.False(t, isRetryableError(context.Canceled))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10, "..."))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10, "..."))
	assert.Equal(t, "...", truncate("abcdef", 2, "..."))
}

func TestErrorTypes(t *testing.T) {
	assert.Equal(t, "rate limit exceeded (retry after 2s)", (&RateLimitError{RetryAfter: 2 * time.Second}).Error())
	assert.Equal(t, "Slack busy (retry after 1s)", (&RateLimitError{RetryAfter: time.Second, Message: "Slack busy"}).Error())
	assert.Equal(t, "bad", (&ClientError{Message: "bad"}).Error())
	assert.Equal(t, "down", (&ServerError{Message: "down"}).Error())
}
