package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"codewatch/internal/domain/entity"
	"codewatch/internal/infra/scraper"
	"codewatch/internal/resilience/circuitbreaker"
	"codewatch/internal/resilience/retry"

	"github.com/google/go-cmp/cmp"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forumPage = `<!DOCTYPE html>
<html>
<body>
  <div class="showforumtopic-message">
    <div class="showforumtopic-message-contents-text">Here you go: ABCDE12345F enjoy</div>
  </div>
  <div class="showforumtopic-message">
    <div class="showforumtopic-message-contents-text">
      Two more: ZZZZZZZZZZZ and 11111111111. Also abcde12345f is not a code.
    </div>
  </div>
  <div class="signature">Sig with AAAAAAAAAAA outside a post</div>
</body>
</html>`

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestScraper(t *testing.T, baseURL string, opts ...scraper.ForumOption) *scraper.ForumScraper {
	t.Helper()
	opts = append([]scraper.ForumOption{scraper.WithRetryConfig(fastRetry())}, opts...)
	s, err := scraper.NewForumScraper(&http.Client{Timeout: 5 * time.Second}, scraper.ForumConfig{
		BaseURL: baseURL,
		TopicID: "803801",
	}, opts...)
	require.NoError(t, err)
	return s
}

func TestForumScraper_FetchSnapshot_Success(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(forumPage))
	}))
	defer server.Close()

	s := newTestScraper(t, server.URL)

	snapshot, err := s.FetchSnapshot(context.Background())
	require.NoError(t, err)

	want := []entity.Code{"11111111111", "ABCDE12345F", "ZZZZZZZZZZZ"}
	if diff := cmp.Diff(want, snapshot.Sorted()); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "/forumtopic-803801", gotPath)
	assert.Equal(t, "pg=last", gotQuery)
	assert.Equal(t, "codewatch/1.0", gotUA)
}

func TestForumScraper_FetchSnapshot_NeverCaches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`<div class="showforumtopic-message-contents-text">AAAAAAAAAAA</div>`))
			return
		}
		_, _ = w.Write([]byte(`<div class="showforumtopic-message-contents-text">BBBBBBBBBBB</div>`))
	}))
	defer server.Close()

	s := newTestScraper(t, server.URL)

	first, err := s.FetchSnapshot(context.Background())
	require.NoError(t, err)
	second, err := s.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []entity.Code{"AAAAAAAAAAA"}, first.Sorted())
	assert.Equal(t, []entity.Code{"BBBBBBBBBBB"}, second.Sorted())
}

func TestForumScraper_FetchSnapshot_PostsWithoutCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div class="showforumtopic-message-contents-text">thanks!</div>`))
	}))
	defer server.Close()

	snapshot, err := newTestScraper(t, server.URL).FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.Len())
}

func TestForumScraper_FetchSnapshot_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(forumPage))
	}))
	defer server.Close()

	snapshot, err := newTestScraper(t, server.URL).FetchSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, snapshot.Len())
}

func TestForumScraper_FetchSnapshot_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestScraper(t, server.URL).FetchSnapshot(context.Background())

	require.Error(t, err)
	var httpErr *retry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForumScraper_FetchSnapshot_NoPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>maintenance</p></body></html>`))
	}))
	defer server.Close()

	_, err := newTestScraper(t, server.URL).FetchSnapshot(context.Background())

	assert.ErrorIs(t, err, scraper.ErrNoPosts)
}

func TestForumScraper_CustomSelector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<article class="post">QQQQQQQQQQQ</article>`))
	}))
	defer server.Close()

	s, err := scraper.NewForumScraper(nil, scraper.ForumConfig{
		BaseURL:      server.URL,
		TopicID:      "1",
		PostSelector: "article.post",
	}, scraper.WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	snapshot, err := s.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.Contains("QQQQQQQQQQQ"))
}

func TestForumScraper_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:             "forum-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	})
	s := newTestScraper(t, server.URL, scraper.WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, _ = s.FetchSnapshot(context.Background())
	}
	require.True(t, s.CircuitBreaker().IsOpen())

	_, err := s.FetchSnapshot(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not hit the network")
}

func TestForumScraper_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(forumPage))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScraper(t, server.URL).FetchSnapshot(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestForumScraper_Posts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(forumPage))
	}))
	defer server.Close()

	posts, err := newTestScraper(t, server.URL).Posts(context.Background())

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Contains(t, posts[0], "ABCDE12345F")
}

func TestNewForumScraper_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  scraper.ForumConfig
	}{
		{name: "missing base url", cfg: scraper.ForumConfig{TopicID: "1"}},
		{name: "bad scheme", cfg: scraper.ForumConfig{BaseURL: "ftp://forum.example", TopicID: "1"}},
		{name: "missing topic", cfg: scraper.ForumConfig{BaseURL: "http://forum.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scraper.NewForumScraper(nil, tt.cfg)
			assert.ErrorIs(t, err, entity.ErrInvalidInput)
		})
	}
}

func TestLastPageURL(t *testing.T) {
	assert.Equal(t, "http://forum.example/forumtopic-803801?pg=last",
		scraper.LastPageURL("http://forum.example/", "803801"))
}
