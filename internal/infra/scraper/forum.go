// Package scraper fetches the monitored forum page and extracts the codes
// posted on it.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codewatch/internal/domain/entity"
	"codewatch/internal/resilience/circuitbreaker"
	"codewatch/internal/resilience/retry"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
)

const (
	maxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultPostSelector matches the body of each post on a forum topic page.
	DefaultPostSelector = "div.showforumtopic-message-contents-text"

	userAgent = "codewatch/1.0"
)

// ErrNoPosts means the page was fetched but the post selector matched
// nothing, which usually means the forum markup changed.
var ErrNoPosts = errors.New("no posts matched selector")

// ForumConfig identifies the forum topic to watch.
type ForumConfig struct {
	BaseURL      string
	TopicID      string
	PostSelector string
}

// ForumScraper reads the last page of a forum topic and returns every code
// found in its posts. It implements poll.Source.
type ForumScraper struct {
	client         *http.Client
	pageURL        string
	postSelector   string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// ForumOption customizes a ForumScraper.
type ForumOption func(*ForumScraper)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) ForumOption {
	return func(f *ForumScraper) { f.retryConfig = cfg }
}

// WithCircuitBreaker overrides the circuit breaker.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) ForumOption {
	return func(f *ForumScraper) { f.circuitBreaker = cb }
}

// NewForumScraper validates cfg and builds a scraper for the topic's last page.
func NewForumScraper(client *http.Client, cfg ForumConfig, opts ...ForumOption) (*ForumScraper, error) {
	if err := entity.ValidateURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("forum base url: %w", err)
	}
	topic := strings.TrimSpace(cfg.TopicID)
	if topic == "" {
		return nil, &entity.ValidationError{Field: "topic_id", Message: "is required"}
	}
	selector := cfg.PostSelector
	if selector == "" {
		selector = DefaultPostSelector
	}
	if client == nil {
		client = http.DefaultClient
	}

	f := &ForumScraper{
		client:         client,
		pageURL:        LastPageURL(cfg.BaseURL, topic),
		postSelector:   selector,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ForumFetchConfig()),
		retryConfig:    retry.ForumFetchConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// LastPageURL returns the URL of the last page of a forum topic.
func LastPageURL(baseURL, topicID string) string {
	return strings.TrimRight(baseURL, "/") + "/forumtopic-" + url.PathEscape(topicID) + "?pg=last"
}

// PageURL returns the URL this scraper fetches.
func (f *ForumScraper) PageURL() string {
	return f.pageURL
}

// CircuitBreaker exposes the breaker guarding the fetch, for health reporting.
func (f *ForumScraper) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return f.circuitBreaker
}

// FetchSnapshot fetches the page through the retry policy and circuit breaker
// and returns the codes found in its posts. Every call hits the network.
func (f *ForumScraper) FetchSnapshot(ctx context.Context) (entity.Snapshot, error) {
	return retry.Do(ctx, f.retryConfig, func() (entity.Snapshot, error) {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("forum circuit breaker open, request rejected",
					slog.String("service", f.circuitBreaker.Name()),
					slog.String("url", f.pageURL))
			}
			return nil, err
		}
		return cbResult.(entity.Snapshot), nil
	})
}

// Posts fetches the page once, without retry, and returns the text of each post.
func (f *ForumScraper) Posts(ctx context.Context) ([]string, error) {
	doc, err := f.fetchHTML(ctx)
	if err != nil {
		return nil, err
	}
	return f.extractPosts(doc), nil
}

// doFetch performs one fetch and extraction without retry or circuit breaker.
func (f *ForumScraper) doFetch(ctx context.Context) (entity.Snapshot, error) {
	doc, err := f.fetchHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch forum page: %w", err)
	}

	posts := f.extractPosts(doc)
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPosts, f.postSelector)
	}

	codes := entity.FindCodes(posts...)
	slog.Debug("forum page scraped",
		slog.String("url", f.pageURL),
		slog.Int("posts", len(posts)),
		slog.Int("codes", codes.Len()))
	return codes, nil
}

func (f *ForumScraper) fetchHTML(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

func (f *ForumScraper) extractPosts(doc *goquery.Document) []string {
	var posts []string
	doc.Find(f.postSelector).Each(func(_ int, s *goquery.Selection) {
		posts = append(posts, s.Text())
	})
	return posts
}
