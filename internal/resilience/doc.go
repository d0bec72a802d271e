// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic
// to ensure system resilience in the face of failures.
//
// The package supports:
//   - Circuit breakers for the forum fetch and each notification channel
//   - Retry logic with exponential backoff and jitter
//   - Retryable HTTP status classification for the forum scraper
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("my-service"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callExternalService()
//	})
//
//	page, err := retry.Do(ctx, retry.ForumFetchConfig(), func() (string, error) {
//	    return fetchPage(ctx)
//	})
package resilience
