package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"codewatch/internal/domain/entity"
	"codewatch/internal/resilience/circuitbreaker"
)

// defaultSendTimeout bounds a single channel send, retries included.
const defaultSendTimeout = 30 * time.Second

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	State               string `json:"state"` // closed, half-open, open
	CircuitBreakerOpen  bool   `json:"circuit_breaker_open"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records delivery metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSendTimeout bounds each channel send. Non-positive values are ignored.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreakerConfig overrides the per-channel circuit breaker settings.
func WithBreakerConfig(fn func(channel string) circuitbreaker.Config) Option {
	return func(s *Service) {
		if fn != nil {
			s.breakerConfig = fn
		}
	}
}

type route struct {
	channel Channel
	breaker *circuitbreaker.CircuitBreaker
}

// Service delivers messages to every enabled channel concurrently.
type Service struct {
	routes        []route
	metrics       *Metrics
	logger        *slog.Logger
	timeout       time.Duration
	breakerConfig func(channel string) circuitbreaker.Config

	mu     sync.RWMutex // guards closed
	closed bool
	wg     sync.WaitGroup // in-flight dispatches
}

// NewService creates a notification service over channels.
func NewService(channels []Channel, opts ...Option) *Service {
	s := &Service{
		logger:        slog.Default(),
		timeout:       defaultSendTimeout,
		breakerConfig: circuitbreaker.NotifyChannelConfig,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, ch := range channels {
		name := ch.Name()
		cfg := s.breakerConfig(name)
		next := cfg.OnStateChange
		cfg.OnStateChange = func(breaker string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				s.metrics.recordBreakerOpen(name)
			}
			if next != nil {
				next(breaker, from, to)
			}
		}
		s.routes = append(s.routes, route{channel: ch, breaker: circuitbreaker.New(cfg)})
	}
	return s
}

// Deliver announces code on every enabled channel. It blocks until each
// channel has succeeded or given up and returns the joined per-channel
// errors. With no enabled channels it succeeds without doing anything.
func (s *Service) Deliver(ctx context.Context, code entity.Code) error {
	return s.dispatch(ctx, "code", code.String(), func(ctx context.Context, ch Channel) error {
		return ch.SendCode(ctx, code)
	})
}

// Announce posts text on every enabled channel.
func (s *Service) Announce(ctx context.Context, text string) error {
	return s.dispatch(ctx, "text", "", func(ctx context.Context, ch Channel) error {
		return ch.SendText(ctx, text)
	})
}

func (s *Service) dispatch(ctx context.Context, kind, subject string, send func(context.Context, Channel) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrServiceClosed
	}
	s.wg.Add(1)
	s.mu.RUnlock()
	defer s.wg.Done()

	enabled := make([]route, 0, len(s.routes))
	for _, r := range s.routes {
		if r.channel.IsEnabled() {
			enabled = append(enabled, r)
		}
	}
	s.metrics.setChannelsEnabled(len(enabled))

	if len(enabled) == 0 {
		s.logger.Debug("no notification channels enabled",
			slog.String("kind", kind),
			slog.String("subject", subject))
		return nil
	}

	s.logger.Info("dispatching notification",
		slog.String("kind", kind),
		slog.String("subject", subject),
		slog.Int("enabled_channels", len(enabled)))

	// One failing channel must not cancel the others, so the group carries
	// no shared context and every goroutine reports through errs.
	errs := make([]error, len(enabled))
	var g errgroup.Group
	for i, r := range enabled {
		g.Go(func() error {
			errs[i] = s.sendOne(ctx, r, subject, send)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (s *Service) sendOne(ctx context.Context, r route, subject string, send func(context.Context, Channel) error) (err error) {
	name := r.channel.Name()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic in notification channel",
				slog.String("channel", name),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			s.metrics.recordDropped(name, dropPanic)
			err = fmt.Errorf("%s: panic: %v", name, p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.metrics.recordDispatch(name)
	start := time.Now()

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, send(ctx, r.channel)
	})
	duration := time.Since(start)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("channel skipped, circuit breaker open",
			slog.String("channel", name),
			slog.String("subject", subject))
		s.metrics.recordDropped(name, dropCircuitOpen)
		return fmt.Errorf("%s: %w", name, ErrCircuitBreakerOpen)
	}

	s.metrics.recordResult(name, duration, err)
	if err != nil {
		s.logger.Warn("channel notification failed",
			slog.String("channel", name),
			slog.String("subject", subject),
			slog.Duration("send_duration", duration),
			slog.Any("error", err))
		return fmt.Errorf("%s: %w", name, err)
	}

	s.logger.Info("channel notification sent",
		slog.String("channel", name),
		slog.String("subject", subject),
		slog.Duration("send_duration", duration))
	return nil
}

// GetChannelHealth returns the breaker state of every configured channel.
func (s *Service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(s.routes))
	for _, r := range s.routes {
		state := r.breaker.State()
		statuses = append(statuses, ChannelHealthStatus{
			Name:                r.channel.Name(),
			Enabled:             r.channel.IsEnabled(),
			State:               state.String(),
			CircuitBreakerOpen:  state == gobreaker.StateOpen,
			ConsecutiveFailures: r.breaker.Counts().ConsecutiveFailures,
		})
	}
	return statuses
}

// EnabledChannels returns the names of the enabled channels.
func (s *Service) EnabledChannels() []string {
	var names []string
	for _, r := range s.routes {
		if r.channel.IsEnabled() {
			names = append(names, r.channel.Name())
		}
	}
	return names
}

// Shutdown rejects new dispatches and waits for in-flight ones to finish or
// ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down notification service")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("notification service shutdown complete")
		return nil
	case <-ctx.Done():
		s.logger.Warn("notification service shutdown timeout")
		return ctx.Err()
	}
}
