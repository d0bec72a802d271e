package poll

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"codewatch/internal/domain/entity"
	"codewatch/internal/observability/logging"
	"codewatch/internal/observability/tracing"
	"codewatch/pkg/recency"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Source produces a fresh snapshot of the codes currently visible.
// Implementations must not cache between calls.
type Source interface {
	FetchSnapshot(ctx context.Context) (entity.Snapshot, error)
}

// Notifier announces a single code. It may be called repeatedly; the loop
// never retries a failed call within the same cycle.
type Notifier interface {
	Deliver(ctx context.Context, code entity.Code) error
}

// Config is the loop configuration.
type Config struct {
	// Capacity bounds the recency set. 0 disables deduplication.
	Capacity int
	// Delay is the pause between the end of one cycle and the start of the
	// next when no schedule is set.
	Delay time.Duration
}

// Validate rejects a negative capacity and a non-positive delay.
func (c Config) Validate() error {
	if c.Capacity < 0 {
		return &ConfigError{Field: "capacity", Reason: "must not be negative"}
	}
	if c.Delay <= 0 {
		return &ConfigError{Field: "delay", Reason: "must be positive"}
	}
	return nil
}

// Clock abstracts time for the sleep between cycles.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// fixedDelay is a cron.Schedule that fires exactly d after the given time.
// cron.Every rounds to whole seconds, which is too coarse for short delays.
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithMetrics sets the Prometheus instruments. Defaults to none.
func WithMetrics(m *Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithTracer sets the tracer. Defaults to tracing.GetTracer.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) { l.tracer = t }
}

// WithSchedule replaces the fixed delay pacing with s. The next cycle starts
// at s.Next(end of the previous cycle).
func WithSchedule(s cron.Schedule) Option {
	return func(l *Loop) { l.schedule = s }
}

// WithClock sets the clock used for sleeping.
func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// OnSeeded registers a hook called once seeding has finished.
func OnSeeded(fn func(context.Context, SeedResult)) Option {
	return func(l *Loop) { l.onSeeded = fn }
}

// OnCycle registers a hook called after every poll cycle.
func OnCycle(fn func(context.Context, CycleResult)) Option {
	return func(l *Loop) { l.onCycle = fn }
}

// SeedResult describes the seeding fetch.
type SeedResult struct {
	Fetched  int
	Seeded   int
	Err      error // *FetchError, if the fetch failed
	Duration time.Duration
}

// Delivery is the outcome of announcing one new code.
type Delivery struct {
	Code entity.Code
	Err  error // *DeliveryError, if the notifier failed
}

// CycleResult is the record of one poll cycle.
type CycleResult struct {
	Cycle      uint64
	ID         string
	Fetched    int
	FetchErr   error // *FetchError, if the fetch failed
	Deliveries []Delivery
	StartedAt  time.Time
	Duration   time.Duration
}

// New returns the codes discovered in this cycle.
func (r CycleResult) New() []entity.Code {
	out := make([]entity.Code, 0, len(r.Deliveries))
	for _, d := range r.Deliveries {
		out = append(out, d.Code)
	}
	return out
}

// Failed returns the deliveries that did not succeed.
func (r CycleResult) Failed() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Stats is a point-in-time view of the loop, safe to read from any goroutine.
type Stats struct {
	Seeded           bool      `json:"seeded"`
	Cycles           uint64    `json:"cycles"`
	SeenCodes        int       `json:"seen_codes"`
	Capacity         int       `json:"capacity"`
	Delivered        uint64    `json:"delivered"`
	DeliveryFailures uint64    `json:"delivery_failures"`
	FetchFailures    uint64    `json:"fetch_failures"`
	LastCycleAt      time.Time `json:"last_cycle_at,omitzero"`
	LastSuccessAt    time.Time `json:"last_success_at,omitzero"`
}

// Loop owns the recency set and drives the poll cycle. Seed, Poll and Run
// must be called from a single goroutine; Stats may be called from any.
type Loop struct {
	source   Source
	notifier Notifier
	cfg      Config
	seen     *recency.Set[entity.Code]

	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	schedule cron.Schedule
	clock    Clock
	onSeeded func(context.Context, SeedResult)
	onCycle  func(context.Context, CycleResult)

	seeded     bool
	seedResult SeedResult
	cycle      uint64

	stats struct {
		seeded        atomic.Bool
		cycles        atomic.Uint64
		seen          atomic.Int64
		delivered     atomic.Uint64
		deliveryFails atomic.Uint64
		fetchFails    atomic.Uint64
		lastCycle     atomic.Int64 // unix nanoseconds
		lastSuccess   atomic.Int64 // unix nanoseconds
	}
}

// NewLoop validates cfg and builds a loop around source and notifier.
func NewLoop(source Source, notifier Notifier, cfg Config, opts ...Option) (*Loop, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if notifier == nil {
		return nil, ErrNilNotifier
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		source:   source,
		notifier: notifier,
		cfg:      cfg,
		seen:     recency.New[entity.Code](cfg.Capacity),
		logger:   slog.Default(),
		tracer:   tracing.GetTracer(),
		schedule: fixedDelay(cfg.Delay),
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Seed fetches one snapshot and marks every code in it as seen without
// announcing anything. A failed fetch seeds nothing. Only the first call
// does any work; later calls return the first result.
func (l *Loop) Seed(ctx context.Context) SeedResult {
	if l.seeded {
		return l.seedResult
	}
	l.seeded = true

	ctx, span := l.tracer.Start(ctx, "poll.seed")
	defer span.End()

	start := l.clock.Now()
	res := SeedResult{}

	snapshot, err := l.source.FetchSnapshot(ctx)
	if err != nil {
		res.Err = &FetchError{Cycle: 0, Err: err}
		l.stats.fetchFails.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "seed fetch failed")
		l.logger.Warn("seed fetch failed, starting with an empty seen set",
			slog.Any("error", err))
	} else {
		res.Fetched = snapshot.Len()
		res.Seeded = l.seen.AddSlice(snapshot.Sorted()...)
		l.stats.lastSuccess.Store(start.UnixNano())
		l.logger.Info("seeded seen set",
			slog.Int("fetched", res.Fetched),
			slog.Int("seeded", res.Seeded),
			slog.Int("capacity", l.cfg.Capacity))
		if res.Fetched > l.cfg.Capacity {
			l.logger.Warn("page holds more codes than the seen set, evicted codes will be re-announced; raise MAX_SEEN",
				slog.Int("snapshot", snapshot.Len()),
				slog.Int("capacity", l.cfg.Capacity))
		}
		l.logger.Debug("seen set contents", slog.String("seen", l.seen.String()))
	}
	res.Duration = l.clock.Now().Sub(start)

	span.SetAttributes(
		attribute.Int("poll.fetched", res.Fetched),
		attribute.Int("poll.seeded", res.Seeded),
	)
	l.stats.seen.Store(int64(l.seen.Len()))
	l.stats.seeded.Store(true)
	l.metrics.observeSeed(res.Fetched, l.seen.Len())

	l.seedResult = res
	if l.onSeeded != nil {
		l.onSeeded(ctx, res)
	}
	return res
}

// Poll runs one cycle: fetch, diff against the seen set, then deliver and
// mark each new code. A failed fetch is treated as an empty snapshot. Poll
// seeds first if Seed has not run.
func (l *Loop) Poll(ctx context.Context) CycleResult {
	if !l.seeded {
		l.Seed(ctx)
	}

	l.cycle++
	res := CycleResult{
		Cycle:     l.cycle,
		ID:        uuid.NewString(),
		StartedAt: l.clock.Now(),
	}

	ctx = logging.WithCycleID(ctx, res.ID)
	logger := logging.WithCycle(ctx, l.logger).With(slog.Uint64("cycle", res.Cycle))

	ctx, span := l.tracer.Start(ctx, "poll.cycle", trace.WithAttributes(
		attribute.Int64("poll.cycle", int64(res.Cycle)),
		attribute.String("poll.cycle_id", res.ID),
	))
	defer span.End()

	snapshot, err := l.source.FetchSnapshot(ctx)
	if err != nil {
		res.FetchErr = &FetchError{Cycle: res.Cycle, Err: err}
		snapshot = nil
		l.stats.fetchFails.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		logger.Warn("fetch failed, treating snapshot as empty", slog.Any("error", err))
	}
	res.Fetched = snapshot.Len()

	// The diff is taken before any insertion so that evictions caused by
	// this cycle's own inserts cannot turn a seen code into a new one.
	var fresh []entity.Code
	for _, code := range snapshot.Sorted() {
		if !l.seen.Contains(code) {
			fresh = append(fresh, code)
		}
	}

	for _, code := range fresh {
		d := Delivery{Code: code}
		if err := l.notifier.Deliver(ctx, code); err != nil {
			d.Err = &DeliveryError{Code: code, Err: err}
			l.stats.deliveryFails.Add(1)
			logger.Warn("delivery failed, code marked seen anyway",
				slog.String("code", code.String()),
				slog.Any("error", err))
		} else {
			l.stats.delivered.Add(1)
			logger.Info("new code delivered", slog.String("code", code.String()))
		}
		l.seen.Add(code)
		res.Deliveries = append(res.Deliveries, d)
	}

	end := l.clock.Now()
	res.Duration = end.Sub(res.StartedAt)

	failed := len(res.Failed())
	span.SetAttributes(
		attribute.Int("poll.fetched", res.Fetched),
		attribute.Int("poll.new", len(res.Deliveries)),
		attribute.Int("poll.delivery_failures", failed),
	)
	if failed > 0 && res.FetchErr == nil {
		span.SetStatus(codes.Error, "delivery failed")
	}

	l.stats.cycles.Store(res.Cycle)
	l.stats.seen.Store(int64(l.seen.Len()))
	l.stats.lastCycle.Store(end.UnixNano())
	if res.FetchErr == nil {
		l.stats.lastSuccess.Store(res.StartedAt.UnixNano())
	}
	l.metrics.observeCycle(res, l.seen.Len())

	level := slog.LevelDebug
	if len(res.Deliveries) > 0 || res.FetchErr != nil {
		level = slog.LevelInfo
	}
	logger.Log(ctx, level, "poll cycle complete",
		slog.Int("fetched", res.Fetched),
		slog.Int("new", len(res.Deliveries)),
		slog.Int("failed", failed),
		slog.Int("seen", l.seen.Len()),
		slog.Duration("duration", res.Duration))

	if l.onCycle != nil {
		l.onCycle(ctx, res)
	}
	return res
}

// Run seeds, then polls and sleeps until ctx is canceled. Cancellation is
// checked before every cycle and interrupts the sleep. It returns nil once
// ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	l.Seed(ctx)

	for {
		if ctx.Err() != nil {
			l.logger.Info("poll loop stopped", slog.Uint64("cycles", l.cycle))
			return nil
		}
		l.Poll(ctx)
		if !l.sleep(ctx) {
			l.logger.Info("poll loop stopped", slog.Uint64("cycles", l.cycle))
			return nil
		}
	}
}

// sleep waits until the next scheduled cycle. It reports false if ctx was
// canceled first.
func (l *Loop) sleep(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	now := l.clock.Now()
	wait := l.schedule.Next(now).Sub(now)
	if wait < 0 {
		wait = 0
	}

	select {
	case <-l.clock.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	s := Stats{
		Seeded:           l.stats.seeded.Load(),
		Cycles:           l.stats.cycles.Load(),
		SeenCodes:        int(l.stats.seen.Load()),
		Capacity:         l.cfg.Capacity,
		Delivered:        l.stats.delivered.Load(),
		DeliveryFailures: l.stats.deliveryFails.Load(),
		FetchFailures:    l.stats.fetchFails.Load(),
	}
	if ns := l.stats.lastCycle.Load(); ns != 0 {
		s.LastCycleAt = time.Unix(0, ns).UTC()
	}
	if ns := l.stats.lastSuccess.Load(); ns != 0 {
		s.LastSuccessAt = time.Unix(0, ns).UTC()
	}
	return s
}
