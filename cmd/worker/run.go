package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"codewatch/internal/infra/notifier"
	"codewatch/internal/infra/worker"
	"codewatch/internal/usecase/poll"
)

// excerptLength caps each post printed by scan --posts.
const excerptLength = 120

func runDaemon(ctx context.Context, configPath string, logOut io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, logOut)
	if err != nil {
		slog.Error("failed to start", slog.Any("error", err))
		return err
	}
	defer a.close()

	var health *worker.HealthServer
	loop, err := newPollLoop(a, func() { health.SetReady(true) })
	if err != nil {
		a.logger.Error("invalid poll configuration", slog.Any("error", err))
		return err
	}

	health = worker.NewHealthServer(fmt.Sprintf(":%d", a.cfg.HealthPort), a.logger, loop)
	metricsServer := worker.NewMetricsServer(fmt.Sprintf(":%d", a.cfg.MetricsPort), a.logger, a.registry, a.notifier)

	a.logger.Info("codewatch starting",
		slog.String("version", version),
		slog.String("page", a.source.PageURL()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error { return metricsServer.Start(gctx) })

	if err := g.Wait(); err != nil {
		a.logger.Error("worker stopped with error", slog.Any("error", err))
		return err
	}
	a.logger.Info("worker stopped", slog.Any("stats", loop.Stats()))
	return nil
}

// newPollLoop builds the loop over a's source and notifier. Once the seen set
// is seeded, ready is called and the startup message is announced.
func newPollLoop(a *app, ready func()) (*poll.Loop, error) {
	opts := []poll.Option{
		poll.WithLogger(a.logger),
		poll.WithMetrics(poll.NewMetrics(a.registry)),
		poll.OnSeeded(func(ctx context.Context, _ poll.SeedResult) {
			ready()
			announceStartup(ctx, a)
		}),
	}
	if a.cfg.PollSchedule != "" {
		schedule, err := cron.ParseStandard(a.cfg.PollSchedule)
		if err != nil {
			return nil, &poll.ConfigError{Field: "poll_schedule", Reason: err.Error()}
		}
		opts = append(opts, poll.WithSchedule(schedule))
	}
	return poll.NewLoop(a.source, a.notifier, a.cfg.PollConfig(), opts...)
}

// announceStartup posts the configured greeting. Failures are logged only.
func announceStartup(ctx context.Context, a *app) {
	if a.cfg.StartupMessage == "" {
		return
	}
	if err := a.notifier.Announce(ctx, a.cfg.StartupMessage); err != nil {
		a.logger.Warn("startup announcement failed", slog.Any("error", err))
	}
}

type scanOptions struct {
	links bool // print the redeem link with each code
	posts bool // print an excerpt of every post before the codes
}

func runScan(ctx context.Context, configPath string, out, logOut io.Writer, opts scanOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, logOut)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.posts {
		posts, err := a.source.Posts(ctx)
		if err != nil {
			return fmt.Errorf("scan %s: %w", a.source.PageURL(), err)
		}
		for i, post := range posts {
			fmt.Fprintf(out, "# post %d: %s\n", i+1, excerpt(post, excerptLength))
		}
	}

	snap, err := a.source.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", a.source.PageURL(), err)
	}

	for _, code := range snap.Sorted() {
		if opts.links {
			fmt.Fprintln(out, notifier.CodeMessage(code, a.cfg.RedeemBaseURL))
			continue
		}
		fmt.Fprintln(out, code)
	}
	a.logger.Info("scan complete", slog.Int("codes", snap.Len()), slog.String("page", a.source.PageURL()))
	return nil
}

// excerpt collapses whitespace and cuts s to at most n runes.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
