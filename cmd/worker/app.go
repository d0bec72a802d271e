package main

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"codewatch/internal/infra/notifier"
	"codewatch/internal/infra/scraper"
	"codewatch/internal/infra/worker"
	"codewatch/internal/observability/logging"
	"codewatch/internal/observability/metrics"
	"codewatch/internal/observability/tracing"
	"codewatch/internal/pkg/config"
	"codewatch/internal/usecase/notify"
)

// app is the wired set of components shared by the run and scan commands.
type app struct {
	cfg      *worker.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
	source   *scraper.ForumScraper
	notifier *notify.Service
}

// newApp loads the configuration and wires the components. Logs go to logOut.
func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	logger := logging.NewLogger(logOut)
	slog.SetDefault(logger)

	registry := metrics.NewRegistry()
	cfg, err := worker.Load(configPath, logger, config.NewConfigMetrics("worker", registry))
	if err != nil {
		return nil, err
	}
	logger.Info("worker configuration loaded",
		slog.Int("max_seen", cfg.MaxSeen),
		slog.Duration("poll_delay", cfg.PollDelay),
		slog.String("poll_schedule", cfg.PollSchedule),
		slog.String("forum", cfg.Forum.BaseURL),
		slog.String("topic_id", cfg.Forum.TopicID),
		slog.Int("health_port", cfg.HealthPort),
		slog.Int("metrics_port", cfg.MetricsPort))

	tp, err := tracing.NewProvider(ctx, logger, spanOutput(ctx, logger))
	if err != nil {
		return nil, err
	}
	transport := tracing.NewTransport(newBaseTransport())

	source, err := scraper.NewForumScraper(&http.Client{
		Timeout:   cfg.Forum.Timeout,
		Transport: transport,
	}, cfg.ScraperConfig())
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}

	channels := []notify.Channel{
		notify.NewGroupMeChannel(notifier.GroupMeConfig{
			Enabled:       cfg.GroupMe.BotID != "",
			BotID:         cfg.GroupMe.BotID,
			APIURL:        cfg.GroupMe.APIURL,
			RedeemBaseURL: cfg.RedeemBaseURL,
			Timeout:       cfg.NotifyTimeout,
			Transport:     transport,
		}),
		notify.NewDiscordChannel(notifier.DiscordConfig{
			Enabled:       cfg.Discord.Enabled,
			WebhookURL:    cfg.Discord.WebhookURL,
			RedeemBaseURL: cfg.RedeemBaseURL,
			Timeout:       cfg.NotifyTimeout,
			Transport:     transport,
		}),
		notify.NewSlackChannel(notifier.SlackConfig{
			Enabled:       cfg.Slack.Enabled,
			WebhookURL:    cfg.Slack.WebhookURL,
			RedeemBaseURL: cfg.RedeemBaseURL,
			Timeout:       cfg.NotifyTimeout,
			Transport:     transport,
		}),
	}
	notifySvc := notify.NewService(channels,
		notify.WithLogger(logger),
		notify.WithMetrics(notify.NewMetrics(registry)),
		notify.WithSendTimeout(cfg.NotifyTimeout))

	enabled := notifySvc.EnabledChannels()
	if len(enabled) == 0 {
		logger.Warn("no notification channels enabled, new codes will only be logged")
	} else {
		logger.Info("notification service initialized", slog.Any("channels", enabled))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		tracer:   tp,
		source:   source,
		notifier: notifySvc,
	}, nil
}

// close flushes spans and waits for in-flight notifications.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.notifier.Shutdown(ctx); err != nil {
		a.logger.Error("notification service shutdown failed", slog.Any("error", err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("tracer provider shutdown failed", slog.Any("error", err))
	}
}

// spanOutput is where spans go when no OTLP collector is configured: stderr
// while debugging, nowhere otherwise.
func spanOutput(ctx context.Context, logger *slog.Logger) io.Writer {
	if logger.Enabled(ctx, slog.LevelDebug) {
		return os.Stderr
	}
	return io.Discard
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
		},
	}
}
