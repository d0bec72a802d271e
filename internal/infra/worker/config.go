package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codewatch/internal/domain/entity"
	"codewatch/internal/infra/notifier"
	"codewatch/internal/infra/scraper"
	"codewatch/internal/pkg/config"
	"codewatch/internal/usecase/poll"
)

// DefaultStartupMessage is posted to every channel once the first snapshot
// has been seeded.
const DefaultStartupMessage = "Y'arr! Took me a quick nap, but I'm bak to plunder! 🏴‍☠️"

// Config holds the configuration for the worker daemon.
//
// Configuration sources, later ones override earlier ones:
//   - DefaultConfig
//   - an optional YAML file (LoadFile)
//   - environment variables (ApplyEnv)
type Config struct {
	// MaxSeen is the recency set capacity. 0 disables deduplication.
	MaxSeen int `yaml:"max_seen"`

	// PollDelay is the pause between the end of one cycle and the start of the next.
	PollDelay time.Duration `yaml:"poll_delay"`

	// PollSchedule is an optional standard cron expression. When set it
	// replaces PollDelay pacing.
	PollSchedule string `yaml:"poll_schedule"`

	Forum ForumConfig `yaml:"forum"`

	// RedeemBaseURL prefixes redeem links. Defaults to Forum.BaseURL.
	RedeemBaseURL string `yaml:"redeem_base_url"`

	GroupMe GroupMeConfig `yaml:"groupme"`
	Discord WebhookConfig `yaml:"discord"`
	Slack   WebhookConfig `yaml:"slack"`

	// StartupMessage is announced after seeding. Empty disables it.
	StartupMessage string `yaml:"startup_message"`

	// NotifyTimeout bounds a single channel send.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`

	HealthPort  int `yaml:"health_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// ForumConfig locates the monitored forum topic.
type ForumConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TopicID      string        `yaml:"topic_id"`
	PostSelector string        `yaml:"post_selector"`
	Timeout      time.Duration `yaml:"timeout"`
}

// GroupMeConfig enables the GroupMe bot channel when BotID is set.
type GroupMeConfig struct {
	BotID  string `yaml:"bot_id"`
	APIURL string `yaml:"api_url"`
}

// WebhookConfig configures a Discord or Slack incoming webhook.
type WebhookConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DefaultConfig returns the built-in configuration: poll the Crunchyroll
// guest pass topic once a minute and remember the last 20 codes.
func DefaultConfig() Config {
	return Config{
		MaxSeen:   20,
		PollDelay: 60 * time.Second,
		Forum: ForumConfig{
			BaseURL:      "http://www.crunchyroll.com",
			TopicID:      "803801",
			PostSelector: scraper.DefaultPostSelector,
			Timeout:      10 * time.Second,
		},
		GroupMe: GroupMeConfig{
			APIURL: notifier.DefaultGroupMeAPIURL,
		},
		StartupMessage: DefaultStartupMessage,
		NotifyTimeout:  30 * time.Second,
		HealthPort:     9091,
		MetricsPort:    9090,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional file at path and
// the environment, then validates it.
//
// Operational knobs fail open: a bad value is logged, counted in metrics and
// replaced by the default. The recency capacity and poll delay fail closed
// with a *poll.ConfigError because guessing them would silently change what
// gets announced.
func Load(path string, logger *slog.Logger, metrics *config.ConfigMetrics) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(&cfg, logger, metrics); err != nil {
		return nil, err
	}
	if cfg.RedeemBaseURL == "" {
		cfg.RedeemBaseURL = cfg.Forum.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envLoader applies fail-open results and keeps the fallback bookkeeping.
type envLoader struct {
	logger   *slog.Logger
	metrics  *config.ConfigMetrics
	fellBack bool
}

func apply[T any](l *envLoader, field string, result config.LoadResult[T]) T {
	if result.FallbackApplied {
		l.fellBack = true
		if l.metrics != nil {
			l.metrics.RecordValidationError(field)
			l.metrics.RecordFallback(field)
		}
		for _, warning := range result.Warnings {
			l.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}

// strict turns a rejected value into a startup error instead of a fallback.
func strict[T any](field string, result config.LoadResult[T]) (T, error) {
	if result.FallbackApplied {
		reason := "is invalid"
		if len(result.Warnings) > 0 {
			reason = result.Warnings[0]
		}
		return result.Value, &poll.ConfigError{Field: field, Reason: reason}
	}
	return result.Value, nil
}

// ApplyEnv overlays environment variables onto cfg. See Load for the
// fail-open and fail-closed split. metrics may be nil.
func ApplyEnv(cfg *Config, logger *slog.Logger, metrics *config.ConfigMetrics) error {
	if logger == nil {
		logger = slog.Default()
	}
	l := &envLoader{logger: logger, metrics: metrics}

	var err error
	cfg.MaxSeen, err = strict("MAX_SEEN", config.LoadEnvInt("MAX_SEEN", cfg.MaxSeen, func(v int) error {
		if v < 0 {
			return errors.New("must not be negative")
		}
		return nil
	}))
	if err != nil {
		return err
	}

	cfg.PollDelay, err = strict("POLL_DELAY_SECS", config.LoadEnvSeconds("POLL_DELAY_SECS", cfg.PollDelay, config.ValidatePositiveDuration))
	if err != nil {
		return err
	}
	cfg.PollDelay, err = strict("POLL_DELAY", config.LoadEnvDuration("POLL_DELAY", cfg.PollDelay, config.ValidatePositiveDuration))
	if err != nil {
		return err
	}

	cfg.PollSchedule = apply(l, "poll_schedule", config.LoadEnvWithFallback("POLL_SCHEDULE", cfg.PollSchedule, config.ValidateCronSchedule))

	cfg.Forum.BaseURL = apply(l, "forum_base_url", config.LoadEnvWithFallback("FORUM_BASE_URL", cfg.Forum.BaseURL, entity.ValidateURL))
	cfg.Forum.TopicID = config.LoadEnvString("FORUMTOPIC_ID", cfg.Forum.TopicID)
	cfg.Forum.PostSelector = config.LoadEnvString("FORUM_POST_SELECTOR", cfg.Forum.PostSelector)
	cfg.Forum.Timeout = apply(l, "fetch_timeout", config.LoadEnvDuration("FETCH_TIMEOUT", cfg.Forum.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	}))

	cfg.RedeemBaseURL = apply(l, "redeem_base_url", config.LoadEnvWithFallback("REDEEM_BASE_URL", cfg.RedeemBaseURL, entity.ValidateURL))

	cfg.GroupMe.BotID = config.LoadEnvString("GROUPME_BOT_ID", cfg.GroupMe.BotID)
	cfg.GroupMe.APIURL = apply(l, "groupme_api_url", config.LoadEnvWithFallback("GROUPME_API_URL", cfg.GroupMe.APIURL, entity.ValidateURL))

	cfg.Discord.Enabled = apply(l, "discord_enabled", config.LoadEnvBool("DISCORD_ENABLED", cfg.Discord.Enabled))
	cfg.Discord.WebhookURL = config.LoadEnvString("DISCORD_WEBHOOK_URL", cfg.Discord.WebhookURL)
	cfg.Slack.Enabled = apply(l, "slack_enabled", config.LoadEnvBool("SLACK_ENABLED", cfg.Slack.Enabled))
	cfg.Slack.WebhookURL = config.LoadEnvString("SLACK_WEBHOOK_URL", cfg.Slack.WebhookURL)

	// An explicitly empty STARTUP_MESSAGE disables the announcement.
	if msg, ok := os.LookupEnv("STARTUP_MESSAGE"); ok {
		cfg.StartupMessage = msg
	}

	cfg.NotifyTimeout = apply(l, "notify_timeout", config.LoadEnvDuration("NOTIFY_TIMEOUT", cfg.NotifyTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	}))
	cfg.HealthPort = apply(l, "health_port", config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, config.ValidatePort))
	cfg.MetricsPort = apply(l, "metrics_port", config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, config.ValidatePort))

	if metrics != nil {
		metrics.SetFallbackActive(l.fellBack)
		metrics.RecordLoadTimestamp()
	}
	return nil
}

// Validate checks the assembled configuration, whatever its source.
func (c *Config) Validate() error {
	if err := c.PollConfig().Validate(); err != nil {
		return err
	}
	if c.PollSchedule != "" {
		if err := config.ValidateCronSchedule(c.PollSchedule); err != nil {
			return &poll.ConfigError{Field: "poll_schedule", Reason: err.Error()}
		}
	}
	if err := entity.ValidateURL(c.Forum.BaseURL); err != nil {
		return fmt.Errorf("forum base url: %w", err)
	}
	if c.Forum.TopicID == "" {
		return &entity.ValidationError{Field: "forum.topic_id", Message: "topic id is required"}
	}
	if c.Discord.Enabled {
		if err := entity.ValidateURL(c.Discord.WebhookURL); err != nil {
			return fmt.Errorf("discord webhook url: %w", err)
		}
	}
	if c.Slack.Enabled {
		if err := entity.ValidateURL(c.Slack.WebhookURL); err != nil {
			return fmt.Errorf("slack webhook url: %w", err)
		}
	}
	if err := config.ValidatePort(c.HealthPort); err != nil {
		return fmt.Errorf("health port: %w", err)
	}
	if err := config.ValidatePort(c.MetricsPort); err != nil {
		return fmt.Errorf("metrics port: %w", err)
	}
	return nil
}

// PollConfig returns the loop settings.
func (c *Config) PollConfig() poll.Config {
	return poll.Config{Capacity: c.MaxSeen, Delay: c.PollDelay}
}

// ScraperConfig returns the forum scraper settings.
func (c *Config) ScraperConfig() scraper.ForumConfig {
	return scraper.ForumConfig{
		BaseURL:      c.Forum.BaseURL,
		TopicID:      c.Forum.TopicID,
		PostSelector: c.Forum.PostSelector,
	}
}
