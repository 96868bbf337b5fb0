// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server           ServerConfig                  `mapstructure:"server"`
	Auth             AuthConfig                    `mapstructure:"auth"`
	Logging          LoggingConfig                 `mapstructure:"logging"`
	Scraper          ScraperConfig                 `mapstructure:"scraper"`
	Browser          BrowserConfig                 `mapstructure:"browser"`
	StandardRequests map[string]scraper.RawRequest `mapstructure:"standard_requests"`
	Schedules        []ScheduleConfig              `mapstructure:"schedules"`
	LinkCheck        LinkCheckConfig               `mapstructure:"linkcheck"`
	Progress         ProgressConfig                `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ScraperConfig governs the worker pool, dispatch, and request defaults.
type ScraperConfig struct {
	Concurrency              int    `mapstructure:"concurrency"`
	QueueDepth               int    `mapstructure:"queue_depth"`
	EnqueueTimeoutSeconds    int    `mapstructure:"enqueue_timeout_seconds"`
	SiteParallelism          int    `mapstructure:"site_parallelism"`
	SiteBudgetSeconds        int    `mapstructure:"site_budget_seconds"`
	ResultsWantedDefault     int    `mapstructure:"results_wanted_default"`
	RequestTimeoutSeconds    int    `mapstructure:"request_timeout_seconds"`
	DescriptionFormatDefault string `mapstructure:"description_format_default"`
	Timezone                 string `mapstructure:"timezone"`
}

// BrowserConfig configures the Chrome sessions adapters run in.
type BrowserConfig struct {
	Headless                bool   `mapstructure:"headless"`
	ExecPath                string `mapstructure:"exec_path"`
	NoSandbox               bool   `mapstructure:"no_sandbox"`
	UserAgent               string `mapstructure:"user_agent"`
	BlockResources          bool   `mapstructure:"block_resources"`
	ChallengeTimeoutSeconds int    `mapstructure:"challenge_timeout_seconds"`
	ChallengePollMs         int    `mapstructure:"challenge_poll_ms"`
}

// ScheduleConfig submits a standard request on a cron schedule.
type ScheduleConfig struct {
	Name    string `mapstructure:"name"`
	Spec    string `mapstructure:"spec"`
	Request string `mapstructure:"request"`
}

// LinkCheckConfig tunes the posting link checker.
type LinkCheckConfig struct {
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ProgressConfig controls task lifecycle event tracking.
type ProgressConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	LogEnabled    bool `mapstructure:"log_enabled"`
	BufferSize    int  `mapstructure:"buffer_size"`
	EventsPerTask int  `mapstructure:"events_per_task"`
	Batch         struct {
		MaxEvents int `mapstructure:"max_events"`
		MaxWaitMs int `mapstructure:"max_wait_ms"`
	} `mapstructure:"batch"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.queue_depth", 64)
	v.SetDefault("scraper.enqueue_timeout_seconds", 5)
	v.SetDefault("scraper.site_parallelism", 2)
	v.SetDefault("scraper.site_budget_seconds", 600)
	v.SetDefault("scraper.results_wanted_default", 20)
	v.SetDefault("scraper.request_timeout_seconds", 60)
	v.SetDefault("scraper.description_format_default", string(scraper.FormatMarkdown))
	v.SetDefault("scraper.timezone", "UTC")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.block_resources", true)
	v.SetDefault("browser.challenge_timeout_seconds", 60)
	v.SetDefault("browser.challenge_poll_ms", 1000)
	v.SetDefault("linkcheck.concurrency", 20)
	v.SetDefault("linkcheck.timeout_seconds", 10)
	v.SetDefault("linkcheck.user_agent", "Mozilla/5.0")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", false)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.events_per_task", 256)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 250)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.QueueDepth <= 0 {
		return fmt.Errorf("scraper.queue_depth must be > 0")
	}
	if c.Scraper.SiteParallelism <= 0 {
		return fmt.Errorf("scraper.site_parallelism must be > 0")
	}
	if c.Scraper.ResultsWantedDefault <= 0 {
		return fmt.Errorf("scraper.results_wanted_default must be > 0")
	}
	if c.Scraper.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.request_timeout_seconds must be > 0")
	}
	if c.Scraper.SiteBudgetSeconds < 0 {
		return fmt.Errorf("scraper.site_budget_seconds must be >= 0")
	}
	if c.Browser.ChallengeTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.challenge_timeout_seconds must be > 0")
	}
	for name, raw := range c.StandardRequests {
		if _, err := raw.Normalize(c.RequestDefaults()); err != nil {
			return fmt.Errorf("standard_requests.%s: %w", name, err)
		}
	}
	for i, s := range c.Schedules {
		if s.Spec == "" {
			return fmt.Errorf("schedules[%d].spec must be set", i)
		}
		if _, ok := c.StandardRequests[s.Request]; !ok {
			return fmt.Errorf("schedules[%d].request %q is not a standard request", i, s.Request)
		}
	}
	if c.LinkCheck.Concurrency <= 0 {
		return fmt.Errorf("linkcheck.concurrency must be > 0")
	}
	return nil
}

// RequestDefaults are applied to fields a submitted request leaves unset.
func (c Config) RequestDefaults() scraper.Defaults {
	return scraper.Defaults{
		ResultsWanted:     c.Scraper.ResultsWantedDefault,
		RequestTimeout:    c.Scraper.RequestTimeoutSeconds,
		DescriptionFormat: scraper.ParseDescriptionFormat(c.Scraper.DescriptionFormatDefault, scraper.FormatMarkdown),
	}
}

// SiteBudget bounds a single adapter run. Zero disables the bound.
func (c Config) SiteBudget() time.Duration {
	return seconds(c.Scraper.SiteBudgetSeconds)
}

// EnqueueTimeout bounds how long a submission waits on a full queue.
func (c Config) EnqueueTimeout() time.Duration {
	return seconds(c.Scraper.EnqueueTimeoutSeconds)
}

// ChallengeTimeout is the default interstitial wait.
func (c Config) ChallengeTimeout() time.Duration {
	return seconds(c.Browser.ChallengeTimeoutSeconds)
}

// ChallengePoll is the interstitial re-check interval.
func (c Config) ChallengePoll() time.Duration {
	return time.Duration(c.Browser.ChallengePollMs) * time.Millisecond
}

// RequestTimeout bounds each HTTP request to the API.
func (c Config) RequestTimeout() time.Duration {
	return seconds(c.Server.RequestTimeoutSeconds)
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return seconds(c.Server.ShutdownTimeoutSeconds)
}

// LinkCheckTimeout bounds each link check request.
func (c Config) LinkCheckTimeout() time.Duration {
	return seconds(c.LinkCheck.TimeoutSeconds)
}

// ProgressBatchWait bounds how long progress events wait before reaching the sinks.
func (c Config) ProgressBatchWait() time.Duration {
	return time.Duration(c.Progress.Batch.MaxWaitMs) * time.Millisecond
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
