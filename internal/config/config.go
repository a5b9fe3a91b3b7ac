// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Precedence: defaults, then file,
// then environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Feed      FeedConfig      `yaml:"feed"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
	Storage   StorageConfig   `yaml:"storage"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Candidate CandidateConfig `yaml:"candidate"`
	Signal    SignalConfig    `yaml:"signal"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// FeedConfig configures the upstream trade feed.
type FeedConfig struct {
	Endpoint string `yaml:"endpoint"`
	Source   string `yaml:"source"`
}

// PriceFeedConfig configures the market-data provider.
type PriceFeedConfig struct {
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// StorageConfig selects and configures the storage backends.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	UseMemory     bool   `yaml:"use_memory"`
}

// DedupConfig configures event admission.
type DedupConfig struct {
	Capacity    int           `yaml:"capacity"`
	MinNotional float64       `yaml:"min_notional"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
}

// CandidateConfig configures the candidate evaluation loop.
type CandidateConfig struct {
	EvalInterval time.Duration `yaml:"eval_interval"`
	BatchSize    int           `yaml:"batch_size"`
	BatchPause   time.Duration `yaml:"batch_pause"`
	WindowDays   int           `yaml:"window_days"`
}

// SignalConfig configures signal outcome tracking.
type SignalConfig struct {
	CheckInterval     time.Duration `yaml:"check_interval"`
	StopLossPercent   float64       `yaml:"stop_loss_percent"`
	TakeProfitPercent float64       `yaml:"take_profit_percent"`
	MaxTrackingHours  int           `yaml:"max_tracking_hours"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the configuration baseline.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Feed: FeedConfig{Source: "trade-feed"},
		PriceFeed: PriceFeedConfig{
			RequestsPerSecond: 5,
			MaxRetries:        3,
		},
		Dedup: DedupConfig{
			Capacity:    10_000,
			MinNotional: 0,
			RedisTTL:    24 * time.Hour,
		},
		Candidate: CandidateConfig{
			EvalInterval: 10 * time.Minute,
			BatchSize:    8,
			BatchPause:   250 * time.Millisecond,
			WindowDays:   30,
		},
		Signal: SignalConfig{
			CheckInterval:     5 * time.Minute,
			StopLossPercent:   -40,
			TakeProfitPercent: 100,
			MaxTrackingHours:  48,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty and present) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if !c.Storage.UseMemory {
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
		}
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required unless storage.use_memory is set")
		}
	}
	if c.Signal.StopLossPercent >= 0 {
		return fmt.Errorf("signal.stop_loss_percent must be negative")
	}
	if c.Signal.TakeProfitPercent <= 0 {
		return fmt.Errorf("signal.take_profit_percent must be positive")
	}
	if c.Candidate.WindowDays <= 0 {
		return fmt.Errorf("candidate.window_days must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.HTTP.Addr, "TRACKER_HTTP_ADDR")
	setString(&cfg.Feed.Endpoint, "TRACKER_FEED_ENDPOINT")
	setString(&cfg.Feed.Source, "TRACKER_FEED_SOURCE")
	setString(&cfg.PriceFeed.BaseURL, "TRACKER_PRICE_BASE_URL")
	setString(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")
	setString(&cfg.Storage.RedisAddr, "REDIS_ADDR")
	setBool(&cfg.Storage.UseMemory, "TRACKER_USE_MEMORY")
	setInt(&cfg.Dedup.Capacity, "TRACKER_DEDUP_CAPACITY")
	setFloat(&cfg.Dedup.MinNotional, "TRACKER_DEDUP_MIN_NOTIONAL")
	setDuration(&cfg.Candidate.EvalInterval, "TRACKER_CANDIDATE_INTERVAL")
	setDuration(&cfg.Signal.CheckInterval, "TRACKER_SIGNAL_INTERVAL")
	setString(&cfg.Logging.Level, "TRACKER_LOG_LEVEL")
	setString(&cfg.Logging.Format, "TRACKER_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
