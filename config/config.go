package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"` // "dev" or "prod"
	MEXC        MEXCConfig      `mapstructure:"mexc"`
	Lifecycle   LifecycleConfig `mapstructure:"lifecycle"`
	Sampler     SamplerConfig   `mapstructure:"sampler"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Log         LogConfig       `mapstructure:"log"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
}

// MEXCConfig holds the spot REST endpoint and account credentials.
type MEXCConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// LifecycleConfig controls the per-symbol timers and the automatic buy.
type LifecycleConfig struct {
	QuoteAsset      string        `mapstructure:"quote_asset"`       // appended to submitted names, e.g. "USDT"
	QuoteAmount     string        `mapstructure:"quote_amount"`      // quoteOrderQty of the automatic buy
	HoldingWindow   time.Duration `mapstructure:"holding_window"`    // buy -> sell
	MinuteDelay     time.Duration `mapstructure:"minute_delay"`      // listing -> minute sample
	StartLead       time.Duration `mapstructure:"start_lead"`        // start timer fires this much before the listing instant
	PollInterval    time.Duration `mapstructure:"poll_interval"`     // sleep between zero-price polls
	PollMaxAttempts uint          `mapstructure:"poll_max_attempts"` // 0 = unbounded
	PollMaxElapsed  time.Duration `mapstructure:"poll_max_elapsed"`  // 0 = unbounded
	ListingTimezone string        `mapstructure:"listing_timezone"`  // zone for listing dates submitted without offset
}

type SamplerConfig struct {
	Cron              string        `mapstructure:"cron"`
	Threshold         int64         `mapstructure:"threshold"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KafkaConfig enables the lifecycle event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Location resolves ListingTimezone. Both IANA names ("Asia/Dubai") and fixed
// offsets ("+04:00") are accepted.
func (c LifecycleConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.ListingTimezone)
	if tz == "" {
		return time.UTC, nil
	}
	if tz[0] == '+' || tz[0] == '-' {
		t, err := time.Parse("-07:00", tz)
		if err != nil {
			return nil, fmt.Errorf("invalid listing timezone offset %q: %w", tz, err)
		}
		_, offset := t.Zone()
		return time.FixedZone("UTC"+tz, offset), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid listing timezone %q: %w", tz, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("mexc.base_url", "https://api.mexc.com/api/v3")
	v.SetDefault("mexc.api_key", "")
	v.SetDefault("mexc.api_secret", "")
	v.SetDefault("mexc.timeout", 10*time.Second)
	v.SetDefault("mexc.requests_per_second", 20)

	v.SetDefault("lifecycle.quote_asset", "USDT")
	v.SetDefault("lifecycle.quote_amount", "6")
	v.SetDefault("lifecycle.holding_window", time.Hour)
	v.SetDefault("lifecycle.minute_delay", time.Minute)
	v.SetDefault("lifecycle.start_lead", time.Second)
	v.SetDefault("lifecycle.poll_interval", 100*time.Millisecond)
	v.SetDefault("lifecycle.poll_max_attempts", 0)
	v.SetDefault("lifecycle.poll_max_elapsed", 0)
	v.SetDefault("lifecycle.listing_timezone", "+04:00")

	v.SetDefault("sampler.cron", "0 * * * *")
	v.SetDefault("sampler.threshold", 24)
	v.SetDefault("sampler.reconcile_interval", 5*time.Minute)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "listing.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "listingwatcher")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
}

// Load loads application configuration using Viper.
// It reads config.yaml from dir (or the default location when dir is empty)
// and overrides values with environment variables.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir(dir))

	// Support environment variables with dot notation (e.g., MEXC_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	return &cfg, nil
}

func configDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv("WATCHER_CONFIG_DIR"); env != "" {
		return env
	}
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		return filepath.Join(pwd, "../../config")
	}
	return filepath.Join(filepath.Dir(ex), "../config")
}
