// Package config loads the admincache configuration from defaults, an
// optional YAML file and ADMINCACHE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/roach88/admincache/internal/engine"
	"github.com/roach88/admincache/internal/provider/rest"
)

// Provider kinds.
const (
	ProviderREST  = "rest"
	ProviderLocal = "local"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type (
	// Config is the whole configuration.
	Config struct {
		Engine   Engine   `yaml:"engine"`
		Provider Provider `yaml:"provider"`
		Store    Store    `yaml:"store"`
		Server   Server   `yaml:"server"`
		Log      Log      `yaml:"log"`
		Schema   Schema   `yaml:"schema"`
	}

	// Engine tunes the dispatch pipeline and the cache.
	Engine struct {
		AccumulateWindow     time.Duration `yaml:"accumulate-window" env:"ADMINCACHE_ACCUMULATE_WINDOW"`
		MaxBatchSize         int           `yaml:"max-batch-size" env:"ADMINCACHE_MAX_BATCH_SIZE"`
		FilterDebounce       time.Duration `yaml:"filter-debounce" env:"ADMINCACHE_FILTER_DEBOUNCE"`
		NotificationDuration time.Duration `yaml:"notification-duration" env:"ADMINCACHE_NOTIFICATION_DURATION"`
		ListRetention        int64         `yaml:"list-retention" env:"ADMINCACHE_LIST_RETENTION"`
		LoginPath            string        `yaml:"login-path" env:"ADMINCACHE_LOGIN_PATH"`
		AutoRefetch          bool          `yaml:"auto-refetch" env:"ADMINCACHE_AUTO_REFETCH"`
		SideCacheSize        int           `yaml:"side-cache-size" env:"ADMINCACHE_SIDE_CACHE_SIZE"`
		BulkConcurrency      int           `yaml:"bulk-concurrency" env:"ADMINCACHE_BULK_CONCURRENCY"`
	}

	// Provider selects and configures the data provider.
	Provider struct {
		Kind       string        `yaml:"kind" env:"ADMINCACHE_PROVIDER"`
		BaseURL    string        `yaml:"base-url" env:"ADMINCACHE_BASE_URL"`
		Timeout    time.Duration `yaml:"timeout" env:"ADMINCACHE_TIMEOUT"`
		RateLimit  float64       `yaml:"rate-limit" env:"ADMINCACHE_RATE_LIMIT"`
		Burst      int           `yaml:"burst" env:"ADMINCACHE_BURST"`
		MaxRetries uint64        `yaml:"max-retries" env:"ADMINCACHE_MAX_RETRIES"`
	}

	// Store locates the SQLite database.
	Store struct {
		Path string `yaml:"path" env:"ADMINCACHE_STORE_PATH"`
	}

	// Server configures the REST server.
	Server struct {
		Addr         string   `yaml:"addr" env:"ADMINCACHE_ADDR"`
		AllowOrigins []string `yaml:"allow-origins" env:"ADMINCACHE_ALLOW_ORIGINS" env-separator:","`
	}

	// Log configures the slog handler.
	Log struct {
		Level  string `yaml:"level" env:"ADMINCACHE_LOG_LEVEL"`
		Format string `yaml:"format" env:"ADMINCACHE_LOG_FORMAT"`
	}

	// Schema locates the CUE resource definitions.
	Schema struct {
		Path string `yaml:"path" env:"ADMINCACHE_SCHEMA"`
	}
)

// New returns the defaults.
func New() *Config {
	ec := engine.DefaultConfig()
	rc := rest.DefaultConfig("")
	return &Config{
		Engine: Engine{
			AccumulateWindow:     ec.AccumulateWindow,
			MaxBatchSize:         ec.MaxBatchSize,
			FilterDebounce:       ec.FilterDebounce,
			NotificationDuration: ec.NotificationDuration,
			LoginPath:            ec.LoginPath,
			AutoRefetch:          ec.RefetchOnChange,
			BulkConcurrency:      ec.BulkConcurrency,
		},
		Provider: Provider{
			Kind:       ProviderLocal,
			Timeout:    rc.Timeout,
			RateLimit:  rc.RateLimit,
			Burst:      rc.Burst,
			MaxRetries: rc.MaxRetries,
		},
		Store:  Store{Path: "admincache.db"},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info", Format: LogFormatText},
		Schema: Schema{Path: "resources.cue"},
	}
}

// Load reads path over the defaults when it is not empty, then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Kind {
	case ProviderLocal:
	case ProviderREST:
		if c.Provider.BaseURL == "" {
			errs = append(errs, errors.New("provider.base-url is required for the rest provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.kind must be %q or %q, got %q", ProviderREST, ProviderLocal, c.Provider.Kind))
	}
	if c.Provider.RateLimit < 0 {
		errs = append(errs, errors.New("provider.rate-limit must not be negative"))
	}
	if c.Engine.MaxBatchSize < 0 {
		errs = append(errs, errors.New("engine.max-batch-size must not be negative"))
	}
	if c.Engine.ListRetention < 0 {
		errs = append(errs, errors.New("engine.list-retention must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != LogFormatText && f != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", LogFormatText, LogFormatJSON, f))
	}
	return errors.Join(errs...)
}

// Pipeline returns the engine configuration.
func (e Engine) Pipeline() engine.Config {
	return engine.Config{
		AccumulateWindow:     e.AccumulateWindow,
		MaxBatchSize:         e.MaxBatchSize,
		FilterDebounce:       e.FilterDebounce,
		NotificationDuration: e.NotificationDuration,
		LoginPath:            e.LoginPath,
		RefetchOnChange:      e.AutoRefetch,
		BulkConcurrency:      e.BulkConcurrency,
	}
}

// REST returns the REST provider configuration.
func (p Provider) REST() rest.Config {
	cfg := rest.DefaultConfig(strings.TrimRight(p.BaseURL, "/"))
	cfg.Timeout = p.Timeout
	cfg.RateLimit = p.RateLimit
	cfg.Burst = p.Burst
	cfg.MaxRetries = p.MaxRetries
	return cfg
}

// SlogLevel parses the level name.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
