package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/cryptoquote/internal/coins"
	"github.com/sawpanic/cryptoquote/internal/directory"
	"github.com/sawpanic/cryptoquote/internal/infrastructure/providers"
	"github.com/sawpanic/cryptoquote/internal/quote"
)

// Directory cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is the complete cryptoquote configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Directory DirectoryConfig `yaml:"directory"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig configures the CoinGecko client.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`    // per request
	UserAgent string        `yaml:"user_agent"`
	RPS       float64       `yaml:"rps"`        // requests per second per host, 0 disables
	Burst     int           `yaml:"burst"`
}

// DirectoryConfig configures the coin list cache and fetch retries.
type DirectoryConfig struct {
	Backend     string        `yaml:"backend"` // file or redis
	Path        string        `yaml:"path"`
	MaxAge      time.Duration `yaml:"max_age"`      // 0 never expires
	MaxAttempts int           `yaml:"max_attempts"` // 0 is unbounded when interactive
	RetryDelay  time.Duration `yaml:"retry_delay"`  // pause between automatic retries
	Redis       RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type ResolverConfig struct {
	Cutoff   float64 `yaml:"cutoff"`
	MemoSize int     `yaml:"memo_size"`
}

type QuotesConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// HistoryConfig enables the postgres quote history when DSN is set.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig writes a Prometheus textfile at exit when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   providers.DefaultCoinGeckoURL,
			Timeout:   10 * time.Second,
			UserAgent: "cryptoquote/1.0",
			RPS:       0.5,
			Burst:     5,
		},
		Directory: DirectoryConfig{
			Backend:     BackendFile,
			Path:        directory.DefaultCachePath,
			MaxAge:      7 * 24 * time.Hour,
			MaxAttempts: 0,
			RetryDelay:  2 * time.Second,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  directory.DefaultRedisKey,
			},
		},
		Resolver: ResolverConfig{
			Cutoff:   coins.DefaultCutoff,
			MemoSize: coins.DefaultMemoSize,
		},
		Quotes: QuotesConfig{
			Concurrency:     quote.DefaultConcurrency,
			BreakerFailures: 3,
			BreakerTimeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url cannot be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RPS < 0 {
		return fmt.Errorf("api.rps cannot be negative, got %v", c.API.RPS)
	}
	if c.API.Burst < 1 {
		return fmt.Errorf("api.burst must be at least 1, got %d", c.API.Burst)
	}

	switch c.Directory.Backend {
	case BackendFile:
		if c.Directory.Path == "" {
			return fmt.Errorf("directory.path cannot be empty for the file backend")
		}
	case BackendRedis:
		if c.Directory.Redis.Addr == "" {
			return fmt.Errorf("directory.redis.addr cannot be empty for the redis backend")
		}
	default:
		return fmt.Errorf("directory.backend must be %q or %q, got %q", BackendFile, BackendRedis, c.Directory.Backend)
	}
	if c.Directory.MaxAge < 0 {
		return fmt.Errorf("directory.max_age cannot be negative, got %s", c.Directory.MaxAge)
	}
	if c.Directory.MaxAttempts < 0 {
		return fmt.Errorf("directory.max_attempts cannot be negative, got %d", c.Directory.MaxAttempts)
	}

	if c.Resolver.Cutoff <= 0 || c.Resolver.Cutoff > 1 {
		return fmt.Errorf("resolver.cutoff must be in (0, 1], got %v", c.Resolver.Cutoff)
	}
	if c.Resolver.MemoSize < 0 {
		return fmt.Errorf("resolver.memo_size cannot be negative, got %d", c.Resolver.MemoSize)
	}

	if c.Quotes.Concurrency < 1 {
		return fmt.Errorf("quotes.concurrency must be at least 1, got %d", c.Quotes.Concurrency)
	}
	if c.Quotes.BreakerFailures < 1 {
		return fmt.Errorf("quotes.breaker_failures must be at least 1, got %d", c.Quotes.BreakerFailures)
	}

	return nil
}
