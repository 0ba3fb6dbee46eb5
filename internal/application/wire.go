package application

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptoquote/internal/config"
	"github.com/sawpanic/cryptoquote/internal/directory"
	"github.com/sawpanic/cryptoquote/internal/history"
	"github.com/sawpanic/cryptoquote/internal/infrastructure/providers"
	"github.com/sawpanic/cryptoquote/internal/net/client"
	"github.com/sawpanic/cryptoquote/internal/net/ratelimit"
)

// NewProvider builds the CoinGecko client with the shared limiter and a
// breaker on the price endpoint. transport may be nil.
func NewProvider(cfg *config.Config, transport http.RoundTripper) *providers.CoinGeckoProvider {
	return providers.NewCoinGeckoProvider(providers.CoinGeckoConfig{
		BaseURL:        cfg.API.BaseURL,
		RequestTimeout: cfg.API.Timeout,
		UserAgent:      cfg.API.UserAgent,
		RateLimiter:    ratelimit.NewLimiter(cfg.API.RPS, cfg.API.Burst),
		PriceBreaker: client.NewBreaker(client.BreakerConfig{
			Name:                providers.CoinGeckoName + "-price",
			ConsecutiveFailures: cfg.Quotes.BreakerFailures,
			Timeout:             cfg.Quotes.BreakerTimeout,
		}),
		Transport: transport,
	})
}

// NewStore opens the configured coin list cache. The returned close func
// releases the backend connection.
func NewStore(cfg config.DirectoryConfig) (directory.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return directory.NewFileStore(cfg.Path), func() error { return nil }, nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Debug().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("Using redis coin list cache")
		// no TTL: the loader ages the list from :fetched_at and falls back to
		// a stale copy when a refresh fails, so redis must not evict it
		return directory.NewRedisStore(rdb, cfg.Redis.Key, 0), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.Backend)
	}
}

// NewRecorder returns the postgres recorder when a DSN is configured and a
// no-op recorder otherwise.
func NewRecorder(ctx context.Context, cfg config.HistoryConfig) (history.Recorder, error) {
	if cfg.DSN == "" {
		return history.NewNoopRecorder(), nil
	}
	return history.NewPostgresRecorder(ctx, cfg.DSN)
}

// NewPolicy returns the coin list retry policy. Interactive runs ask the
// operator through decider; other runs retry automatically, bounded to
// maxAttempts (3 when unset).
func NewPolicy(cfg config.DirectoryConfig, decider directory.Decider, interactive bool) directory.Policy {
	if interactive {
		return directory.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Decider:     decider,
		}
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return directory.Policy{
		MaxAttempts: attempts,
		Backoff:     cfg.RetryDelay,
		Decider:     directory.AutoRetry,
	}
}
