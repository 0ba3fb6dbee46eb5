package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/cryptoquote/internal/net/ratelimit"
)

// Error kinds carried by ProviderError.
const (
	KindTransport = "transport"
	KindHTTP      = "http_error"
	KindRateLimit = "rate_limit"
	KindCircuit   = "circuit"
)

// WrapperConfig configures the HTTP client wrapper
type WrapperConfig struct {
	Provider    string
	UserAgent   string
	RateLimiter *ratelimit.Limiter         // optional
	Breaker     *gobreaker.CircuitBreaker // optional
	// Timeout bounds one request. It starts once the rate limiter has
	// granted a token, so queued requests are not charged for the wait.
	Timeout time.Duration
}

// Wrapper is an http.RoundTripper that applies the user agent, per-host rate
// limiting and an optional circuit breaker, and turns HTTP error statuses
// into ProviderError values.
type Wrapper struct {
	config    WrapperConfig
	transport http.RoundTripper
}

// NewWrapper wraps transport. A nil transport uses http.DefaultTransport.
func NewWrapper(config WrapperConfig, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Wrapper{config: config, transport: transport}
}

// NewClient returns an http.Client using a Wrapper with the given request
// timeout. The client itself has no Timeout, since that would include the
// rate limit wait.
func NewClient(config WrapperConfig, transport http.RoundTripper, timeout time.Duration) *http.Client {
	config.Timeout = timeout
	return &http.Client{Transport: NewWrapper(config, transport)}
}

// RoundTrip implements http.RoundTripper
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	if w.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", w.config.UserAgent)
	}

	if w.config.RateLimiter != nil {
		if tokens := w.config.RateLimiter.Tokens(req.URL.Host); tokens < 1 {
			log.Debug().
				Str("provider", w.config.Provider).
				Float64("tokens", tokens).
				Msg("Waiting for rate limit token")
		}
		if err := w.config.RateLimiter.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, &ProviderError{
				Provider: w.config.Provider,
				Kind:     KindRateLimit,
				Err:      fmt.Errorf("rate limit wait failed: %w", err),
			}
		}
	}

	req, cancel := w.withTimeout(req)
	resp, err := w.guarded(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (w *Wrapper) guarded(req *http.Request) (*http.Response, error) {
	if w.config.Breaker == nil {
		return w.execute(req)
	}

	result, err := w.config.Breaker.Execute(func() (interface{}, error) {
		return w.execute(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{Provider: w.config.Provider, Kind: KindCircuit, Err: err}
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func (w *Wrapper) withTimeout(req *http.Request) (*http.Request, context.CancelFunc) {
	if w.config.Timeout <= 0 {
		return req, func() {}
	}
	ctx, cancel := context.WithTimeout(req.Context(), w.config.Timeout)
	return req.WithContext(ctx), cancel
}

// cancelBody releases the request timeout once the caller closes the body.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (w *Wrapper) execute(req *http.Request) (*http.Response, error) {
	resp, err := w.transport.RoundTrip(req)
	if err != nil {
		return nil, &ProviderError{Provider: w.config.Provider, Kind: KindTransport, Err: err}
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}

	// drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	kind := KindHTTP
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = KindRateLimit
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			log.Warn().
				Str("provider", w.config.Provider).
				Str("retry_after", retryAfter).
				Msg("Provider rate limit hit")
		}
	}
	return nil, &ProviderError{
		Provider:   w.config.Provider,
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Err:        errors.New(http.StatusText(resp.StatusCode)),
	}
}

// BreakerConfig configures NewBreaker.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // failures in a row that open the breaker
	Timeout             time.Duration // time spent open before a half-open probe
}

// NewBreaker builds a circuit breaker that opens after a run of consecutive
// failures. Cancelled requests do not count as failures.
func NewBreaker(config BreakerConfig) *gobreaker.CircuitBreaker {
	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// ProviderError represents an error from a provider with context
type ProviderError struct {
	Provider   string
	Kind       string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited returns true if the error is due to rate limiting
func (e *ProviderError) IsRateLimited() bool {
	return e.Kind == KindRateLimit
}

// IsCircuitOpen returns true if the error is due to circuit breaker being open
func (e *ProviderError) IsCircuitOpen() bool {
	return e.Kind == KindCircuit
}
