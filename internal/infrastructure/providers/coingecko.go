package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/cryptoquote/internal/net/client"
	"github.com/sawpanic/cryptoquote/internal/net/ratelimit"
)

const (
	// CoinGeckoName identifies the provider in logs and errors.
	CoinGeckoName = "coingecko"
	// DefaultCoinGeckoURL is the public v3 API root.
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
)

type CoinGeckoConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
	RateLimiter    *ratelimit.Limiter
	PriceBreaker   *gobreaker.CircuitBreaker // guards /simple/price only
	Transport      http.RoundTripper
}

// CoinGeckoProvider talks to the CoinGecko listing and price endpoints.
type CoinGeckoProvider struct {
	baseURL     string
	listClient  *http.Client
	priceClient *http.Client
}

func NewCoinGeckoProvider(config CoinGeckoConfig) *CoinGeckoProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultCoinGeckoURL
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	listCfg := client.WrapperConfig{
		Provider:    CoinGeckoName,
		UserAgent:   config.UserAgent,
		RateLimiter: config.RateLimiter,
	}
	priceCfg := listCfg
	priceCfg.Breaker = config.PriceBreaker

	return &CoinGeckoProvider{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		listClient:  client.NewClient(listCfg, config.Transport, config.RequestTimeout),
		priceClient: client.NewClient(priceCfg, config.Transport, config.RequestTimeout),
	}
}

// GetCoinsList returns the raw /coins/list body so it can be cached as is.
func (p *CoinGeckoProvider) GetCoinsList(ctx context.Context) ([]byte, error) {
	endpoint := p.baseURL + "/coins/list"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := p.listClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", endpoint).Msg("CoinGecko API request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read coins list: %w", err)
	}

	log.Debug().
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("CoinGecko coins list retrieved")

	return body, nil
}

// SimplePriceResponse maps coin id to currency code to price. A nil price
// means the API returned null for that pair.
type SimplePriceResponse map[string]map[string]*decimal.Decimal

// Price returns the listed price for id in currency.
func (r SimplePriceResponse) Price(id, currency string) (decimal.Decimal, bool) {
	prices, ok := r[id]
	if !ok {
		return decimal.Decimal{}, false
	}
	price, ok := prices[strings.ToLower(currency)]
	if !ok || price == nil {
		return decimal.Decimal{}, false
	}
	return *price, true
}

// SimplePrice queries /simple/price for the given ids in one currency.
func (p *CoinGeckoProvider) SimplePrice(ctx context.Context, ids []string, vsCurrency string) (SimplePriceResponse, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", strings.ToLower(vsCurrency))
	endpoint := p.baseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := p.priceClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var prices SimplePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode simple price: %w", err)
	}

	log.Debug().
		Strs("ids", ids).
		Str("vs_currency", vsCurrency).
		Dur("duration", time.Since(startTime)).
		Msg("CoinGecko simple price retrieved")

	return prices, nil
}
