package quote

import (
	"context"

	"github.com/sawpanic/cryptoquote/internal/infrastructure/providers"
)

// PriceSource is the upstream price endpoint.
type PriceSource interface {
	SimplePrice(ctx context.Context, ids []string, vsCurrency string) (providers.SimplePriceResponse, error)
}

// Fetcher looks up the USD price of a single coin id. Failures are returned
// as tagged quotes, never as errors.
type Fetcher struct {
	source PriceSource
}

func NewFetcher(source PriceSource) *Fetcher {
	return &Fetcher{source: source}
}

// Fetch returns a StatusPriced, StatusUnavailable or StatusTransportError
// quote for coinID.
func (f *Fetcher) Fetch(ctx context.Context, coinID string) Quote {
	q := Quote{CoinID: coinID}

	prices, err := f.source.SimplePrice(ctx, []string{coinID}, Currency)
	if err != nil {
		q.Status = StatusTransportError
		q.Err = err
		return q
	}

	price, ok := prices.Price(coinID, Currency)
	if !ok {
		q.Status = StatusUnavailable
		return q
	}
	q.Status = StatusPriced
	q.Price = price
	return q
}
