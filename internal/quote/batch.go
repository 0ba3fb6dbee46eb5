package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptoquote/internal/net/client"
)

// DefaultConcurrency bounds in-flight price requests.
const DefaultConcurrency = 4

// Resolver maps a free-text name to a coin id.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// Observer is told about every finished quote.
type Observer interface {
	QuoteCompleted(q Quote, elapsed time.Duration)
}

// Batch resolves names and fetches their prices concurrently. Results keep
// the input order.
type Batch struct {
	resolver    Resolver
	fetcher     *Fetcher
	concurrency int
	observer    Observer
}

func NewBatch(resolver Resolver, fetcher *Fetcher, concurrency int, observer Observer) *Batch {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Batch{
		resolver:    resolver,
		fetcher:     fetcher,
		concurrency: concurrency,
		observer:    observer,
	}
}

// Run returns one quote per name, in the order of names. Duplicate names
// are looked up independently.
func (b *Batch) Run(ctx context.Context, names []string) []Quote {
	quotes := make([]Quote, len(names))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i, name := range names {
		id, ok := b.resolver.Resolve(name)
		if !ok {
			quotes[i] = Quote{Input: name, Status: StatusNotFound}
			b.completed(quotes[i], 0)
			continue
		}

		wg.Add(1)
		go func(i int, name, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				quotes[i] = Quote{Input: name, CoinID: id, Status: StatusTransportError, Err: ctx.Err()}
				b.completed(quotes[i], 0)
				return
			}

			start := time.Now()
			q := b.fetcher.Fetch(ctx, id)
			q.Input = name
			quotes[i] = q
			b.completed(q, time.Since(start))
		}(i, name, id)
	}

	wg.Wait()
	return quotes
}

func (b *Batch) completed(q Quote, elapsed time.Duration) {
	ev := log.Debug().
		Str("input", q.Input).
		Str("coin_id", q.CoinID).
		Str("status", q.Status.String()).
		Dur("duration", elapsed)
	if q.Err != nil {
		ev = ev.Err(q.Err)
	}
	ev.Msg("Quote completed")

	if reason := refusal(q.Err); reason != "" {
		log.Warn().
			Str("coin_id", q.CoinID).
			Str("reason", reason).
			Msg("Price lookup refused before reaching CoinGecko")
	}

	if b.observer != nil {
		b.observer.QuoteCompleted(q, elapsed)
	}
}

// refusal names the local guard that stopped a request, or returns "" when
// err is not a breaker or rate limit refusal.
func refusal(err error) string {
	var perr *client.ProviderError
	if !errors.As(err, &perr) {
		return ""
	}
	switch {
	case perr.IsCircuitOpen():
		return "circuit open"
	case perr.IsRateLimited() && perr.StatusCode == 0:
		return "rate limit wait"
	case perr.IsRateLimited():
		return "rate limited upstream"
	}
	return ""
}
