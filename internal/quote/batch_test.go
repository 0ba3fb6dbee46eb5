package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/cryptoquote/internal/infrastructure/providers"
	"github.com/sawpanic/cryptoquote/internal/net/client"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(name string) (string, bool) {
	id, ok := m[strings.ToLower(name)]
	return id, ok
}

type fakePrices struct {
	prices   map[string]float64
	failures map[string]error
	delay    func(id string) time.Duration

	inFlight    int32
	maxInFlight int32
	calls       int32
}

func (f *fakePrices) SimplePrice(ctx context.Context, ids []string, vs string) (providers.SimplePriceResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}

	id := ids[0]
	if f.delay != nil {
		select {
		case <-time.After(f.delay(id)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failures[id]; ok {
		return nil, err
	}

	resp := providers.SimplePriceResponse{}
	if p, ok := f.prices[id]; ok {
		d := decimal.NewFromFloat(p)
		resp[id] = map[string]*decimal.Decimal{vs: &d}
	}
	return resp, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[Status]int
}

func (o *countingObserver) QuoteCompleted(q Quote, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[Status]int{}
	}
	o.counts[q.Status]++
}

func TestFetcher_Fetch(t *testing.T) {
	errTimeout := errors.New("context deadline exceeded")
	src := &fakePrices{
		prices:   map[string]float64{"bitcoin": 43000},
		failures: map[string]error{"flaky": errTimeout},
	}
	f := NewFetcher(src)
	ctx := context.Background()

	q := f.Fetch(ctx, "bitcoin")
	assert.Equal(t, StatusPriced, q.Status)
	assert.Equal(t, "43000.00", q.Display())

	q = f.Fetch(ctx, "unlisted")
	assert.Equal(t, StatusUnavailable, q.Status)
	assert.Equal(t, "unlisted", q.CoinID)

	q = f.Fetch(ctx, "flaky")
	assert.Equal(t, StatusTransportError, q.Status)
	assert.ErrorIs(t, q.Err, errTimeout)
}

func TestBatch_MixedOutcomesKeepOrder(t *testing.T) {
	resolver := mapResolver{"bitcoin": "bitcoin", "ethereum": "ethereum"}
	src := &fakePrices{
		prices:   map[string]float64{"bitcoin": 43000.1},
		failures: map[string]error{"ethereum": errors.New("HTTP 503")},
	}
	obs := &countingObserver{}

	quotes := NewBatch(resolver, NewFetcher(src), 2, obs).
		Run(context.Background(), []string{"Bitcoin", "notacoin", "Ethereum"})

	require.Len(t, quotes, 3)
	assert.Equal(t, "Bitcoin", quotes[0].Input)
	assert.Equal(t, "43000.10", quotes[0].Display())
	assert.Equal(t, "notacoin", quotes[1].Input)
	assert.Equal(t, MsgNotFound, quotes[1].Display())
	assert.Equal(t, "Ethereum", quotes[2].Input)
	assert.Equal(t, "Failed to retrieve price: HTTP 503", quotes[2].Display())

	assert.Equal(t, map[Status]int{StatusPriced: 1, StatusNotFound: 1, StatusTransportError: 1}, obs.counts)
	assert.Equal(t, int32(2), src.calls, "unresolved names never reach the price endpoint")
}

func TestBatch_ConcurrentButOrdered(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	resolver := mapResolver{}
	prices := map[string]float64{}
	for i, id := range ids {
		resolver[id] = id
		prices[id] = float64(i + 1)
	}
	// earlier names finish last
	src := &fakePrices{
		prices: prices,
		delay: func(id string) time.Duration {
			return time.Duration(len(ids)-strings.Index("abcdefgh", id)) * 5 * time.Millisecond
		},
	}

	quotes := NewBatch(resolver, NewFetcher(src), 3, nil).Run(context.Background(), ids)

	require.Len(t, quotes, len(ids))
	for i, q := range quotes {
		assert.Equal(t, ids[i], q.Input)
		assert.True(t, decimal.NewFromInt(int64(i+1)).Equal(q.Price), "quote %d out of order", i)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxInFlight), int32(3))
	assert.Greater(t, atomic.LoadInt32(&src.maxInFlight), int32(1))
}

func TestBatch_DuplicatesFetchedIndependently(t *testing.T) {
	src := &fakePrices{prices: map[string]float64{"bitcoin": 1}}

	quotes := NewBatch(mapResolver{"btc": "bitcoin"}, NewFetcher(src), 0, nil).
		Run(context.Background(), []string{"btc", "BTC", "btc"})

	require.Len(t, quotes, 3)
	assert.Equal(t, []string{"btc", "BTC", "btc"}, []string{quotes[0].Input, quotes[1].Input, quotes[2].Input})
	assert.Equal(t, int32(3), src.calls)
}

func TestBatch_CancelledContext(t *testing.T) {
	src := &fakePrices{
		prices: map[string]float64{"bitcoin": 1},
		delay:  func(string) time.Duration { return time.Minute },
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	quotes := NewBatch(mapResolver{"bitcoin": "bitcoin"}, NewFetcher(src), 1, nil).
		Run(ctx, []string{"bitcoin", "bitcoin"})

	require.Len(t, quotes, 2)
	for _, q := range quotes {
		assert.Equal(t, StatusTransportError, q.Status)
		assert.ErrorIs(t, q.Err, context.DeadlineExceeded)
	}
}

func TestRefusal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: ""},
		{name: "http error", err: &client.ProviderError{Provider: "coingecko", Kind: client.KindHTTP, StatusCode: 500}, want: ""},
		{name: "circuit", err: &client.ProviderError{Provider: "coingecko", Kind: client.KindCircuit}, want: "circuit open"},
		{name: "limiter wait", err: &client.ProviderError{Provider: "coingecko", Kind: client.KindRateLimit}, want: "rate limit wait"},
		{name: "429 wrapped", err: fmt.Errorf("get price: %w", &client.ProviderError{Provider: "coingecko", Kind: client.KindRateLimit, StatusCode: 429}), want: "rate limited upstream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refusal(tt.err))
		})
	}
}
