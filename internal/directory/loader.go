package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptoquote/internal/coins"
)

var (
	// ErrDeclined means the operator chose not to retry a failed fetch.
	ErrDeclined = errors.New("coin list fetch declined")
	// ErrAttemptsExhausted means the retry policy ran out of attempts.
	ErrAttemptsExhausted = errors.New("coin list fetch attempts exhausted")
	// ErrEmptyDirectory is reported for a list with no entries.
	ErrEmptyDirectory = errors.New("coin list is empty")
)

// Source fetches the raw coin list from upstream.
type Source interface {
	GetCoinsList(ctx context.Context) ([]byte, error)
}

// Observer receives progress events for status output.
type Observer interface {
	CacheHit(store string, age time.Duration)
	Fetching(attempt int)
	FetchFailed(attempt int, err error)
}

// Origin tells where a loaded directory came from.
type Origin string

const (
	OriginCache  Origin = "cache"
	OriginRemote Origin = "remote"
	OriginStale  Origin = "stale"
)

// Result is a loaded directory.
type Result struct {
	Directory coins.Directory
	Origin    Origin
	Age       time.Duration // age of the cached copy; zero for remote loads
}

type Config struct {
	// MaxAge is how long a cached list stays fresh. Zero never expires it.
	MaxAge time.Duration
	Policy Policy
}

// Loader produces the coin directory from the cache or upstream.
type Loader struct {
	store    Store
	source   Source
	config   Config
	observer Observer
	now      func() time.Time
}

func NewLoader(store Store, source Source, config Config, observer Observer) *Loader {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Loader{
		store:    store,
		source:   source,
		config:   config,
		observer: observer,
		now:      time.Now,
	}
}

// Load returns the cached directory when it is present and fresh, and
// otherwise fetches it. A stale cache is refreshed; if that fails and the
// retry policy gives up, the stale copy is returned. Without any copy the
// error is ErrDeclined, ErrAttemptsExhausted or the context error.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	var stale *Result

	body, fetchedAt, err := l.store.Get(ctx)
	switch {
	case err == nil:
		dir, perr := parse(body)
		if perr != nil {
			log.Warn().Err(perr).Str("store", l.store.Describe()).Msg("Ignoring unreadable coin list cache")
			break
		}
		age := l.now().Sub(fetchedAt)
		if l.config.MaxAge <= 0 || age <= l.config.MaxAge {
			l.observer.CacheHit(l.store.Describe(), age)
			log.Debug().Int("coins_count", len(dir)).Dur("age", age).Msg("Coin list loaded from cache")
			return Result{Directory: dir, Origin: OriginCache, Age: age}, nil
		}
		stale = &Result{Directory: dir, Origin: OriginStale, Age: age}
		log.Info().Dur("age", age).Dur("max_age", l.config.MaxAge).Msg("Cached coin list is stale, refreshing")
	case errors.Is(err, ErrCacheMiss):
	default:
		log.Warn().Err(err).Str("store", l.store.Describe()).Msg("Coin list cache unavailable")
	}

	res, err := l.Refresh(ctx)
	if err != nil {
		if stale != nil && (errors.Is(err, ErrDeclined) || errors.Is(err, ErrAttemptsExhausted)) {
			log.Warn().Dur("age", stale.Age).Msg("Using stale coin list")
			return *stale, nil
		}
		return Result{}, err
	}
	return res, nil
}

// Refresh fetches the list from upstream under the retry policy and caches
// the raw body on success.
func (l *Loader) Refresh(ctx context.Context) (Result, error) {
	policy := l.config.Policy
	for attempt := 1; ; attempt++ {
		l.observer.Fetching(attempt)

		dir, err := l.fetchOnce(ctx)
		if err == nil {
			return Result{Directory: dir, Origin: OriginRemote}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}

		l.observer.FetchFailed(attempt, err)
		log.Warn().Err(err).Int("attempt", attempt).Msg("Coin list fetch failed")

		if policy.exhausted(attempt) {
			return Result{}, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
		}
		if !policy.decider().Retry(ctx, attempt, err) {
			return Result{}, ErrDeclined
		}
		if err := policy.wait(ctx); err != nil {
			return Result{}, err
		}
	}
}

// Clear removes the cached list.
func (l *Loader) Clear(ctx context.Context) error {
	return l.store.Delete(ctx)
}

func (l *Loader) fetchOnce(ctx context.Context) (coins.Directory, error) {
	body, err := l.source.GetCoinsList(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := parse(body)
	if err != nil {
		return nil, err
	}

	// the run can go on without a cache
	if err := l.store.Put(ctx, body); err != nil {
		log.Warn().Err(err).Str("store", l.store.Describe()).Msg("Failed to cache coin list")
	}
	return dir, nil
}

func parse(body []byte) (coins.Directory, error) {
	dir, err := coins.ParseDirectory(body)
	if err != nil {
		return nil, err
	}
	if len(dir) == 0 {
		return nil, ErrEmptyDirectory
	}
	return dir, nil
}

type nopObserver struct{}

func (nopObserver) CacheHit(string, time.Duration) {}
func (nopObserver) Fetching(int)                   {}
func (nopObserver) FetchFailed(int, error)         {}
