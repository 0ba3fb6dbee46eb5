package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the key holding the cached coin list.
const DefaultRedisKey = "cryptoquote:coin_list"

// RedisStore keeps the coin list body under a key, with the fetch time in a
// companion key.
type RedisStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a store. A positive ttl lets redis expire the entry.
func NewRedisStore(client redis.Cmdable, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl, now: time.Now}
}

func (s *RedisStore) fetchedAtKey() string { return s.key + ":fetched_at" }

func (s *RedisStore) Get(ctx context.Context) ([]byte, time.Time, error) {
	body, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	// a missing or unreadable timestamp reads as the zero time, which any
	// max age treats as stale
	var fetchedAt time.Time
	raw, err := s.client.Get(ctx, s.fetchedAtKey()).Result()
	switch {
	case err == nil:
		fetchedAt, _ = time.Parse(time.RFC3339, raw)
	case !errors.Is(err, redis.Nil):
		return nil, time.Time{}, fmt.Errorf("redis get %s: %w", s.fetchedAtKey(), err)
	}
	return body, fetchedAt, nil
}

func (s *RedisStore) Put(ctx context.Context, body []byte) error {
	if err := s.client.Set(ctx, s.key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	stamp := s.now().UTC().Format(time.RFC3339)
	if err := s.client.Set(ctx, s.fetchedAtKey(), stamp, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.fetchedAtKey(), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key, s.fetchedAtKey()).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Describe() string { return "redis key " + s.key }
