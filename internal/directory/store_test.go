package directory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "coin_list.json")
	store := NewFileStore(path)

	_, _, err := store.Get(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Put(ctx, []byte(listBody)))
	body, fetchedAt, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, listBody, string(body))
	assert.WithinDuration(t, time.Now(), fetchedAt, time.Minute)

	require.NoError(t, store.Delete(ctx))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, store.Delete(ctx), "deleting a missing cache is not an error")

	assert.Equal(t, DefaultCachePath, NewFileStore("").path)
	assert.Contains(t, store.Describe(), path)
}

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisStore(db, "", time.Hour)

		mock.ExpectGet(DefaultRedisKey).SetVal(listBody)
		mock.ExpectGet(DefaultRedisKey + ":fetched_at").SetVal("2026-10-17T08:00:00Z")

		body, fetchedAt, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, listBody, string(body))
		assert.Equal(t, time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC), fetchedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisStore(db, "coins", 0)

		mock.ExpectGet("coins").RedisNil()

		_, _, err := store.Get(ctx)
		require.ErrorIs(t, err, ErrCacheMiss)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing timestamp reads as zero time", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisStore(db, "coins", 0)

		mock.ExpectGet("coins").SetVal(listBody)
		mock.ExpectGet("coins:fetched_at").RedisNil()

		_, fetchedAt, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, fetchedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisStore(db, "coins", 0)

		mock.ExpectGet("coins").SetErr(redis.TxFailedErr)

		_, _, err := store.Get(ctx)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCacheMiss))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisStore_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "coins", 24*time.Hour)
	store.now = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }

	mock.ExpectSet("coins", []byte(listBody), 24*time.Hour).SetVal("OK")
	mock.ExpectSet("coins:fetched_at", "2026-10-18T09:30:00Z", 24*time.Hour).SetVal("OK")
	require.NoError(t, store.Put(ctx, []byte(listBody)))

	mock.ExpectDel("coins", "coins:fetched_at").SetVal(2)
	require.NoError(t, store.Delete(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PutError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "coins", 0)

	mock.ExpectSet("coins", []byte(listBody), time.Duration(0)).SetErr(redis.TxFailedErr)
	require.Error(t, store.Put(context.Background(), []byte(listBody)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_StaleCopyServesFailedRefresh(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "coins", 0)
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	// written without a TTL, so the list outlives max_age
	mock.ExpectSet("coins", []byte(listBody), time.Duration(0)).SetVal("OK")
	mock.ExpectSet("coins:fetched_at", "2026-10-18T09:30:00Z", time.Duration(0)).SetVal("OK")
	require.NoError(t, store.Put(ctx, []byte(listBody)))

	mock.ExpectGet("coins").SetVal(listBody)
	mock.ExpectGet("coins:fetched_at").SetVal("2026-10-18T09:30:00Z")

	loader := NewLoader(store, &fakeSource{responses: []sourceResponse{{err: errors.New("upstream down")}}},
		Config{MaxAge: time.Hour}, nil)
	loader.now = func() time.Time { return now.Add(48 * time.Hour) }

	res, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginStale, res.Origin)
	assert.Equal(t, 48*time.Hour, res.Age)
	assert.Len(t, res.Directory, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
