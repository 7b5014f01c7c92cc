package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T) (Manager, Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, testLogger())
	return NewManager(store, testLogger()), store
}

func TestManager_ExecutesOncePerKey(t *testing.T) {
	ctx := context.Background()
	mgr, _ := testManager(t)

	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return map[string]any{"handled": true}, nil
	}

	first, err := mgr.Execute(ctx, UpdateKey(42), time.Hour, fn)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := mgr.Execute(ctx, UpdateKey(42), time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, second.FromCache)

	assert.Equal(t, 1, calls)
}

func TestManager_ReplaysEvenWhenLockWasReleased(t *testing.T) {
	ctx := context.Background()
	mgr, store := testManager(t)

	key := UpdateKey(13)
	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return "done", nil
	}

	_, err := mgr.Execute(ctx, key, time.Hour, fn)
	require.NoError(t, err)

	// The execution lock is released after completion, so a redelivery
	// acquires it again. The completed record must still win.
	locked, err := store.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, locked, "lock should be free after completion")
	require.NoError(t, store.ReleaseLock(ctx, key))

	result, err := mgr.Execute(ctx, key, time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, calls)
}

func TestManager_DistinctKeysRunIndependently(t *testing.T) {
	ctx := context.Background()
	mgr, _ := testManager(t)

	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return nil, nil
	}

	for updateID := range 3 {
		_, err := mgr.Execute(ctx, UpdateKey(updateID), time.Hour, fn)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	ctx := context.Background()
	mgr, _ := testManager(t)

	failure := errors.New("handler failed")
	attempts := 0

	_, err := mgr.Execute(ctx, UpdateKey(7), time.Hour, func(ctx context.Context) (any, error) {
		attempts++
		return nil, failure
	})
	require.ErrorIs(t, err, failure)

	result, err := mgr.Execute(ctx, UpdateKey(7), time.Hour, func(ctx context.Context) (any, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, attempts)
}

func TestManager_InProgressKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	mgr, store := testManager(t)

	key := UpdateKey(99)
	locked, err := store.Lock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)
	require.NoError(t, store.Set(ctx, key, &Record{Status: StatusProcessing}, time.Minute))

	_, err = mgr.Execute(ctx, key, time.Hour, func(ctx context.Context) (any, error) {
		t.Fatal("operation must not run while key is in progress")
		return nil, nil
	})

	assert.ErrorIs(t, err, ErrInProgress)
}

func TestManager_CachedResponseRoundTrips(t *testing.T) {
	ctx := context.Background()
	mgr, _ := testManager(t)

	_, err := mgr.Execute(ctx, UpdateKey(5), time.Hour, func(ctx context.Context) (any, error) {
		return map[string]any{"chat": "777", "text": "welcome"}, nil
	})
	require.NoError(t, err)

	result, err := mgr.Execute(ctx, UpdateKey(5), time.Hour, func(ctx context.Context) (any, error) {
		return nil, errors.New("must not execute")
	})
	require.NoError(t, err)
	require.True(t, result.FromCache)

	replayed, ok := result.Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "welcome", replayed["text"])
}

func TestUpdateKey_Deterministic(t *testing.T) {
	assert.Equal(t, UpdateKey(1), UpdateKey(1))
	assert.NotEqual(t, UpdateKey(1), UpdateKey(2))
	assert.Len(t, UpdateKey(1), 64)
}
