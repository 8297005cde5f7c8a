package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAddrEnv points the tests at a Redis server. The integration build
// starts a container and sets it.
const testAddrEnv = "MEDIAHOOK_TEST_REDIS_ADDR"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv(testAddrEnv)
	if addr == "" {
		t.Skip(testAddrEnv + " not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, Config{Addr: addr, KeyPrefix: "mediahook:test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CheckAndRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dup, err := store.CheckAndRecord(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.CheckAndRecord(ctx, "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, dup)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Forget(ctx, "fp"))
	seen, err := store.Seen(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStore_Expiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "short", 100*time.Millisecond))
	seen, err := store.Seen(ctx, "short")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Eventually(t, func() bool {
		seen, err := store.Seen(ctx, "short")
		return err == nil && !seen
	}, 2*time.Second, 50*time.Millisecond)
}

func TestStore_PrefixIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	other, err := New(ctx, Config{Addr: os.Getenv(testAddrEnv), KeyPrefix: "mediahook:test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	require.NoError(t, store.Record(ctx, "shared", time.Minute))

	seen, err := other.Seen(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, seen)

	n, err := other.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, store.Ping(ctx))
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := New(ctx, Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: ping")
}

func TestNewWithClient_DefaultPrefix(t *testing.T) {
	s := NewWithClient(nil, "")
	assert.Equal(t, defaultKeyPrefix+"abc", s.key("abc"))
}
