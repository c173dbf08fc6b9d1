//go:build integration

package session

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axmq/axd/types/message"
)

func getRedisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return addr
}

func setupRedisStore(t *testing.T) *RedisStore {
	store, err := NewRedisStore(RedisStoreConfig{
		Addr: getRedisAddr(),
		DB:   15, // Use DB 15 for testing
	})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NotNil(t, store)

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)

	s := New("client-1", false, 120)
	s.AddSubscription("a/#", message.QoS2)
	s.TrackOutbound(message.New("pub", "a/b", []byte("x"), message.QoS2, false, nil))

	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, s.ClientID, loaded.ClientID)
	require.Contains(t, loaded.Subscriptions, "a/#")
	require.Len(t, loaded.Inflight, 1)
	assert.Equal(t, AwaitingPubRec, loaded.Inflight[1].State)
}

func TestRedisStore_LoadMissing(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := setupRedisStore(t)

	require.NoError(t, store.Save(ctx, New("c1", false, 0)))
	require.NoError(t, store.Save(ctx, New("c2", false, 0)))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)

	require.NoError(t, store.Delete(ctx, "c1"))

	exists, err := store.Exists(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, exists)
}
