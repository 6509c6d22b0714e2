package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceStore_CheckAndSet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "cron-primary", "n-1", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new nonce should return true")

	ok, err = store.CheckAndSet(ctx, "cron-primary", "n-1", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should return false")

	ok, err = store.CheckAndSet(ctx, "cron-secondary", "n-1", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "same nonce for a different client should be valid")
}

func TestNonceStore_CheckAndSet_ExpiredNonce(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "cron-primary", "n-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, "cron-primary", "n-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce should be accepted again")
}

func TestNonceStore_RedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr(), MaxRetries: -1})
	store := NewNonceStore(client)
	s.Close()

	_, err := store.CheckAndSet(context.Background(), "cron-primary", "n-2", time.Minute)
	assert.Error(t, err)
}
