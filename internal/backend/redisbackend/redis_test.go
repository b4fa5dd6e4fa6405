package redisbackend

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New([]string{"127.0.0.1:6379"})
	require.NoError(t, err)
	if err := b.Initialize(context.Background()); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return b
}

func TestHitAllowsUpToLimitThenDenies(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	ctx := context.Background()
	key := []byte("redisbackend-test-limit")
	b.client.Del(ctx, string(key))

	for i := 0; i < 3; i++ {
		d, err := b.Hit(ctx, key, 3, 60)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d should be allowed", i)
	}
	d, err := b.Hit(ctx, key, 3, 60)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.CurrentCredit)
}

func TestHitReportsDecreasingCredit(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()

	ctx := context.Background()
	key := []byte("redisbackend-test-credit")
	b.client.Del(ctx, string(key))

	d, err := b.Hit(ctx, key, 5, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.CurrentCredit)

	d, err = b.Hit(ctx, key, 5, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.CurrentCredit)
}

func TestNewRequiresAtLeastOneAddress(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewBuildsRingForMultipleAddresses(t *testing.T) {
	b, err := New([]string{"127.0.0.1:6379", "127.0.0.1:6380"})
	require.NoError(t, err)
	defer b.Close()
	_, isRing := b.client.(*goredis.Ring)
	assert.True(t, isRing)
}

func TestNewBuildsClientForSingleAddress(t *testing.T) {
	b, err := New([]string{"127.0.0.1:6379"})
	require.NoError(t, err)
	defer b.Close()
	_, isClient := b.client.(*goredis.Client)
	assert.True(t, isClient)
}
