//go:build integration

package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/aura/internal/testsupport"
)

func TestRedisLockerExcludesPeers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client := testsupport.StartRedis(ctx, t)

	first := NewRedisLocker(client, zaptest.NewLogger(t))
	second := NewRedisLocker(client, zaptest.NewLogger(t))
	const key = "aura:token-refresh:strava:acct-1"

	unlock, ok, err := first.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	unlock()

	unlockSecond, ok, err := second.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale release from the first holder must not free the second lock.
	unlock()
	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), exists)

	unlockSecond()
	exists, err = client.Exists(ctx, key).Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}

func TestRedisLockerExpires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client := testsupport.StartRedis(ctx, t)
	locker := NewRedisLocker(client, zaptest.NewLogger(t))

	_, ok, err := locker.TryLock(ctx, "aura:token-refresh:ttl", 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := locker.TryLock(ctx, "aura:token-refresh:ttl", time.Second)
		return err == nil && ok
	}, 5*time.Second, 100*time.Millisecond)
}
