package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, rules map[string]Rule) (*RedisLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	l := NewRedisLimiter(client, rules)
	l.now = func() time.Time { return now }
	return l, mr, &now
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	l, _, _ := setupLimiter(t, map[string]Rule{ScopeAI: {Limit: 3, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, ScopeAI, "user-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, ScopeAI, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50*time.Second, d.RetryAfter)
}

func TestRedisLimiter_NewWindowResets(t *testing.T) {
	l, _, now := setupLimiter(t, map[string]Rule{ScopeAI: {Limit: 1, Window: time.Minute}})
	ctx := context.Background()

	d, err := l.Allow(ctx, ScopeAI, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, ScopeAI, "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	*now = now.Add(time.Minute)
	d, err = l.Allow(ctx, ScopeAI, "user-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_ScopesAndIdentitiesIndependent(t *testing.T) {
	l, _, _ := setupLimiter(t, map[string]Rule{
		ScopeAI:    {Limit: 1, Window: time.Minute},
		ScopeWrite: {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	d, _ := l.Allow(ctx, ScopeAI, "user-1")
	assert.True(t, d.Allowed)

	d, _ = l.Allow(ctx, ScopeWrite, "user-1")
	assert.True(t, d.Allowed, "write scope must not share the ai counter")

	d, _ = l.Allow(ctx, ScopeAI, "user-2")
	assert.True(t, d.Allowed, "other identities must not share the counter")
}

func TestRedisLimiter_UnknownScopeUnlimited(t *testing.T) {
	l, _, _ := setupLimiter(t, map[string]Rule{})
	for i := 0; i < 5; i++ {
		d, err := l.Allow(context.Background(), "other", "user-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	l, mr, now := setupLimiter(t, map[string]Rule{ScopeAI: {Limit: 5, Window: time.Minute}})
	_, err := l.Allow(context.Background(), ScopeAI, "user-1")
	require.NoError(t, err)

	key := windowKey(ScopeAI, "user-1", now.Truncate(time.Minute))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute+time.Second, mr.TTL(key))
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	l, mr, _ := setupLimiter(t, map[string]Rule{ScopeAI: {Limit: 5, Window: time.Minute}})
	mr.Close()

	_, err := l.Allow(context.Background(), ScopeAI, "user-1")
	assert.Error(t, err)
}
