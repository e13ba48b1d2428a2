// Package ratelimit implements per-identity request limits in fixed time windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scopes used by the HTTP layer.
const (
	ScopeAI    = "ai"
	ScopeWrite = "write"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether identity may perform one more request in scope.
type Limiter interface {
	Allow(ctx context.Context, scope, identity string) (Decision, error)
}

// Rule caps a scope at Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// RedisLimiter keeps one counter per (scope, identity, window) using INCR and EXPIRE.
// Counters are shared by every process pointed at the same Redis.
type RedisLimiter struct {
	client redis.Cmdable
	rules  map[string]Rule
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, rules map[string]Rule) *RedisLimiter {
	return &RedisLimiter{client: client, rules: rules, now: time.Now}
}

// Allow consumes one slot. A scope without a rule is unlimited.
func (l *RedisLimiter) Allow(ctx context.Context, scope, identity string) (Decision, error) {
	rule, ok := l.rules[scope]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	windowStart := now.Truncate(rule.Window)
	key := windowKey(scope, identity, windowStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rule.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("incrementing %s: %w", key, err)
	}

	count := int(incr.Val())
	d := Decision{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: max(rule.Limit-count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = windowStart.Add(rule.Window).Sub(now)
	}
	return d, nil
}

func windowKey(scope, identity string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, identity, windowStart.Unix())
}
