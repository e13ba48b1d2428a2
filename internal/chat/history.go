package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// History serves the recent messages of a session to the orchestrator.
type History interface {
	Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)
	// Append records a message already stored in the repository.
	Append(ctx context.Context, m Message)
	Invalidate(ctx context.Context, sessionID uuid.UUID)
}

// MessageLister is the repository read used to fill the cache.
type MessageLister interface {
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)
}

// RedisHistory keeps the tail of each session in a Redis list in front of Postgres.
// A missing list is rebuilt from the repository; appends never create a list, so
// a cached list is always a true suffix of the stored conversation.
type RedisHistory struct {
	client redis.UniversalClient
	repo   MessageLister
	maxLen int
	ttl    time.Duration
}

func NewRedisHistory(client redis.UniversalClient, repo MessageLister, maxLen int, ttl time.Duration) *RedisHistory {
	return &RedisHistory{client: client, repo: repo, maxLen: maxLen, ttl: ttl}
}

func historyKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}

func (h *RedisHistory) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	key := historyKey(sessionID)

	if limit <= h.maxLen {
		vals, err := h.client.LRange(ctx, key, int64(-limit), -1).Result()
		if err != nil {
			slog.Warn("chat: history cache read failed, using database", "error", err, "session_id", sessionID)
		} else if len(vals) > 0 {
			msgs, ok := decodeMessages(vals)
			if ok {
				return msgs, nil
			}
			h.Invalidate(ctx, sessionID)
		}
	}

	msgs, err := h.repo.ListRecentMessages(ctx, sessionID, max(limit, h.maxLen))
	if err != nil {
		return nil, err
	}
	h.fill(ctx, key, msgs)

	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (h *RedisHistory) Append(ctx context.Context, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("chat: marshaling history entry", "error", err)
		return
	}

	key := historyKey(m.SessionID)
	pipe := h.client.Pipeline()
	pipe.RPushX(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-h.maxLen), -1)
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("chat: history cache append failed", "error", err, "session_id", m.SessionID)
		h.Invalidate(ctx, m.SessionID)
	}
}

func (h *RedisHistory) Invalidate(ctx context.Context, sessionID uuid.UUID) {
	if err := h.client.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		slog.Warn("chat: history cache invalidate failed", "error", err, "session_id", sessionID)
	}
}

func (h *RedisHistory) fill(ctx context.Context, key string, msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	if len(msgs) > h.maxLen {
		msgs = msgs[len(msgs)-h.maxLen:]
	}

	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return
		}
		vals = append(vals, string(data))
	}

	pipe := h.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("chat: history cache fill failed", "error", err, "key", key)
	}
}

func decodeMessages(vals []string) ([]Message, bool) {
	msgs := make([]Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, false
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// RepoHistory reads history straight from the repository.
type RepoHistory struct {
	repo MessageLister
}

func NewRepoHistory(repo MessageLister) RepoHistory {
	return RepoHistory{repo: repo}
}

func (h RepoHistory) Recent(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	return h.repo.ListRecentMessages(ctx, sessionID, limit)
}

func (RepoHistory) Append(context.Context, Message)       {}
func (RepoHistory) Invalidate(context.Context, uuid.UUID) {}
