package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futureecho/futureecho/internal/embedding"
)

func TestStore_UpsertReplaces(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	owner := uuid.New()
	key := journalKey(owner)

	require.NoError(t, store.Upsert(ctx, key, "first draft"))
	require.NoError(t, store.Upsert(ctx, key, "second draft"))

	recs, err := store.AllFor(ctx, owner)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "second draft", recs[0].Content)
	assert.Len(t, recs[0].Embedding, 26)
}

func TestStore_StaleVersionIgnored(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	key := journalKey(uuid.New())
	t0 := time.Now()

	require.NoError(t, store.UpsertAt(ctx, key, "newer edit", t0.Add(time.Second)))
	require.NoError(t, store.UpsertAt(ctx, key, "older edit", t0))

	recs, _ := store.AllFor(ctx, key.OwnerID)
	require.Len(t, recs, 1)
	assert.Equal(t, "newer edit", recs[0].Content)
}

func TestStore_EmbeddingFailureLeavesRecord(t *testing.T) {
	repo := newMemRepo()
	emb := &letterEmbedder{}
	store := NewStore(repo, emb)
	ctx := context.Background()
	key := journalKey(uuid.New())

	require.NoError(t, store.Upsert(ctx, key, "original"))
	emb.err = errBoom
	err := store.Upsert(ctx, key, "changed")
	assert.ErrorIs(t, err, embedding.ErrUnavailable)

	recs, _ := store.AllFor(ctx, key.OwnerID)
	require.Len(t, recs, 1)
	assert.Equal(t, "original", recs[0].Content)
}

func TestStore_EmptyText(t *testing.T) {
	emb := &letterEmbedder{}
	store := NewStore(newMemRepo(), emb)
	err := store.Upsert(context.Background(), journalKey(uuid.New()), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, emb.calls)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	key := journalKey(uuid.New())

	require.NoError(t, store.Upsert(ctx, key, "to be removed"))
	require.NoError(t, store.DeleteFor(ctx, key))
	require.NoError(t, store.DeleteFor(ctx, key))
	assert.Zero(t, repo.count(key.OwnerID))
}

func TestStore_DeletedKeyStaysDeleted(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	key := journalKey(uuid.New())
	t0 := time.Now()

	require.NoError(t, store.UpsertAt(ctx, key, "first", t0))
	require.NoError(t, store.DeleteFor(ctx, key))
	require.NoError(t, store.UpsertAt(ctx, key, "late edit", t0.Add(time.Hour)))

	assert.Zero(t, repo.count(key.OwnerID))
}

func TestStore_AllForScopedToOwner(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, store.Upsert(ctx, journalKey(alice), "alice one"))
	require.NoError(t, store.Upsert(ctx, journalKey(alice), "alice two"))
	require.NoError(t, store.Upsert(ctx, journalKey(bob), "bob one"))

	recs, err := store.AllFor(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestStore_Apply(t *testing.T) {
	repo := newMemRepo()
	store := NewStore(repo, &letterEmbedder{})
	ctx := context.Background()
	key := journalKey(uuid.New())

	require.NoError(t, store.Apply(ctx, Job{Op: OpUpsert, Key: key, Text: "hello", RequestedAt: time.Now()}))
	assert.Equal(t, 1, repo.count(key.OwnerID))

	require.NoError(t, store.Apply(ctx, Job{Op: OpDelete, Key: key}))
	assert.Zero(t, repo.count(key.OwnerID))

	assert.ErrorIs(t, store.Apply(ctx, Job{Op: "merge", Key: key}), ErrUnknownOp)
}
