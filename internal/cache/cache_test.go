package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
	"flashnotes/internal/infra/memory"
)

func sampleNotes() []domain.Note {
	return []domain.Note{
		{ID: "n1", OwnerID: "alice", Title: "Quiz1", Question: "2+2?", Answer: "4"},
		{ID: "n2", OwnerID: "alice", Title: "Quiz2", Question: "3+3?", Answer: "6", MissCount: 2},
	}
}

func TestCacheReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	c := cache.New(store)

	notes, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, c.Replace(ctx, sampleNotes()))
	require.NoError(t, c.Replace(ctx, sampleNotes()[:1]))

	notes, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleNotes()[:1], notes, "replace must overwrite, not merge")

	raw, ok, _ := store.Get(ctx, cache.DefaultKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"title":"Quiz1"`)
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	c := cache.New(store)
	require.NoError(t, c.Replace(ctx, sampleNotes()))

	require.NoError(t, c.Clear(ctx))

	_, ok, _ := store.Get(ctx, cache.DefaultKey)
	assert.False(t, ok)
}

func TestCacheBumpMissCount(t *testing.T) {
	ctx := context.Background()
	c := cache.New(memory.NewKVStore())
	require.NoError(t, c.Replace(ctx, sampleNotes()))

	found, err := c.BumpMissCount(ctx, "n2")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = c.BumpMissCount(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	notes, _ := c.Load(ctx)
	assert.Equal(t, 3, notes[1].MissCount)
	assert.Equal(t, 0, notes[0].MissCount)
}

func TestCacheSelfHealsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewKVStore()
	require.NoError(t, store.Set(ctx, cache.DefaultKey, "{not json"))

	notes, err := cache.New(store).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCacheSubscribeObservesOtherWriters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := memory.NewKVStore()
	reader := cache.New(store)
	writer := cache.New(store)

	updates, err := reader.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Replace(ctx, sampleNotes()))
	select {
	case notes := <-updates:
		assert.Len(t, notes, 2)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cache update")
	}

	require.NoError(t, writer.Clear(ctx))
	select {
	case notes := <-updates:
		assert.Empty(t, notes)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cache removal")
	}
}
