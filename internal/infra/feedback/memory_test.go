package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyglot/internal/domain/feedback"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []feedback.Record{
		{OriginalText: "Bonjour", Sentiment: feedback.SentimentPositive, Product: "General", Language: "fr"},
		{OriginalText: "Hola", Sentiment: feedback.SentimentNegative, Product: "App", Language: "es"},
		{OriginalText: "Hallo", Sentiment: feedback.SentimentPositive, Language: "de"},
		{OriginalText: "Ciao", Sentiment: feedback.SentimentNeutral, Product: "General", Language: "it"},
	}
	for i, row := range rows {
		row.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, created, err := store.Create(ctx, row)
		require.NoError(t, err)
		require.True(t, created)
	}
	return store
}

func TestMemoryStoreListNewestFirstWithFilters(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	items, total, err := store.List(ctx, feedback.Filter{}, feedback.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Ciao", items[0].OriginalText)
	assert.Equal(t, "Hallo", items[1].OriginalText)

	items, total, err = store.List(ctx, feedback.Filter{Product: feedback.UnspecifiedProduct}, feedback.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Hallo", items[0].OriginalText)

	_, total, err = store.List(ctx, feedback.Filter{Product: "General", Sentiment: feedback.SentimentPositive}, feedback.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	items, total, err = store.List(ctx, feedback.Filter{}, feedback.Page{Skip: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, items)
}

func TestMemoryStoreIdempotencyKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first, created, err := store.Create(ctx, feedback.Record{OriginalText: "a", Sentiment: feedback.SentimentNeutral, IdempotencyKey: "k1"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.Create(ctx, feedback.Record{OriginalText: "b", Sentiment: feedback.SentimentNeutral, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	found, err := store.FindByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = store.FindByIdempotencyKey(ctx, "missing")
	assert.True(t, errors.Is(err, feedback.ErrNotFound))
}

func TestMemoryStoreDeletes(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, 1))
	assert.ErrorIs(t, store.Delete(ctx, 1), feedback.ErrNotFound)

	deleted, err := store.DeleteMany(ctx, []int64{2, 99})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, deleted)

	count, err := store.DeleteMatching(ctx, feedback.Filter{Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	counts, err := store.CountBySentiment(ctx, feedback.Filter{})
	require.NoError(t, err)
	assert.Equal(t, map[feedback.Sentiment]int{feedback.SentimentNeutral: 1}, counts)
}

func TestMemoryProductsAndSettings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	products := store.Products()

	created, err := products.Create(ctx, "General")
	require.NoError(t, err)
	_, err = products.Create(ctx, "General")
	assert.ErrorIs(t, err, feedback.ErrConflict)
	_, err = products.Create(ctx, "App")
	require.NoError(t, err)

	list, err := products.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "App", list[0].Name)

	exists, err := products.Exists(ctx, "General")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, products.Delete(ctx, created.ID))
	assert.ErrorIs(t, products.Delete(ctx, created.ID), feedback.ErrNotFound)

	settings := store.Settings()
	_, err = settings.Get(ctx, feedback.SettingCurrentModel)
	assert.ErrorIs(t, err, feedback.ErrNotFound)
	require.NoError(t, settings.Set(ctx, feedback.SettingCurrentModel, "models/x"))
	value, err := settings.Get(ctx, feedback.SettingCurrentModel)
	require.NoError(t, err)
	assert.Equal(t, "models/x", value)
}
