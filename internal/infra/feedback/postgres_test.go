package feedback

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyglot/internal/domain/feedback"
)

var recordColumnNames = []string{"id", "original_text", "translated_text", "sentiment", "product", "language", "idempotency_key", "created_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to build pgx mock: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresStoreCreate(t *testing.T) {
	pool := newMockPool(t)
	now := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)
	pool.ExpectQuery("INSERT INTO feedback").
		WithArgs("Bonjour!", pgxmock.AnyArg(), "positive", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), now).
		WillReturnRows(pgxmock.NewRows(recordColumnNames).AddRow(int64(7), "Bonjour!", "Hello!", "positive", "General", "fr", "key-1", now))

	store := NewPostgresStore(pool)
	record, created, err := store.Create(context.Background(), feedback.Record{
		OriginalText: "Bonjour!", TranslatedText: "Hello!", Sentiment: feedback.SentimentPositive,
		Product: "General", Language: "fr", IdempotencyKey: "key-1", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), record.ID)
	assert.Equal(t, feedback.SentimentPositive, record.Sentiment)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresStoreCreateReplayReturnsExisting(t *testing.T) {
	pool := newMockPool(t)
	now := time.Now().UTC()
	pool.ExpectQuery("INSERT INTO feedback").WillReturnError(pgx.ErrNoRows)
	pool.ExpectQuery("WHERE idempotency_key = ").WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows(recordColumnNames).AddRow(int64(3), "Hola", "Hello", "neutral", "", "es", "key-1", now))

	record, created, err := NewPostgresStore(pool).Create(context.Background(), feedback.Record{
		OriginalText: "Hola", Sentiment: feedback.SentimentNeutral, IdempotencyKey: "key-1", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(3), record.ID)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresStoreListBuildsFilter(t *testing.T) {
	pool := newMockPool(t)
	now := time.Now().UTC()
	pool.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM feedback WHERE (product IS NULL OR product = '') AND sentiment = $1")).
		WithArgs("negative").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	pool.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs("negative", 5, 10).
		WillReturnRows(pgxmock.NewRows(recordColumnNames).AddRow(int64(1), "Nein", "No", "negative", "", "de", "", now))

	items, total, err := NewPostgresStore(pool).List(context.Background(),
		feedback.Filter{Product: feedback.UnspecifiedProduct, Sentiment: feedback.SentimentNegative},
		feedback.Page{Skip: 10, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Nein", items[0].OriginalText)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresStoreDeleteNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("DELETE FROM feedback WHERE id").WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewPostgresStore(pool).Delete(context.Background(), 9)
	assert.ErrorIs(t, err, feedback.ErrNotFound)
}

func TestPostgresStoreDeleteManyAndCounts(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("DELETE FROM feedback WHERE id = ANY($1) RETURNING id")).
		WithArgs([]int64{1, 2, 3}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))
	pool.ExpectQuery(regexp.QuoteMeta("SELECT sentiment, count(*) FROM feedback WHERE language = $1 GROUP BY sentiment")).
		WithArgs("fr").
		WillReturnRows(pgxmock.NewRows([]string{"sentiment", "count"}).AddRow("positive", 2).AddRow("negative", 1))

	store := NewPostgresStore(pool)
	deleted, err := store.DeleteMany(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, deleted)

	counts, err := store.CountBySentiment(context.Background(), feedback.Filter{Language: "fr"})
	require.NoError(t, err)
	assert.Equal(t, map[feedback.Sentiment]int{feedback.SentimentPositive: 2, feedback.SentimentNegative: 1}, counts)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresSettingsMissingKey(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("SELECT value FROM settings").WithArgs("llm_model").WillReturnError(pgx.ErrNoRows)

	_, err := NewPostgresSettings(pool).Get(context.Background(), "llm_model")
	assert.ErrorIs(t, err, feedback.ErrNotFound)
}
