package feedback_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/domain/feedback"
	infra "polyglot/internal/infra/feedback"
)

type stubAnalyzer struct {
	mu     sync.Mutex
	calls  int
	models []string
	result feedback.Analysis
	err    error
}

func (a *stubAnalyzer) Analyze(_ context.Context, model, _ string) (feedback.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.models = append(a.models, model)
	return a.result, a.err
}

type stubCatalog struct {
	calls  int
	models []feedback.Model
}

func (c *stubCatalog) ListModels(context.Context) ([]feedback.Model, error) {
	c.calls++
	return c.models, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []feedback.Event
}

func (p *recordingPublisher) Publish(event feedback.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type fixture struct {
	service   *feedbackapp.Service
	analyzer  *stubAnalyzer
	catalog   *stubCatalog
	publisher *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := infra.NewMemoryStore()
	analyzer := &stubAnalyzer{result: feedback.Analysis{Language: "fr", TranslatedText: "Hello!", Sentiment: feedback.SentimentPositive}}
	catalog := &stubCatalog{models: []feedback.Model{{Name: "models/b"}, {Name: "models/a"}}}
	publisher := &recordingPublisher{}
	service := feedbackapp.NewService(feedbackapp.Deps{
		Records:   store,
		Products:  store.Products(),
		Settings:  store.Settings(),
		Analyzer:  analyzer,
		Catalog:   catalog,
		Publisher: publisher,
	}, feedbackapp.Config{DefaultModel: "models/default"})
	require.NoError(t, service.EnsureProducts(context.Background(), []string{"General", "App"}))
	return fixture{service: service, analyzer: analyzer, catalog: catalog, publisher: publisher}
}

func TestSubmitWithPrecomputedAnalysisSkipsAnalyzer(t *testing.T) {
	f := newFixture(t)
	record, created, err := f.service.Submit(context.Background(), feedbackapp.SubmitRequest{
		Text: " Bonjour! ", Product: "General", Language: "fr", TranslatedText: "Hello!", Sentiment: "Positive.",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Bonjour!", record.OriginalText)
	assert.Equal(t, feedback.SentimentPositive, record.Sentiment)
	assert.Zero(t, f.analyzer.calls)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, feedback.EventCreated, f.publisher.events[0].Type)
	assert.Equal(t, record.ID, f.publisher.events[0].Record.ID)
}

func TestSubmitAnalyzesWhenFieldsMissing(t *testing.T) {
	f := newFixture(t)
	record, _, err := f.service.Submit(context.Background(), feedbackapp.SubmitRequest{Text: "Bonjour!"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, []string{"models/default"}, f.analyzer.models)
	assert.Equal(t, "Hello!", record.TranslatedText)
	assert.Empty(t, record.Product)
}

func TestSubmitUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.service.Submit(context.Background(), feedbackapp.SubmitRequest{Text: "hi", Product: "Toaster"})
	require.ErrorIs(t, err, feedback.ErrUnknownProduct)
	assert.Contains(t, err.Error(), "Toaster")
	assert.Zero(t, f.analyzer.calls)
}

func TestSubmitIdempotencyKeyDeduplicates(t *testing.T) {
	f := newFixture(t)
	req := feedbackapp.SubmitRequest{Text: "Hola", Product: "App", Language: "es", TranslatedText: "Hello", Sentiment: "neutral", IdempotencyKey: "0190-key"}
	first, created, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.publisher.events, 1)
}

func TestAnalyzeWrapsFailures(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = errors.New("quota exhausted")
	_, err := f.service.Analyze(context.Background(), "text")
	require.ErrorIs(t, err, feedback.ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "quota exhausted")

	_, err = f.service.Analyze(context.Background(), "   ")
	require.ErrorIs(t, err, feedback.ErrValidation)
}

func TestListValidatesPaging(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.List(context.Background(), feedback.Filter{}, feedback.Page{Limit: 1001})
	require.ErrorIs(t, err, feedback.ErrValidation)
	_, err = f.service.List(context.Background(), feedback.Filter{}, feedback.Page{Skip: -1})
	require.ErrorIs(t, err, feedback.ErrValidation)

	result, err := f.service.List(context.Background(), feedback.Filter{}, feedback.Page{})
	require.NoError(t, err)
	assert.Equal(t, feedback.DefaultPageLimit, result.Limit)
	assert.NotNil(t, result.Items)
}

func TestStatsPercentages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, sentiment := range []string{"positive", "positive", "negative", "neutral"} {
		_, _, err := f.service.Submit(ctx, feedbackapp.SubmitRequest{Text: "x", TranslatedText: "x", Sentiment: sentiment})
		require.NoError(t, err)
	}
	stats, err := f.service.Stats(ctx, feedback.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Counts[feedback.SentimentPositive])
	assert.InDelta(t, 50.0, stats.Percentages[feedback.SentimentPositive], 1e-9)
	assert.InDelta(t, 25.0, stats.Percentages[feedback.SentimentNegative], 1e-9)

	empty, err := f.service.Stats(ctx, feedback.Filter{Language: "jp"})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Counts)
}

func TestDeletesPublishEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		record, _, err := f.service.Submit(ctx, feedbackapp.SubmitRequest{Text: "x", TranslatedText: "x", Sentiment: "neutral"})
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}
	require.NoError(t, f.service.Delete(ctx, ids[0]))
	require.ErrorIs(t, f.service.Delete(ctx, ids[0]), feedback.ErrNotFound)

	deleted, err := f.service.BulkDelete(ctx, []int64{ids[1], 999})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, deleted)

	_, err = f.service.BulkDelete(ctx, nil)
	require.ErrorIs(t, err, feedback.ErrValidation)

	count, err := f.service.DeleteMatching(ctx, feedback.Filter{Sentiment: "NEUTRAL"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, feedback.EventDeleted, last.Type)
	assert.Equal(t, int64(1), last.Count)
}

func TestModelsAreCachedAndSorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	models, err := f.service.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "models/a", models[0].Name)
	_, err = f.service.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalog.calls)
}

func TestCurrentModelSetting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, "models/default", f.service.CurrentModel(ctx))

	_, err := f.service.SetCurrentModel(ctx, " ")
	require.ErrorIs(t, err, feedback.ErrValidation)

	name, err := f.service.SetCurrentModel(ctx, "models/gemini-pro")
	require.NoError(t, err)
	assert.Equal(t, "models/gemini-pro", name)
	assert.Equal(t, "models/gemini-pro", f.service.CurrentModel(ctx))

	_, err = f.service.Analyze(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"models/gemini-pro"}, f.analyzer.models)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.CreateProduct(ctx, "General")
	require.ErrorIs(t, err, feedback.ErrConflict)
	_, err = f.service.CreateProduct(ctx, feedback.UnspecifiedProduct)
	require.ErrorIs(t, err, feedback.ErrValidation)

	products, err := f.service.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.NoError(t, f.service.DeleteProduct(ctx, products[0].ID))
	require.ErrorIs(t, f.service.DeleteProduct(ctx, products[0].ID), feedback.ErrNotFound)
}
