package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
	"polyglot/internal/shared/logging"
)

// Config tunes the Service.
type Config struct {
	DefaultModel   string
	ModelsCacheTTL time.Duration
}

// Service implements feedback analysis, storage and the dashboard queries.
type Service struct {
	records   ports.Repository
	products  ports.ProductRepository
	settings  ports.SettingsRepository
	analyzer  ports.Analyzer
	publisher ports.EventPublisher
	models    *modelCache
	config    Config
	now       func() time.Time
	logger    logging.Logger
}

// Deps groups the Service collaborators. Catalog and Publisher are optional.
type Deps struct {
	Records   ports.Repository
	Products  ports.ProductRepository
	Settings  ports.SettingsRepository
	Analyzer  ports.Analyzer
	Catalog   ports.ModelCatalog
	Publisher ports.EventPublisher
}

// NewService wires the feedback service.
func NewService(deps Deps, cfg Config) *Service {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		records:   deps.Records,
		products:  deps.Products,
		settings:  deps.Settings,
		analyzer:  deps.Analyzer,
		publisher: publisher,
		models:    newModelCache(deps.Catalog, cfg.ModelsCacheTTL),
		config:    cfg,
		now:       time.Now,
		logger:    logging.NewComponentLogger("FeedbackService"),
	}
}

// WithNow overrides the clock. Intended for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Analyze runs the analyzer with the currently selected model.
func (s *Service) Analyze(ctx context.Context, text string) (feedback.Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return feedback.Analysis{}, fmt.Errorf("%w: text is required", feedback.ErrValidation)
	}
	model := s.CurrentModel(ctx)
	analysis, err := s.analyzer.Analyze(ctx, model, text)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return feedback.Analysis{}, err
		}
		if errors.Is(err, feedback.ErrAnalysisFailed) {
			return feedback.Analysis{}, err
		}
		return feedback.Analysis{}, fmt.Errorf("%w: %v", feedback.ErrAnalysisFailed, err)
	}
	return analysis, nil
}

// SubmitRequest is a save request. Analysis fields are optional; when TranslatedText
// or Sentiment is missing the text is analyzed first.
type SubmitRequest struct {
	Text           string
	Product        string
	Language       string
	TranslatedText string
	Sentiment      string
	IdempotencyKey string
}

// Submit persists a feedback record. A repeated IdempotencyKey returns the record
// stored by the first call with created=false.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (feedback.Record, bool, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return feedback.Record{}, false, fmt.Errorf("%w: text is required", feedback.ErrValidation)
	}
	product := strings.TrimSpace(req.Product)
	if product != "" {
		exists, err := s.products.Exists(ctx, product)
		if err != nil {
			return feedback.Record{}, false, fmt.Errorf("check product: %w", err)
		}
		if !exists {
			return feedback.Record{}, false, fmt.Errorf("%w: %s", feedback.ErrUnknownProduct, product)
		}
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := s.records.FindByIdempotencyKey(ctx, key)
		if err == nil {
			s.logger.Debug("Replayed submission %s returns record %d", key, existing.ID)
			return existing, false, nil
		}
		if !errors.Is(err, feedback.ErrNotFound) {
			return feedback.Record{}, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	analysis := feedback.Analysis{
		Language:       strings.TrimSpace(req.Language),
		TranslatedText: strings.TrimSpace(req.TranslatedText),
	}
	if analysis.TranslatedText == "" || strings.TrimSpace(req.Sentiment) == "" {
		analyzed, err := s.Analyze(ctx, text)
		if err != nil {
			return feedback.Record{}, false, err
		}
		analysis = analyzed
	} else {
		sentiment, err := feedback.ParseSentiment(req.Sentiment)
		if err != nil {
			return feedback.Record{}, false, err
		}
		analysis.Sentiment = sentiment
	}

	stored, created, err := s.records.Create(ctx, feedback.Record{
		OriginalText:   text,
		TranslatedText: analysis.TranslatedText,
		Sentiment:      analysis.Sentiment,
		Product:        product,
		Language:       analysis.Language,
		IdempotencyKey: key,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return feedback.Record{}, false, fmt.Errorf("store feedback: %w", err)
	}
	if created {
		record := stored
		s.publisher.Publish(feedback.Event{Type: feedback.EventCreated, Record: &record, At: s.now().UTC()})
	}
	return stored, created, nil
}

// List returns one page of records, newest first, and the filtered total.
func (s *Service) List(ctx context.Context, filter feedback.Filter, page feedback.Page) (feedback.ListResult, error) {
	page, err := page.Normalize()
	if err != nil {
		return feedback.ListResult{}, err
	}
	filter, err = normalizeFilter(filter)
	if err != nil {
		return feedback.ListResult{}, err
	}
	items, total, err := s.records.List(ctx, filter, page)
	if err != nil {
		return feedback.ListResult{}, fmt.Errorf("list feedback: %w", err)
	}
	if items == nil {
		items = []feedback.Record{}
	}
	return feedback.ListResult{Total: total, Items: items, Skip: page.Skip, Limit: page.Limit}, nil
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish(feedback.Event{Type: feedback.EventDeleted, IDs: []int64{id}, Count: 1, At: s.now().UTC()})
	return nil
}

// BulkDelete removes the listed records and returns the ids that existed.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids must not be empty", feedback.ErrValidation)
	}
	deleted, err := s.records.DeleteMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete feedback: %w", err)
	}
	if deleted == nil {
		deleted = []int64{}
	}
	if len(deleted) > 0 {
		s.publisher.Publish(feedback.Event{Type: feedback.EventDeleted, IDs: deleted, Count: int64(len(deleted)), At: s.now().UTC()})
	}
	return deleted, nil
}

// DeleteMatching removes every record matching filter.
func (s *Service) DeleteMatching(ctx context.Context, filter feedback.Filter) (int64, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}
	count, err := s.records.DeleteMatching(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete feedback: %w", err)
	}
	if count > 0 {
		s.publisher.Publish(feedback.Event{Type: feedback.EventDeleted, Count: count, At: s.now().UTC()})
	}
	return count, nil
}

// Stats counts records per sentiment.
func (s *Service) Stats(ctx context.Context, filter feedback.Filter) (feedback.Stats, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return feedback.Stats{}, err
	}
	counts, err := s.records.CountBySentiment(ctx, filter)
	if err != nil {
		return feedback.Stats{}, fmt.Errorf("count feedback: %w", err)
	}
	return buildStats(counts), nil
}

func buildStats(counts map[feedback.Sentiment]int) feedback.Stats {
	stats := feedback.Stats{
		Counts:      map[feedback.Sentiment]int{},
		Percentages: map[feedback.Sentiment]float64{},
	}
	for sentiment, n := range counts {
		if n <= 0 {
			continue
		}
		stats.Counts[sentiment] = n
		stats.Total += n
	}
	for sentiment, n := range stats.Counts {
		stats.Percentages[sentiment] = math.Round(float64(n)*10000/float64(stats.Total)) / 100
	}
	return stats
}

func normalizeFilter(filter feedback.Filter) (feedback.Filter, error) {
	filter.Product = strings.TrimSpace(filter.Product)
	filter.Language = strings.TrimSpace(filter.Language)
	if filter.Sentiment != "" {
		sentiment, err := feedback.ParseSentiment(string(filter.Sentiment))
		if err != nil {
			return filter, err
		}
		filter.Sentiment = sentiment
	}
	return filter, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(feedback.Event) {}
