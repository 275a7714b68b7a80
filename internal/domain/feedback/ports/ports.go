package ports

import (
	"context"

	"polyglot/internal/domain/feedback"
)

// Repository persists feedback records.
type Repository interface {
	// Create inserts record. When record.IdempotencyKey matches an existing row the
	// existing row is returned with created=false.
	Create(ctx context.Context, record feedback.Record) (stored feedback.Record, created bool, err error)
	FindByIdempotencyKey(ctx context.Context, key string) (feedback.Record, error)
	List(ctx context.Context, filter feedback.Filter, page feedback.Page) ([]feedback.Record, int, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) ([]int64, error)
	DeleteMatching(ctx context.Context, filter feedback.Filter) (int64, error)
	CountBySentiment(ctx context.Context, filter feedback.Filter) (map[feedback.Sentiment]int, error)
}

// ProductRepository persists the product catalog.
type ProductRepository interface {
	List(ctx context.Context) ([]feedback.Product, error)
	Create(ctx context.Context, name string) (feedback.Product, error)
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, name string) (bool, error)
}

// SettingsRepository is a key/value store. Get returns feedback.ErrNotFound for unset keys.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Analyzer detects language, translates to English and classifies sentiment.
type Analyzer interface {
	Analyze(ctx context.Context, model, text string) (feedback.Analysis, error)
}

// ModelCatalog lists the models available for analysis.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]feedback.Model, error)
}

// EventPublisher receives events after successful writes. Publish must not block.
type EventPublisher interface {
	Publish(event feedback.Event)
}
