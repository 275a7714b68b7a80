package bootstrap

import (
	"context"
	"strings"

	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/delivery/server/app"
	"polyglot/internal/domain/feedback/ports"
	feedbackstore "polyglot/internal/infra/feedback"
	"polyglot/internal/infra/llm"
	"polyglot/internal/infra/observability"
	"polyglot/internal/infra/storage/postgres"
	"polyglot/internal/shared/config"
	"polyglot/internal/shared/logging"
)

// DefaultProducts seeds an empty catalog so the public form is usable immediately.
var DefaultProducts = []string{"General"}

// FeedbackDeps are the runtime collaborators of the feedback service.
type FeedbackDeps struct {
	DB          postgres.DB
	Broadcaster *app.EventBroadcaster
	Obs         *observability.Observability
	// Analyzer replaces the LLM client. Tests use it to avoid the network.
	Analyzer ports.Analyzer
	Catalog  ports.ModelCatalog
}

// BuildFeedbackService wires storage, the LLM client and event publishers.
func BuildFeedbackService(ctx context.Context, cfg config.Config, deps FeedbackDeps, logger logging.Logger) (*feedbackapp.Service, error) {
	logger = logging.OrNop(logger)

	var (
		records  ports.Repository
		products ports.ProductRepository
		settings ports.SettingsRepository
	)
	if deps.DB != nil {
		records = feedbackstore.NewPostgresStore(deps.DB)
		products = feedbackstore.NewPostgresProducts(deps.DB)
		settings = feedbackstore.NewPostgresSettings(deps.DB)
	} else {
		memory := feedbackstore.NewMemoryStore()
		records, products, settings = memory, memory.Products(), memory.Settings()
	}

	analyzer, catalog := deps.Analyzer, deps.Catalog
	if analyzer == nil {
		if strings.TrimSpace(cfg.LLM.APIKey) == "" {
			logger.Warn("llm.api_key not configured; analysis requests will fail")
		}
		client := llm.NewGeminiClient(llm.GeminiConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Timeout: cfg.LLM.Timeout,
		}, logger)
		analyzer = llm.NewRetryAnalyzer(client, llm.RetryConfig{
			MaxRetries: uint64(max(cfg.LLM.MaxRetries, 0)),
		}, logger)
		if catalog == nil {
			catalog = client
		}
	}
	var publishers []ports.EventPublisher
	if deps.Broadcaster != nil {
		publishers = append(publishers, deps.Broadcaster)
	}
	if deps.Obs != nil {
		analyzer = observability.NewInstrumentedAnalyzer(analyzer, deps.Obs.Tracer, deps.Obs.Metrics)
		if deps.Obs.Metrics != nil {
			publishers = append(publishers, deps.Obs.Metrics)
		}
	}
	publisher := app.NewMultiPublisher(publishers...)

	service := feedbackapp.NewService(feedbackapp.Deps{
		Records:   records,
		Products:  products,
		Settings:  settings,
		Analyzer:  analyzer,
		Catalog:   catalog,
		Publisher: publisher,
	}, feedbackapp.Config{
		DefaultModel:   cfg.LLM.Model,
		ModelsCacheTTL: cfg.LLM.ModelsCacheTTL,
	})
	if err := service.EnsureProducts(ctx, DefaultProducts); err != nil {
		return nil, err
	}
	return service, nil
}
