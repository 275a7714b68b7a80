package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
)

const (
	defaultModelsCacheTTL = 10 * time.Minute
	modelsCacheKey        = "models"
)

type modelCache struct {
	catalog ports.ModelCatalog
	cache   *expirable.LRU[string, []feedback.Model]
}

func newModelCache(catalog ports.ModelCatalog, ttl time.Duration) *modelCache {
	if ttl <= 0 {
		ttl = defaultModelsCacheTTL
	}
	return &modelCache{
		catalog: catalog,
		cache:   expirable.NewLRU[string, []feedback.Model](1, nil, ttl),
	}
}

func (c *modelCache) list(ctx context.Context) ([]feedback.Model, error) {
	if models, ok := c.cache.Get(modelsCacheKey); ok {
		return models, nil
	}
	if c.catalog == nil {
		return []feedback.Model{}, nil
	}
	models, err := c.catalog.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sorted := append([]feedback.Model(nil), models...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	c.cache.Add(modelsCacheKey, sorted)
	return sorted, nil
}

// ListModels returns the provider's models sorted by name, cached for the configured TTL.
func (s *Service) ListModels(ctx context.Context) ([]feedback.Model, error) {
	models, err := s.models.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// CurrentModel returns the selected model, falling back to the configured default.
func (s *Service) CurrentModel(ctx context.Context) string {
	value, err := s.settings.Get(ctx, feedback.SettingCurrentModel)
	if err != nil {
		if !errors.Is(err, feedback.ErrNotFound) {
			s.logger.Warn("Failed to read current model, using default: %v", err)
		}
		return s.config.DefaultModel
	}
	if value = strings.TrimSpace(value); value == "" {
		return s.config.DefaultModel
	}
	return value
}

// SetCurrentModel persists the model used for subsequent analyses.
func (s *Service) SetCurrentModel(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: model_name is required", feedback.ErrValidation)
	}
	if err := s.settings.Set(ctx, feedback.SettingCurrentModel, name); err != nil {
		return "", fmt.Errorf("save current model: %w", err)
	}
	s.logger.Info("Analysis model set to %s", name)
	return name, nil
}
