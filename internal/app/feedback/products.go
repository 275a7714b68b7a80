package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"polyglot/internal/domain/feedback"
)

// ListProducts returns the catalog sorted by name.
func (s *Service) ListProducts(ctx context.Context) ([]feedback.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []feedback.Product{}
	}
	return products, nil
}

// CreateProduct adds a product. Duplicate names fail with ErrConflict.
func (s *Service) CreateProduct(ctx context.Context, name string) (feedback.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return feedback.Product{}, fmt.Errorf("%w: product name is required", feedback.ErrValidation)
	}
	if name == feedback.UnspecifiedProduct {
		return feedback.Product{}, fmt.Errorf("%w: %q is reserved", feedback.ErrValidation, name)
	}
	return s.products.Create(ctx, name)
}

// DeleteProduct removes a product. Existing feedback keeps its product name.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

// EnsureProducts seeds the catalog when it is empty.
func (s *Service) EnsureProducts(ctx context.Context, names []string) error {
	existing, err := s.products.List(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, name := range names {
		if _, err := s.CreateProduct(ctx, name); err != nil && !errors.Is(err, feedback.ErrConflict) {
			return err
		}
	}
	return nil
}
