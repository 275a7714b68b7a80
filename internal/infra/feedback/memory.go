package feedback

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
)

// MemoryStore keeps records, products and settings in maps. Used when no
// database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[int64]feedback.Record
	keys       map[string]int64
	nextID     int64
	products   map[int64]feedback.Product
	nextProdID int64
	settings   map[string]string
	now        func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  map[int64]feedback.Record{},
		keys:     map[string]int64{},
		products: map[int64]feedback.Product{},
		settings: map[string]string{},
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, record feedback.Record) (feedback.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.IdempotencyKey != "" {
		if id, ok := s.keys[record.IdempotencyKey]; ok {
			return s.records[id], false, nil
		}
	}
	s.nextID++
	record.ID = s.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	s.records[record.ID] = record
	if record.IdempotencyKey != "" {
		s.keys[record.IdempotencyKey] = record.ID
	}
	return record, true, nil
}

func (s *MemoryStore) FindByIdempotencyKey(_ context.Context, key string) (feedback.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.keys[key]; ok {
		return s.records[id], nil
	}
	return feedback.Record{}, feedback.ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, filter feedback.Filter, page feedback.Page) ([]feedback.Record, int, error) {
	s.mu.RLock()
	matched := s.matching(filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if page.Skip >= total {
		return []feedback.Record{}, total, nil
	}
	end := page.Skip + page.Limit
	if end > total {
		end = total
	}
	return matched[page.Skip:end], total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLocked(id) {
		return feedback.ErrNotFound
	}
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if s.removeLocked(id) {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, filter feedback.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, record := range s.matching(filter) {
		if s.removeLocked(record.ID) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountBySentiment(_ context.Context, filter feedback.Filter) (map[feedback.Sentiment]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[feedback.Sentiment]int{}
	for _, record := range s.matching(filter) {
		counts[record.Sentiment]++
	}
	return counts, nil
}

// matching must be called with mu held.
func (s *MemoryStore) matching(filter feedback.Filter) []feedback.Record {
	out := make([]feedback.Record, 0, len(s.records))
	for _, record := range s.records {
		if matches(record, filter) {
			out = append(out, record)
		}
	}
	return out
}

func (s *MemoryStore) removeLocked(id int64) bool {
	record, ok := s.records[id]
	if !ok {
		return false
	}
	delete(s.records, id)
	if record.IdempotencyKey != "" {
		delete(s.keys, record.IdempotencyKey)
	}
	return true
}

func matches(record feedback.Record, filter feedback.Filter) bool {
	switch filter.Product {
	case "":
	case feedback.UnspecifiedProduct:
		if strings.TrimSpace(record.Product) != "" {
			return false
		}
	default:
		if record.Product != filter.Product {
			return false
		}
	}
	if filter.Language != "" && record.Language != filter.Language {
		return false
	}
	if filter.Sentiment != "" && record.Sentiment != filter.Sentiment {
		return false
	}
	return true
}

// MemoryProducts exposes the product half of a MemoryStore.
type MemoryProducts struct{ *MemoryStore }

// Products returns the ProductRepository view of the store.
func (s *MemoryStore) Products() MemoryProducts { return MemoryProducts{s} }

func (p MemoryProducts) List(context.Context) ([]feedback.Product, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]feedback.Product, 0, len(p.products))
	for _, product := range p.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p MemoryProducts) Create(_ context.Context, name string) (feedback.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, product := range p.products {
		if product.Name == name {
			return feedback.Product{}, feedback.ErrConflict
		}
	}
	p.nextProdID++
	product := feedback.Product{ID: p.nextProdID, Name: name, CreatedAt: p.now().UTC()}
	p.products[product.ID] = product
	return product, nil
}

func (p MemoryProducts) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.products[id]; !ok {
		return feedback.ErrNotFound
	}
	delete(p.products, id)
	return nil
}

func (p MemoryProducts) Exists(_ context.Context, name string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, product := range p.products {
		if product.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// MemorySettings exposes the settings half of a MemoryStore.
type MemorySettings struct{ *MemoryStore }

// Settings returns the SettingsRepository view of the store.
func (s *MemoryStore) Settings() MemorySettings { return MemorySettings{s} }

func (m MemorySettings) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if value, ok := m.settings[key]; ok {
		return value, nil
	}
	return "", feedback.ErrNotFound
}

func (m MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

var (
	_ ports.Repository         = (*MemoryStore)(nil)
	_ ports.ProductRepository  = MemoryProducts{}
	_ ports.SettingsRepository = MemorySettings{}
)
