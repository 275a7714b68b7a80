package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
	"polyglot/internal/infra/storage/postgres"
)

const recordColumns = `id, original_text, COALESCE(translated_text, ''), sentiment, COALESCE(product, ''), COALESCE(language, ''), COALESCE(idempotency_key, ''), created_at`

// PostgresStore persists feedback in the feedback table.
type PostgresStore struct {
	db postgres.DB
}

// NewPostgresStore builds a store on the given pool.
func NewPostgresStore(db postgres.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record feedback.Record) (feedback.Record, bool, error) {
	query := `
INSERT INTO feedback (original_text, translated_text, sentiment, product, language, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + recordColumns
	stored, err := scanRecord(s.db.QueryRow(ctx, query,
		record.OriginalText,
		nullable(record.TranslatedText),
		string(record.Sentiment),
		nullable(record.Product),
		nullable(record.Language),
		nullable(record.IdempotencyKey),
		record.CreatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) && record.IdempotencyKey != "" {
		existing, findErr := s.FindByIdempotencyKey(ctx, record.IdempotencyKey)
		if findErr != nil {
			return feedback.Record{}, false, findErr
		}
		return existing, false, nil
	}
	return feedback.Record{}, false, fmt.Errorf("insert feedback: %w", err)
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, key string) (feedback.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM feedback WHERE idempotency_key = $1`
	record, err := scanRecord(s.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return feedback.Record{}, feedback.ErrNotFound
		}
		return feedback.Record{}, fmt.Errorf("select feedback: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) List(ctx context.Context, filter feedback.Filter, page feedback.Page) ([]feedback.Record, int, error) {
	where, args := whereClause(filter)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM feedback`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM feedback%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, query, append(args, page.Limit, page.Skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]feedback.Record, 0, page.Limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMany(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `DELETE FROM feedback WHERE id = ANY($1) RETURNING id`, ids)
	if err != nil {
		return nil, fmt.Errorf("delete feedback: %w", err)
	}
	defer rows.Close()
	deleted := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func (s *PostgresStore) DeleteMatching(ctx context.Context, filter feedback.Filter) (int64, error) {
	where, args := whereClause(filter)
	tag, err := s.db.Exec(ctx, `DELETE FROM feedback`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete feedback: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountBySentiment(ctx context.Context, filter feedback.Filter) (map[feedback.Sentiment]int, error) {
	where, args := whereClause(filter)
	rows, err := s.db.Query(ctx, `SELECT sentiment, count(*) FROM feedback`+where+` GROUP BY sentiment`, args...)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	defer rows.Close()
	counts := map[feedback.Sentiment]int{}
	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[feedback.Sentiment(sentiment)] = n
	}
	return counts, rows.Err()
}

func whereClause(filter feedback.Filter) (string, []any) {
	var conds []string
	var args []any
	switch filter.Product {
	case "":
	case feedback.UnspecifiedProduct:
		conds = append(conds, "(product IS NULL OR product = '')")
	default:
		args = append(args, filter.Product)
		conds = append(conds, fmt.Sprintf("product = $%d", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		conds = append(conds, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.Sentiment != "" {
		args = append(args, string(filter.Sentiment))
		conds = append(conds, fmt.Sprintf("sentiment = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (feedback.Record, error) {
	var record feedback.Record
	var sentiment string
	err := row.Scan(
		&record.ID,
		&record.OriginalText,
		&record.TranslatedText,
		&sentiment,
		&record.Product,
		&record.Language,
		&record.IdempotencyKey,
		&record.CreatedAt,
	)
	record.Sentiment = feedback.Sentiment(sentiment)
	return record, err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// PostgresProducts persists the product catalog.
type PostgresProducts struct {
	db postgres.DB
}

// NewPostgresProducts builds a product repository on the given pool.
func NewPostgresProducts(db postgres.DB) *PostgresProducts {
	return &PostgresProducts{db: db}
}

func (p *PostgresProducts) List(ctx context.Context) ([]feedback.Product, error) {
	rows, err := p.db.Query(ctx, `SELECT id, name, created_at FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var products []feedback.Product
	for rows.Next() {
		var product feedback.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (p *PostgresProducts) Create(ctx context.Context, name string) (feedback.Product, error) {
	var product feedback.Product
	err := p.db.QueryRow(ctx, `INSERT INTO products (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&product.ID, &product.Name, &product.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return feedback.Product{}, fmt.Errorf("%w: product %s", feedback.ErrConflict, name)
		}
		return feedback.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (p *PostgresProducts) Delete(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

func (p *PostgresProducts) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product: %w", err)
	}
	return exists, nil
}

// PostgresSettings is a key/value table.
type PostgresSettings struct {
	db postgres.DB
}

// NewPostgresSettings builds a settings repository on the given pool.
func NewPostgresSettings(db postgres.DB) *PostgresSettings {
	return &PostgresSettings{db: db}
}

func (s *PostgresSettings) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", feedback.ErrNotFound
		}
		return "", fmt.Errorf("select setting: %w", err)
	}
	return value, nil
}

func (s *PostgresSettings) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

var (
	_ ports.Repository         = (*PostgresStore)(nil)
	_ ports.ProductRepository  = (*PostgresProducts)(nil)
	_ ports.SettingsRepository = (*PostgresSettings)(nil)
)
