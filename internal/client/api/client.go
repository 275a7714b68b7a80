package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"polyglot/internal/client/events"
	"polyglot/internal/client/session"
	"polyglot/internal/domain/auth"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/infra/httpclient"
	jsonx "polyglot/internal/shared/json"
	"polyglot/internal/shared/logging"
)

const (
	DefaultTimeout       = 60 * time.Second
	maxResponseBodyBytes = 16 << 20
)

// Client calls the polyglot HTTP API through an AuthTransport.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	store     session.Store
	publisher events.Publisher
	logger    logging.Logger
}

type clientOptions struct {
	timeout time.Duration
	base    http.RoundTripper
}

// Option customizes NewClient.
type Option func(*clientOptions)

// WithTimeout bounds every request. Zero disables the client-side limit.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) { o.timeout = timeout }
}

// WithTransport replaces the underlying round tripper; tests use it to reach an
// httptest server without a network stack.
func WithTransport(base http.RoundTripper) Option {
	return func(o *clientOptions) { o.base = base }
}

// NewClient builds a client for baseURL. publisher may be nil.
func NewClient(baseURL string, store session.Store, publisher events.Publisher, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %q", baseURL)
	}
	if store == nil {
		store = session.NewMemoryStore()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	options := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	logger := logging.NewComponentLogger("APIClient")
	httpClient := httpclient.New(options.timeout, logger)
	base := options.base
	if base == nil {
		base = httpClient.Transport
	}
	httpClient.Transport = NewAuthTransport(base, store, publisher)
	if options.timeout == 0 {
		httpClient.Timeout = 0
	}

	return &Client{
		baseURL:   parsed,
		http:      httpClient,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// LoginResult is the issued session token.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ExpiresIn   int64     `json:"expires_in"`
}

// Me describes the authenticated principal.
type Me struct {
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaveRequest carries an already analyzed submission.
type SaveRequest struct {
	Text           string             `json:"text"`
	Product        string             `json:"product"`
	Language       string             `json:"language"`
	TranslatedText string             `json:"translated_text"`
	Sentiment      feedback.Sentiment `json:"sentiment"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// ListOptions selects a filtered page of records.
type ListOptions struct {
	Filter feedback.Filter
	Skip   int
	Limit  int
}

// BulkDeleteResult lists the ids that were actually removed.
type BulkDeleteResult struct {
	Deleted int     `json:"deleted"`
	IDs     []int64 `json:"ids"`
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var result LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, LoginPath, nil, body, &result); err != nil {
		return LoginResult{}, err
	}
	if err := c.store.Save(result.AccessToken); err != nil {
		return LoginResult{}, fmt.Errorf("store token: %w", err)
	}
	c.logger.Info("Logged in as %s until %s", username, result.ExpiresAt.Format(time.RFC3339))
	return result, nil
}

// Logout forgets the local token. Tokens are stateless, so the server is not called.
func (c *Client) Logout() error {
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.publisher.Publish(events.LoggedOut(events.ReasonUser))
	return nil
}

// LoggedIn reports whether a token is stored.
func (c *Client) LoggedIn() bool {
	return c.store.Token() != ""
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &me)
	return me, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.do(ctx, http.MethodPost, "/auth/change-password", nil, body, nil)
}

// Analyze detects language, translation and sentiment without storing anything.
func (c *Client) Analyze(ctx context.Context, text string) (feedback.Analysis, error) {
	var analysis feedback.Analysis
	err := c.do(ctx, http.MethodPost, "/api/translate", nil, map[string]string{"text": text}, &analysis)
	return analysis, err
}

// SaveFeedback persists an analyzed submission. Replaying the same idempotency key
// returns the original record.
func (c *Client) SaveFeedback(ctx context.Context, req SaveRequest) (feedback.Record, error) {
	var record feedback.Record
	err := c.do(ctx, http.MethodPost, "/api/feedback", nil, req, &record)
	return record, err
}

func (c *Client) ListProducts(ctx context.Context) ([]feedback.Product, error) {
	var products []feedback.Product
	err := c.do(ctx, http.MethodGet, "/api/products", nil, nil, &products)
	return products, err
}

func (c *Client) CreateProduct(ctx context.Context, name string) (feedback.Product, error) {
	var product feedback.Product
	err := c.do(ctx, http.MethodPost, "/api/products", nil, map[string]string{"name": name}, &product)
	return product, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/products/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) ListFeedback(ctx context.Context, opts ListOptions) (feedback.ListResult, error) {
	query := filterQuery(opts.Filter)
	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var result feedback.ListResult
	err := c.do(ctx, http.MethodGet, "/api/feedback", query, nil, &result)
	return result, err
}

func (c *Client) DeleteFeedback(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/feedback/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) BulkDeleteFeedback(ctx context.Context, ids []int64) (BulkDeleteResult, error) {
	var result BulkDeleteResult
	err := c.do(ctx, http.MethodDelete, "/api/feedback", nil, map[string][]int64{"ids": ids}, &result)
	return result, err
}

// DeleteMatching removes every record matching filter; an empty filter removes all.
func (c *Client) DeleteMatching(ctx context.Context, filter feedback.Filter) (int64, error) {
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/feedback/all", filterQuery(filter), nil, &result)
	return result.Deleted, err
}

func (c *Client) Stats(ctx context.Context, filter feedback.Filter) (feedback.Stats, error) {
	var stats feedback.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", filterQuery(filter), nil, &stats)
	return stats, err
}

func (c *Client) ListModels(ctx context.Context) ([]feedback.Model, error) {
	var result struct {
		Models []feedback.Model `json:"models"`
	}
	err := c.do(ctx, http.MethodGet, "/api/llm/models", nil, nil, &result)
	return result.Models, err
}

func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	var result struct {
		CurrentModel string `json:"current_model"`
	}
	err := c.do(ctx, http.MethodGet, "/api/llm/current-model", nil, nil, &result)
	return result.CurrentModel, err
}

func (c *Client) SetCurrentModel(ctx context.Context, model string) (string, error) {
	var result struct {
		CurrentModel string `json:"current_model"`
	}
	err := c.do(ctx, http.MethodPost, "/api/llm/current-model", nil, map[string]string{"model_name": model}, &result)
	return result.CurrentModel, err
}

func filterQuery(filter feedback.Filter) url.Values {
	query := url.Values{}
	if filter.Product != "" {
		query.Set("product", filter.Product)
	}
	if filter.Language != "" {
		query.Set("language", filter.Language)
	}
	if filter.Sentiment != "" {
		query.Set("sentiment", string(filter.Sentiment))
	}
	return query
}

// do sends one JSON request. Transport failures are wrapped with the method and
// path; non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := jsonx.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodyBytes))
		return nil
	}
	data, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBodyBytes)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if err := jsonx.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
