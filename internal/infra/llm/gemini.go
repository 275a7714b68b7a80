package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
	"polyglot/internal/infra/httpclient"
	jsonx "polyglot/internal/shared/json"
	"polyglot/internal/shared/logging"
)

const (
	apiVersion       = "v1beta"
	maxResponseBytes = 4 << 20
	generateMethod   = "generateContent"
)

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GeminiClient analyzes feedback through the Gemini generateContent REST API.
type GeminiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  logging.Logger
}

// NewGeminiClient builds a client. An empty API key is allowed; requests then fail
// with ErrAnalysisFailed so the rest of the service stays usable.
func NewGeminiClient(cfg GeminiConfig, logger logging.Logger) *GeminiClient {
	logger = logging.OrNop(logger)
	return &GeminiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpclient.New(cfg.Timeout, logger),
		logger:  logger,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

const analysisPrompt = `You analyze customer feedback.
Detect the language of the text, translate it to English and classify its sentiment.
Respond with a single JSON object and nothing else:
{"language": "<ISO 639-1 code>", "translated_text": "<English translation>", "sentiment": "positive" | "negative" | "neutral"}
If the text is already English, translated_text repeats it unchanged.

Text:
`

// Analyze implements ports.Analyzer.
func (c *GeminiClient) Analyze(ctx context.Context, model, text string) (feedback.Analysis, error) {
	model = normalizeModel(model)
	body, err := jsonx.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: analysisPrompt + text}}}},
		GenerationConfig: generationConfig{Temperature: 0, ResponseMimeType: "application/json"},
	})
	if err != nil {
		return feedback.Analysis{}, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/%s:%s", c.baseURL, apiVersion, model, generateMethod)

	respBody, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return feedback.Analysis{}, err
	}
	var resp generateResponse
	if err := jsonx.Unmarshal(respBody, &resp); err != nil {
		return feedback.Analysis{}, fmt.Errorf("%w: decode response: %v", feedback.ErrAnalysisFailed, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return feedback.Analysis{}, fmt.Errorf("%w: prompt blocked (%s)", feedback.ErrAnalysisFailed, resp.PromptFeedback.BlockReason)
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return feedback.Analysis{}, fmt.Errorf("%w: AI content generation failed", feedback.ErrAnalysisFailed)
	}
	return parseAnalysis(sb.String())
}

func parseAnalysis(raw string) (feedback.Analysis, error) {
	var payload struct {
		Language       string `json:"language"`
		TranslatedText string `json:"translated_text"`
		Sentiment      string `json:"sentiment"`
	}
	if err := jsonx.UnmarshalLenient(stripCodeFence(raw), &payload); err != nil {
		return feedback.Analysis{}, fmt.Errorf("%w: unreadable model output: %v", feedback.ErrAnalysisFailed, err)
	}
	sentiment, err := feedback.ParseSentiment(payload.Sentiment)
	if err != nil {
		return feedback.Analysis{}, fmt.Errorf("%w: %v", feedback.ErrAnalysisFailed, err)
	}
	translated := strings.TrimSpace(payload.TranslatedText)
	if translated == "" {
		return feedback.Analysis{}, fmt.Errorf("%w: model returned no translation", feedback.ErrAnalysisFailed)
	}
	return feedback.Analysis{
		Language:       strings.ToLower(strings.TrimSpace(payload.Language)),
		TranslatedText: translated,
		Sentiment:      sentiment,
	}, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))
}

// ListModels implements ports.ModelCatalog. Only models supporting generateContent
// are returned.
func (c *GeminiClient) ListModels(ctx context.Context) ([]feedback.Model, error) {
	var models []feedback.Model
	pageToken := ""
	for {
		query := url.Values{"pageSize": {"1000"}}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/%s/models?%s", c.baseURL, apiVersion, query.Encode())
		body, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Models []struct {
				Name                       string   `json:"name"`
				DisplayName                string   `json:"displayName"`
				Description                string   `json:"description"`
				SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
			} `json:"models"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := jsonx.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode models: %w", err)
		}
		for _, m := range page.Models {
			if !supports(m.SupportedGenerationMethods, generateMethod) {
				continue
			}
			models = append(models, feedback.Model{
				Name:                       m.Name,
				DisplayName:                m.DisplayName,
				Description:                m.Description,
				SupportedGenerationMethods: m.SupportedGenerationMethods,
			})
		}
		if page.NextPageToken == "" {
			return models, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *GeminiClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: LLM API key not configured", feedback.ErrAnalysisFailed)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("LLM request %s %s failed: %v", method, redact(endpoint), err)
		return nil, fmt.Errorf("%w: %w", feedback.ErrAnalysisFailed, &ProviderError{Message: err.Error()})
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read response: %v", feedback.ErrAnalysisFailed, err)
	}
	c.logger.Debug("LLM %s %s -> %d in %s", method, redact(endpoint), resp.StatusCode, time.Since(started))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w", feedback.ErrAnalysisFailed, newProviderError(resp.StatusCode, respBody))
	}
	return respBody, nil
}

// ProviderError is a failed call to the LLM provider. Status is 0 when the
// request never got a response.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

func newProviderError(status int, body []byte) *ProviderError {
	var parsed apiError
	if err := jsonx.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return &ProviderError{Status: status, Message: strings.TrimSpace(parsed.Error.Status + " " + parsed.Error.Message)}
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return &ProviderError{Status: status, Message: snippet}
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "models/gemini-1.5-flash"
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return model
}

func supports(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

func redact(endpoint string) string {
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		return endpoint[:idx]
	}
	return endpoint
}

var (
	_ ports.Analyzer     = (*GeminiClient)(nil)
	_ ports.ModelCatalog = (*GeminiClient)(nil)
)
