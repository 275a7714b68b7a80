package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyglot/internal/domain/feedback"
	jsonx "polyglot/internal/shared/json"
)

func geminiReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	body := map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, jsonx.NewEncoder(w).Encode(body))
}

func TestAnalyzeParsesModelOutput(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		geminiReply(t, w, "```json\n{\"language\": \"FR\", \"translated_text\": \"Hello!\", \"sentiment\": \"Positive\",}\n```")
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "k", Timeout: time.Second}, nil)
	analysis, err := client.Analyze(context.Background(), "gemini-pro", "Bonjour!")
	require.NoError(t, err)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, feedback.Analysis{Language: "fr", TranslatedText: "Hello!", Sentiment: feedback.SentimentPositive}, analysis)
}

func TestAnalyzeRejectsUnknownSentiment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geminiReply(t, w, `{"language":"en","translated_text":"meh","sentiment":"mixed"}`)
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "k"}, nil)
	_, err := client.Analyze(context.Background(), "", "meh")
	require.ErrorIs(t, err, feedback.ErrAnalysisFailed)
}

func TestAnalyzeMapsProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "k"}, nil)
	_, err := client.Analyze(context.Background(), "", "hi")
	require.ErrorIs(t, err, feedback.ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "Resource has been exhausted")
}

func TestAnalyzeWithoutAPIKey(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := client.Analyze(context.Background(), "", "hi")
	require.ErrorIs(t, err, feedback.ErrAnalysisFailed)
}

func TestAnalyzeReturnsContextErrorOnCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "k"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Analyze(ctx, "", "hi")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestListModelsFiltersAndPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"models":[{"name":"models/b","supportedGenerationMethods":["generateContent"]},{"name":"models/embed","supportedGenerationMethods":["embedContent"]}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"models/a","displayName":"A","supportedGenerationMethods":["generateContent","countTokens"]}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{BaseURL: server.URL, APIKey: "k"}, nil)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	names := []string{models[0].Name, models[1].Name}
	assert.Equal(t, "models/b,models/a", strings.Join(names, ","))
}
