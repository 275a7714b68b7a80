package bootstrap

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/shared/config"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(context.Context, string, string) (feedback.Analysis, error) {
	return feedback.Analysis{Language: "Spanish", TranslatedText: "Hello", Sentiment: feedback.SentimentNeutral}, nil
}

func TestBuildAuthServiceRequiresSecretOutsideDevelopment(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Environment = "production"

	_, err := BuildAuthService(context.Background(), cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestBuildAuthServiceSeedsDevelopmentAdmin(t *testing.T) {
	cfg := config.Defaults()

	service, err := BuildAuthService(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	issued, err := service.Login(context.Background(), "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", issued.Subject)
}

func TestBuildFoundationRequiresDatabaseInProduction(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Environment = "production"

	_, err := BuildFoundation(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestBuildServesFullStackInMemory(t *testing.T) {
	cfg := config.Defaults()
	srv, err := Build(context.Background(), cfg, "test", WithAnalyzer(fixedAnalyzer{}, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/auth/token", "application/json", strings.NewReader(`{"username":"admin","password":"admin"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/feedback", "application/json", strings.NewReader(`{"text":"hola","product":"General"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &http.Server{Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, server, ln, nil) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
