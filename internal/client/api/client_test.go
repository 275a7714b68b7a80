package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyglot/internal/client/events"
	"polyglot/internal/client/session"
	"polyglot/internal/delivery/server/bootstrap"
	"polyglot/internal/domain/auth"
	"polyglot/internal/domain/feedback"
	authAdapters "polyglot/internal/infra/auth/adapters"
	"polyglot/internal/shared/config"
)

const testSecret = "client-test-secret"

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(context.Context, string, string) (feedback.Analysis, error) {
	return feedback.Analysis{Language: "fr", TranslatedText: "Hello!", Sentiment: feedback.SentimentPositive}, nil
}

func newStack(t *testing.T) (*httptest.Server, config.Config) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.JWTSecret = testSecret
	srv, err := bootstrap.Build(context.Background(), cfg, "test", bootstrap.WithAnalyzer(fixedAnalyzer{}, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, cfg
}

func TestClientLoginAnalyzeAndSave(t *testing.T) {
	ts, _ := newStack(t)
	store := session.NewMemoryStore()
	client, err := NewClient(ts.URL, store, nil)
	require.NoError(t, err)
	ctx := context.Background()

	login, err := client.Login(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.Equal(t, "bearer", login.TokenType)
	assert.Equal(t, login.AccessToken, store.Token())

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, me.Role)

	analysis, err := client.Analyze(ctx, "Bonjour!")
	require.NoError(t, err)
	assert.Equal(t, "fr", analysis.Language)

	record, err := client.SaveFeedback(ctx, SaveRequest{
		Text: "Bonjour!", Product: "General", Language: analysis.Language,
		TranslatedText: analysis.TranslatedText, Sentiment: analysis.Sentiment, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Positive(t, record.ID)

	replay, err := client.SaveFeedback(ctx, SaveRequest{
		Text: "Bonjour!", Product: "General", Language: analysis.Language,
		TranslatedText: analysis.TranslatedText, Sentiment: analysis.Sentiment, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, record.ID, replay.ID)

	list, err := client.ListFeedback(ctx, ListOptions{Filter: feedback.Filter{Language: "fr"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	stats, err := client.Stats(ctx, feedback.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[feedback.SentimentPositive])

	require.NoError(t, client.DeleteFeedback(ctx, record.ID))
	err = client.DeleteFeedback(ctx, record.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestClientSurfacesStructuredErrors(t *testing.T) {
	ts, _ := newStack(t)
	client, err := NewClient(ts.URL, nil, nil)
	require.NoError(t, err)

	_, err = client.SaveFeedback(context.Background(), SaveRequest{Text: "hi", Product: "Nope"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Unknown product: Nope", apiErr.Detail)
}

func TestClientLoginFailureDoesNotStoreToken(t *testing.T) {
	ts, _ := newStack(t)
	store := session.NewMemoryStore()
	client, err := NewClient(ts.URL, store, nil)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "admin", "wrong")
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, store.Token())
}

func TestExpiredTokenLogsClientOut(t *testing.T) {
	ts, cfg := newStack(t)
	manager := authAdapters.NewJWTTokenManager(testSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	expired, err := manager.Issue(context.Background(), "admin", auth.RoleAdmin,
		time.Now().Add(-cfg.Auth.AccessTokenTTL-10*time.Second))
	require.NoError(t, err)

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(expired.Token))
	bus := events.NewBus(4)
	notifications, cancel := bus.Subscribe()
	defer cancel()
	client, err := NewClient(ts.URL, store, bus)
	require.NoError(t, err)

	_, err = client.Stats(context.Background(), feedback.Filter{})
	require.True(t, IsUnauthorized(err))
	assert.Empty(t, store.Token())

	select {
	case n := <-notifications:
		assert.Equal(t, events.KindLoggedOut, n.Kind)
		assert.Equal(t, events.ReasonExpired, n.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected logout notification")
	}
}

func TestClientLogoutPublishesUserReason(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save("token"))
	bus := events.NewBus(1)
	notifications, cancel := bus.Subscribe()
	defer cancel()
	client, err := NewClient("http://127.0.0.1:1", store, bus)
	require.NoError(t, err)

	require.NoError(t, client.Logout())
	assert.False(t, client.LoggedIn())
	n := <-notifications
	assert.Equal(t, events.ReasonUser, n.Reason)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil, nil)
	assert.Error(t, err)
}
