package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authapp "polyglot/internal/app/auth"
	feedbackapp "polyglot/internal/app/feedback"
	"polyglot/internal/delivery/server/app"
	domain "polyglot/internal/domain/auth"
	"polyglot/internal/domain/feedback"
	"polyglot/internal/infra/auth/adapters"
	"polyglot/internal/infra/auth/crypto"
	feedbackstore "polyglot/internal/infra/feedback"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubAnalyzer struct {
	analysis feedback.Analysis
	err      error
	calls    int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ string) (feedback.Analysis, error) {
	s.calls++
	if s.err != nil {
		return feedback.Analysis{}, s.err
	}
	return s.analysis, nil
}

type testServer struct {
	handler  http.Handler
	tokens   *adapters.JWTTokenManager
	now      time.Time
	analyzer *stubAnalyzer
	records  *feedbackstore.MemoryStore
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	ts := &testServer{
		tokens: adapters.NewJWTTokenManager("test-secret", "polyglot", 30*time.Minute),
		now:    testStart,
		analyzer: &stubAnalyzer{analysis: feedback.Analysis{
			Language:       "French",
			TranslatedText: "Great product",
			Sentiment:      feedback.SentimentPositive,
		}},
		records: feedbackstore.NewMemoryStore(),
	}
	hasher := crypto.Hasher{Params: crypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16}}
	authService := authapp.NewService(adapters.NewMemoryCredentialStore(), ts.tokens, hasher, authapp.Config{}).
		WithNow(func() time.Time { return ts.now })
	created, err := authService.EnsureAdmin(context.Background(), "admin", "admin")
	require.NoError(t, err)
	require.True(t, created)

	feedbackService := feedbackapp.NewService(feedbackapp.Deps{
		Records:  ts.records,
		Products: ts.records.Products(),
		Settings: ts.records.Settings(),
		Analyzer: ts.analyzer,
	}, feedbackapp.Config{DefaultModel: "models/test"})
	require.NoError(t, feedbackService.EnsureProducts(context.Background(), []string{"General"}))

	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	ts.handler = NewRouter(RouterDeps{
		AuthService:     authService,
		FeedbackService: feedbackService,
		Broadcaster:     app.NewEventBroadcaster(),
		HealthChecker:   app.NewHealthChecker(),
	}, cfg)
	return ts
}

func (ts *testServer) token(t *testing.T, role domain.Role, issuedAt time.Time) string {
	t.Helper()
	issued, err := ts.tokens.Issue(context.Background(), "admin", role, issuedAt)
	require.NoError(t, err)
	return issued.Token
}

func (ts *testServer) do(method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body detailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestLoginIssuesBearerToken(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	rec := ts.do(http.MethodPost, "/auth/token", "", `{"username":"admin","password":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int64(1800), resp.ExpiresIn)

	claims, err := ts.tokens.Parse(context.Background(), resp.AccessToken, ts.now)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestLoginAcceptsFormBody(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLoginRejectsWrongPasswordAndUnknownUserAlike(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	wrong := ts.do(http.MethodPost, "/auth/token", "", `{"username":"admin","password":"nope"}`)
	unknown := ts.do(http.MethodPost, "/auth/token", "", `{"username":"ghost","password":"nope"}`)

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, decodeDetail(t, wrong), decodeDetail(t, unknown))
	assert.Equal(t, "Incorrect username or password", decodeDetail(t, wrong))
}

func TestRefreshedTokenHeaderNearExpiry(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	token := ts.token(t, domain.RoleAdmin, testStart)

	ts.now = testStart.Add(5 * time.Minute)
	fresh := ts.do(http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, fresh.Code)
	assert.Empty(t, fresh.Header().Get(RefreshedTokenHeader))

	ts.now = testStart.Add(20 * time.Minute)
	near := ts.do(http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, near.Code)
	refreshed := near.Header().Get(RefreshedTokenHeader)
	require.NotEmpty(t, refreshed)

	claims, err := ts.tokens.Parse(context.Background(), refreshed, ts.now)
	require.NoError(t, err)
	assert.Equal(t, ts.now.Add(30*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestOptionalRouteRefreshesNearExpiryToken(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	token := ts.token(t, domain.RoleAdmin, testStart)
	ts.now = testStart.Add(25 * time.Minute)

	rec := ts.do(http.MethodGet, "/api/products", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RefreshedTokenHeader))
}

func TestExpiredTokenIsRejectedWithChallenge(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	token := ts.token(t, domain.RoleAdmin, testStart)
	ts.now = testStart.Add(31 * time.Minute)

	rec := ts.do(http.MethodGet, "/api/feedback", token, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	challenge := rec.Header().Get("WWW-Authenticate")
	assert.Contains(t, challenge, `error="invalid_token"`)
	assert.Contains(t, strings.ToLower(challenge), "expired")
	assert.Empty(t, rec.Header().Get(RefreshedTokenHeader))
}

func TestMissingTokenOnAdminRoute(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	rec := ts.do(http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	assert.Equal(t, "Not authenticated", decodeDetail(t, rec))
}

func TestNonAdminRoleIsForbidden(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	token := ts.token(t, domain.Role("viewer"), testStart)

	rec := ts.do(http.MethodGet, "/api/feedback", token, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", decodeDetail(t, rec))
}

func TestTamperedTokenOnPublicRouteIsRejected(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	token := ts.token(t, domain.RoleAdmin, testStart) + "x"

	rec := ts.do(http.MethodPost, "/api/translate", token, `{"text":"bonjour"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	assert.Zero(t, ts.analyzer.calls)
}

func TestSubmitIsIdempotentAndListed(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	body := `{"text":"C'est super","product":"General","idempotency_key":"key-1"}`

	first := ts.do(http.MethodPost, "/api/feedback", "", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var created feedback.Record
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	assert.Equal(t, "Great product", created.TranslatedText)
	assert.Equal(t, feedback.SentimentPositive, created.Sentiment)

	replay := ts.do(http.MethodPost, "/api/feedback", "", body)
	require.Equal(t, http.StatusOK, replay.Code)
	var replayed feedback.Record
	require.NoError(t, json.Unmarshal(replay.Body.Bytes(), &replayed))
	assert.Equal(t, created.ID, replayed.ID)
	assert.Equal(t, 1, ts.analyzer.calls)

	admin := ts.token(t, domain.RoleAdmin, testStart)
	list := ts.do(http.MethodGet, "/api/feedback?product=General&limit=10", admin, "")
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	var result feedback.ListResult
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 10, result.Limit)
	require.Len(t, result.Items, 1)
}

func TestSubmitRejectsUnknownProduct(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	rec := ts.do(http.MethodPost, "/api/feedback", "", `{"text":"hello","product":"Nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown product: Nope", decodeDetail(t, rec))
	assert.Zero(t, ts.analyzer.calls)
}

func TestTranslateSurfacesAnalysisFailure(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	ts.analyzer.err = errors.New("quota exhausted")

	rec := ts.do(http.MethodPost, "/api/translate", "", `{"text":"hola"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "AI analysis failed: quota exhausted", decodeDetail(t, rec))
}

func TestTranslateIsRateLimitedPerIP(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Translate: RateLimitConfig{RequestsPerMinute: 1}})

	first := ts.do(http.MethodPost, "/api/translate", "", `{"text":"hola"}`)
	require.Equal(t, http.StatusOK, first.Code)
	second := ts.do(http.MethodPost, "/api/translate", "", `{"text":"hola"}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, decodeDetail(t, second), "Rate limit exceeded")
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func (ts *testServer) translateFrom(remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(`{"text":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestTranslateRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	ts := newTestServer(t, RouterConfig{Translate: RateLimitConfig{RequestsPerMinute: 1}})

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		rec := ts.translateFrom("203.0.113.9:5000", fmt.Sprintf("10.0.0.%d", i))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
	assert.Equal(t, 1, ts.analyzer.calls)
}

func TestTranslateRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"203.0.113.0/24"})
	require.NoError(t, err)
	ts := newTestServer(t, RouterConfig{
		Translate:      RateLimitConfig{RequestsPerMinute: 1},
		TrustedProxies: trusted,
	})

	require.Equal(t, http.StatusOK, ts.translateFrom("203.0.113.9:5000", "198.51.100.1").Code)
	require.Equal(t, http.StatusOK, ts.translateFrom("203.0.113.9:5000", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.translateFrom("203.0.113.9:5000", "198.51.100.1").Code)
	// A client prepending its own hop is still keyed on the address the proxy saw.
	assert.Equal(t, http.StatusTooManyRequests, ts.translateFrom("203.0.113.9:5000", "10.9.9.9, 198.51.100.2").Code)
}

func TestListRejectsOutOfRangeLimit(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	admin := ts.token(t, domain.RoleAdmin, testStart)

	for _, limit := range []string{"0", "1001", "abc"} {
		rec := ts.do(http.MethodGet, "/api/feedback?limit="+limit, admin, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestDeleteFeedbackLifecycle(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	admin := ts.token(t, domain.RoleAdmin, testStart)

	created := ts.do(http.MethodPost, "/api/feedback", "", `{"text":"bad","translated_text":"bad","sentiment":"negative","language":"English"}`)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var record feedback.Record
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &record))
	assert.Zero(t, ts.analyzer.calls)

	deleted := ts.do(http.MethodDelete, "/api/feedback/"+jsonID(record.ID), admin, "")
	require.Equal(t, http.StatusOK, deleted.Code)

	missing := ts.do(http.MethodDelete, "/api/feedback/"+jsonID(record.ID), admin, "")
	require.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "Feedback not found", decodeDetail(t, missing))
}

func TestStatsRoundsPercentages(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	admin := ts.token(t, domain.RoleAdmin, testStart)
	for _, sentiment := range []string{"positive", "negative", "neutral"} {
		rec := ts.do(http.MethodPost, "/api/feedback", "", `{"text":"x","translated_text":"x","sentiment":"`+sentiment+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(http.MethodGet, "/api/stats", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats feedback.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 33.33, stats.Percentages[feedback.SentimentPositive])
}

func TestProductConflict(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	admin := ts.token(t, domain.RoleAdmin, testStart)

	rec := ts.do(http.MethodPost, "/api/products", admin, `{"name":"General"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Product already exists", decodeDetail(t, rec))
}

func TestChangePasswordWrongCurrentIsNotUnauthorized(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})
	admin := ts.token(t, domain.RoleAdmin, testStart)

	rec := ts.do(http.MethodPost, "/auth/change-password", admin, `{"current_password":"wrong","new_password":"longenough"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	ok := ts.do(http.MethodPost, "/auth/change-password", admin, `{"current_password":"admin","new_password":"longenough"}`)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())

	login := ts.do(http.MethodPost, "/auth/token", "", `{"username":"admin","password":"longenough"}`)
	require.Equal(t, http.StatusOK, login.Code)
}

func TestCORSPreflightExposesRefreshHeader(t *testing.T) {
	ts := newTestServer(t, RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/feedback", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), RefreshedTokenHeader)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	other := httptest.NewRequest(http.MethodOptions, "/api/feedback", nil)
	other.Header.Set("Origin", "https://evil.example")
	otherRec := httptest.NewRecorder()
	ts.handler.ServeHTTP(otherRec, other)
	assert.Empty(t, otherRec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndLogID(t *testing.T) {
	ts := newTestServer(t, RouterConfig{})

	rec := ts.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	root := ts.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, root.Code)
	assert.True(t, strings.HasPrefix(root.Header().Get(LogIDHeader), "log-"))
}

func jsonID(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
