package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mailbae/dashboard/internal/auth"
	"github.com/mailbae/dashboard/internal/backend"
	"github.com/mailbae/dashboard/internal/draft"
	"github.com/mailbae/dashboard/internal/logging"
	"github.com/mailbae/dashboard/internal/prefs"
	"github.com/mailbae/dashboard/internal/session"
	"github.com/mailbae/dashboard/internal/tokenstore"
)

type testResolver struct{ email string }

func (r testResolver) Resolve(_ context.Context, _ auth.Bundle) (string, error) {
	return r.email, nil
}

type testEnv struct {
	server  *Server
	bridge  *session.Bridge
	tokens  *tokenstore.MemoryStore
	prefs   *prefs.MemoryStore
	backend *httptest.Server
}

// newTestEnv wires a server against a scripted processing service and a
// scripted OAuth token endpoint.
func newTestEnv(t *testing.T, backendHandler http.HandlerFunc) *testEnv {
	t.Helper()

	backendSrv := httptest.NewServer(backendHandler)
	t.Cleanup(backendSrv.Close)

	providerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "provider-access",
			"refresh_token": "provider-refresh",
			"token_type": "Bearer",
			"expires_in": 3600,
			"scope": "openid email https://www.googleapis.com/auth/gmail.modify",
			"id_token": "provider-id-token"
		}`))
	}))
	t.Cleanup(providerSrv.Close)

	bridge, err := session.NewBridge([]byte("test-secret"))
	require.NoError(t, err)

	tokens := tokenstore.NewMemoryStore()
	prefStore := prefs.NewMemoryStore()

	oauthConfig := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/auth/callback",
		Scopes:       auth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  providerSrv.URL + "/auth",
			TokenURL: providerSrv.URL + "/token",
		},
	}
	pipeline := auth.NewPipeline(oauthConfig, tokens, bridge,
		testResolver{email: "sarah@example.com"}, nil, nil)

	client := backend.NewClient(backendSrv.URL, nil, nil)
	cache := backend.NewCache(client, nil)
	boards := draft.NewBoards(cache, nil)

	sc := NewServerContext(context.Background(), ServerContextConfig{
		Pipeline: pipeline,
		Bridge:   bridge,
		Tokens:   tokens,
		Prefs:    prefStore,
		Queries:  cache,
		Boards:   boards,
	})

	return &testEnv{
		server:  New(sc, Config{Addr: ":0"}),
		bridge:  bridge,
		tokens:  tokens,
		prefs:   prefStore,
		backend: backendSrv,
	}
}

func (e *testEnv) request(t *testing.T, method, target, body string, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if signedIn {
		signed, err := e.bridge.Issue("sarah@example.com", "access", "refresh")
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: signed})
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func repliesBackend(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auto_respond":
			_, _ = w.Write([]byte(`{"result": {
				"msg-1": {"sender": "alice@example.com", "needs_reply": true,
					"classification_rationale": "direct question", "draft": "Hi Alice,"}
			}}`))
		case "/api/summarize":
			_, _ = w.Write([]byte(`{"summary": [{"category": "Work", "points": ["standup moved"]}]}`))
		case "/api/received_count":
			_, _ = w.Write([]byte(`{"count": 5}`))
		case "/api/send_email":
			_, _ = w.Write([]byte(`{"message_id": "gmail-1"}`))
		default:
			t.Errorf("unexpected backend path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestLoginRedirectsWithState(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/auth/login", "", false)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, location.Query().Get("state"))
	assert.Equal(t, "offline", location.Query().Get("access_type"))
	assert.Equal(t, "consent", location.Query().Get("prompt"))
	assert.Contains(t, location.Query().Get("scope"), "gmail.modify")
}

func TestCallbackSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	login := env.request(t, http.MethodGet, "/auth/login", "", false)
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	rec := env.request(t, http.MethodGet, "/auth/callback?state="+state+"&code=grant-code", "", false)
	require.Equal(t, http.StatusFound, rec.Code)

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)

	sess, err := env.bridge.Parse(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "sarah@example.com", sess.Email)
	assert.Equal(t, "provider-access", sess.AccessToken)
	assert.Equal(t, "provider-refresh", sess.RefreshToken)

	// The credential reached the store under the resolved identity.
	cred, err := env.tokens.Get(context.Background(), "sarah@example.com")
	require.NoError(t, err)
	assert.Equal(t, "provider-access", cred.AccessToken)
	assert.Equal(t, "provider-id-token", cred.IDToken)
}

func TestCallbackRejectsBadState(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/auth/callback?state=forged&code=grant-code", "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	login := env.request(t, http.MethodGet, "/auth/login", "", false)
	location, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	first := env.request(t, http.MethodGet, "/auth/callback?state="+state+"&code=grant-code", "", false)
	require.Equal(t, http.StatusFound, first.Code)

	second := env.request(t, http.MethodGet, "/auth/callback?state="+state+"&code=grant-code", "", false)
	assert.Equal(t, http.StatusForbidden, second.Code)
}

func TestCallbackProviderDenial(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/auth/callback?error=access_denied", "", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionProjection(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/api/session", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sarah@example.com", resp.Email)
	assert.Equal(t, "access", resp.AccessToken)
	assert.Equal(t, "refresh", resp.RefreshToken)

	// No other fields may leak into the projection.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for key := range raw {
		assert.Contains(t, []string{"email", "access_token", "refresh_token"}, key)
	}
}

func TestSessionRequiresCookie(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/api/session", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRepliesRendersBoard(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodPost, "/api/dashboard/replies", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries map[string]draft.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice@example.com", entries["msg-1"].Candidate.Sender)
	assert.Equal(t, draft.StateViewing, entries["msg-1"].State)
}

func TestRepliesSignedOutEmptyState(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodPost, "/api/dashboard/replies", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestRepliesBackendFailureEmptyState(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := env.request(t, http.MethodPost, "/api/dashboard/replies", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestSummaryAndReceived(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodPost, "/api/dashboard/summary", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []backend.SummaryGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "Work", groups[0].Category)

	rec = env.request(t, http.MethodPost, "/api/dashboard/received", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 5}`, rec.Body.String())
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	// Load the board.
	rec := env.request(t, http.MethodPost, "/api/dashboard/replies", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/edit", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/text",
		`{"text": "See you at noon."}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry draft.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, draft.StateEditing, entry.State)
	assert.Equal(t, "See you at noon.", entry.EditedText)

	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/send", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message_id": "gmail-1"}`, rec.Body.String())
}

func TestDraftSendFailureSurfacesDetail(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/send_email" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"detail": "gmail API quota exceeded for user"}`))
			return
		}
		repliesBackend(t)(w, r)
	})

	rec := env.request(t, http.MethodPost, "/api/dashboard/replies", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/edit", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/text",
		`{"text": "Edited but undelivered."}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/dashboard/replies/msg-1/send", "", true)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"detail": "gmail API quota exceeded for user"}`, rec.Body.String())

	// The edit survives the failure.
	rec = env.request(t, http.MethodPost, "/api/dashboard/replies", "", true)
	var entries map[string]draft.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Equal(t, draft.StateEditing, entries["msg-1"].State)
	assert.Equal(t, "Edited but undelivered.", entries["msg-1"].EditedText)
	assert.Equal(t, "gmail API quota exceeded for user", entries["msg-1"].SendError)
}

func TestSettingsRoundTripInvalidatesCache(t *testing.T) {
	var queries atomic.Int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/received_count" {
			queries.Add(1)
		}
		repliesBackend(t)(w, r)
	})

	rec := env.request(t, http.MethodGet, "/api/settings", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"timezone": "UTC", "since_hour": 9}`, rec.Body.String())

	// Warm the cache.
	_ = env.request(t, http.MethodPost, "/api/dashboard/received", "", true)
	_ = env.request(t, http.MethodPost, "/api/dashboard/received", "", true)
	assert.Equal(t, int32(1), queries.Load())

	rec = env.request(t, http.MethodPut, "/api/settings",
		`{"timezone": "Europe/Berlin", "since_hour": 7}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	// The save invalidated the cached window.
	_ = env.request(t, http.MethodPost, "/api/dashboard/received", "", true)
	assert.Equal(t, int32(2), queries.Load())

	rec = env.request(t, http.MethodGet, "/api/settings", "", true)
	assert.JSONEq(t, `{"timezone": "Europe/Berlin", "since_hour": 7}`, rec.Body.String())
}

func TestSettingsRejectsInvalidHour(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodPut, "/api/settings",
		`{"timezone": "UTC", "since_hour": 99}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRequiresSession(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodPost, "/api/dashboard/refresh", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/dashboard/refresh", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	rec := env.request(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTamperedCookieDegradesToSignedOut(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-session"})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// endpointCapture records the endpoint attribute of every request log line.
type endpointCapture struct {
	mu        sync.Mutex
	endpoints []string
}

func (c *endpointCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *endpointCapture) Handle(_ context.Context, r slog.Record) error {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == logging.KeyEndpoint {
			c.mu.Lock()
			c.endpoints = append(c.endpoints, a.Value.String())
			c.mu.Unlock()
		}
		return true
	})
	return nil
}

func (c *endpointCapture) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *endpointCapture) WithGroup(string) slog.Handler      { return c }

func TestRequestMetricsLabelIsRoutePattern(t *testing.T) {
	capture := &endpointCapture{}
	sc := NewServerContext(context.Background(), ServerContextConfig{
		Logger: slog.New(capture),
	})
	srv := New(sc, Config{Addr: ":0"})

	req := httptest.NewRequest(http.MethodPost, "/api/dashboard/replies/msg-8842/edit", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Len(t, capture.endpoints, 1)
	assert.Equal(t, "POST /api/dashboard/replies/{id}/edit", capture.endpoints[0])
	assert.NotContains(t, capture.endpoints[0], "msg-8842",
		"message ids must not become metric or log labels")
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t, repliesBackend(t))

	// Logout is idempotent: with or without a live session it clears the
	// cookie and returns 204.
	for _, signedIn := range []bool{true, false} {
		rec := env.request(t, http.MethodPost, "/auth/logout", "", signedIn)
		require.Equal(t, http.StatusNoContent, rec.Code)

		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookieName {
				cleared = c.Value == "" && c.MaxAge < 0
			}
		}
		assert.True(t, cleared, "logout must expire the session cookie")
	}
}
