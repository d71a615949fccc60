package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/authclient"
	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/repository"
	"storefront/internal/session"
	"storefront/internal/storage"
)

func newTestBackend(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.AppConfig{
		Environment: "test",
		Session:     config.SessionConfig{AdminEmail: "admin@example.com"},
		Security:    config.SecurityConfig{JWTSecret: "server-test", JWTTTL: time.Hour},
	}
	log := zerolog.Nop()
	hs := handlers.NewHandlerSet(log, repository.NewMemoryAccountRepository(), cfg)
	srv := httptest.NewServer(NewHTTPServer(cfg, log, hs).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newSession(baseURL string) (*session.Store, *authclient.Client) {
	log := zerolog.Nop()
	client := authclient.New(baseURL, 5*time.Second, log)
	return session.NewStore(storage.NewMemoryStorage(), client, "admin@example.com", log), client
}

func TestSessionAgainstBackend(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	store, client := newSession(backend.URL)

	user, err := store.Register(ctx, "shopper@example.com", "secret123", nil)
	require.NoError(t, err)
	assert.Equal(t, "shopper", user.Name)
	assert.False(t, store.IsAdmin())

	me, err := client.Me(ctx, store.State().Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	store.Logout(ctx)
	_, err = store.Login(ctx, "shopper@example.com", "wrong-password", nil)
	var authErr *session.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Invalid email or password", authErr.Message)
	assert.Equal(t, session.StatusError, store.State().Status)

	_, err = store.Login(ctx, "shopper@example.com", "secret123", nil)
	require.NoError(t, err)
	assert.True(t, store.State().LoggedIn())

	// Backend tokens are JWTs; the sweep only expires them once exp passes.
	assert.False(t, store.ExpireIfStale(ctx, time.Now()))
	assert.True(t, store.ExpireIfStale(ctx, time.Now().Add(2*time.Hour)))
	assert.False(t, store.State().LoggedIn())
}

func TestAdminRoutes(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	shopper, _ := newSession(backend.URL)
	_, err := shopper.Register(ctx, "shopper@example.com", "secret123", nil)
	require.NoError(t, err)

	admin, _ := newSession(backend.URL)
	_, err = admin.Register(ctx, "admin@example.com", "secret123", nil)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	get := func(authHeader string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, backend.URL+"/api/admin/users", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", authHeader)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, get("").StatusCode)
	assert.Equal(t, http.StatusForbidden, get(shopper.AuthHeader()).StatusCode)

	resp := get(admin.AuthHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"email":"shopper@example.com"`)
	assert.Contains(t, string(body), `"isAdmin":true`)
}

func TestBackendErrorsReachTheClient(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()
	store, client := newSession(backend.URL)

	_, err := store.Register(ctx, "dup@example.com", "secret123", nil)
	require.NoError(t, err)

	_, err = client.Register(ctx, "dup@example.com", "secret123", "")
	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "An account with this email already exists", apiErr.Message)

	_, err = client.GoogleLogin(ctx, authclient.GoogleProfile{Email: "new@example.com", Subject: "sub-1"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "register first")

	resp, err := client.GoogleRegister(ctx, authclient.GoogleProfile{Email: "new@example.com", Name: "New", Subject: "sub-1"})
	require.NoError(t, err)
	assert.Equal(t, "New", resp.User.Name)
}

func TestHealthAndMetrics(t *testing.T) {
	backend := newTestBackend(t)

	resp, err := http.Get(backend.URL + "/api/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","database":"memory","environment":"test"}`, string(body))

	resp, err = http.Post(backend.URL+"/api/auth/login", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Email and password are required"}`, string(body))

	resp, err = http.Get(backend.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `storefront_auth_attempts_total{operation="login",result="invalid_input"}`)
}
