package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastAPI(baseURL string) *API {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 0
	return NewAPIWithConfig(baseURL, cfg)
}

// unreachableAPI points at a closed port so every call fails at the
// transport level.
func unreachableAPI(t *testing.T) *API {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return fastAPI(url)
}

func newTestController(t *testing.T, api *API) *Controller {
	t.Helper()
	store := NewLocalStore(filepath.Join(t.TempDir(), "local.json"))
	return NewController(ControllerOptions{
		API:    api,
		Store:  store,
		Logger: testLogger(),
	})
}

func sampleSessionUser() *User {
	now := time.Now().UTC()
	return &User{
		ID:            "u1",
		Email:         "ada@example.com",
		Name:          "Ada",
		LoginProvider: "manual",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// fakeBackend is a minimal stand-in for the real API.
func fakeBackend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"message": message,
		"data":    data,
	})
}

// --- Startup reconciliation ---

func TestInitialize_NoCachedSession(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))

	c.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, c.State())
	assert.Nil(t, c.CurrentUser())
}

func TestInitialize_NetworkErrorTrustsCache(t *testing.T) {
	api := unreachableAPI(t)
	c := newTestController(t, api)

	cached := sampleSessionUser()
	require.NoError(t, c.store.SaveSession(cached, "cached-token"))

	c.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, c.State())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "u1", c.CurrentUser().ID)
	assert.Equal(t, "cached-token", c.Token())
}

func TestInitialize_RejectedTokenClearsSession(t *testing.T) {
	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, false, "authentication required", nil)
	})
	c := newTestController(t, fastAPI(srv.URL))

	require.NoError(t, c.store.SaveSession(sampleSessionUser(), "stale-token"))

	c.Initialize(context.Background())

	assert.Equal(t, StateAnonymous, c.State())
	u, token := c.store.LoadSession()
	assert.Nil(t, u)
	assert.Empty(t, token)
}

func TestInitialize_VerifiedTokenRefreshesUser(t *testing.T) {
	fresh := sampleSessionUser()
	fresh.Name = "Ada Lovelace"

	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/verify-token", r.URL.Path)
		require.Equal(t, "Bearer cached-token", r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, true, "token is valid", map[string]any{"user": fresh})
	})
	c := newTestController(t, fastAPI(srv.URL))

	require.NoError(t, c.store.SaveSession(sampleSessionUser(), "cached-token"))

	c.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, "Ada Lovelace", c.CurrentUser().Name)
}

// --- Online login / register ---

func TestLogin_Online(t *testing.T) {
	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, "login successful", map[string]any{
			"user": sampleSessionUser(), "token": "backend-token",
		})
	})
	c := newTestController(t, fastAPI(srv.URL))

	u, err := c.Login(context.Background(), "ada@example.com", "Secret123")

	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, u.IsOffline)
	assert.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, "backend-token", c.Token())

	cachedUser, cachedToken := c.store.LoadSession()
	require.NotNil(t, cachedUser)
	assert.Equal(t, "backend-token", cachedToken)
}

func TestLogin_BackendRejectionDoesNotFallBack(t *testing.T) {
	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, false, "invalid email or password", nil)
	})
	c := newTestController(t, fastAPI(srv.URL))

	_, err := c.Login(context.Background(), "ada@example.com", "WrongPass1")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, StateInitializing, c.State())
}

func TestLogin_ValidationShortCircuits(t *testing.T) {
	called := false
	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c := newTestController(t, fastAPI(srv.URL))

	_, err := c.Login(context.Background(), "not-an-email", "Secret123")
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, err = c.Login(context.Background(), "ada@example.com", "")
	assert.ErrorIs(t, err, ErrPasswordMissing)

	_, err = c.Register(context.Background(), "A", "ada@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrNameInvalid)

	_, err = c.Register(context.Background(), "Ada", "ada@example.com", "weakpass")
	assert.ErrorIs(t, err, ErrPasswordWeak)

	assert.False(t, called, "validation failures must never reach the network")
}

// --- Offline fallback ---

func TestOffline_RegisterThenLogin(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))
	ctx := context.Background()

	u, err := c.Register(ctx, "Ada", "Ada@Example.com", "Secret123")
	require.NoError(t, err)
	assert.True(t, u.IsOffline)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, StateAuthenticated, c.State())

	c.Logout(ctx)
	assert.Equal(t, StateAnonymous, c.State())

	u, err = c.Login(ctx, "ADA@EXAMPLE.COM", "Secret123")
	require.NoError(t, err)
	assert.True(t, u.IsOffline)
	assert.Equal(t, "Ada", u.Name)
	assert.True(t, strings.HasPrefix(c.Token(), "offline-"))
}

func TestOffline_LoginWrongPassword(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))
	ctx := context.Background()

	_, err := c.Register(ctx, "Ada", "ada@example.com", "Secret123")
	require.NoError(t, err)

	_, err = c.Login(ctx, "ada@example.com", "WrongPass1")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestOffline_LoginUnknownAccount(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))

	_, err := c.Login(context.Background(), "nobody@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrNoOfflineAccount)
}

func TestOffline_RegisterDuplicate(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))
	ctx := context.Background()

	_, err := c.Register(ctx, "Ada", "ada@example.com", "Secret123")
	require.NoError(t, err)

	_, err = c.Register(ctx, "Ada", "ADA@EXAMPLE.COM", "Secret123")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

// Offline passwords are stored as verifiers, never in the clear.
func TestOffline_PasswordNotStoredPlaintext(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(filepath.Join(dir, "local.json"))
	c := NewController(ControllerOptions{API: unreachableAPI(t), Store: store, Logger: testLogger()})

	_, err := c.Register(context.Background(), "Ada", "ada@example.com", "Secret123")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "local.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Secret123")
}

// --- Logout ---

func TestLogout_AlwaysClearsLocally(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))
	ctx := context.Background()

	_, err := c.Register(ctx, "Ada", "ada@example.com", "Secret123")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, c.State())

	// Backend unreachable; logout must still succeed locally.
	c.Logout(ctx)

	assert.Equal(t, StateAnonymous, c.State())
	u, token := c.store.LoadSession()
	assert.Nil(t, u)
	assert.Empty(t, token)
}

// --- Google / demo path ---

func TestLoginWithGoogle_DemoWhenUnconfigured(t *testing.T) {
	c := newTestController(t, unreachableAPI(t))

	u, err := c.LoginWithGoogle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "demo-user", u.ID)
	assert.True(t, u.IsOffline)
	assert.Equal(t, StateAuthenticated, c.State())
}

type stubProvider struct {
	credential string
	err        error
	block      chan struct{}
}

func (p *stubProvider) SignIn(ctx context.Context) (string, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.credential, p.err
}

func TestLoginWithGoogle_ProviderErrorSurfaces(t *testing.T) {
	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called when the provider fails")
	})
	gate := NewProviderGate()
	gate.Ready()

	store := NewLocalStore(filepath.Join(t.TempDir(), "local.json"))
	c := NewController(ControllerOptions{
		API:      fastAPI(srv.URL),
		Store:    store,
		Provider: &stubProvider{err: assert.AnError},
		Gate:     gate,
		Logger:   testLogger(),
	})

	_, err := c.LoginWithGoogle(context.Background())

	require.Error(t, err)
	assert.NotEqual(t, StateAuthenticated, c.State())
	assert.NotNil(t, c.Err())
}

func TestLoginWithGoogle_Success(t *testing.T) {
	googleUser := sampleSessionUser()
	googleUser.LoginProvider = "google"

	srv := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/google", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "provider-credential", body["credential"])
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{
			"user": googleUser, "token": "google-token",
		})
	})

	gate := NewProviderGate()
	gate.Ready()
	store := NewLocalStore(filepath.Join(t.TempDir(), "local.json"))
	c := NewController(ControllerOptions{
		API:      fastAPI(srv.URL),
		Store:    store,
		Provider: &stubProvider{credential: "provider-credential"},
		Gate:     gate,
		Logger:   testLogger(),
	})

	u, err := c.LoginWithGoogle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "google", u.LoginProvider)
	assert.Equal(t, "google-token", c.Token())
}

func TestProviderGate_Timeout(t *testing.T) {
	gate := NewProviderGate()
	store := NewLocalStore(filepath.Join(t.TempDir(), "local.json"))
	c := NewController(ControllerOptions{
		API:      unreachableAPI(t),
		Store:    store,
		Provider: &stubProvider{},
		Gate:     gate,
		Logger:   testLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.LoginWithGoogle(ctx)
	assert.Error(t, err)
}

// --- Single-flight guard ---

func TestSingleFlight_ConcurrentSignInRejected(t *testing.T) {
	block := make(chan struct{})
	gate := NewProviderGate()
	gate.Ready()

	store := NewLocalStore(filepath.Join(t.TempDir(), "local.json"))
	c := NewController(ControllerOptions{
		API:      unreachableAPI(t),
		Store:    store,
		Provider: &stubProvider{block: block, err: assert.AnError},
		Gate:     gate,
		Logger:   testLogger(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoginWithGoogle(context.Background())
	}()

	// Wait until the first attempt holds the guard.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.inFlight
	}, time.Second, 5*time.Millisecond)

	_, err := c.Login(context.Background(), "ada@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrSignInInFlight)

	close(block)
	<-done
}
