package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the controller's authentication state.
type State string

const (
	StateInitializing  State = "initializing"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// Errors surfaced by offline fallback and the sign-in flow.
var (
	ErrNoOfflineAccount  = errors.New("no offline account found for this email")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrAlreadyRegistered = errors.New("an account with this email is already registered offline")
	ErrSignInInFlight    = errors.New("another sign-in attempt is already in progress")
)

const providerReadyTimeout = 5 * time.Second

// demoUser is the fixed identity used when no sign-in provider is
// configured at all. Real credentials never reach this path.
func demoUser() *User {
	now := time.Now().UTC()
	return &User{
		ID:            "demo-user",
		Email:         "demo@alearteco.local",
		Name:          "Demo User",
		LoginProvider: "google",
		CreatedAt:     now,
		UpdatedAt:     now,
		IsOffline:     true,
	}
}

// Controller owns the client-side authentication state machine. States
// move between initializing, anonymous, and authenticated, with an
// orthogonal error slot holding the last failure.
type Controller struct {
	api      *API
	store    *LocalStore
	provider GoogleProvider
	gate     *ProviderGate
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	user     *User
	token    string
	lastErr  error
	inFlight bool
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	API   *API
	Store *LocalStore
	// Provider and Gate are nil when no Google client ID is configured;
	// the controller then offers only the demo identity on that path.
	Provider GoogleProvider
	Gate     *ProviderGate
	Logger   *slog.Logger
}

// NewController creates a controller in the initializing state.
func NewController(opts ControllerOptions) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		api:      opts.API,
		store:    opts.Store,
		provider: opts.Provider,
		gate:     opts.Gate,
		logger:   log,
		state:    StateInitializing,
	}
}

// State returns the current authentication state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the signed-in user, or nil.
func (c *Controller) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Token returns the current bearer token, or empty.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Err returns the last failure recorded in the error slot.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// begin acquires the single-flight guard so concurrent sign-in attempts
// cannot race.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrSignInInFlight
	}
	c.inFlight = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Controller) setAuthenticated(u *User, token string) {
	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = u
	c.token = token
	c.lastErr = nil
	c.mu.Unlock()
}

func (c *Controller) setAnonymous(err error) {
	c.mu.Lock()
	c.state = StateAnonymous
	c.user = nil
	c.token = ""
	c.lastErr = err
	c.mu.Unlock()
}

// Initialize runs the startup reconciliation once per app load. A cached
// session is verified remotely; genuine rejection clears it, but network
// unavailability keeps the cached identity, trading freshness for offline
// availability.
func (c *Controller) Initialize(ctx context.Context) {
	cached, token := c.store.LoadSession()
	if cached == nil || token == "" {
		c.setAnonymous(nil)
		return
	}

	fresh, err := c.api.VerifyToken(ctx, token)
	switch {
	case err == nil:
		if fresh != nil {
			cached = fresh
			_ = c.store.SaveSession(cached, token)
		}
		c.setAuthenticated(cached, token)

	case errors.Is(err, ErrOffline):
		c.logger.Warn("token verification unreachable, trusting cached session",
			slog.String("error", err.Error()),
		)
		c.setAuthenticated(cached, token)

	default:
		_ = c.store.ClearSession()
		c.setAnonymous(nil)
	}
}

// Login signs in with email and password. When the backend is unreachable
// it falls back to the offline account store.
func (c *Controller) Login(ctx context.Context, email, password string) (*User, error) {
	if err := validateLoginForm(email, password); err != nil {
		c.recordErr(err)
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	session, err := c.api.Login(ctx, email, password)
	if err == nil {
		if err := c.store.SaveSession(session.User, session.Token); err != nil {
			c.logger.Warn("failed to cache session", slog.String("error", err.Error()))
		}
		c.setAuthenticated(session.User, session.Token)
		return session.User, nil
	}

	if !errors.Is(err, ErrOffline) {
		c.recordErr(err)
		return nil, err
	}

	u, offErr := c.offlineLogin(email, password)
	if offErr != nil {
		c.recordErr(offErr)
		return nil, offErr
	}
	return u, nil
}

// offlineLogin authenticates against the local offline account store and
// synthesizes a session with no backend involvement.
func (c *Controller) offlineLogin(email, password string) (*User, error) {
	acc := c.store.FindOfflineAccount(email)
	if acc == nil {
		return nil, ErrNoOfflineAccount
	}
	if !VerifyOfflinePassword(acc, password) {
		return nil, ErrInvalidPassword
	}

	c.store.TouchOfflineAccount(email)

	u := offlineUser(acc)
	token := "offline-" + uuid.New().String()
	if err := c.store.SaveSession(u, token); err != nil {
		c.logger.Warn("failed to cache offline session", slog.String("error", err.Error()))
	}
	c.setAuthenticated(u, token)

	c.logger.Info("offline login", slog.String("email", u.Email))
	return u, nil
}

// Register creates an account. When the backend is unreachable it creates
// an offline account instead, rejecting duplicates.
func (c *Controller) Register(ctx context.Context, name, email, password string) (*User, error) {
	if err := validateRegistrationForm(name, email, password); err != nil {
		c.recordErr(err)
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	session, err := c.api.Register(ctx, name, email, password)
	if err == nil {
		if err := c.store.SaveSession(session.User, session.Token); err != nil {
			c.logger.Warn("failed to cache session", slog.String("error", err.Error()))
		}
		c.setAuthenticated(session.User, session.Token)
		return session.User, nil
	}

	if !errors.Is(err, ErrOffline) {
		c.recordErr(err)
		return nil, err
	}

	u, offErr := c.offlineRegister(name, email, password)
	if offErr != nil {
		c.recordErr(offErr)
		return nil, offErr
	}
	return u, nil
}

// offlineRegister creates a local-only account and signs it in.
func (c *Controller) offlineRegister(name, email, password string) (*User, error) {
	now := time.Now().UTC()
	acc := OfflineAccount{
		ID:               "offline-" + uuid.New().String(),
		Name:             strings.TrimSpace(name),
		Email:            strings.ToLower(strings.TrimSpace(email)),
		PasswordVerifier: PasswordVerifier(password),
		CreatedAt:        now,
		LastLogin:        &now,
		IsOffline:        true,
	}

	if err := c.store.AddOfflineAccount(acc); err != nil {
		return nil, ErrAlreadyRegistered
	}

	u := offlineUser(&acc)
	token := "offline-" + uuid.New().String()
	if err := c.store.SaveSession(u, token); err != nil {
		c.logger.Warn("failed to cache offline session", slog.String("error", err.Error()))
	}
	c.setAuthenticated(u, token)

	c.logger.Info("offline registration", slog.String("email", u.Email))
	return u, nil
}

// LoginWithGoogle runs the provider sign-in flow and forwards the issued
// assertion to the backend. Without a configured provider, the fixed demo
// identity is used instead; provider failures surface as errors rather
// than silently degrading to the demo account.
func (c *Controller) LoginWithGoogle(ctx context.Context) (*User, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if c.provider == nil {
		u := demoUser()
		token := "demo-" + uuid.New().String()
		if err := c.store.SaveSession(u, token); err != nil {
			c.logger.Warn("failed to cache demo session", slog.String("error", err.Error()))
		}
		c.setAuthenticated(u, token)
		c.logger.Info("demo sign-in (no provider configured)")
		return u, nil
	}

	if c.gate != nil {
		if err := c.gate.Wait(ctx, providerReadyTimeout); err != nil {
			c.recordErr(err)
			return nil, err
		}
	}

	credential, err := c.provider.SignIn(ctx)
	if err != nil {
		err = fmt.Errorf("google sign-in failed: %w", err)
		c.recordErr(err)
		return nil, err
	}

	session, err := c.api.GoogleSignIn(ctx, credential)
	if err != nil {
		c.recordErr(err)
		return nil, err
	}

	if err := c.store.SaveSession(session.User, session.Token); err != nil {
		c.logger.Warn("failed to cache session", slog.String("error", err.Error()))
	}
	c.setAuthenticated(session.User, session.Token)
	return session.User, nil
}

// Logout notifies the backend best-effort and then unconditionally clears
// local state. It always succeeds locally.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token != "" {
		if err := c.api.Logout(ctx, token); err != nil {
			c.logger.Warn("backend logout failed, clearing local session anyway",
				slog.String("error", err.Error()),
			)
		}
	}

	if err := c.store.ClearSession(); err != nil {
		c.logger.Warn("failed to clear cached session", slog.String("error", err.Error()))
	}
	c.setAnonymous(nil)
}

func (c *Controller) recordErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func offlineUser(acc *OfflineAccount) *User {
	return &User{
		ID:            acc.ID,
		Email:         acc.Email,
		Name:          acc.Name,
		LoginProvider: "manual",
		CreatedAt:     acc.CreatedAt,
		UpdatedAt:     acc.CreatedAt,
		LastLogin:     acc.LastLogin,
		IsOffline:     true,
	}
}
