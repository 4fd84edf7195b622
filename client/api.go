// Package client is the Go SDK for the backend: a thin API client plus a
// session controller that reconciles cached, remote, and fully offline
// credentials.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/httpclient"
)

// ErrOffline marks a transport-level failure: the backend could not be
// reached at all, as opposed to rejecting the request. Callers branch on
// it to trigger offline fallback.
var ErrOffline = errors.New("backend unreachable")

// User is the wire representation of a user account. IsOffline is set only
// on sessions synthesized from the local offline account store; the backend
// never sends it.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	IsVerified    bool           `json:"isVerified"`
	LoginProvider string         `json:"loginProvider"`
	Profile       map[string]any `json:"profile,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastLogin     *time.Time     `json:"lastLogin,omitempty"`
	IsOffline     bool           `json:"isOffline,omitempty"`
}

// Session pairs a user with the bearer token that authenticates them.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// APIError is a rejection from the backend: the request arrived and was
// refused. Never wrapped in ErrOffline.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// envelope is the uniform reply shape for every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// API is the HTTP client for the backend auth and profile endpoints.
type API struct {
	baseURL string
	http    *httpclient.Client
}

// NewAPI creates an API client for the given base URL.
func NewAPI(baseURL string) *API {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 10 * time.Second
	return NewAPIWithConfig(baseURL, cfg)
}

// NewAPIWithConfig creates an API client with explicit transport settings.
func NewAPIWithConfig(baseURL string, cfg httpclient.Config) *API {
	return &API{
		baseURL: baseURL,
		http:    httpclient.New(cfg),
	}
}

// do issues a JSON request and decodes the envelope. Transport failures are
// wrapped in ErrOffline; backend rejections become *APIError.
func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(ctx, req)
	if err != nil {
		if httpclient.IsNetworkError(err) {
			return fmt.Errorf("%w: %v", ErrOffline, err)
		}
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

// Login authenticates a manual account.
func (a *API) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Register creates a manual account.
func (a *API) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GoogleSignIn forwards a provider-issued identity assertion.
func (a *API) GoogleSignIn(ctx context.Context, credential string) (*Session, error) {
	var s Session
	body := map[string]string{"credential": credential}
	if err := a.do(ctx, http.MethodPost, "/api/auth/google", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// VerifyToken asks the backend whether a token is still good, returning the
// current user record when it is.
func (a *API) VerifyToken(ctx context.Context, token string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/auth/verify-token", token, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout notifies the backend. Callers treat failures as non-fatal.
func (a *API) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

// Profile fetches the authenticated user's record.
func (a *API) Profile(ctx context.Context, token string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/users/profile", token, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// UpdateProfile updates mutable profile fields.
func (a *API) UpdateProfile(ctx context.Context, token string, name *string, profile map[string]any) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	body := map[string]any{}
	if name != nil {
		body["name"] = *name
	}
	if profile != nil {
		body["profile"] = profile
	}
	if err := a.do(ctx, http.MethodPut, "/api/users/profile", token, body, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// DeleteAccount removes the authenticated user's record.
func (a *API) DeleteAccount(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodDelete, "/api/users/account", token, nil, nil)
}
