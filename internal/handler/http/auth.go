package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"
	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/validator"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/service"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service        *service.UserService
	googleClientID string
	logger         *slog.Logger
	dev            bool
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.UserService, googleClientID string, logger *slog.Logger, dev bool) *AuthHandler {
	return &AuthHandler{service: svc, googleClientID: googleClientID, logger: logger, dev: dev}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for user registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleRequest is the JSON request body for Google sign-in.
type GoogleRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// --- Response types ---

// AuthResponse wraps user data with the session token.
type AuthResponse struct {
	User  any    `json:"user"`
	Token string `json:"token"`
}

// --- Handlers ---

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}

	user, token, err := h.service.Register(r.Context(), input)
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}

	writeSuccess(w, http.StatusCreated, "registration successful", AuthResponse{
		User:  user,
		Token: token,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}

	user, token, err := h.service.Login(r.Context(), input)
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", AuthResponse{
		User:  user,
		Token: token,
	})
}

// GoogleAuth handles POST /api/auth/google
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	if h.googleClientID == "" {
		writeJSON(w, http.StatusServiceUnavailable, response{
			Success: false,
			Message: "google sign-in is not configured",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req GoogleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	claims, err := auth.DecodeGoogleCredential(req.Credential, h.googleClientID)
	if err != nil {
		writeAppError(w, r, apperrors.Unauthorized("invalid google credential"), h.logger, h.dev)
		return
	}

	profile := service.GoogleProfile{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}

	user, token, err := h.service.GoogleAuth(r.Context(), profile)
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}

	writeSuccess(w, http.StatusOK, "google sign-in successful", AuthResponse{
		User:  user,
		Token: token,
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless so there is
// nothing to revoke server-side; the reply exists so clients always get a
// success to clear their local session against.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if u := UserFromContext(r.Context()); u != nil {
		h.logger.InfoContext(r.Context(), "user logged out", slog.String("user_id", u.ID))
	}
	writeSuccess(w, http.StatusOK, "logged out", nil)
}

// VerifyToken handles POST /api/auth/verify-token. The Auth middleware has
// already resolved the user; reaching here means the token is valid.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "token is valid", map[string]any{"user": u})
}
