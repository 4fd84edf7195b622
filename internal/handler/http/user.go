package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/validator"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/service"
)

// UserHandler handles HTTP requests for user profile endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
	dev     bool
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger, dev bool) *UserHandler {
	return &UserHandler{service: svc, logger: logger, dev: dev}
}

// UpdateProfileRequest is the JSON request body for profile updates.
type UpdateProfileRequest struct {
	Name    *string        `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Profile map[string]any `json:"profile,omitempty"`
}

// GetProfile handles GET /api/users/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "", map[string]any{"user": u})
}

// UpdateProfile handles PUT /api/users/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Message: "invalid request body"})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), u, service.UpdateProfileInput{
		Name:    req.Name,
		Profile: req.Profile,
	})
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}

	writeSuccess(w, http.StatusOK, "profile updated", map[string]any{"user": updated})
}

// DeleteAccount handles DELETE /api/users/account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())

	deleted, err := h.service.DeleteByID(r.Context(), u.ID)
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "account not found"})
		return
	}

	h.logger.InfoContext(r.Context(), "account deleted", slog.String("user_id", u.ID))
	writeSuccess(w, http.StatusOK, "account deleted", nil)
}

// GetStats handles GET /api/users/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())

	stats, err := h.service.Stats(r.Context(), u)
	if err != nil {
		writeAppError(w, r, err, h.logger, h.dev)
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{"stats": stats})
}
