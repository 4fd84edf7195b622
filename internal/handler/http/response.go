package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/prakulphogat2922-ctrl/AleartECO/pkg/errors"
	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/validator"
)

// response is the uniform envelope for every JSON reply.
type response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, response{Success: true, Message: message, Data: data})
}

// writeAppError maps a service error to the envelope. Internal causes are
// logged but only surfaced to the client in development mode.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger, detailed bool) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, response{
		Success: false,
		Message: apperrors.UserMessage(err, detailed),
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Success: false,
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{Success: false, Message: err.Error()})
}
