package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/logger"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/domain"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/service"
)

type contextKey string

const userContextKey contextKey = "authenticated_user"

// UserFromContext returns the user attached by the Auth middleware, or nil
// for anonymous requests.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userContextKey).(*domain.User)
	return u
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				writeJSON(w, http.StatusUnsupportedMediaType, response{
					Success: false,
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	Environment    string
}

// CORS returns a middleware that sets Cross-Origin Resource Sharing headers.
// In development mode (or when AllowedOrigins contains "*"), a wildcard
// origin is used. Otherwise only the listed origins are allowed and the
// request Origin header is validated against the list.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowWildcard := cfg.Environment == "development"
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowWildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowWildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveUser extracts the bearer token, verifies it, and loads the
// referenced user. It returns nil without distinguishing failure causes
// so the caller can reply with a uniform message.
func resolveUser(r *http.Request, tokens *auth.TokenManager, users *service.UserService) *domain.User {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return nil
	}

	userID, err := tokens.Verify(parts[1])
	if err != nil {
		return nil
	}

	u, err := users.FindByID(r.Context(), userID)
	if err != nil || u == nil {
		return nil
	}
	return u
}

// Auth requires a valid bearer token resolving to an existing user. Missing
// header, malformed header, bad signature, expired token, and deleted user
// all produce the same 401 reply.
func Auth(tokens *auth.TokenManager, users *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := resolveUser(r, tokens, users)
			if u == nil {
				writeJSON(w, http.StatusUnauthorized, response{
					Success: false,
					Message: "authentication required",
				})
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, u)
			ctx = logger.WithUserID(ctx, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user when a valid bearer token is present and
// lets the request through anonymously otherwise. It never rejects.
func OptionalAuth(tokens *auth.TokenManager, users *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := resolveUser(r, tokens, users); u != nil {
				ctx := context.WithValue(r.Context(), userContextKey, u)
				ctx = logger.WithUserID(ctx, u.ID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
