package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/health"
	"github.com/prakulphogat2922-ctrl/AleartECO/pkg/middleware"

	"github.com/prakulphogat2922-ctrl/AleartECO/internal/auth"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/config"
	"github.com/prakulphogat2922-ctrl/AleartECO/internal/service"
)

// NewRouter creates a chi router with all backend routes registered.
func NewRouter(
	cfg *config.Config,
	userService *service.UserService,
	tokens *auth.TokenManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	dev := cfg.IsDevelopment()

	// Global middleware
	r.Use(CORS(CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, Environment: cfg.Environment}))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("alearteco"))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst,
		"too many requests, please try again later", logger))

	// Health check endpoints
	r.Get("/api/health", healthHandler.ReadinessHandler())
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(userService, cfg.GoogleClientID, logger, dev)
	userHandler := NewUserHandler(userService, logger, dev)

	// Auth endpoints. Credential-bearing routes carry a stricter per-IP
	// limit than the rest of the API.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.RateLimit(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst,
			"too many authentication attempts, please try again later", logger))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/google", authHandler.GoogleAuth)

		// Logout succeeds even without a usable token so clients can
		// always clear their local session.
		r.With(OptionalAuth(tokens, userService)).Post("/logout", authHandler.Logout)
		r.With(Auth(tokens, userService)).Post("/verify-token", authHandler.VerifyToken)
	})

	// Profile endpoints (auth required)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Auth(tokens, userService))

		r.Get("/profile", userHandler.GetProfile)
		r.Put("/profile", userHandler.UpdateProfile)
		r.Delete("/account", userHandler.DeleteAccount)
		r.Get("/stats", userHandler.GetStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, response{Success: false, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, response{Success: false, Message: "method not allowed"})
	})

	return r
}
