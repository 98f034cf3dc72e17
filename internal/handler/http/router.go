package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NipunKumar21/Encore-auth/internal/domain"
	"github.com/NipunKumar21/Encore-auth/internal/service"
	"github.com/NipunKumar21/Encore-auth/internal/token"
	"github.com/NipunKumar21/Encore-auth/pkg/health"
	"github.com/NipunKumar21/Encore-auth/pkg/middleware"
)

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(
	authService *service.AuthService,
	tokenManager *token.Manager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
	clientCallbackURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(authService, clientCallbackURL, logger)
	accountHandler := NewAccountHandler(authService, logger)

	// Token validator that bridges to the internal token manager.
	tokenValidator := func(tok string) (*middleware.Claims, error) {
		claims, err := tokenManager.ValidateAccessToken(tok)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			AccountID: claims.AccountID,
			Email:     claims.Email,
			Role:      claims.Role,
		}, nil
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Public endpoints
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/register", accountHandler.Register)
			r.Post("/login-2fa", authHandler.Login)
			r.Post("/2fa/verify", authHandler.VerifyTwoFactor)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/forgot-password", accountHandler.ForgotPassword)
			r.Post("/reset-password", accountHandler.ResetPassword)
		})

		// Federation endpoints carry no JSON body; the callback is hit by
		// the browser on the way back from Google.
		r.Get("/google", authHandler.GoogleBegin)
		r.Get("/google/callback", authHandler.GoogleCallback)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/logout", authHandler.Logout)
			r.Post("/change-password", accountHandler.ChangePassword)
		})
	})

	// Account self-service endpoints (auth required)
	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", accountHandler.GetProfile)
		r.Post("/me/2fa/enable", accountHandler.EnableTwoFactor)
		r.Post("/me/2fa/disable", accountHandler.DisableTwoFactor)
	})

	// Admin endpoints (admin role required)
	adminHandler := NewAdminHandler(authService, logger)
	r.Route("/api/v1/admin/accounts", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(string(domain.RoleAdmin)))

		r.Get("/", adminHandler.ListAccounts)
		r.Put("/{id}/role", adminHandler.UpdateRole)
		r.Delete("/{id}", adminHandler.Deactivate)
		r.Post("/{id}/reactivate", adminHandler.Reactivate)
	})

	return r
}
