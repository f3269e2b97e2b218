package routes

import (
	"time"

	"github.com/averill/accounthub/internal/auth"
	"github.com/averill/accounthub/internal/handlers"
	"github.com/averill/accounthub/internal/middleware"
	"github.com/averill/accounthub/internal/repositories"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	userHandler *handlers.UserHandler,
	authHandler *handlers.AuthHandler,
	auditHandler *handlers.AuditHandler,
	sessions repositories.SessionStore,
	users repositories.UserStore,
	sessionTTL time.Duration,
) {
	// Rate limiting for endpoints that take credentials or trigger
	// outbound messages
	rateLimitConfig := middleware.DefaultCredentialRateLimit()
	limited := middleware.RateLimitByIP(rateLimitConfig)

	// Public routes - no authentication required
	router.With(limited).Post("/users/sign-up", userHandler.SignUp)
	router.With(limited).Post("/users/sign-in", authHandler.SignIn)
	router.Get("/users/email-verify/{token}", userHandler.VerifyEmail)
	router.With(limited).Post("/users/resend-email-verification", userHandler.ResendEmailVerification)
	router.With(limited).Post("/users/otp-verify", userHandler.VerifyOTP)
	router.With(limited).Post("/users/resend-otp", userHandler.ResendOTP)

	// Protected routes - session token required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessions, users, sessionTTL))

		r.Get("/users/me", userHandler.Me)
		r.Get("/users/sign-out", authHandler.SignOut)
		r.Patch("/users/password-change", authHandler.ChangePassword)
		r.Patch("/users/add-phone", userHandler.AddPhone)
		r.Post("/users/device-token", userHandler.RegisterDeviceToken)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/users", userHandler.List)
			r.Delete("/users/{id}", userHandler.Delete)
			r.Get("/audit", auditHandler.List)
		})
	})
}
