package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/averill/accounthub/internal/models"
	pkghttp "github.com/averill/accounthub/pkg/http"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// UserLoader is the subset of the user store the middleware needs.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionResolver resolves a bearer token to a session row.
type SessionResolver interface {
	GetByToken(ctx context.Context, token string, ttl time.Duration) (*models.Session, error)
}

// Middleware resolves opaque bearer tokens against the sessions table and
// injects the owning user into the request context. Tokens older than ttl
// are treated as absent; ttl <= 0 disables the expiry check.
func Middleware(sessions SessionResolver, users UserLoader, ttl time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			session, err := sessions.GetByToken(r.Context(), parts[1], ttl)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "invalid or expired token")
					return
				}
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			user, err := users.GetByID(r.Context(), session.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "invalid or expired token")
					return
				}
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			// A deleted or deactivated account keeps its row but its token
			// no longer authenticates.
			if user.Deleted || !user.Active {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on the staff or superuser flag. Must run after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		if user == nil {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}
		if !user.IsAdmin() {
			pkghttp.WriteForbidden(w, "permission required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
