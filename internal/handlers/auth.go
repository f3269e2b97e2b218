package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/averill/accounthub/internal/auth"
	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/services"
	pkghttp "github.com/averill/accounthub/pkg/http"
	"github.com/google/uuid"
)

// AuthServiceInterface defines the interface for authentication logic
type AuthServiceInterface interface {
	SignIn(ctx context.Context, identifier, password string, activate bool, meta services.RequestMeta) (*models.User, string, error)
	SignOut(ctx context.Context, userID uuid.UUID, scope string) error
	ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string, meta services.RequestMeta) error
}

// AuthHandler handles sign-in, sign-out and password change requests
type AuthHandler struct {
	service        AuthServiceInterface
	trustedProxies []string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, trustedProxies []string) *AuthHandler {
	return &AuthHandler{
		service:        service,
		trustedProxies: trustedProxies,
	}
}

func (h *AuthHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		Headers: pkghttp.SnapshotHeaders(r),
		IP:      pkghttp.ExtractClientIP(r, h.trustedProxies),
	}
}

// SignInRequest represents the request body for sign-in. The identifier may
// be a username, an email or a phone number.
type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Activate   bool   `json:"activate"`
}

// PasswordChangeRequest represents the request body for a password change
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// SignIn authenticates a user and issues a session token
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, token, err := h.service.SignIn(r.Context(), strings.TrimSpace(req.Identifier), req.Password, req.Activate, h.requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Wrong credentials")
		case errors.Is(err, models.ErrAccountDeactivated):
			pkghttp.WriteForbidden(w, "Account is deactivated; sign in with activate=true to reactivate")
		case errors.Is(err, models.ErrAccountBlocked):
			pkghttp.WriteForbidden(w, "Account is temporarily blocked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SignInResponse{
		Token: token,
		User:  userModelToResponse(user),
	})
}

// SignOut revokes the caller's session for the requested scope. The scope
// comes from the session_type query parameter and defaults to all.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	scope := r.URL.Query().Get("session_type")
	if scope == "" {
		scope = models.SessionScopeAll
	}

	if err := h.service.SignOut(r.Context(), user.ID, scope); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "session_type must be one of: app, web, all")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// Web sessions ride on a cookie; expire it for the web and all scopes.
	if scope == models.SessionScopeWeb || scope == models.SessionScopeAll {
		http.SetCookie(w, &http.Cookie{
			Name:     "session",
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Signed out"})
}

// ChangePassword updates the caller's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), user, req.OldPassword, req.NewPassword, h.requestMeta(r)); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Wrong credentials")
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed"})
}
