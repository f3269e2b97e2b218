package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_SignIn_Success(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	svc := &MockAuthService{
		SignInFunc: func(ctx context.Context, identifier, password string, activate bool, meta services.RequestMeta) (*models.User, string, error) {
			assert.Equal(t, "johndoe_77", identifier)
			assert.False(t, activate)
			return user, "session-token-1", nil
		},
	}
	h := NewAuthHandler(svc, nil)

	rec := postJSON(t, h.SignIn, "/api/v1/users/sign-in", map[string]interface{}{
		"identifier": "johndoe_77",
		"password":   "Valid-pass42",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp SignInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-token-1", resp.Token)
	assert.Equal(t, user.ID.String(), resp.User.ID)
}

func TestAuthHandler_SignIn_WrongCredentials(t *testing.T) {
	h := NewAuthHandler(&MockAuthService{}, nil)

	rec := postJSON(t, h.SignIn, "/api/v1/users/sign-in", map[string]interface{}{
		"identifier": "johndoe_77",
		"password":   "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_SignIn_Deactivated(t *testing.T) {
	svc := &MockAuthService{
		SignInFunc: func(ctx context.Context, identifier, password string, activate bool, meta services.RequestMeta) (*models.User, string, error) {
			return nil, "", models.ErrAccountDeactivated
		},
	}
	h := NewAuthHandler(svc, nil)

	rec := postJSON(t, h.SignIn, "/api/v1/users/sign-in", map[string]interface{}{
		"identifier": "johndoe_77",
		"password":   "Valid-pass42",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "deactivated")
}

func TestAuthHandler_SignOut_DefaultsToAll(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	var gotScope string
	svc := &MockAuthService{
		SignOutFunc: func(ctx context.Context, userID uuid.UUID, scope string) error {
			gotScope = scope
			return nil
		},
	}
	h := NewAuthHandler(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/sign-out", nil), user)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SessionScopeAll, gotScope)

	// The all scope also expires the web session cookie
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestAuthHandler_SignOut_AppScopeKeepsCookie(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	h := NewAuthHandler(&MockAuthService{}, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/sign-out?session_type=app", nil), user)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuthHandler_SignOut_InvalidScope(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	svc := &MockAuthService{
		SignOutFunc: func(ctx context.Context, userID uuid.UUID, scope string) error {
			return models.ErrBadRequest
		},
	}
	h := NewAuthHandler(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/sign-out?session_type=desktop", nil), user)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	svc := &MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, u *models.User, oldPassword, newPassword string, meta services.RequestMeta) error {
			if oldPassword != "Valid-pass42" {
				return models.ErrInvalidCredentials
			}
			return nil
		},
	}
	h := NewAuthHandler(svc, nil)

	body, _ := json.Marshal(map[string]string{
		"old_password": "Valid-pass42",
		"new_password": "N3w-valid-pass!",
	})
	req := withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/users/password-change", bytes.NewReader(body)), user)
	rec := httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ = json.Marshal(map[string]string{
		"old_password": "wrong-old",
		"new_password": "N3w-valid-pass!",
	})
	req = withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/users/password-change", bytes.NewReader(body)), user)
	rec = httptest.NewRecorder()
	h.ChangePassword(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
