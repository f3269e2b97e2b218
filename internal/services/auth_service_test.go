package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(users *MockUserStore, sessions *MockSessionStore, audit *MockAuditor) *AuthService {
	return NewAuthService(users, sessions, &MockTxRunner{}, audit, slog.Default())
}

func TestAuthService_SignIn_Success(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")

	var savedUser *models.User
	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			savedUser = u
			return u, nil
		},
	}
	var issuedToken string
	mockSessions := &MockSessionStore{
		ReplaceFunc: func(ctx context.Context, userID uuid.UUID, token string) (*models.Session, error) {
			issuedToken = token
			return &models.Session{Token: token, UserID: userID}, nil
		},
	}
	audit := &MockAuditor{}
	svc := newAuthService(mockUsers, mockSessions, audit)

	result, token, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", false, RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, user, result)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, issuedToken)
	assert.NotNil(t, savedUser.LastActiveAt)

	require.Len(t, audit.Recorded, 1)
	assert.Equal(t, models.AuditActionSignIn, audit.Recorded[0].Action)
	assert.Equal(t, user.ID, *audit.Recorded[0].ActorID)
}

func TestAuthService_SignIn_WrongPassword(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	audit := &MockAuditor{}
	svc := newAuthService(mockUsers, &MockSessionStore{}, audit)

	_, token, err := svc.SignIn(context.Background(), "johndoe_77", "wrong-pass", false, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Empty(t, token)
	assert.Empty(t, audit.Recorded)
	require.Len(t, audit.Observed, 1)
	assert.False(t, audit.Observed[0].Success)
	assert.Equal(t, "invalid_credentials", audit.Observed[0].FailureReason)
}

func TestAuthService_SignIn_UnknownIdentifier(t *testing.T) {
	audit := &MockAuditor{}
	svc := newAuthService(&MockUserStore{}, &MockSessionStore{}, audit)

	_, _, err := svc.SignIn(context.Background(), "nobody@example.com", "Valid-pass42", false, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	require.Len(t, audit.Observed, 1)
	assert.Equal(t, "unknown_identifier", audit.Observed[0].FailureReason)
}

func TestAuthService_SignIn_DeactivatedWithReason(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	user.Active = false
	user.DeactivationReason = strPtr("spam")

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAuthService(mockUsers, &MockSessionStore{}, &MockAuditor{})

	_, _, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", false, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrAccountDeactivated)
	assert.False(t, user.Active)
	assert.NotNil(t, user.DeactivationReason)
}

func TestAuthService_SignIn_ReactivateFlag(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	user.Active = false
	user.DeactivationReason = strPtr("spam")

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	audit := &MockAuditor{}
	svc := newAuthService(mockUsers, &MockSessionStore{}, audit)

	result, token, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", true, RequestMeta{})

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, result.Active)
	assert.Nil(t, result.DeactivationReason)

	// Reactivation and sign-in both end up in the trail
	require.Len(t, audit.Recorded, 2)
	assert.Equal(t, models.AuditActionAccountReactivate, audit.Recorded[0].Action)
	assert.Equal(t, models.AuditActionSignIn, audit.Recorded[1].Action)
}

func TestAuthService_SignIn_BlockedAccount(t *testing.T) {
	// Inactive with no recorded reason is an administrative block; the
	// activate flag does not apply.
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	user.Active = false

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAuthService(mockUsers, &MockSessionStore{}, &MockAuditor{})

	_, _, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", true, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrAccountBlocked)
}

func TestAuthService_SignIn_DeletedAccount(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "deleted-john@example.com", "Valid-pass42")
	user.Deleted = true

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAuthService(mockUsers, &MockSessionStore{}, &MockAuditor{})

	_, _, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", false, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_SignIn_TransactionFailure(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")

	mockUsers := &MockUserStore{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	tx := &MockTxRunner{
		WithTransactionFunc: func(ctx context.Context, fn func(pgx.Tx) error) error {
			return assert.AnError
		},
	}
	svc := NewAuthService(mockUsers, &MockSessionStore{}, tx, &MockAuditor{}, slog.Default())

	_, _, err := svc.SignIn(context.Background(), "johndoe_77", "Valid-pass42", false, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestAuthService_SignOut_Scopes(t *testing.T) {
	userID := uuid.New()
	deletes := 0
	mockSessions := &MockSessionStore{
		DeleteByUserIDFunc: func(ctx context.Context, id uuid.UUID) error {
			deletes++
			return nil
		},
	}
	svc := newAuthService(&MockUserStore{}, mockSessions, &MockAuditor{})

	require.NoError(t, svc.SignOut(context.Background(), userID, models.SessionScopeApp))
	require.NoError(t, svc.SignOut(context.Background(), userID, models.SessionScopeAll))
	assert.Equal(t, 2, deletes)

	// web scope leaves the bearer token alone
	require.NoError(t, svc.SignOut(context.Background(), userID, models.SessionScopeWeb))
	assert.Equal(t, 2, deletes)

	assert.ErrorIs(t, svc.SignOut(context.Background(), userID, "desktop"), models.ErrBadRequest)
}

func TestAuthService_SignOut_Idempotent(t *testing.T) {
	// Store treats deleting an absent row as success
	svc := newAuthService(&MockUserStore{}, &MockSessionStore{}, &MockAuditor{})

	assert.NoError(t, svc.SignOut(context.Background(), uuid.New(), models.SessionScopeApp))
	assert.NoError(t, svc.SignOut(context.Background(), uuid.New(), models.SessionScopeApp))
}

func TestAuthService_ChangePassword_Success(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	oldHash := user.PasswordHash

	var savedUser *models.User
	mockUsers := &MockUserStore{
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			savedUser = u
			return u, nil
		},
	}
	audit := &MockAuditor{}
	svc := newAuthService(mockUsers, &MockSessionStore{}, audit)

	err := svc.ChangePassword(context.Background(), user, "Valid-pass42", "N3w-valid-pass!", RequestMeta{})

	require.NoError(t, err)
	require.NotNil(t, savedUser)
	assert.NotEqual(t, oldHash, savedUser.PasswordHash)

	require.Len(t, audit.Recorded, 1)
	assert.Equal(t, models.AuditActionPasswordChange, audit.Recorded[0].Action)
}

func TestAuthService_ChangePassword_WrongOldPassword(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	oldHash := user.PasswordHash

	updated := false
	mockUsers := &MockUserStore{
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			updated = true
			return u, nil
		},
	}
	audit := &MockAuditor{}
	svc := newAuthService(mockUsers, &MockSessionStore{}, audit)

	err := svc.ChangePassword(context.Background(), user, "wrong-old", "N3w-valid-pass!", RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.False(t, updated)
	assert.Equal(t, oldHash, user.PasswordHash)
	require.Len(t, audit.Observed, 1)
	assert.False(t, audit.Observed[0].Success)
}

func TestAuthService_ChangePassword_WeakNewPassword(t *testing.T) {
	user := NewTestUserWithPassword("johndoe_77", "john@example.com", "Valid-pass42")
	svc := newAuthService(&MockUserStore{}, &MockSessionStore{}, &MockAuditor{})

	err := svc.ChangePassword(context.Background(), user, "Valid-pass42", "weak", RequestMeta{})

	assert.ErrorIs(t, err, models.ErrWeakPassword)
}
