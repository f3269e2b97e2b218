package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(users *MockUserStore, sessions *MockSessionStore, devices *MockDeviceTokenStore, audit *MockAuditor, notifier *MockNotifier) *AccountService {
	return NewAccountService(users, sessions, devices, &MockTxRunner{}, audit, notifier, slog.Default())
}

func strPtr(s string) *string { return &s }

func TestAccountService_SignUp_Success(t *testing.T) {
	var created *models.User
	mockUsers := &MockUserStore{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = uuid.New()
			user.CreatedAt = time.Now()
			created = user
			return user, nil
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	result, err := svc.SignUp(context.Background(), SignUpInput{
		Username:        "johndoe_77",
		Email:           "John@Example.com",
		Phone:           strPtr("+14155550100"),
		Password:        "Valid-pass42",
		TermsAccepted:   true,
		PrivacyAccepted: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, created, result)

	// Password is stored only as a hash
	assert.NotEqual(t, "Valid-pass42", result.PasswordHash)
	assert.NotContains(t, result.PasswordHash, "Valid-pass42")

	// Email normalized, activation token issued, not yet verified
	assert.Equal(t, "john@example.com", result.Email)
	require.NotNil(t, result.ActivationToken)
	assert.NotNil(t, result.ActivationTokenCreatedAt)
	assert.False(t, result.EmailVerified)

	// OTP issued for the phone
	require.NotNil(t, result.OTP)
	assert.Len(t, *result.OTP, 6)
	assert.False(t, result.PhoneVerified)

	assert.True(t, result.Active)
	assert.True(t, result.TermsAccepted)

	// Both notifications dispatched
	require.Len(t, notifier.Emails, 1)
	assert.Equal(t, "john@example.com", notifier.Emails[0])
	assert.Equal(t, *result.ActivationToken, notifier.Tokens[0])
	require.Len(t, notifier.SMS, 1)
	assert.Equal(t, "+14155550100", notifier.SMS[0])
	assert.Equal(t, *result.OTP, notifier.OTPs[0])
}

func TestAccountService_SignUp_NoPhone_NoSMS(t *testing.T) {
	mockUsers := &MockUserStore{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	result, err := svc.SignUp(context.Background(), SignUpInput{
		Username:      "johndoe_77",
		Email:         "john@example.com",
		Password:      "Valid-pass42",
		TermsAccepted: true,
	})

	require.NoError(t, err)
	assert.Nil(t, result.OTP)
	assert.Len(t, notifier.Emails, 1)
	assert.Empty(t, notifier.SMS)
}

func TestAccountService_SignUp_InvalidUsername(t *testing.T) {
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	cases := []string{
		"short",                           // below minimum length
		"7startsdigit",                    // first char not alphabetic
		"has space in it",                 // illegal character
		"waaaaaaaaaaaaaaaaaaaaaaaytoolongname", // above maximum length
	}
	for _, username := range cases {
		_, err := svc.SignUp(context.Background(), SignUpInput{
			Username:      username,
			Email:         "john@example.com",
			Password:      "Valid-pass42",
			TermsAccepted: true,
		})
		assert.ErrorIs(t, err, models.ErrBadRequest, "username %q", username)
	}
}

func TestAccountService_SignUp_WeakPassword(t *testing.T) {
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Username:      "johndoe_77",
		Email:         "john@example.com",
		Password:      "password123",
		TermsAccepted: true,
	})

	assert.ErrorIs(t, err, models.ErrWeakPassword)
}

func TestAccountService_SignUp_TermsNotAccepted(t *testing.T) {
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Username:      "johndoe_77",
		Email:         "john@example.com",
		Password:      "Valid-pass42",
		TermsAccepted: false,
	})

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAccountService_SignUp_DuplicateEmail(t *testing.T) {
	mockUsers := &MockUserStore{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, &models.DuplicateFieldError{Field: "email"}
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Username:      "johndoe_77",
		Email:         "john@example.com",
		Password:      "Valid-pass42",
		TermsAccepted: true,
	})

	assert.ErrorIs(t, err, models.ErrDuplicateField)
	var dup *models.DuplicateFieldError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)
	assert.Empty(t, notifier.Emails)
}

func TestAccountService_VerifyEmail_Success(t *testing.T) {
	token := uuid.New()
	now := time.Now()
	user := NewTestUser("johndoe_77", "john@example.com")
	user.EmailVerified = false
	user.ActivationToken = &token
	user.ActivationTokenCreatedAt = &now

	mockUsers := &MockUserStore{
		GetByActivationTokenFunc: func(ctx context.Context, got uuid.UUID) (*models.User, error) {
			if got == token {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	result, err := svc.VerifyEmail(context.Background(), token)

	require.NoError(t, err)
	assert.True(t, result.EmailVerified)
	assert.Nil(t, result.ActivationToken)
	assert.Nil(t, result.ActivationTokenCreatedAt)
}

func TestAccountService_VerifyEmail_ConsumedToken(t *testing.T) {
	// Token already consumed: lookup finds nothing
	mockUsers := &MockUserStore{
		GetByActivationTokenFunc: func(ctx context.Context, got uuid.UUID) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	result, err := svc.VerifyEmail(context.Background(), uuid.New())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrExpiredOrInvalidToken)
}

func TestAccountService_ResendEmailVerification_Success(t *testing.T) {
	oldToken := uuid.New()
	user := NewTestUser("johndoe_77", "john@example.com")
	user.EmailVerified = false
	user.ActivationToken = &oldToken

	mockUsers := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	err := svc.ResendEmailVerification(context.Background(), "john@example.com")

	require.NoError(t, err)
	require.NotNil(t, user.ActivationToken)
	assert.NotEqual(t, oldToken, *user.ActivationToken)
	require.Len(t, notifier.Tokens, 1)
	assert.Equal(t, *user.ActivationToken, notifier.Tokens[0])
}

func TestAccountService_ResendEmailVerification_AlreadyVerified(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")

	mockUsers := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	err := svc.ResendEmailVerification(context.Background(), "john@example.com")

	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
	assert.Empty(t, notifier.Emails)
}

func TestAccountService_VerifyOTP_Success(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	user.Phone = strPtr("+14155550100")
	user.OTP = strPtr("123456")

	mockUsers := &MockUserStore{
		GetByPhoneFunc: func(ctx context.Context, phone string) (*models.User, error) {
			return user, nil
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	result, err := svc.VerifyOTP(context.Background(), "+14155550100", "123456")

	require.NoError(t, err)
	assert.True(t, result.PhoneVerified)
	assert.Nil(t, result.OTP)
	assert.Nil(t, result.OTPCreatedAt)
}

func TestAccountService_VerifyOTP_WrongCode(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	user.Phone = strPtr("+14155550100")
	user.OTP = strPtr("123456")

	updated := false
	mockUsers := &MockUserStore{
		GetByPhoneFunc: func(ctx context.Context, phone string) (*models.User, error) {
			return user, nil
		},
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			updated = true
			return u, nil
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	result, err := svc.VerifyOTP(context.Background(), "+14155550100", "654321")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
	assert.False(t, updated)
	assert.False(t, user.PhoneVerified)
	assert.NotNil(t, user.OTP)
}

func TestAccountService_VerifyOTP_UnknownPhone_SameError(t *testing.T) {
	// Unknown phone and stored-OTP-absent collapse into the same error as a
	// wrong code, so the response never leaks which check failed.
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err := svc.VerifyOTP(context.Background(), "+14155550999", "123456")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)

	user := NewTestUser("johndoe_77", "john@example.com")
	user.Phone = strPtr("+14155550100")
	mockUsers := &MockUserStore{
		GetByPhoneFunc: func(ctx context.Context, phone string) (*models.User, error) {
			return user, nil
		},
	}
	svc = newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err = svc.VerifyOTP(context.Background(), "+14155550100", "123456")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
}

func TestAccountService_ResendOTP_NoVerifiedGuard(t *testing.T) {
	// Unlike the email resend, a verified phone still gets a fresh OTP.
	user := NewTestUser("johndoe_77", "john@example.com")
	user.Phone = strPtr("+14155550100")
	user.PhoneVerified = true

	mockUsers := &MockUserStore{
		GetByPhoneFunc: func(ctx context.Context, phone string) (*models.User, error) {
			return user, nil
		},
	}
	notifier := &MockNotifier{}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	err := svc.ResendOTP(context.Background(), "+14155550100")

	require.NoError(t, err)
	require.NotNil(t, user.OTP)
	require.Len(t, notifier.OTPs, 1)
	assert.Equal(t, *user.OTP, notifier.OTPs[0])
}

func TestAccountService_ResendOTP_UnknownPhone(t *testing.T) {
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	err := svc.ResendOTP(context.Background(), "+14155550999")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountService_AddPhone_ResetsVerification(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	user.Phone = strPtr("+14155550100")
	user.PhoneVerified = true

	notifier := &MockNotifier{}
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, notifier)

	result, err := svc.AddPhone(context.Background(), user, "+14155550222")

	require.NoError(t, err)
	assert.Equal(t, "+14155550222", *result.Phone)
	assert.False(t, result.PhoneVerified)
	require.NotNil(t, result.OTP)
	require.Len(t, notifier.SMS, 1)
	assert.Equal(t, "+14155550222", notifier.SMS[0])
}

func TestAccountService_AddPhone_DuplicatePhone(t *testing.T) {
	user := NewTestUser("johndoe_77", "john@example.com")
	mockUsers := &MockUserStore{
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			return nil, &models.DuplicateFieldError{Field: "phone"}
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err := svc.AddPhone(context.Background(), user, "+14155550222")

	assert.ErrorIs(t, err, models.ErrDuplicateField)
}

func TestAccountService_SoftDelete_Success(t *testing.T) {
	admin := NewTestUser("admin_user", "admin@example.com")
	admin.Staff = true

	target := NewTestUser("johndoe_77", "john@example.com")
	target.Phone = strPtr("+14155550100")

	var saved *models.User
	mockUsers := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return target, nil
		},
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			saved = u
			return u, nil
		},
	}
	sessionDeleted := false
	mockSessions := &MockSessionStore{
		DeleteByUserIDFunc: func(ctx context.Context, userID uuid.UUID) error {
			sessionDeleted = true
			return nil
		},
	}
	audit := &MockAuditor{}
	svc := newAccountService(mockUsers, mockSessions, &MockDeviceTokenStore{}, audit, &MockNotifier{})

	err := svc.SoftDelete(context.Background(), admin, target.ID, RequestMeta{})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "deleted-john@example.com", saved.Email)
	assert.Nil(t, saved.Phone)
	assert.Equal(t, "+14155550100", *saved.DeletedPhone)
	assert.True(t, saved.Deleted)
	assert.False(t, saved.Active)
	assert.NotNil(t, saved.DeletedAt)
	assert.True(t, sessionDeleted)

	require.Len(t, audit.Recorded, 1)
	entry := audit.Recorded[0]
	assert.Equal(t, models.AuditActionUserDeleted, entry.Action)
	assert.Equal(t, admin.ID, *entry.ActorID)
	assert.Equal(t, target.ID, *entry.TargetID)
	assert.Equal(t, "john@example.com", entry.OldState["email"])
	assert.Equal(t, "deleted-john@example.com", entry.NewState["email"])
}

func TestAccountService_SoftDelete_PrefixStacksOnCollision(t *testing.T) {
	admin := NewTestUser("admin_user", "admin@example.com")
	admin.Superuser = true

	target := NewTestUser("johndoe_77", "john@example.com")

	var saved *models.User
	mockUsers := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return target, nil
		},
		EmailExistsFunc: func(ctx context.Context, email string) (bool, error) {
			// A previously deleted row already holds the first candidate
			return email == "deleted-john@example.com", nil
		},
		UpdateFunc: func(ctx context.Context, u *models.User) (*models.User, error) {
			saved = u
			return u, nil
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	err := svc.SoftDelete(context.Background(), admin, target.ID, RequestMeta{})

	require.NoError(t, err)
	assert.Equal(t, "deleted-deleted-john@example.com", saved.Email)
}

func TestAccountService_SoftDelete_NotAdmin(t *testing.T) {
	actor := NewTestUser("plain_user", "plain@example.com")
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	err := svc.SoftDelete(context.Background(), actor, uuid.New(), RequestMeta{})

	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestAccountService_SoftDelete_AlreadyDeleted(t *testing.T) {
	admin := NewTestUser("admin_user", "admin@example.com")
	admin.Staff = true

	target := NewTestUser("johndoe_77", "deleted-john@example.com")
	target.Deleted = true

	mockUsers := &MockUserStore{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			return target, nil
		},
	}
	svc := newAccountService(mockUsers, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	err := svc.SoftDelete(context.Background(), admin, target.ID, RequestMeta{})

	assert.ErrorIs(t, err, models.ErrAlreadyDeleted)
}

func TestAccountService_RegisterDeviceToken_Success(t *testing.T) {
	userID := uuid.New()
	reapedToken := ""
	mockDevices := &MockDeviceTokenStore{
		ReapOtherOwnersFunc: func(ctx context.Context, token string, keepUserID uuid.UUID) (int64, error) {
			reapedToken = token
			return 1, nil
		},
	}
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, mockDevices, &MockAuditor{}, &MockNotifier{})

	binding, err := svc.RegisterDeviceToken(context.Background(), userID, models.DeviceTypeAndroid, "fcm-token-1")

	require.NoError(t, err)
	assert.Equal(t, userID, binding.UserID)
	assert.Equal(t, "fcm-token-1", binding.Token)
	assert.Equal(t, "fcm-token-1", reapedToken)
}

func TestAccountService_RegisterDeviceToken_InvalidType(t *testing.T) {
	svc := newAccountService(&MockUserStore{}, &MockSessionStore{}, &MockDeviceTokenStore{}, &MockAuditor{}, &MockNotifier{})

	_, err := svc.RegisterDeviceToken(context.Background(), uuid.New(), "toaster", "fcm-token-1")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}
