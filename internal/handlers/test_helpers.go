package handlers

import (
	"context"
	"time"

	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/services"
	"github.com/google/uuid"
)

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	SignUpFunc                  func(ctx context.Context, input services.SignUpInput) (*models.User, error)
	VerifyEmailFunc             func(ctx context.Context, token uuid.UUID) (*models.User, error)
	ResendEmailVerificationFunc func(ctx context.Context, email string) error
	VerifyOTPFunc               func(ctx context.Context, phone, otp string) (*models.User, error)
	ResendOTPFunc               func(ctx context.Context, phone string) error
	AddPhoneFunc                func(ctx context.Context, user *models.User, phone string) (*models.User, error)
	GetUserByIDFunc             func(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsersFunc               func(ctx context.Context, limit, offset int) ([]*models.User, error)
	SoftDeleteFunc              func(ctx context.Context, actor *models.User, targetID uuid.UUID, meta services.RequestMeta) error
	RegisterDeviceTokenFunc     func(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error)
}

func (m *MockAccountService) SignUp(ctx context.Context, input services.SignUpInput) (*models.User, error) {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, token uuid.UUID) (*models.User, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return nil, models.ErrExpiredOrInvalidToken
}

func (m *MockAccountService) ResendEmailVerification(ctx context.Context, email string) error {
	if m.ResendEmailVerificationFunc != nil {
		return m.ResendEmailVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAccountService) VerifyOTP(ctx context.Context, phone, otp string) (*models.User, error) {
	if m.VerifyOTPFunc != nil {
		return m.VerifyOTPFunc(ctx, phone, otp)
	}
	return nil, models.ErrInvalidOTP
}

func (m *MockAccountService) ResendOTP(ctx context.Context, phone string) error {
	if m.ResendOTPFunc != nil {
		return m.ResendOTPFunc(ctx, phone)
	}
	return nil
}

func (m *MockAccountService) AddPhone(ctx context.Context, user *models.User, phone string) (*models.User, error) {
	if m.AddPhoneFunc != nil {
		return m.AddPhoneFunc(ctx, user, phone)
	}
	return user, nil
}

func (m *MockAccountService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockAccountService) SoftDelete(ctx context.Context, actor *models.User, targetID uuid.UUID, meta services.RequestMeta) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, actor, targetID, meta)
	}
	return nil
}

func (m *MockAccountService) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error) {
	if m.RegisterDeviceTokenFunc != nil {
		return m.RegisterDeviceTokenFunc(ctx, userID, deviceType, token)
	}
	return &models.DeviceToken{UserID: userID, Token: token, DeviceType: deviceType}, nil
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignInFunc         func(ctx context.Context, identifier, password string, activate bool, meta services.RequestMeta) (*models.User, string, error)
	SignOutFunc        func(ctx context.Context, userID uuid.UUID, scope string) error
	ChangePasswordFunc func(ctx context.Context, user *models.User, oldPassword, newPassword string, meta services.RequestMeta) error
}

func (m *MockAuthService) SignIn(ctx context.Context, identifier, password string, activate bool, meta services.RequestMeta) (*models.User, string, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, identifier, password, activate, meta)
	}
	return nil, "", models.ErrInvalidCredentials
}

func (m *MockAuthService) SignOut(ctx context.Context, userID uuid.UUID, scope string) error {
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, userID, scope)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string, meta services.RequestMeta) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, user, oldPassword, newPassword, meta)
	}
	return nil
}

// NewTestUser builds a minimal active user for handler tests
func NewTestUser(username, email string) *models.User {
	return &models.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		EmailVerified: true,
		Active:        true,
		CreatedAt:     time.Now(),
	}
}
