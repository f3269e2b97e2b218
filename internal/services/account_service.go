package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/repositories"
	pkgauth "github.com/averill/accounthub/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountService owns the account lifecycle: registration, email and phone
// verification, resends, profile reads, soft delete and device token
// registration. Sign-in, sign-out and password change live in AuthService.
type AccountService struct {
	users    repositories.UserStore
	sessions repositories.SessionStore
	devices  repositories.DeviceTokenStore
	tx       TxRunner
	audit    Auditor
	notifier Notifier
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	users repositories.UserStore,
	sessions repositories.SessionStore,
	devices repositories.DeviceTokenStore,
	tx TxRunner,
	audit Auditor,
	notifier Notifier,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		sessions: sessions,
		devices:  devices,
		tx:       tx,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// SignUpInput is the validated registration payload.
type SignUpInput struct {
	Username        string
	Name            *string
	Email           string
	Phone           *string
	Password        string
	Gender          *string
	DateOfBirth     *time.Time
	PhotoRef        *string
	TermsAccepted   bool
	PrivacyAccepted bool
}

// SignUp creates an unverified user. When an email is supplied it issues an
// activation token and sends the verification email; when a phone is supplied
// it issues an OTP and sends it by SMS. Both sends are fire-and-forget: the
// created row commits whether or not delivery succeeds.
func (s *AccountService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	if err := models.ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if input.Gender != nil && *input.Gender != models.GenderFemale && *input.Gender != models.GenderMale {
		return nil, fmt.Errorf("%w: invalid gender", models.ErrBadRequest)
	}
	if !input.TermsAccepted {
		return nil, fmt.Errorf("%w: terms of service must be accepted", models.ErrBadRequest)
	}

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrWeakPassword, err)
	}
	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:        input.Username,
		Name:            input.Name,
		Email:           strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:           input.Phone,
		PasswordHash:    hash,
		Gender:          input.Gender,
		DateOfBirth:     input.DateOfBirth,
		PhotoRef:        input.PhotoRef,
		TermsAccepted:   input.TermsAccepted,
		PrivacyAccepted: input.PrivacyAccepted,
		Active:          true,
	}

	now := time.Now()
	if user.Email != "" {
		token := pkgauth.NewActivationToken()
		user.ActivationToken = &token
		user.ActivationTokenCreatedAt = &now
	}
	if user.Phone != nil {
		otp, err := pkgauth.NewOTP()
		if err != nil {
			s.logger.Error("failed to generate otp", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		user.OTP = &otp
		user.OTPCreatedAt = &now
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateField) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if created.ActivationToken != nil {
		s.notifier.VerificationEmail(displayName(created), created.Email, *created.ActivationToken)
	}
	if created.Phone != nil && created.OTP != nil {
		s.notifier.OTPSMS(*created.Phone, *created.OTP)
	}

	s.logger.Info("user signed up", slog.String("user_id", created.ID.String()))
	return created, nil
}

// VerifyEmail consumes an activation token. The token is single-use: the
// first call verifies the email and clears it, a second call with the same
// token reports ErrExpiredOrInvalidToken.
func (s *AccountService) VerifyEmail(ctx context.Context, token uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrExpiredOrInvalidToken
		}
		s.logger.Error("failed to look up activation token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user.ActivationToken = nil
	user.ActivationTokenCreatedAt = nil
	user.EmailVerified = true

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		s.logger.Error("failed to mark email verified",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", updated.ID.String()))
	return updated, nil
}

// ResendEmailVerification reissues the activation token and re-sends the
// verification email. Refused once the email is verified.
func (s *AccountService) ResendEmailVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.ActivationToken == nil {
		return models.ErrAlreadyVerified
	}

	token := pkgauth.NewActivationToken()
	now := time.Now()
	user.ActivationToken = &token
	user.ActivationTokenCreatedAt = &now

	if _, err := s.users.Update(ctx, user); err != nil {
		s.logger.Error("failed to reissue activation token",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.VerificationEmail(displayName(user), user.Email, token)
	return nil
}

// VerifyOTP checks the one-time code for a phone. Every mismatch, wrong
// phone, wrong code or no stored code, reports the same ErrInvalidOTP so the
// response never reveals which part of the check failed.
func (s *AccountService) VerifyOTP(ctx context.Context, phone, otp string) (*models.User, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidOTP
		}
		s.logger.Error("failed to get user by phone", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.OTP == nil || *user.OTP != otp {
		return nil, models.ErrInvalidOTP
	}

	user.OTP = nil
	user.OTPCreatedAt = nil
	user.PhoneVerified = true

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		s.logger.Error("failed to mark phone verified",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("phone verified", slog.String("user_id", updated.ID.String()))
	return updated, nil
}

// ResendOTP reissues and re-sends the OTP for a phone. Unlike the email
// resend there is no already-verified guard.
func (s *AccountService) ResendOTP(ctx context.Context, phone string) error {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user by phone", slog.Any("error", err))
		return models.ErrInternalServer
	}

	otp, err := pkgauth.NewOTP()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return models.ErrInternalServer
	}
	now := time.Now()
	user.OTP = &otp
	user.OTPCreatedAt = &now

	if _, err := s.users.Update(ctx, user); err != nil {
		s.logger.Error("failed to reissue otp",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.OTPSMS(phone, otp)
	return nil
}

// AddPhone sets a new phone on the account, resets phone verification and
// issues a fresh OTP to the new number.
func (s *AccountService) AddPhone(ctx context.Context, user *models.User, phone string) (*models.User, error) {
	otp, err := pkgauth.NewOTP()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	user.Phone = &phone
	user.PhoneVerified = false
	user.OTP = &otp
	user.OTPCreatedAt = &now

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateField) {
			return nil, err
		}
		s.logger.Error("failed to set phone",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.notifier.OTPSMS(phone, otp)
	return updated, nil
}

// GetUserByID retrieves a user by ID
func (s *AccountService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// ListUsers retrieves a list of users with pagination
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// SoftDelete marks a user deleted without removing the row. The email is
// rewritten with a deleted- prefix, repeated until no live or deleted row
// holds the candidate, so the original address frees up for re-registration.
// The phone moves to deleted_phone for the same reason. Admin only.
func (s *AccountService) SoftDelete(ctx context.Context, actor *models.User, targetID uuid.UUID, meta RequestMeta) error {
	if !actor.IsAdmin() {
		return models.ErrPermissionDenied
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", targetID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if target.Deleted {
		return models.ErrAlreadyDeleted
	}

	oldState := models.StateSnapshot{
		"email":     target.Email,
		"is_active": target.Active,
	}
	if target.Phone != nil {
		oldState["phone"] = *target.Phone
	}

	freed, err := s.freeEmail(ctx, target.Email)
	if err != nil {
		s.logger.Error("failed to derive freed email",
			slog.String("user_id", target.ID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := time.Now()
	target.Email = freed
	if target.Phone != nil {
		target.DeletedPhone = target.Phone
		target.Phone = nil
	}
	target.Deleted = true
	target.Active = false
	target.DeletedAt = &now

	newState := models.StateSnapshot{
		"email":     target.Email,
		"is_active": false,
	}

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.users.WithTx(tx).Update(ctx, target); err != nil {
			return err
		}
		if err := s.sessions.WithTx(tx).DeleteByUserID(ctx, target.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, &models.AuditEntry{
			Action:         models.AuditActionUserDeleted,
			ActorID:        &actor.ID,
			TargetID:       &target.ID,
			SubjectID:      target.ID.String(),
			OldState:       oldState,
			NewState:       newState,
			RequestHeaders: meta.Headers,
		})
	})
	if err != nil {
		s.logger.Error("failed to soft delete user",
			slog.String("user_id", target.ID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user soft deleted",
		slog.String("user_id", target.ID.String()),
		slog.String("actor_id", actor.ID.String()))
	return nil
}

// freeEmail prefixes deleted- onto the email until no row, live or deleted,
// holds the candidate. Repeated deletions of re-registered addresses stack
// prefixes rather than collide.
func (s *AccountService) freeEmail(ctx context.Context, email string) (string, error) {
	candidate := email
	for {
		candidate = "deleted-" + candidate
		exists, err := s.users.EmailExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}

// RegisterDeviceToken upserts the caller's single push notification binding,
// then reaps the same token value from any other user that held it. Both
// steps commit together so a token never has two owners.
func (s *AccountService) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error) {
	switch deviceType {
	case models.DeviceTypeIOS, models.DeviceTypeAndroid, models.DeviceTypeWeb:
	default:
		return nil, fmt.Errorf("%w: invalid device type", models.ErrBadRequest)
	}

	var binding *models.DeviceToken
	err := s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		devices := s.devices.WithTx(tx)
		var err error
		binding, err = devices.Upsert(ctx, userID, deviceType, token)
		if err != nil {
			return err
		}
		_, err = devices.ReapOtherOwners(ctx, token, userID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to register device token",
			slog.String("user_id", userID.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return binding, nil
}
