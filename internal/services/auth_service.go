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
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuthService handles sign-in, sign-out and password change.
type AuthService struct {
	users    repositories.UserStore
	sessions repositories.SessionStore
	tx       TxRunner
	audit    Auditor
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users repositories.UserStore,
	sessions repositories.SessionStore,
	tx TxRunner,
	audit Auditor,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tx:       tx,
		audit:    audit,
		logger:   logger,
	}
}

// SignIn authenticates a user by username, email or phone and issues a fresh
// session token. Any prior token for the user is replaced in the same
// transaction, so concurrent sign-ins leave exactly one valid token.
//
// A user deactivated with a recorded reason may pass activate=true to clear
// the reason and reactivate in the same call; without the flag the sign-in
// fails with ErrAccountDeactivated. A deactivation with no recorded reason is
// an administrative block and fails with ErrAccountBlocked regardless.
func (s *AuthService) SignIn(ctx context.Context, identifier, password string, activate bool, meta RequestMeta) (*models.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, "", models.ErrInvalidCredentials
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.observeSignInFailure(nil, meta, "unknown_identifier")
			return nil, "", models.ErrInvalidCredentials
		}
		s.logger.Error("failed to resolve sign-in identifier", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	if user.Deleted {
		s.observeSignInFailure(&user.ID, meta, "deleted_account")
		return nil, "", models.ErrInvalidCredentials
	}

	reactivated := false
	if !user.Active {
		if user.DeactivationReason == nil {
			s.observeSignInFailure(&user.ID, meta, "account_blocked")
			return nil, "", models.ErrAccountBlocked
		}
		if !activate {
			s.observeSignInFailure(&user.ID, meta, "account_deactivated")
			return nil, "", models.ErrAccountDeactivated
		}
		user.Active = true
		user.DeactivationReason = nil
		reactivated = true
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.observeSignInFailure(&user.ID, meta, "invalid_credentials")
		return nil, "", models.ErrInvalidCredentials
	}

	token, err := pkgauth.NewSessionToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	now := time.Now()
	user.LastActiveAt = &now

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.users.WithTx(tx).Update(ctx, user); err != nil {
			return err
		}
		if _, err := s.sessions.WithTx(tx).Replace(ctx, user.ID, token); err != nil {
			return err
		}
		if reactivated {
			err := s.audit.Record(ctx, tx, &models.AuditEntry{
				Action:         models.AuditActionAccountReactivate,
				ActorID:        &user.ID,
				TargetID:       &user.ID,
				SubjectID:      user.ID.String(),
				RequestHeaders: meta.Headers,
			})
			if err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, tx, &models.AuditEntry{
			Action:         models.AuditActionSignIn,
			ActorID:        &user.ID,
			TargetID:       &user.ID,
			SubjectID:      user.ID.String(),
			RequestHeaders: meta.Headers,
		})
	})
	if err != nil {
		s.logger.Error("failed to complete sign-in",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	s.logger.Info("user signed in", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *AuthService) observeSignInFailure(userID *uuid.UUID, meta RequestMeta, reason string) {
	event := pkglogger.AuditEvent{
		Action:        models.AuditActionSignIn,
		IPAddress:     meta.IP,
		Success:       false,
		FailureReason: reason,
	}
	if userID != nil {
		event.ActorID = userID.String()
	}
	s.audit.Observe(event)
}

// SignOut revokes sessions for the given scope. App and all delete the
// stored bearer token; the web scope clears only the browser cookie, which
// the handler owns. Idempotent: revoking an absent token is a no-op.
func (s *AuthService) SignOut(ctx context.Context, userID uuid.UUID, scope string) error {
	switch scope {
	case models.SessionScopeApp, models.SessionScopeAll:
		if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
			s.logger.Error("failed to revoke session",
				slog.String("user_id", userID.String()), slog.Any("error", err))
			return models.ErrInternalServer
		}
	case models.SessionScopeWeb:
	default:
		return fmt.Errorf("%w: invalid session_type", models.ErrBadRequest)
	}

	s.logger.Info("user signed out",
		slog.String("user_id", userID.String()), slog.String("scope", scope))
	return nil
}

// ChangePassword verifies the old password, validates the new one against
// the strength policy and stores the new hash, recording the change in the
// audit trail within the same transaction.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string, meta RequestMeta) error {
	if err := pkgauth.ComparePassword(user.PasswordHash, oldPassword); err != nil {
		s.audit.Observe(pkglogger.AuditEvent{
			Action:        models.AuditActionPasswordChange,
			ActorID:       user.ID.String(),
			IPAddress:     meta.IP,
			Success:       false,
			FailureReason: "invalid_credentials",
		})
		return models.ErrInvalidCredentials
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", models.ErrWeakPassword, err)
	}
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}
	user.PasswordHash = hash

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.users.WithTx(tx).Update(ctx, user); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, &models.AuditEntry{
			Action:         models.AuditActionPasswordChange,
			ActorID:        &user.ID,
			TargetID:       &user.ID,
			SubjectID:      user.ID.String(),
			RequestHeaders: meta.Headers,
		})
	})
	if err != nil {
		s.logger.Error("failed to change password",
			slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password changed", slog.String("user_id", user.ID.String()))
	return nil
}
