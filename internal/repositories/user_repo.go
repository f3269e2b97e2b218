package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/averill/accounthub/internal/database"
	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, name, email, phone, password_hash, gender, date_of_birth, photo_ref,
	activation_token, activation_token_created_at, otp, otp_created_at,
	is_email_verified, is_phone_verified, terms_accepted, privacy_accepted,
	is_active, is_staff, is_superuser, is_deleted, deleted_at, deleted_phone,
	last_active_at, created_at, deactivation_reason`

type UserRepository struct {
	db querier
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db.Pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) UserStore {
	return &UserRepository{db: tx}
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.Phone, &user.PasswordHash,
		&user.Gender, &user.DateOfBirth, &user.PhotoRef,
		&user.ActivationToken, &user.ActivationTokenCreatedAt, &user.OTP, &user.OTPCreatedAt,
		&user.EmailVerified, &user.PhoneVerified, &user.TermsAccepted, &user.PrivacyAccepted,
		&user.Active, &user.Staff, &user.Superuser, &user.Deleted, &user.DeletedAt, &user.DeletedPhone,
		&user.LastActiveAt, &user.CreatedAt, &user.DeactivationReason,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	return scanUserRow(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	return scanUserRow(r.db.QueryRow(ctx, query, phone))
}

// GetByIdentifier resolves a sign-in identifier against username, email and
// phone. The uniqueness constraints make ambiguity impossible in practice;
// the fixed lookup order makes it deterministic regardless.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR lower(email) = lower($1) OR phone = $1
		ORDER BY (username = $1) DESC, (lower(email) = lower($1)) DESC
		LIMIT 1
	`

	return scanUserRow(r.db.QueryRow(ctx, query, identifier))
}

// GetByActivationToken looks up the owner of a one-time email verification
// token.
func (r *UserRepository) GetByActivationToken(ctx context.Context, token uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE activation_token = $1`

	return scanUserRow(r.db.QueryRow(ctx, query, token))
}

// EmailExists reports whether any row, live or soft-deleted, holds the email
// (case-insensitive). Used by the deleted- prefixing scheme.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`

	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()

	query := `
		INSERT INTO users (
			id, username, name, email, phone, password_hash, gender, date_of_birth, photo_ref,
			activation_token, activation_token_created_at, otp, otp_created_at,
			is_email_verified, is_phone_verified, terms_accepted, privacy_accepted,
			is_active, is_staff, is_superuser, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING ` + userColumns

	return scanUserRow(r.db.QueryRow(ctx, query,
		user.ID, user.Username, user.Name, user.Email, user.Phone, user.PasswordHash,
		user.Gender, user.DateOfBirth, user.PhotoRef,
		user.ActivationToken, user.ActivationTokenCreatedAt, user.OTP, user.OTPCreatedAt,
		user.EmailVerified, user.PhoneVerified, user.TermsAccepted, user.PrivacyAccepted,
		user.Active, user.Staff, user.Superuser, user.CreatedAt,
	))
}

// Update persists every mutable field of the user row.
func (r *UserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE users SET
			username = $1, name = $2, email = $3, phone = $4, password_hash = $5, gender = $6,
			date_of_birth = $7, photo_ref = $8,
			activation_token = $9, activation_token_created_at = $10, otp = $11, otp_created_at = $12,
			is_email_verified = $13, is_phone_verified = $14, terms_accepted = $15, privacy_accepted = $16,
			is_active = $17, is_staff = $18, is_superuser = $19,
			is_deleted = $20, deleted_at = $21, deleted_phone = $22,
			last_active_at = $23, deactivation_reason = $24
		WHERE id = $25
		RETURNING ` + userColumns

	return scanUserRow(r.db.QueryRow(ctx, query,
		user.Username, user.Name, user.Email, user.Phone, user.PasswordHash, user.Gender,
		user.DateOfBirth, user.PhotoRef,
		user.ActivationToken, user.ActivationTokenCreatedAt, user.OTP, user.OTPCreatedAt,
		user.EmailVerified, user.PhoneVerified, user.TermsAccepted, user.PrivacyAccepted,
		user.Active, user.Staff, user.Superuser,
		user.Deleted, user.DeletedAt, user.DeletedPhone,
		user.LastActiveAt, user.DeactivationReason,
		user.ID,
	))
}
