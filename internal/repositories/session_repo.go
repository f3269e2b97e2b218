package repositories

import (
	"context"
	"time"

	"github.com/averill/accounthub/internal/database"
	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepository manages the opaque bearer token table. One row per user.
type SessionRepository struct {
	db querier
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db.Pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) SessionStore {
	return &SessionRepository{db: tx}
}

// Replace deletes any existing session for the user and inserts a fresh one
// in a single statement, so concurrent sign-ins settle on exactly one valid
// token.
func (r *SessionRepository) Replace(ctx context.Context, userID uuid.UUID, token string) (*models.Session, error) {
	query := `
		INSERT INTO sessions (token, user_id, issued_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at
		RETURNING token, user_id, issued_at
	`

	var session models.Session
	err := r.db.QueryRow(ctx, query, token, userID).Scan(&session.Token, &session.UserID, &session.IssuedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &session, nil
}

// GetByToken resolves a bearer token. Sessions older than ttl are treated as
// absent; ttl <= 0 disables the check.
func (r *SessionRepository) GetByToken(ctx context.Context, token string, ttl time.Duration) (*models.Session, error) {
	query := `SELECT token, user_id, issued_at FROM sessions WHERE token = $1`

	var session models.Session
	err := r.db.QueryRow(ctx, query, token).Scan(&session.Token, &session.UserID, &session.IssuedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if ttl > 0 && time.Since(session.IssuedAt) > ttl {
		return nil, models.ErrNotFound
	}

	return &session, nil
}

// DeleteByUserID revokes the user's session. Revoking an absent session is a
// no-op, not an error.
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = $1`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// DeleteExpired removes sessions issued before the cutoff (call periodically)
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE issued_at < $1`

	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
