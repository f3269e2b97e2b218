package repositories

import (
	"context"
	"time"

	"github.com/averill/accounthub/internal/database"
	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DeviceTokenRepository manages push notification bindings, one per user.
type DeviceTokenRepository struct {
	db querier
}

func NewDeviceTokenRepository(db *database.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db.Pool}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DeviceTokenRepository) WithTx(tx pgx.Tx) DeviceTokenStore {
	return &DeviceTokenRepository{db: tx}
}

// Upsert creates or updates the user's single binding.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (id, user_id, device_token, device_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			device_token = EXCLUDED.device_token,
			device_type = EXCLUDED.device_type,
			updated_at = NOW()
		RETURNING id, user_id, device_token, device_type, created_at, updated_at
	`

	var dt models.DeviceToken
	err := r.db.QueryRow(ctx, query, uuid.New(), userID, token, deviceType).Scan(
		&dt.ID, &dt.UserID, &dt.Token, &dt.DeviceType, &dt.CreatedAt, &dt.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &dt, nil
}

// ReapOtherOwners removes the token from any other user it was previously
// bound to. Registration is reassignment, not duplication.
func (r *DeviceTokenRepository) ReapOtherOwners(ctx context.Context, token string, keepUserID uuid.UUID) (int64, error) {
	query := `DELETE FROM device_tokens WHERE device_token = $1 AND user_id <> $2`

	result, err := r.db.Exec(ctx, query, token, keepUserID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *DeviceTokenRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DeviceToken, error) {
	query := `
		SELECT id, user_id, device_token, device_type, created_at, updated_at
		FROM device_tokens WHERE user_id = $1
	`

	var dt models.DeviceToken
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&dt.ID, &dt.UserID, &dt.Token, &dt.DeviceType, &dt.CreatedAt, &dt.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &dt, nil
}

// DeleteStale removes bindings not refreshed since the cutoff.
func (r *DeviceTokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM device_tokens WHERE updated_at < $1`

	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
