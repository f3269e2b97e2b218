package repositories

import (
	"context"
	"time"

	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserStore defines the interface for user data access. WithTx returns a
// copy bound to an open transaction so compound transitions commit atomically.
type UserStore interface {
	WithTx(tx pgx.Tx) UserStore
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByActivationToken(ctx context.Context, token uuid.UUID) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}

// AuditStore defines the interface for the append-only audit trail.
type AuditStore interface {
	WithTx(tx pgx.Tx) AuditStore
	Create(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditEntry, error)
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// SessionStore defines the interface for session token persistence.
type SessionStore interface {
	WithTx(tx pgx.Tx) SessionStore
	Replace(ctx context.Context, userID uuid.UUID, token string) (*models.Session, error)
	GetByToken(ctx context.Context, token string, ttl time.Duration) (*models.Session, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeviceTokenStore defines the interface for push notification bindings.
type DeviceTokenStore interface {
	WithTx(tx pgx.Tx) DeviceTokenStore
	Upsert(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error)
	ReapOtherOwners(ctx context.Context, token string, keepUserID uuid.UUID) (int64, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DeviceToken, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	_ UserStore        = (*UserRepository)(nil)
	_ AuditStore       = (*AuditRepository)(nil)
	_ SessionStore     = (*SessionRepository)(nil)
	_ DeviceTokenStore = (*DeviceTokenRepository)(nil)
)
