package services

import (
	"context"

	"github.com/averill/accounthub/internal/models"
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// *database.DB; mocked in tests by invoking fn with a nil transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// Auditor records security-relevant state changes (dual-write, in-tx) and
// observes failed attempts (log stream only).
type Auditor interface {
	Record(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error
	Observe(event pkglogger.AuditEvent)
}

// Notifier dispatches outbound messages fire-and-forget. Delivery failure is
// logged by the notifier, never surfaced to the calling request.
type Notifier interface {
	VerificationEmail(name, email string, token uuid.UUID)
	OTPSMS(phone, otp string)
}

// RequestMeta carries the request-scoped context an audit entry snapshots.
type RequestMeta struct {
	Headers models.StateSnapshot
	IP      string
}

func displayName(user *models.User) string {
	if user.Name != nil && *user.Name != "" {
		return *user.Name
	}
	return user.Username
}
