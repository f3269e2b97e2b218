package services

import (
	"context"
	"log/slog"

	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/repositories"
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditService handles the audit trail with a dual-write pattern: every
// recorded entry goes to slog immediately and to the audit_entries table.
// The table write joins the caller's transaction when one is open, so a
// lifecycle transition and its audit entry commit together.
type AuditService struct {
	store       repositories.AuditStore
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(store repositories.AuditStore, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:       store,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record persists an audit entry. When tx is non-nil the row is written
// through that transaction and a failure rolls the whole transition back;
// a state change without its audit entry is not an acceptable outcome.
func (s *AuditService) Record(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error {
	if entry.SubjectKind == "" {
		entry.SubjectKind = models.SubjectUser
	}

	event := pkglogger.AuditEvent{
		Action:  entry.Action,
		Success: true,
	}
	if entry.ActorID != nil {
		event.ActorID = entry.ActorID.String()
	}
	if entry.TargetID != nil {
		event.TargetID = entry.TargetID.String()
	}
	s.auditLogger.Log(event)

	store := s.store
	if tx != nil {
		store = store.WithTx(tx)
	}
	if _, err := store.Create(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			slog.String("action", entry.Action),
			slog.Any("error", err))
		return err
	}

	return nil
}

// Observe emits a non-persisted audit event, used for denied or failed
// attempts that never reach a state change.
func (s *AuditService) Observe(event pkglogger.AuditEvent) {
	s.auditLogger.Log(event)
}

// GetTrail returns audit entries, scoped to one user when userID is non-nil.
// Admin-only at the route layer.
func (s *AuditService) GetTrail(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		entries []*models.AuditEntry
		err     error
	)
	if userID != nil {
		entries, err = s.store.ListByUser(ctx, *userID, limit, offset)
	} else {
		entries, err = s.store.List(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list audit entries", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return entries, nil
}
