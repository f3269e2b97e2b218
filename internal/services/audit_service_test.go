package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/averill/accounthub/internal/models"
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditService(store *MockAuditStore) *AuditService {
	return NewAuditService(store, pkglogger.NewAuditLogger(slog.Default()), slog.Default())
}

func TestAuditService_Record_DefaultsSubjectKind(t *testing.T) {
	var persisted *models.AuditEntry
	store := &MockAuditStore{
		CreateFunc: func(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
			persisted = entry
			return entry, nil
		},
	}
	svc := newAuditService(store)

	actorID := uuid.New()
	err := svc.Record(context.Background(), nil, &models.AuditEntry{
		Action:    models.AuditActionSignIn,
		ActorID:   &actorID,
		SubjectID: actorID.String(),
	})

	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, models.SubjectUser, persisted.SubjectKind)
}

func TestAuditService_Record_StoreFailureSurfaces(t *testing.T) {
	// An in-transaction audit write failure must fail the transition; a
	// state change without its audit entry is not allowed to commit.
	store := &MockAuditStore{
		CreateFunc: func(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
			return nil, assert.AnError
		},
	}
	svc := newAuditService(store)

	err := svc.Record(context.Background(), nil, &models.AuditEntry{
		Action: models.AuditActionPasswordChange,
	})

	assert.Error(t, err)
}

func TestAuditService_GetTrail_ScopedToUser(t *testing.T) {
	userID := uuid.New()
	var scopedTo *uuid.UUID
	store := &MockAuditStore{
		ListByUserFunc: func(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.AuditEntry, error) {
			scopedTo = &id
			return []*models.AuditEntry{{Action: models.AuditActionSignIn}}, nil
		},
	}
	svc := newAuditService(store)

	entries, err := svc.GetTrail(context.Background(), &userID, 10, 0)

	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.NotNil(t, scopedTo)
	assert.Equal(t, userID, *scopedTo)
}

func TestAuditService_GetTrail_ClampsLimit(t *testing.T) {
	var gotLimit int
	store := &MockAuditStore{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
			gotLimit = limit
			return []*models.AuditEntry{}, nil
		},
	}
	svc := newAuditService(store)

	_, err := svc.GetTrail(context.Background(), nil, 100000, 0)

	require.NoError(t, err)
	assert.Equal(t, 50, gotLimit)
}
