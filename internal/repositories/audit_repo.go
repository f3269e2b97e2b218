package repositories

import (
	"context"
	"fmt"

	"github.com/averill/accounthub/internal/database"
	"github.com/averill/accounthub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, action, actor_id, target_id, subject_kind, subject_id,
	old_state, new_state, request_headers, created_at`

// AuditRepository handles append-only audit entry data access. There are no
// update or delete methods on purpose.
type AuditRepository struct {
	db querier
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db.Pool}
}

// WithTx returns a copy of the repository bound to the given transaction, so
// an audit entry commits with the state change it documents.
func (r *AuditRepository) WithTx(tx pgx.Tx) AuditStore {
	return &AuditRepository{db: tx}
}

func scanAuditRow(row rowScanner) (*models.AuditEntry, error) {
	var entry models.AuditEntry

	err := row.Scan(
		&entry.ID, &entry.Action, &entry.ActorID, &entry.TargetID,
		&entry.SubjectKind, &entry.SubjectID,
		&entry.OldState, &entry.NewState, &entry.RequestHeaders,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &entry, nil
}

func scanAuditRows(rows pgx.Rows) ([]*models.AuditEntry, error) {
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		entry, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

// Create appends a new audit entry. created_at is set by the database and
// immutable afterwards.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	query := `
		INSERT INTO audit_entries (
			id, action, actor_id, target_id, subject_kind, subject_id,
			old_state, new_state, request_headers
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + auditColumns

	id := uuid.New()
	result, err := scanAuditRow(r.db.QueryRow(ctx, query,
		id, entry.Action, entry.ActorID, entry.TargetID, entry.SubjectKind, entry.SubjectID,
		entry.OldState, entry.NewState, entry.RequestHeaders,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}

	return result, nil
}

// ListByUser retrieves audit entries where the user acted or was acted upon.
func (r *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE actor_id = $1 OR target_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	return scanAuditRows(rows)
}

// List retrieves the most recent audit entries across all users.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	return scanAuditRows(rows)
}

// CountByUser counts audit entries for a specific user
func (r *AuditRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_entries WHERE actor_id = $1 OR target_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}
