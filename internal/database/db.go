package database

import (
	"context"
	"errors"
	"strings"

	"github.com/averill/accounthub/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueConstraintFields maps unique index names to the user-facing field
// they guard. Kept in sync with migrations/00001_init.sql.
var uniqueConstraintFields = map[string]string{
	"users_username_key":        "username",
	"users_email_key":           "email",
	"users_phone_key":           "phone",
	"users_deleted_phone_key":   "deleted_phone",
	"sessions_user_id_key":      "user_id",
	"device_tokens_user_id_key": "user_id",
}

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &models.DuplicateFieldError{Field: constraintField(pgErr.ConstraintName)}
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

func constraintField(constraint string) string {
	if field, ok := uniqueConstraintFields[constraint]; ok {
		return field
	}
	// Unknown constraint: best effort, strip the table prefix and _key suffix
	field := strings.TrimSuffix(constraint, "_key")
	if idx := strings.Index(field, "_"); idx >= 0 {
		field = field[idx+1:]
	}
	return field
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic. Multi-row lifecycle transitions use this so a state change and its
// audit entry commit together.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, txErr := db.Pool.Begin(ctx)
	if txErr != nil {
		return txErr
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
