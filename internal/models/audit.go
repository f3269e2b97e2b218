package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions for security-relevant lifecycle transitions
const (
	AuditActionSignIn            = "user-sign-in"
	AuditActionPasswordChange    = "password-change"
	AuditActionUserDeleted       = "user-deleted"
	AuditActionAccountReactivate = "account-reactivate"
)

// SubjectKind is the closed enumeration of audit subject types. Only users
// are audited today; new kinds are added as variants, never via reflection.
type SubjectKind string

const (
	SubjectUser SubjectKind = "user"
)

// AuditEntry is an immutable record of a security-relevant action. Rows are
// append-only: never updated or deleted after creation. Actor and target
// references go null, not away, if the referenced user is ever purged.
type AuditEntry struct {
	ID             uuid.UUID
	Action         string
	ActorID        *uuid.UUID
	TargetID       *uuid.UUID
	SubjectKind    SubjectKind
	SubjectID      string
	OldState       StateSnapshot
	NewState       StateSnapshot
	RequestHeaders StateSnapshot
	CreatedAt      time.Time
}

// StateSnapshot holds an arbitrary structured before/after snapshot or a
// captured header subset, stored as JSONB.
type StateSnapshot map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (s *StateSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*s = StateSnapshot(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (s StateSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// MarshalJSON implements json.Marshaler
func (s StateSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *StateSnapshot) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = StateSnapshot(m)
	return nil
}
