package models

import (
	"time"

	"github.com/google/uuid"
)

// Sign-out scopes. App and all revoke the stored bearer token; web and all
// terminate the browser session cookie.
const (
	SessionScopeApp = "app"
	SessionScopeWeb = "web"
	SessionScopeAll = "all"
)

// Session is an issued opaque bearer token. One row per user: issuing a new
// session deletes any prior one in the same transaction, so concurrent
// sign-ins leave exactly one valid token (last writer wins).
type Session struct {
	Token    string
	UserID   uuid.UUID
	IssuedAt time.Time
}
