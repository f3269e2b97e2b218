package models

import (
	"time"

	"github.com/google/uuid"
)

// Device types for push notification bindings
const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"
	DeviceTypeWeb     = "web"
)

// DeviceToken binds a user to a push notification token. One row per user;
// a token value belongs to at most one user at a time, so registering it for
// a new user reaps the binding from whoever held it before.
type DeviceToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Token      string
	DeviceType string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
