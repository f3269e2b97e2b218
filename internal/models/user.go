package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Gender values
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

const (
	UsernameMinLen = 6
	UsernameMaxLen = 30
)

// First character alphabetic, remainder alphanumeric or underscore.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

type User struct {
	ID           uuid.UUID
	Username     string
	Name         *string
	Email        string
	Phone        *string // E.164, nil until the user adds one
	PasswordHash string
	Gender       *string
	DateOfBirth  *time.Time
	PhotoRef     *string

	// Verification state. ActivationToken is the one-time email credential;
	// OTP the one-time phone credential. Both are nil once consumed.
	ActivationToken          *uuid.UUID
	ActivationTokenCreatedAt *time.Time
	OTP                      *string
	OTPCreatedAt             *time.Time
	EmailVerified            bool
	PhoneVerified            bool

	TermsAccepted   bool
	PrivacyAccepted bool

	Active    bool
	Staff     bool
	Superuser bool

	// Soft-delete state. A deleted user keeps its row: the email is rewritten
	// to a deleted- prefixed variant and the phone moves to DeletedPhone so
	// both identifiers free up for reuse.
	Deleted      bool
	DeletedAt    *time.Time
	DeletedPhone *string

	LastActiveAt       *time.Time
	CreatedAt          time.Time
	DeactivationReason *string
}

// IsAdmin reports whether the user holds either admin capability flag.
func (u *User) IsAdmin() bool {
	return u.Staff || u.Superuser
}

// ValidateUsername enforces the username format: 6-30 characters, first
// character alphabetic, remainder alphanumeric or underscore.
func ValidateUsername(username string) error {
	if len(username) < UsernameMinLen || len(username) > UsernameMaxLen {
		return fmt.Errorf("%w: username length must be between %d and %d characters",
			ErrBadRequest, UsernameMinLen, UsernameMaxLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must start with a letter and contain only letters, digits and underscores",
			ErrBadRequest)
	}
	return nil
}
