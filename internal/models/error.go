package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Lifecycle errors
	ErrWeakPassword          = errors.New("password does not meet strength requirements")
	ErrInvalidCredentials    = errors.New("wrong credentials")
	ErrInvalidOTP            = errors.New("invalid otp")
	ErrExpiredOrInvalidToken = errors.New("expired or invalid activation token")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrAccountDeactivated    = errors.New("account deactivated")
	ErrAccountBlocked        = errors.New("account is temporarily blocked")
	ErrPermissionDenied      = errors.New("permission required")
	ErrAlreadyDeleted        = errors.New("user already deleted")
)

// ErrDuplicateField is the class sentinel for DuplicateFieldError values.
var ErrDuplicateField = errors.New("duplicate field")

// DuplicateFieldError reports which unique column an insert or update
// collided on. Matched with errors.As; errors.Is(err, ErrDuplicateField)
// also works.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}
