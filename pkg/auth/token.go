package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const (
	SessionTokenLength = 32 // 256 bits
	OTPLength          = 6
)

// NewActivationToken returns a one-time email verification credential. A v4
// UUID carries 122 random bits, comfortably in the 128-bit unguessability
// class.
func NewActivationToken() uuid.UUID {
	return uuid.New()
}

// NewOTP returns a 6-digit numeric code, each digit drawn independently and
// uniformly from 0-9. Codes are not unique across users; an OTP is only ever
// checked against the phone it was issued for.
func NewOTP() (string, error) {
	digits := make([]byte, OTPLength)
	buf := make([]byte, 1)
	for i := 0; i < OTPLength; {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		// Rejection sampling keeps each digit uniform: 250-255 would bias
		// toward 0-5 under a plain modulo.
		if buf[0] >= 250 {
			continue
		}
		digits[i] = '0' + buf[0]%10
		i++
	}
	return string(digits), nil
}

// NewSessionToken returns an opaque bearer token for the sessions table.
func NewSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
