package handlers

import (
	"fmt"

	"github.com/averill/accounthub/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// username: 6-30 chars, first alphabetic, remainder alphanumeric or
	// underscore
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return models.ValidateUsername(fl.Field().String()) == nil
	})

	// phone: a number phonenumbers can parse and considers valid. Clients
	// send E.164; parsing without a default region rejects anything else.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		num, err := phonenumbers.Parse(fl.Field().String(), "")
		if err != nil {
			return false
		}
		return phonenumbers.IsValidNumber(num)
	})

	return v
}

// NormalizePhone returns the canonical E.164 form of a phone number already
// accepted by the phone validator.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return "", fmt.Errorf("invalid phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidateRequest validates a request struct using go-playground/validator
// Returns a user-friendly error message if validation fails
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		// Extract validation errors and format them
		if ve, ok := err.(validator.ValidationErrors); ok {
			var errors []ValidationErrorResponse
			for _, fieldError := range ve {
				errors = append(errors, ValidationErrorResponse{
					Field:   fieldError.Field(),
					Message: formatValidationError(fieldError),
				})
			}
			if len(errors) > 0 {
				return fmt.Errorf("validation failed: %s: %s",
					errors[0].Field,
					errors[0].Message)
			}
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "username":
		return "must be 6-30 characters, start with a letter and contain only letters, digits and underscores"
	case "phone":
		return "must be a valid phone number in international format"
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "uuid4":
		return "must be a valid token"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
