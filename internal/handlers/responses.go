package handlers

import (
	"time"

	"github.com/averill/accounthub/internal/models"
)

// UserResponse is the user projection returned by the API. Credentials and
// pending verification secrets never leave the service.
type UserResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          *string    `json:"name,omitempty"`
	Email         string     `json:"email"`
	Phone         *string    `json:"phone,omitempty"`
	Gender        *string    `json:"gender,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	PhotoRef      *string    `json:"photo_ref,omitempty"`
	EmailVerified bool       `json:"is_email_verified"`
	PhoneVerified bool       `json:"is_phone_verified"`
	Active        bool       `json:"is_active"`
	Staff         bool       `json:"is_staff"`
	Superuser     bool       `json:"is_superuser"`
	LastActiveAt  *time.Time `json:"last_active_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SignInResponse carries the fresh session token alongside the user.
type SignInResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// DeviceTokenResponse represents a push notification binding
type DeviceTokenResponse struct {
	UserID     string `json:"user_id"`
	Token      string `json:"device_token"`
	DeviceType string `json:"device_type"`
}

// AuditEntryResponse represents one audit trail record
type AuditEntryResponse struct {
	ID             string               `json:"id"`
	Action         string               `json:"action"`
	ActorID        *string              `json:"actor_id,omitempty"`
	TargetID       *string              `json:"target_id,omitempty"`
	SubjectKind    string               `json:"subject_kind"`
	SubjectID      string               `json:"subject_id"`
	OldState       models.StateSnapshot `json:"old_state,omitempty"`
	NewState       models.StateSnapshot `json:"new_state,omitempty"`
	RequestHeaders models.StateSnapshot `json:"request_headers,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// MessageResponse is a plain informational reply
type MessageResponse struct {
	Message string `json:"message"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID.String(),
		Username:      user.Username,
		Name:          user.Name,
		Email:         user.Email,
		Phone:         user.Phone,
		Gender:        user.Gender,
		DateOfBirth:   user.DateOfBirth,
		PhotoRef:      user.PhotoRef,
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		Active:        user.Active,
		Staff:         user.Staff,
		Superuser:     user.Superuser,
		LastActiveAt:  user.LastActiveAt,
		CreatedAt:     user.CreatedAt,
	}
}

func auditModelToResponse(entry *models.AuditEntry) *AuditEntryResponse {
	resp := &AuditEntryResponse{
		ID:             entry.ID.String(),
		Action:         entry.Action,
		SubjectKind:    string(entry.SubjectKind),
		SubjectID:      entry.SubjectID,
		OldState:       entry.OldState,
		NewState:       entry.NewState,
		RequestHeaders: entry.RequestHeaders,
		CreatedAt:      entry.CreatedAt,
	}
	if entry.ActorID != nil {
		id := entry.ActorID.String()
		resp.ActorID = &id
	}
	if entry.TargetID != nil {
		id := entry.TargetID.String()
		resp.TargetID = &id
	}
	return resp
}
