package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/averill/accounthub/internal/auth"
	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/services"
	pkghttp "github.com/averill/accounthub/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AccountServiceInterface defines the interface for account lifecycle logic
type AccountServiceInterface interface {
	SignUp(ctx context.Context, input services.SignUpInput) (*models.User, error)
	VerifyEmail(ctx context.Context, token uuid.UUID) (*models.User, error)
	ResendEmailVerification(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, phone, otp string) (*models.User, error)
	ResendOTP(ctx context.Context, phone string) error
	AddPhone(ctx context.Context, user *models.User, phone string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SoftDelete(ctx context.Context, actor *models.User, targetID uuid.UUID, meta services.RequestMeta) error
	RegisterDeviceToken(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error)
}

// UserHandler handles account lifecycle HTTP requests
type UserHandler struct {
	service        AccountServiceInterface
	trustedProxies []string
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service AccountServiceInterface, trustedProxies []string) *UserHandler {
	return &UserHandler{
		service:        service,
		trustedProxies: trustedProxies,
	}
}

func (h *UserHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		Headers: pkghttp.SnapshotHeaders(r),
		IP:      pkghttp.ExtractClientIP(r, h.trustedProxies),
	}
}

// Request DTOs

// SignUpRequest represents the request body for registration
type SignUpRequest struct {
	Username        string     `json:"username" validate:"required,username"`
	Name            *string    `json:"name,omitempty" validate:"omitempty,max=120"`
	Email           string     `json:"email" validate:"required,email"`
	Phone           *string    `json:"phone,omitempty" validate:"omitempty,phone"`
	Password        string     `json:"password" validate:"required"`
	Gender          *string    `json:"gender,omitempty" validate:"omitempty,oneof=female male"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	PhotoRef        *string    `json:"photo_ref,omitempty"`
	TermsAccepted   bool       `json:"terms_accepted" validate:"eq=true"`
	PrivacyAccepted bool       `json:"privacy_accepted"`
}

// ResendEmailVerificationRequest represents the request body for re-sending
// the verification email
type ResendEmailVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest represents the request body for OTP verification
type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// ResendOTPRequest represents the request body for re-sending the OTP
type ResendOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

// AddPhoneRequest represents the request body for setting a new phone
type AddPhoneRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

// DeviceTokenRequest represents the request body for registering a push token
type DeviceTokenRequest struct {
	DeviceType  string `json:"device_type" validate:"required,oneof=ios android web"`
	DeviceToken string `json:"device_token" validate:"required"`
}

// SignUp handles user registration
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if req.Phone != nil {
		normalized, err := NormalizePhone(*req.Phone)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid phone number")
			return
		}
		req.Phone = &normalized
	}

	user, err := h.service.SignUp(r.Context(), services.SignUpInput{
		Username:        strings.TrimSpace(req.Username),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		Gender:          req.Gender,
		DateOfBirth:     req.DateOfBirth,
		PhotoRef:        req.PhotoRef,
		TermsAccepted:   req.TermsAccepted,
		PrivacyAccepted: req.PrivacyAccepted,
	})
	if err != nil {
		var dup *models.DuplicateFieldError
		switch {
		case errors.As(err, &dup):
			pkghttp.WriteConflict(w, "A user with this "+dup.Field+" already exists")
		case errors.Is(err, models.ErrWeakPassword),
			errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(user))
}

// VerifyEmail consumes an activation token from the verification link
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(chi.URLParam(r, "token"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Activation token is invalid or has expired")
		return
	}

	if _, err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, models.ErrExpiredOrInvalidToken) {
			pkghttp.WriteBadRequest(w, "Activation token is invalid or has expired")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Email verified"})
}

// ResendEmailVerification re-sends the verification email
func (h *UserHandler) ResendEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendEmailVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.service.ResendEmailVerification(r.Context(), email); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadyVerified):
			pkghttp.WriteConflict(w, "Email is already verified")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Verification email sent"})
}

// VerifyOTP checks the one-time code sent to a phone
func (h *UserHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid OTP")
		return
	}

	user, err := h.service.VerifyOTP(r.Context(), phone, req.OTP)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOTP) {
			pkghttp.WriteBadRequest(w, "Invalid OTP")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// ResendOTP re-sends the one-time code
func (h *UserHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid phone number")
		return
	}

	if err := h.service.ResendOTP(r.Context(), phone); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "OTP sent"})
}

// AddPhone sets a new phone on the authenticated account and sends an OTP
// to it
func (h *UserHandler) AddPhone(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req AddPhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid phone number")
		return
	}

	updated, err := h.service.AddPhone(r.Context(), user, phone)
	if err != nil {
		var dup *models.DuplicateFieldError
		if errors.As(err, &dup) {
			pkghttp.WriteConflict(w, "A user with this phone already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(updated))
}

// Me returns the authenticated user's profile
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// List returns a page of users. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	responses := make([]*UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, userModelToResponse(user))
	}
	pkghttp.WriteJSON(w, http.StatusOK, responses)
}

// Delete soft-deletes a user. Admin only.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user id")
		return
	}

	if err := h.service.SoftDelete(r.Context(), actor, targetID, h.requestMeta(r)); err != nil {
		switch {
		case errors.Is(err, models.ErrPermissionDenied):
			pkghttp.WriteForbidden(w, "Permission required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrAlreadyDeleted):
			pkghttp.WriteConflict(w, "User already deleted")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "User deleted"})
}

// RegisterDeviceToken upserts the caller's push notification binding
func (h *UserHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req DeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	binding, err := h.service.RegisterDeviceToken(r.Context(), user.ID, req.DeviceType, req.DeviceToken)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, DeviceTokenResponse{
		UserID:     binding.UserID.String(),
		Token:      binding.Token,
		DeviceType: binding.DeviceType,
	})
}
