package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/averill/accounthub/internal/models"
	pkghttp "github.com/averill/accounthub/pkg/http"
	"github.com/google/uuid"
)

// AuditServiceInterface defines the interface for reading the audit trail
type AuditServiceInterface interface {
	GetTrail(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*models.AuditEntry, error)
}

// AuditHandler serves the audit trail to admins
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// List returns audit entries, optionally scoped to one user via the user_id
// query parameter. Admin only.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid user_id")
			return
		}
		userID = &id
	}

	entries, err := h.service.GetTrail(r.Context(), userID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	responses := make([]*AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, auditModelToResponse(entry))
	}
	pkghttp.WriteJSON(w, http.StatusOK, responses)
}
