package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/privacytoken"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// TokenRequest asks for a privacy-rights token
type TokenRequest struct {
	GuestID string `json:"guest_id" validate:"required,max=255"`
	Purpose string `json:"purpose" validate:"required,oneof=export delete"`
}

// GuestDataRequest is the body of an export or delete request
type GuestDataRequest struct {
	GuestID string `json:"guest_id" validate:"required,max=255"`
	Token   string `json:"token" validate:"required"`
}

// DeletionResponse reports a completed deletion
type DeletionResponse struct {
	Status  string                  `json:"status"`
	Summary *models.DeletionSummary `json:"summary"`
}

// GuestDataService defines the interface for privacy-rights operations
type GuestDataService interface {
	// IssueToken issues a token authorizing purpose for a guest
	IssueToken(ctx context.Context, guestID string, purpose privacytoken.Purpose, requestID string) (*privacytoken.Grant, error)

	// Export returns everything stored about a guest
	Export(ctx context.Context, guestID, token, requestID string) (*models.GuestExport, error)

	// Delete erases everything stored about a guest
	Delete(ctx context.Context, guestID, token, requestID string) (*models.DeletionSummary, error)
}

// PrivacyHandler handles the guest privacy-rights endpoints
type PrivacyHandler struct {
	guestData GuestDataService
	logger    *zap.Logger
}

// NewPrivacyHandler creates a new PrivacyHandler
func NewPrivacyHandler(guestData GuestDataService, logger *zap.Logger) *PrivacyHandler {
	return &PrivacyHandler{
		guestData: guestData,
		logger:    logger,
	}
}

// HandleIssueToken handles POST /privacy/token. The route is behind the signature
// middleware.
func (h *PrivacyHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req TokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	grant, err := h.guestData.IssueToken(ctx, req.GuestID, privacytoken.Purpose(req.Purpose), requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, grant); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleExport handles POST /privacy/export
func (h *PrivacyHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	req, ok := h.decodeGuestDataRequest(w, r)
	if !ok {
		return
	}

	export, err := h.guestData.Export(ctx, req.GuestID, req.Token, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, export); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleDelete handles POST /privacy/delete
func (h *PrivacyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	req, ok := h.decodeGuestDataRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.guestData.Delete(ctx, req.GuestID, req.Token, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp := DeletionResponse{Status: "deleted", Summary: summary}
	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *PrivacyHandler) decodeGuestDataRequest(w http.ResponseWriter, r *http.Request) (*GuestDataRequest, bool) {
	var req GuestDataRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}
	return &req, true
}
