package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// ConsentService defines the interface for consent updates
type ConsentService interface {
	Update(ctx context.Context, req *models.ConsentRequest, requestID string) (*models.GuestConsent, error)
}

// ProfileService defines the interface for guest profile updates
type ProfileService interface {
	Update(ctx context.Context, profile *models.GuestProfile, requestID string) error
}

// GuestHandler handles consent and profile requests
type GuestHandler struct {
	consents ConsentService
	profiles ProfileService
	logger   *zap.Logger
}

// NewGuestHandler creates a new GuestHandler
func NewGuestHandler(consents ConsentService, profiles ProfileService, logger *zap.Logger) *GuestHandler {
	return &GuestHandler{
		consents: consents,
		profiles: profiles,
		logger:   logger,
	}
}

// HandleConsent handles POST /consent
func (h *GuestHandler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req models.ConsentRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	consent, err := h.consents.Update(ctx, &req, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, consent); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleProfile handles POST /guest/profile
func (h *GuestHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var profile models.GuestProfile
	if err := utils.DecodeJSON(r, &profile); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&profile); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.profiles.Update(ctx, &profile, requestID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteStatus(w, utils.StatusResponse{}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
