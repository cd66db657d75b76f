package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/pipeline"
	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// EventProcessor runs inbound events and webhook deliveries through the privacy pipeline
type EventProcessor interface {
	// Process handles one client event
	Process(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)

	// ProcessWebhook handles one authenticated webhook delivery
	ProcessWebhook(ctx context.Context, req pipeline.WebhookRequest) (pipeline.Outcome, error)
}

// IngestHandler handles client event ingestion
type IngestHandler struct {
	processor EventProcessor
	logger    *zap.Logger
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(processor EventProcessor, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		processor: processor,
		logger:    logger,
	}
}

// HandleEvent handles POST /ingest/event
func (h *IngestHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var env models.EventEnvelope
	if err := utils.DecodeJSON(r, &env); err != nil {
		h.logger.Debug("invalid event body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), map[string]interface{}{
			"reason": string(pipeline.ReasonInvalidEnvelope),
		})
		return
	}

	out, err := h.processor.Process(ctx, pipeline.Request{
		Envelope: &env,
		DNT:      middleware.GetPrivacySignalsFromContext(ctx).OptedOut(),
		ClientIP: middleware.GetClientIPFromContext(ctx),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	writeOutcome(w, out, h.logger)
}

// writeOutcome writes the acknowledgement for a pipeline outcome. Skipped events are
// accepted: the client is told why nothing was stored.
func writeOutcome(w http.ResponseWriter, out pipeline.Outcome, logger *zap.Logger) {
	var writeErr error
	switch out.Kind {
	case pipeline.KindStored:
		writeErr = utils.WriteStatus(w, utils.StatusResponse{EventID: out.Record.ID.String()})

	case pipeline.KindSkipped:
		resp := utils.StatusResponse{}
		switch out.Reason {
		case pipeline.ReasonDNT:
			dnt := true
			resp.DNT = &dnt
		case pipeline.ReasonNoConsent:
			consent := false
			resp.Consent = &consent
		}
		writeErr = utils.WriteStatus(w, resp)

	default:
		writeErr = writeRejection(w, out)
	}

	if writeErr != nil {
		logger.Error("failed to write response", zap.Error(writeErr))
	}
}

func writeRejection(w http.ResponseWriter, out pipeline.Outcome) error {
	details := map[string]interface{}{
		"reason": string(out.Reason),
	}
	for field, msg := range utils.GetValidationFields(out.Err) {
		details[field] = msg
	}
	return utils.WriteBadRequest(w, rejectionMessage(out.Err), details)
}

func rejectionMessage(err error) string {
	var domainErr *services.DomainError
	switch {
	case err == nil:
		return "Event rejected"
	case errors.As(err, &domainErr):
		return domainErr.Message
	case utils.IsValidationError(err):
		return "Validation failed"
	default:
		return err.Error()
	}
}
