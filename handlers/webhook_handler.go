package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/internal/pipeline"
	"github.com/cbc-agent/analytics-ingest/internal/webhook"
	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// Webhook results recorded in metrics
const (
	webhookResultStored       = "stored"
	webhookResultRejected     = "rejected"
	webhookResultUnauthorized = "unauthorized"
	webhookResultError        = "error"
)

// WebhookHandler handles signed deliveries from the assistant backend
type WebhookHandler struct {
	processor     EventProcessor
	authenticator middleware.DeliveryAuthenticator
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	processor EventProcessor,
	authenticator middleware.DeliveryAuthenticator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		processor:     processor,
		authenticator: authenticator,
		metrics:       metrics,
		logger:        logger,
	}
}

// HandleWebhook handles POST /webhook/cbc-agent/{webhook_type}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	log := h.logger.With(zap.String("request_id", requestID))

	webhookType, err := models.ParseWebhookType(chi.URLParam(r, "webhook_type"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Unknown webhook type", nil)
		return
	}
	log = log.With(zap.String("webhook_type", string(webhookType)))

	var env models.WebhookEnvelope
	if err := utils.DecodeJSON(r, &env); err != nil {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultRejected)
		HandleValidationError(w, err, log)
		return
	}
	if err := utils.ValidateStruct(&env); err != nil {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultRejected)
		HandleValidationError(w, err, log)
		return
	}
	ts, err := env.Time()
	if err != nil {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultRejected)
		HandleValidationError(w, utils.NewFieldError("timestamp", err.Error()), log)
		return
	}

	err = h.authenticator.Authenticate(webhook.Delivery{
		Type:            string(webhookType),
		Payload:         env.Payload,
		HeaderSignature: r.Header.Get(webhook.SignatureHeader),
		FieldSignature:  env.Signature,
		Timestamp:       ts,
	})
	if err != nil {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultUnauthorized)
		log.Warn("webhook authentication failed", zap.Error(err))
		_ = utils.WriteUnauthorized(w, "Invalid signature")
		return
	}

	out, err := h.processor.ProcessWebhook(ctx, pipeline.WebhookRequest{
		Type:      webhookType,
		Timestamp: ts,
		Payload:   env.Payload,
	})
	if err != nil {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultError)
		HandleServiceError(w, err, log)
		return
	}

	if out.Stored() {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultStored)
	} else {
		h.metrics.ObserveWebhook(string(webhookType), webhookResultRejected)
	}
	writeOutcome(w, out, log)
}
