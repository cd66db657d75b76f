package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/middleware"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/utils"
)

// DefaultMetricsWindow is used when the window query parameter is absent
const DefaultMetricsWindow = "24h"

// metricsWindows are the supported aggregation windows
var metricsWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// EventCounter counts stored events
type EventCounter interface {
	CountByType(ctx context.Context, since time.Time, eventType string) ([]models.EventCount, error)
}

// EventMetricsResponse is the body of GET /api/v1/metrics/events
type EventMetricsResponse struct {
	Window    string              `json:"window"`
	Since     time.Time           `json:"since"`
	EventType string              `json:"event_type,omitempty"`
	Total     int64               `json:"total"`
	Counts    []models.EventCount `json:"counts"`
}

// MetricsHandler serves aggregate event counts. Nothing guest specific is returned.
type MetricsHandler struct {
	counter EventCounter
	logger  *zap.Logger
	now     func() time.Time
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(counter EventCounter, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleEventMetrics handles GET /api/v1/metrics/events
func (h *MetricsHandler) HandleEventMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	window := r.URL.Query().Get("window")
	if window == "" {
		window = DefaultMetricsWindow
	}
	span, ok := metricsWindows[window]
	if !ok {
		_ = utils.WriteBadRequest(w, "Invalid window", map[string]interface{}{
			"window": "window must be one of: 24h 7d 30d",
		})
		return
	}
	eventType := r.URL.Query().Get("event_type")

	since := h.now().UTC().Add(-span)
	counts, err := h.counter.CountByType(ctx, since, eventType)
	if err != nil {
		h.logger.Error("failed to count events",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, services.WrapDownstream("failed to count events", err), h.logger)
		return
	}
	if counts == nil {
		counts = []models.EventCount{}
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}

	resp := EventMetricsResponse{
		Window:    window,
		Since:     since,
		EventType: eventType,
		Total:     total,
		Counts:    counts,
	}
	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
