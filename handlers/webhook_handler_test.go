package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/internal/pipeline"
	"github.com/cbc-agent/analytics-ingest/internal/webhook"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/utils"
)

const webhookSecret = "webhook-test-secret"

const bookingPayload = `{"booking_id": "bk-1", "guest_id": "guest-1", "service": "spa"}`

func newWebhookRouter(h *WebhookHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook/cbc-agent/{webhook_type}", h.HandleWebhook)
	return r
}

func webhookBody(t *testing.T, payload, timestamp, fieldSignature string) string {
	t.Helper()
	body := map[string]interface{}{
		"timestamp": timestamp,
		"payload":   json.RawMessage(payload),
	}
	if fieldSignature != "" {
		body["signature"] = fieldSignature
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return string(data)
}

func signPayload(t *testing.T, payload string) string {
	t.Helper()
	signature, err := webhook.Sign(json.RawMessage(payload), webhookSecret)
	require.NoError(t, err)
	return signature
}

func TestHandleWebhook_Stored(t *testing.T) {
	processor := new(MockEventProcessor)
	metrics := observability.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	auth := webhook.NewAuthenticator(webhookSecret, 0, zap.NewNop())
	router := newWebhookRouter(NewWebhookHandler(processor, auth, metrics, zap.NewNop()))

	id := uuid.New()
	processor.On("ProcessWebhook", mock.Anything, mock.MatchedBy(func(req pipeline.WebhookRequest) bool {
		return req.Type == models.WebhookBooking &&
			req.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) &&
			json.Valid(req.Payload)
	})).Return(pipeline.Outcome{Kind: pipeline.KindStored, Record: &models.StorageRecord{ID: id}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/cbc-agent/booking",
		strings.NewReader(webhookBody(t, bookingPayload, "2026-03-01T12:00:00Z", "")))
	req.Header.Set(webhook.SignatureHeader, signPayload(t, bookingPayload))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp utils.StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, id.String(), resp.EventID)

	expected := fmt.Sprintf(`
# HELP %[1]s Webhook deliveries by webhook type and result
# TYPE %[1]s counter
%[1]s{result="stored",webhook_type="booking"} 1
`, observability.MetricWebhookRequestsTotal)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), observability.MetricWebhookRequestsTotal))

	processor.AssertExpectations(t)
}

func TestHandleWebhook_SignatureInBody(t *testing.T) {
	processor := new(MockEventProcessor)
	auth := webhook.NewAuthenticator(webhookSecret, 0, zap.NewNop())
	router := newWebhookRouter(NewWebhookHandler(processor, auth, nil, zap.NewNop()))

	processor.On("ProcessWebhook", mock.Anything, mock.Anything).
		Return(pipeline.Outcome{Kind: pipeline.KindStored, Record: &models.StorageRecord{ID: uuid.New()}}, nil)

	body := webhookBody(t, bookingPayload, "2026-03-01T12:00:00Z", signPayload(t, bookingPayload))
	req := httptest.NewRequest(http.MethodPost, "/webhook/cbc-agent/booking", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	processor.AssertExpectations(t)
}

func TestHandleWebhook_Unauthorized(t *testing.T) {
	tests := []struct {
		name            string
		headerSignature string
		fieldSignature  string
	}{
		{name: "missing signature"},
		{name: "wrong header signature", headerSignature: "deadbeef"},
		{name: "signature over another payload", headerSignature: "0" + strings.Repeat("a", 63)},
		{name: "header wins over a valid body signature", headerSignature: "deadbeef", fieldSignature: "valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockEventProcessor)
			auth := webhook.NewAuthenticator(webhookSecret, 0, zap.NewNop())
			router := newWebhookRouter(NewWebhookHandler(processor, auth, nil, zap.NewNop()))

			field := tt.fieldSignature
			if field == "valid" {
				field = signPayload(t, bookingPayload)
			}
			body := webhookBody(t, bookingPayload, "2026-03-01T12:00:00Z", field)
			req := httptest.NewRequest(http.MethodPost, "/webhook/cbc-agent/booking", strings.NewReader(body))
			if tt.headerSignature != "" {
				req.Header.Set(webhook.SignatureHeader, tt.headerSignature)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Invalid signature")
			processor.AssertNotCalled(t, "ProcessWebhook", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleWebhook_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{
			name: "unknown webhook type",
			path: "/webhook/cbc-agent/invoice",
			body: `{"timestamp": "2026-03-01T12:00:00Z", "payload": {}}`,
		},
		{
			name: "malformed json",
			path: "/webhook/cbc-agent/booking",
			body: `{"timestamp": `,
		},
		{
			name: "missing payload",
			path: "/webhook/cbc-agent/booking",
			body: `{"timestamp": "2026-03-01T12:00:00Z"}`,
		},
		{
			name: "missing timestamp",
			path: "/webhook/cbc-agent/booking",
			body: `{"payload": {}}`,
		},
		{
			name: "unparseable timestamp",
			path: "/webhook/cbc-agent/booking",
			body: `{"timestamp": "yesterday", "payload": {}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockEventProcessor)
			auth := new(MockAuthenticator)
			router := newWebhookRouter(NewWebhookHandler(processor, auth, nil, zap.NewNop()))

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			auth.AssertNotCalled(t, "Authenticate", mock.Anything)
			processor.AssertNotCalled(t, "ProcessWebhook", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleWebhook_Outcomes(t *testing.T) {
	tests := []struct {
		name           string
		outcome        pipeline.Outcome
		err            error
		expectedStatus int
	}{
		{
			name: "payload rejected",
			outcome: pipeline.Outcome{
				Kind:   pipeline.KindRejected,
				Reason: pipeline.ReasonInvalidPayload,
				Err:    errors.New("request_id is required"),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "storage unavailable",
			err:            services.WrapDownstream("failed to store event", errors.New("connection refused")),
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := new(MockEventProcessor)
			auth := new(MockAuthenticator)
			router := newWebhookRouter(NewWebhookHandler(processor, auth, nil, zap.NewNop()))

			auth.On("Authenticate", mock.MatchedBy(func(d webhook.Delivery) bool {
				return d.Type == "service_request" && d.HeaderSignature == "sig"
			})).Return(nil)
			processor.On("ProcessWebhook", mock.Anything, mock.Anything).Return(tt.outcome, tt.err)

			body := `{"timestamp": "2026-03-01T12:00:00Z", "payload": {"service": "spa"}}`
			req := httptest.NewRequest(http.MethodPost, "/webhook/cbc-agent/service_request", strings.NewReader(body))
			req.Header.Set(webhook.SignatureHeader, "sig")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			auth.AssertExpectations(t)
			processor.AssertExpectations(t)
		})
	}
}

func TestHandleWebhook_StaleTimestamp(t *testing.T) {
	processor := new(MockEventProcessor)
	auth := new(MockAuthenticator)
	router := newWebhookRouter(NewWebhookHandler(processor, auth, nil, zap.NewNop()))

	auth.On("Authenticate", mock.Anything).Return(webhook.ErrStaleTimestamp)

	body := webhookBody(t, bookingPayload, "2020-01-01T00:00:00Z", "")
	req := httptest.NewRequest(http.MethodPost, "/webhook/cbc-agent/booking", strings.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, signPayload(t, bookingPayload))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	processor.AssertNotCalled(t, "ProcessWebhook", mock.Anything, mock.Anything)
}
