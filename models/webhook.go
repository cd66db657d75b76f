package models

import (
	"encoding/json"
	"errors"
	"time"
)

// WebhookType identifies a webhook route
type WebhookType string

const (
	WebhookServiceRequest WebhookType = "service_request"
	WebhookChatSession    WebhookType = "chat_session"
	WebhookBooking        WebhookType = "booking"
)

// ErrUnknownWebhookType is returned for unsupported webhook routes
var ErrUnknownWebhookType = errors.New("unknown webhook type")

// ParseWebhookType validates a webhook route segment
func ParseWebhookType(s string) (WebhookType, error) {
	switch t := WebhookType(s); t {
	case WebhookServiceRequest, WebhookChatSession, WebhookBooking:
		return t, nil
	default:
		return "", ErrUnknownWebhookType
	}
}

// EventType is the event type webhook deliveries are stored under
func (t WebhookType) EventType() string {
	return "webhook_" + string(t)
}

// WebhookEnvelope is the body of a webhook delivery. The signature covers Payload.
type WebhookEnvelope struct {
	Timestamp string          `json:"timestamp" validate:"required"`
	Signature string          `json:"signature,omitempty"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

// Time parses the delivery timestamp
func (w *WebhookEnvelope) Time() (time.Time, error) {
	return ParseTimestamp(w.Timestamp)
}

// DecodeWebhookPayload decodes and validates a webhook payload by route
func DecodeWebhookPayload(t WebhookType, raw json.RawMessage) (EventPayload, error) {
	switch t {
	case WebhookServiceRequest:
		return DecodePayload(EventTypeServiceRequestCreated, raw)
	case WebhookChatSession:
		return DecodePayload(EventTypeChatStart, raw)
	case WebhookBooking:
		return OpaquePayload{Type: t.EventType(), Raw: raw}, nil
	default:
		return nil, ErrUnknownWebhookType
	}
}
