package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cbc-agent/analytics-ingest/internal/privacy"
	"github.com/cbc-agent/analytics-ingest/models"
)

// Kind is the terminal state of one event
type Kind string

const (
	KindStored   Kind = "stored"
	KindSkipped  Kind = "skipped"
	KindRejected Kind = "rejected"
)

// Reason tags a Skipped or Rejected outcome
type Reason string

const (
	ReasonDNT              Reason = "dnt"
	ReasonNoConsent        Reason = "no_consent"
	ReasonAppIDMismatch    Reason = "app_id_mismatch"
	ReasonInvalidEnvelope  Reason = "invalid_envelope"
	ReasonInvalidTimestamp Reason = "invalid_timestamp"
	ReasonInvalidPayload   Reason = "invalid_payload"
)

// Outcome is the result of a pipeline run. Policy stops are outcomes, not errors.
type Outcome struct {
	Kind   Kind
	Reason Reason

	// Record is set for KindStored
	Record *models.StorageRecord

	// Err explains a KindRejected outcome
	Err error
}

// Stored reports whether the event was persisted
func (o Outcome) Stored() bool {
	return o.Kind == KindStored
}

// Request is one inbound event
type Request struct {
	Envelope *models.EventEnvelope

	// DNT is set when the client sent a do-not-track or global privacy control signal
	DNT bool

	// ClientIP is the transport address, used when the envelope carries no ip_raw
	ClientIP string
}

// WebhookRequest is an authenticated webhook delivery
type WebhookRequest struct {
	Type      models.WebhookType
	Timestamp time.Time
	Payload   json.RawMessage
}

// IPAnonymizer turns a client address into its storage-safe form
type IPAnonymizer interface {
	Anonymize(rawAddress string) privacy.IPAnonymization
}

// PayloadRedactor removes PII from a decoded payload
type PayloadRedactor interface {
	RedactPayload(value privacy.Node) privacy.Node
}

// RetentionClassifier assigns a retention period by event type
type RetentionClassifier interface {
	Days(eventType string) int
}

// EventStore persists storage records
type EventStore interface {
	Insert(ctx context.Context, rec *models.StorageRecord) error
}

// GeoLocator resolves an address to a coarse location
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*models.GeoInfo, error)
}

// Config is the immutable pipeline configuration
type Config struct {
	SourceApp      string
	StoreRawIP     bool
	PersistTimeout time.Duration
	GeoTimeout     time.Duration
}
