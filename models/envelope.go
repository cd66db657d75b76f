package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbc-agent/analytics-ingest/internal/privacy"
)

// DefaultSchemaVersion is assumed when an envelope omits schema_version
const DefaultSchemaVersion = "1.0.0"

// DeviceType represents the client form factor
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// DeviceInfo describes the client that emitted an event
type DeviceInfo struct {
	Type    DeviceType `json:"type" validate:"required,oneof=desktop mobile tablet"`
	OS      string     `json:"os" validate:"required,max=100"`
	Browser *string    `json:"browser,omitempty" validate:"omitempty,max=100"`
}

// ConsentFlags is the consent declared with an event
type ConsentFlags = privacy.ConsentFlags

// EventEnvelope is the inbound event record. The timestamp is kept as sent so the
// pipeline can reject unparseable values with a reason code.
type EventEnvelope struct {
	AppID         string          `json:"app_id"`
	SchemaVersion string          `json:"schema_version"`
	EventType     string          `json:"event_type" validate:"required,max=100"`
	Timestamp     string          `json:"ts" validate:"required"`
	SessionID     string          `json:"session_id" validate:"required,max=255"`
	GuestID       string          `json:"guest_pseudonymous_id" validate:"required,max=255"`
	Device        DeviceInfo      `json:"device"`
	AppVersion    string          `json:"app_version" validate:"required,max=50"`
	ConsentFlags  ConsentFlags    `json:"consent_flags"`
	IPRaw         *string         `json:"ip_raw,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

var envelopeFields = map[string]struct{}{
	"app_id":                {},
	"schema_version":        {},
	"event_type":            {},
	"ts":                    {},
	"session_id":            {},
	"guest_pseudonymous_id": {},
	"device":                {},
	"app_version":           {},
	"consent_flags":         {},
	"ip_raw":                {},
	"payload":               {},
}

// UnmarshalJSON decodes an envelope. When "payload" is absent, every top-level key
// that is not an envelope field is gathered into Payload.
func (e *EventEnvelope) UnmarshalJSON(data []byte) error {
	type envelopeAlias EventEnvelope
	var alias envelopeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	if len(alias.Payload) == 0 || string(alias.Payload) == "null" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		extra := make(map[string]json.RawMessage)
		for k, v := range fields {
			if _, ok := envelopeFields[k]; !ok {
				extra[k] = v
			}
		}
		payload, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("failed to collect payload fields: %w", err)
		}
		alias.Payload = payload
	}

	if alias.SchemaVersion == "" {
		alias.SchemaVersion = DefaultSchemaVersion
	}

	*e = EventEnvelope(alias)
	return nil
}

// ParseTimestamp parses an event timestamp. RFC 3339 is expected; a timestamp
// without zone is taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	return t, nil
}

// Time parses the envelope timestamp
func (e *EventEnvelope) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}
