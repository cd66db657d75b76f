package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cbc-agent/analytics-ingest/internal/privacy"
)

// GeoInfo is the coarse location derived from a client address. Coordinates are
// never kept.
type GeoInfo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// IsEmpty reports whether no field is set
func (g *GeoInfo) IsEmpty() bool {
	return g == nil || (g.Country == "" && g.Region == "" && g.City == "")
}

// StorageRecord is the storage-safe form of an event. Payload is always redacted.
// IPData is nil in raw-IP mode, where RawIP is set instead.
type StorageRecord struct {
	ID            uuid.UUID                `json:"id" db:"id"`
	EventType     string                   `json:"event_type" db:"event_type"`
	Timestamp     time.Time                `json:"ts" db:"ts"`
	SessionID     string                   `json:"session_id" db:"session_id"`
	GuestID       string                   `json:"guest_id" db:"guest_id"`
	SchemaVersion string                   `json:"schema_version" db:"schema_version"`
	AppVersion    string                   `json:"app_version" db:"app_version"`
	Device        *DeviceInfo              `json:"device,omitempty" db:"device"`
	Payload       json.RawMessage          `json:"payload" db:"payload"`
	IPData        *privacy.IPAnonymization `json:"ip_data" db:"ip_data"`
	RawIP         *string                  `json:"raw_ip,omitempty" db:"raw_ip"`
	Geo           *GeoInfo                 `json:"geo,omitempty" db:"geo"`
	RetentionDays int                      `json:"retention_days" db:"retention_days"`
	ExpiresAt     time.Time                `json:"expires_at" db:"expires_at"`
	ReceivedAt    time.Time                `json:"received_at" db:"received_at"`
}

// TableName returns the table name for the StorageRecord model
func (StorageRecord) TableName() string {
	return "events"
}

// EventCount is the number of stored events of one type in a window
type EventCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}
