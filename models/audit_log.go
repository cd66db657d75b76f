package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of privacy action being audited
type AuditAction string

const (
	AuditActionTokenIssued     AuditAction = "privacy_token_issued"
	AuditActionDataExported    AuditAction = "guest_data_exported"
	AuditActionDataDeleted     AuditAction = "guest_data_deleted"
	AuditActionConsentChanged  AuditAction = "consent_changed"
	AuditActionProfileUpdated  AuditAction = "profile_updated"
	AuditActionRetentionPurged AuditAction = "retention_purged"
)

// AuditLog is a privacy audit trail entry. It carries the pseudonymous guest id and
// never raw PII.
type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	GuestID   string          `json:"guest_id,omitempty" db:"guest_id"`
	Action    AuditAction     `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"` // JSONB for flexible metadata
	RequestID string          `json:"request_id" db:"request_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "privacy_audit_log"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(guestID string, action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		GuestID:   guestID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets the request id
func (a *AuditLog) WithRequest(requestID string) *AuditLog {
	a.RequestID = requestID
	return a
}
