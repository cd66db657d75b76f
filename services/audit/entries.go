package audit

import (
	"github.com/cbc-agent/analytics-ingest/models"
)

// Entry builders for the privacy actions the service records. Details never carry
// the data itself, only what happened to it.

// TokenIssued records that a privacy-rights token was issued
func TokenIssued(guestID, purpose, requestID string) *models.AuditLog {
	return models.NewAuditLog(guestID, models.AuditActionTokenIssued).
		WithDetails(map[string]string{"purpose": purpose}).
		WithRequest(requestID)
}

// DataExported records a completed guest export
func DataExported(guestID string, eventCount int, requestID string) *models.AuditLog {
	return models.NewAuditLog(guestID, models.AuditActionDataExported).
		WithDetails(map[string]int{"events": eventCount}).
		WithRequest(requestID)
}

// DataDeleted records a completed guest deletion
func DataDeleted(guestID string, summary models.DeletionSummary, requestID string) *models.AuditLog {
	return models.NewAuditLog(guestID, models.AuditActionDataDeleted).
		WithDetails(summary).
		WithRequest(requestID)
}

// ConsentChanged records a consent update
func ConsentChanged(guestID string, given bool, purposes []string, requestID string) *models.AuditLog {
	if purposes == nil {
		purposes = []string{}
	}
	return models.NewAuditLog(guestID, models.AuditActionConsentChanged).
		WithDetails(map[string]interface{}{"consent_given": given, "purposes": purposes}).
		WithRequest(requestID)
}

// ProfileUpdated records which profile fields were written, never their values
func ProfileUpdated(guestID string, fields []string, requestID string) *models.AuditLog {
	return models.NewAuditLog(guestID, models.AuditActionProfileUpdated).
		WithDetails(map[string][]string{"fields": fields}).
		WithRequest(requestID)
}

// RetentionPurged records one retention purge run
func RetentionPurged(deleted int64) *models.AuditLog {
	return models.NewAuditLog("", models.AuditActionRetentionPurged).
		WithDetails(map[string]int64{"events": deleted})
}
