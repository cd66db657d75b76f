package privacy

import (
	"time"
)

const (
	// DefaultRetentionDays applies to event types without an explicit class.
	DefaultRetentionDays = 365

	// ConsentRetentionDays keeps consent evidence for seven years.
	ConsentRetentionDays = 2555

	serviceRetentionDays = 730
)

var retentionClasses = map[string]int{
	"page_view":         DefaultRetentionDays,
	"search":            DefaultRetentionDays,
	"faq_view":          DefaultRetentionDays,
	"preference_signal": DefaultRetentionDays,
	"selection":         DefaultRetentionDays,

	"chat_start":                    serviceRetentionDays,
	"chat_end":                      serviceRetentionDays,
	"service_request_created":       serviceRetentionDays,
	"service_request_status_change": serviceRetentionDays,

	// Webhook deliveries are stored as webhook_<type>.
	"webhook_service_request": serviceRetentionDays,
	"webhook_chat_session":    serviceRetentionDays,
	"webhook_booking":         serviceRetentionDays,

	"consent_change": ConsentRetentionDays,
}

// RetentionTable maps event types to retention periods in days. It is immutable.
type RetentionTable struct {
	classes     map[string]int
	defaultDays int
}

// NewRetentionTable creates a table whose unknown-type default is defaultDays.
// Non-positive values fall back to DefaultRetentionDays.
func NewRetentionTable(defaultDays int) *RetentionTable {
	if defaultDays <= 0 {
		defaultDays = DefaultRetentionDays
	}
	classes := make(map[string]int, len(retentionClasses))
	for k, v := range retentionClasses {
		classes[k] = v
	}
	return &RetentionTable{classes: classes, defaultDays: defaultDays}
}

// Days returns the retention period for eventType
func (t *RetentionTable) Days(eventType string) int {
	if days, ok := t.classes[eventType]; ok {
		return days
	}
	return t.defaultDays
}

// ExpiresAt returns when an event of eventType received at from becomes purgeable
func (t *RetentionTable) ExpiresAt(eventType string, from time.Time) time.Time {
	return from.AddDate(0, 0, t.Days(eventType))
}

// DefaultDays returns the unknown-type default
func (t *RetentionTable) DefaultDays() int {
	return t.defaultDays
}
