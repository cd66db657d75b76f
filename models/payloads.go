package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cbc-agent/analytics-ingest/utils"
)

// Known event types
const (
	EventTypePageView                   = "page_view"
	EventTypeSearch                     = "search"
	EventTypeFAQView                    = "faq_view"
	EventTypeChatStart                  = "chat_start"
	EventTypeChatEnd                    = "chat_end"
	EventTypeServiceRequestCreated      = "service_request_created"
	EventTypeServiceRequestStatusChange = "service_request_status_change"
	EventTypePreferenceSignal           = "preference_signal"
	EventTypeSelection                  = "selection"
	EventTypeConsentChange              = "consent_change"
)

// EventPayload is one of the typed payload variants or OpaquePayload
type EventPayload interface {
	EventType() string
}

// PageViewPayload is the payload of a page_view event
type PageViewPayload struct {
	GuestID  string  `json:"guest_id,omitempty"`
	Path     string  `json:"path" validate:"required"`
	MsOnPage int64   `json:"ms_on_page" validate:"gte=0"`
	Referrer *string `json:"referrer,omitempty"`
}

// SearchPayload is the payload of a search event
type SearchPayload struct {
	GuestID       string  `json:"guest_id,omitempty"`
	QueryRedacted string  `json:"query_redacted" validate:"required"`
	ResultsCount  int     `json:"results_count" validate:"gte=0"`
	ClickedFAQID  *string `json:"clicked_faq_id,omitempty"`
	ZeroResult    bool    `json:"zero_result"`
}

// FAQViewPayload is the payload of a faq_view event
type FAQViewPayload struct {
	GuestID     string `json:"guest_id,omitempty"`
	FAQID       string `json:"faq_id" validate:"required"`
	DwellMs     int64  `json:"dwell_ms" validate:"gte=0"`
	FromSearch  bool   `json:"from_search"`
	HelpfulVote *bool  `json:"helpful_vote,omitempty"`
}

// ChatStartPayload is the payload of a chat_start event
type ChatStartPayload struct {
	ChatSessionID string  `json:"chat_session_id" validate:"required"`
	GuestID       string  `json:"guest_id,omitempty"`
	Entrypoint    string  `json:"entrypoint" validate:"required"`
	IntentInitial *string `json:"intent_initial,omitempty"`
}

// ChatEndPayload is the payload of a chat_end event
type ChatEndPayload struct {
	ChatSessionID  string `json:"chat_session_id" validate:"required"`
	Resolved       bool   `json:"resolved"`
	HandoffToAgent bool   `json:"handoff_to_agent"`
	CSAT           *int   `json:"csat,omitempty" validate:"omitempty,min=1,max=5"`
}

// ServiceRequestCreatedPayload is the payload of a service_request_created event
type ServiceRequestCreatedPayload struct {
	RequestID   string  `json:"request_id" validate:"required"`
	GuestID     string  `json:"guest_id,omitempty"`
	Category    string  `json:"category" validate:"required,oneof=housekeeping maintenance dining spa tennis transport it other"`
	Subcategory *string `json:"subcategory,omitempty"`
	Source      string  `json:"source" validate:"required"`
	Priority    string  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// ServiceRequestStatusChangePayload is the payload of a service_request_status_change event
type ServiceRequestStatusChangePayload struct {
	RequestID string `json:"request_id" validate:"required"`
	OldStatus string `json:"old_status" validate:"required"`
	NewStatus string `json:"new_status" validate:"required,oneof=open in_progress resolved closed cancelled"`
	TSChange  string `json:"ts_change" validate:"required"`
}

// PreferenceSignalPayload is the payload of a preference_signal event
type PreferenceSignalPayload struct {
	GuestID string  `json:"guest_id,omitempty"`
	Key     string  `json:"key" validate:"required"`
	Value   string  `json:"value" validate:"required"`
	Weight  float64 `json:"weight" validate:"gte=0,lte=1"`
	Source  string  `json:"source" validate:"required,oneof=choice search click"`
}

// SelectionPayload is the payload of a selection event
type SelectionPayload struct {
	GuestID        string  `json:"guest_id,omitempty"`
	SelectionType  string  `json:"selection_type" validate:"required,oneof=dining spa tennis transport activity faq"`
	SelectionValue string  `json:"selection_value" validate:"required"`
	Context        *string `json:"context,omitempty"`
	Path           string  `json:"path" validate:"required"`
}

// ConsentChangePayload is the payload of a consent_change event
type ConsentChangePayload struct {
	GuestID      string   `json:"guest_id" validate:"required,max=255"`
	ConsentGiven bool     `json:"consent_given"`
	Purposes     []string `json:"purposes" validate:"dive,required,max=100"`
}

// OpaquePayload carries payloads of event types without a typed variant
type OpaquePayload struct {
	Type string
	Raw  json.RawMessage
}

func (PageViewPayload) EventType() string              { return EventTypePageView }
func (SearchPayload) EventType() string                { return EventTypeSearch }
func (FAQViewPayload) EventType() string               { return EventTypeFAQView }
func (ChatStartPayload) EventType() string             { return EventTypeChatStart }
func (ChatEndPayload) EventType() string               { return EventTypeChatEnd }
func (ServiceRequestCreatedPayload) EventType() string { return EventTypeServiceRequestCreated }
func (ServiceRequestStatusChangePayload) EventType() string {
	return EventTypeServiceRequestStatusChange
}
func (PreferenceSignalPayload) EventType() string { return EventTypePreferenceSignal }
func (SelectionPayload) EventType() string        { return EventTypeSelection }
func (ConsentChangePayload) EventType() string    { return EventTypeConsentChange }
func (p OpaquePayload) EventType() string         { return p.Type }

var payloadFactories = map[string]func() EventPayload{
	EventTypePageView:                   func() EventPayload { return &PageViewPayload{} },
	EventTypeSearch:                     func() EventPayload { return &SearchPayload{} },
	EventTypeFAQView:                    func() EventPayload { return &FAQViewPayload{} },
	EventTypeChatStart:                  func() EventPayload { return &ChatStartPayload{} },
	EventTypeChatEnd:                    func() EventPayload { return &ChatEndPayload{} },
	EventTypeServiceRequestCreated:      func() EventPayload { return &ServiceRequestCreatedPayload{} },
	EventTypeServiceRequestStatusChange: func() EventPayload { return &ServiceRequestStatusChangePayload{} },
	EventTypePreferenceSignal:           func() EventPayload { return &PreferenceSignalPayload{} },
	EventTypeSelection:                  func() EventPayload { return &SelectionPayload{} },
	EventTypeConsentChange:              func() EventPayload { return &ConsentChangePayload{} },
}

// IsKnownEventType reports whether eventType has a typed payload variant
func IsKnownEventType(eventType string) bool {
	_, ok := payloadFactories[eventType]
	return ok
}

// DecodePayload decodes and validates raw as the variant for eventType. Unknown
// event types yield an OpaquePayload. Unknown fields are tolerated.
func DecodePayload(eventType string, raw json.RawMessage) (EventPayload, error) {
	factory, ok := payloadFactories[eventType]
	if !ok {
		return OpaquePayload{Type: eventType, Raw: raw}, nil
	}

	payload := factory()
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", eventType, err)
		}
	}
	if err := utils.ValidateStruct(payload); err != nil {
		return nil, err
	}
	return payload, nil
}
