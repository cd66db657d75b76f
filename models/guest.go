package models

import (
	"time"
)

// GuestConsent is the stored consent state of a guest
type GuestConsent struct {
	GuestID      string    `json:"guest_id" db:"pseudonymous_id"`
	ConsentGiven bool      `json:"consent_given" db:"consent_given"`
	Purposes     []string  `json:"purposes" db:"consent_purposes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the GuestConsent model
func (GuestConsent) TableName() string {
	return "guests"
}

// ConsentRequest is the body of a consent update
type ConsentRequest struct {
	Timestamp    string   `json:"ts,omitempty"`
	GuestID      string   `json:"guest_id" validate:"required,max=255"`
	ConsentGiven bool     `json:"consent_given"`
	Purposes     []string `json:"purposes" validate:"dive,required,max=100"`
}

// ContactMethod is a guest's preferred contact channel
type ContactMethod string

const (
	ContactEmail    ContactMethod = "email"
	ContactPhone    ContactMethod = "phone"
	ContactSMS      ContactMethod = "sms"
	ContactWhatsApp ContactMethod = "whatsapp"
)

// GuestProfile holds directly identifying guest data. It is only stored when PII
// collection is enabled and the guest consented.
type GuestProfile struct {
	GuestID                string         `json:"guest_id" db:"guest_id" validate:"required,max=255"`
	Name                   *string        `json:"name,omitempty" db:"name" validate:"omitempty,max=255"`
	Email                  *string        `json:"email,omitempty" db:"email" validate:"omitempty,email"`
	Phone                  *string        `json:"phone,omitempty" db:"phone" validate:"omitempty,max=50"`
	Country                *string        `json:"country,omitempty" db:"country" validate:"omitempty,max=100"`
	MemberID               *string        `json:"member_id,omitempty" db:"member_id" validate:"omitempty,max=100"`
	PreferredContactMethod *ContactMethod `json:"preferred_contact_method,omitempty" db:"preferred_contact_method" validate:"omitempty,oneof=email phone sms whatsapp"`
	UpdatedAt              time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the GuestProfile model
func (GuestProfile) TableName() string {
	return "guest_profiles"
}

// GuestExport is everything stored about one guest
type GuestExport struct {
	GuestID string           `json:"guest_id"`
	Consent *GuestConsent    `json:"consent,omitempty"`
	Profile *GuestProfile    `json:"profile,omitempty"`
	Events  []*StorageRecord `json:"events"`
}

// DeletionSummary reports how many rows a guest deletion removed per table
type DeletionSummary struct {
	Events   int64 `json:"events"`
	Profiles int64 `json:"profiles"`
	Guests   int64 `json:"guests"`
}
