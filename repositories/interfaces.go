package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/cbc-agent/analytics-ingest/models"
)

// ErrNotFound is wrapped by repositories when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// EventRepository stores privacy-transformed events
type EventRepository interface {
	// Insert persists one storage record
	Insert(ctx context.Context, record *models.StorageRecord) error

	// ListByGuest returns a guest's events ordered by event time
	ListByGuest(ctx context.Context, guestID string) ([]*models.StorageRecord, error)

	// CountByType counts events received since the given instant, per event type.
	// An empty eventType counts every type.
	CountByType(ctx context.Context, since time.Time, eventType string) ([]models.EventCount, error)

	// DeleteByGuest removes every event of a guest
	DeleteByGuest(ctx context.Context, guestID string) (int64, error)

	// DeleteExpired removes up to limit events whose expires_at is before now
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) EventRepository
}

// ConsentRepository handles guest consent state
type ConsentRepository interface {
	// Upsert creates or replaces a guest's consent
	Upsert(ctx context.Context, consent *models.GuestConsent) error

	// GetByGuestID returns a guest's consent; ErrNotFound when none is stored
	GetByGuestID(ctx context.Context, guestID string) (*models.GuestConsent, error)

	// Delete removes a guest's consent row
	Delete(ctx context.Context, guestID string) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ConsentRepository
}

// GuestProfileRepository handles directly identifying guest profiles
type GuestProfileRepository interface {
	// Upsert creates or updates a profile. Nil fields keep their stored value.
	Upsert(ctx context.Context, profile *models.GuestProfile) error

	// GetByGuestID returns a guest's profile; ErrNotFound when none is stored
	GetByGuestID(ctx context.Context, guestID string) (*models.GuestProfile, error)

	// Delete removes a guest's profile
	Delete(ctx context.Context, guestID string) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) GuestProfileRepository
}

// AuditRepository handles the privacy audit trail
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByGuestID retrieves audit logs for a guest with pagination
	GetByGuestID(ctx context.Context, guestID string, limit, offset int) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Events    EventRepository
	Consents  ConsentRepository
	Profiles  GuestProfileRepository
	AuditLogs AuditRepository
}
