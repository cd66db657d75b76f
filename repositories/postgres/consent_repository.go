package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
)

// ConsentRepository implements the repositories.ConsentRepository interface
type ConsentRepository struct {
	baseRepository
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *DB, logger *zap.Logger) repositories.ConsentRepository {
	return &ConsentRepository{baseRepository{db: db, logger: logger}}
}

// Upsert creates or replaces a guest's consent. created_at is kept on update.
func (r *ConsentRepository) Upsert(ctx context.Context, consent *models.GuestConsent) error {
	query := `
		INSERT INTO guests (pseudonymous_id, consent_given, consent_purposes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (pseudonymous_id) DO UPDATE SET
			consent_given = EXCLUDED.consent_given,
			consent_purposes = EXCLUDED.consent_purposes,
			updated_at = EXCLUDED.updated_at
	`

	purposes := consent.Purposes
	if purposes == nil {
		purposes = []string{}
	}

	_, err := r.executor(ctx).ExecContext(ctx, query,
		consent.GuestID,
		consent.ConsentGiven,
		pq.Array(purposes),
		consent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consent: %w", err)
	}

	r.logger.Debug("consent stored",
		zap.String("guest_id", consent.GuestID),
		zap.Bool("consent_given", consent.ConsentGiven))
	return nil
}

// GetByGuestID returns a guest's consent
func (r *ConsentRepository) GetByGuestID(ctx context.Context, guestID string) (*models.GuestConsent, error) {
	query := `
		SELECT pseudonymous_id, consent_given, consent_purposes, created_at, updated_at
		FROM guests
		WHERE pseudonymous_id = $1
	`

	consent := &models.GuestConsent{}
	err := r.executor(ctx).QueryRowContext(ctx, query, guestID).Scan(
		&consent.GuestID,
		&consent.ConsentGiven,
		pq.Array(&consent.Purposes),
		&consent.CreatedAt,
		&consent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consent for guest %s: %w", guestID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return consent, nil
}

// Delete removes a guest's consent row
func (r *ConsentRepository) Delete(ctx context.Context, guestID string) (int64, error) {
	result, err := r.executor(ctx).ExecContext(ctx, `DELETE FROM guests WHERE pseudonymous_id = $1`, guestID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guest: %w", err)
	}
	return result.RowsAffected()
}

// WithTx returns a new repository instance bound to the transaction
func (r *ConsentRepository) WithTx(tx repositories.Transaction) repositories.ConsentRepository {
	return &ConsentRepository{r.withTx(tx)}
}
