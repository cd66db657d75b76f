package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
)

// GuestProfileRepository implements the repositories.GuestProfileRepository interface
type GuestProfileRepository struct {
	baseRepository
}

// NewGuestProfileRepository creates a new guest profile repository
func NewGuestProfileRepository(db *DB, logger *zap.Logger) repositories.GuestProfileRepository {
	return &GuestProfileRepository{baseRepository{db: db, logger: logger}}
}

// Upsert creates or updates a profile. A nil field keeps the stored value.
func (r *GuestProfileRepository) Upsert(ctx context.Context, profile *models.GuestProfile) error {
	query := `
		INSERT INTO guest_profiles (
			guest_id, name, email, phone, country, member_id, preferred_contact_method, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guest_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, guest_profiles.name),
			email = COALESCE(EXCLUDED.email, guest_profiles.email),
			phone = COALESCE(EXCLUDED.phone, guest_profiles.phone),
			country = COALESCE(EXCLUDED.country, guest_profiles.country),
			member_id = COALESCE(EXCLUDED.member_id, guest_profiles.member_id),
			preferred_contact_method = COALESCE(EXCLUDED.preferred_contact_method, guest_profiles.preferred_contact_method),
			updated_at = EXCLUDED.updated_at
	`

	var method *string
	if profile.PreferredContactMethod != nil {
		m := string(*profile.PreferredContactMethod)
		method = &m
	}

	_, err := r.executor(ctx).ExecContext(ctx, query,
		profile.GuestID,
		profile.Name,
		profile.Email,
		profile.Phone,
		profile.Country,
		profile.MemberID,
		method,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guest profile: %w", err)
	}

	r.logger.Debug("guest profile stored", zap.String("guest_id", profile.GuestID))
	return nil
}

// GetByGuestID returns a guest's profile
func (r *GuestProfileRepository) GetByGuestID(ctx context.Context, guestID string) (*models.GuestProfile, error) {
	query := `
		SELECT guest_id, name, email, phone, country, member_id, preferred_contact_method, updated_at
		FROM guest_profiles
		WHERE guest_id = $1
	`

	profile := &models.GuestProfile{}
	var method sql.NullString
	err := r.executor(ctx).QueryRowContext(ctx, query, guestID).Scan(
		&profile.GuestID,
		&profile.Name,
		&profile.Email,
		&profile.Phone,
		&profile.Country,
		&profile.MemberID,
		&method,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile for guest %s: %w", guestID, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get guest profile: %w", err)
	}

	if method.Valid {
		m := models.ContactMethod(method.String)
		profile.PreferredContactMethod = &m
	}

	return profile, nil
}

// Delete removes a guest's profile
func (r *GuestProfileRepository) Delete(ctx context.Context, guestID string) (int64, error) {
	result, err := r.executor(ctx).ExecContext(ctx, `DELETE FROM guest_profiles WHERE guest_id = $1`, guestID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guest profile: %w", err)
	}
	return result.RowsAffected()
}

// WithTx returns a new repository instance bound to the transaction
func (r *GuestProfileRepository) WithTx(tx repositories.Transaction) repositories.GuestProfileRepository {
	return &GuestProfileRepository{r.withTx(tx)}
}
