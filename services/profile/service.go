package profile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/services/audit"
)

// ProfileService stores directly identifying guest data. Profiles are accepted only
// while PII collection is enabled and only for guests with stored consent.
type ProfileService struct {
	collectPII bool
	consents   repositories.ConsentRepository
	profiles   repositories.GuestProfileRepository
	recorder   audit.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewProfileService creates a new ProfileService instance
func NewProfileService(
	collectPII bool,
	consents repositories.ConsentRepository,
	profiles repositories.GuestProfileRepository,
	recorder audit.Recorder,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		collectPII: collectPII,
		consents:   consents,
		profiles:   profiles,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Update creates or updates a guest profile. Fields left nil keep their stored value.
func (s *ProfileService) Update(ctx context.Context, profile *models.GuestProfile, requestID string) error {
	if !s.collectPII {
		return services.ErrPIICollectionDisabled
	}

	consent, err := s.consents.GetByGuestID(ctx, profile.GuestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrConsentRequired
		}
		return services.WrapDownstream("failed to load consent", err)
	}
	if !consent.ConsentGiven {
		return services.ErrConsentRequired
	}

	profile.UpdatedAt = s.now().UTC()
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.logger.Error("failed to update guest profile",
			zap.String("guest_id", profile.GuestID),
			zap.Error(err))
		return services.WrapDownstream("failed to store profile", err)
	}

	if err := s.recorder.Record(audit.ProfileUpdated(profile.GuestID, writtenFields(profile), requestID)); err != nil {
		s.logger.Warn("failed to record profile audit entry", zap.Error(err))
	}

	s.logger.Info("guest profile updated", zap.String("guest_id", profile.GuestID))
	return nil
}

// writtenFields names the profile fields present in an update
func writtenFields(p *models.GuestProfile) []string {
	fields := []string{}
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Country != nil {
		fields = append(fields, "country")
	}
	if p.MemberID != nil {
		fields = append(fields, "member_id")
	}
	if p.PreferredContactMethod != nil {
		fields = append(fields, "preferred_contact_method")
	}
	return fields
}
