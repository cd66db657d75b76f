package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/privacy"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/services/audit"
)

// ConsentService records guest consent decisions. Every change is stored together
// with a consent_change event so the decision history survives later updates.
type ConsentService struct {
	txMgr     repositories.TransactionManager
	consents  repositories.ConsentRepository
	events    repositories.EventRepository
	retention *privacy.RetentionTable
	recorder  audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewConsentService creates a new ConsentService instance
func NewConsentService(
	txMgr repositories.TransactionManager,
	consents repositories.ConsentRepository,
	events repositories.EventRepository,
	retention *privacy.RetentionTable,
	recorder audit.Recorder,
	logger *zap.Logger,
) *ConsentService {
	return &ConsentService{
		txMgr:     txMgr,
		consents:  consents,
		events:    events,
		retention: retention,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Update stores req as the guest's current consent
func (s *ConsentService) Update(ctx context.Context, req *models.ConsentRequest, requestID string) (*models.GuestConsent, error) {
	now := s.now().UTC()

	ts := now
	if req.Timestamp != "" {
		parsed, err := models.ParseTimestamp(req.Timestamp)
		if err != nil {
			return nil, services.ErrInvalidTimestamp
		}
		ts = parsed
	}

	purposes := req.Purposes
	if purposes == nil {
		purposes = []string{}
	}

	consent := &models.GuestConsent{
		GuestID:      req.GuestID,
		ConsentGiven: req.ConsentGiven,
		Purposes:     purposes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	rec, err := s.consentEvent(consent, ts, now)
	if err != nil {
		return nil, services.WrapInternal("failed to build consent event", err)
	}

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.consents.WithTx(tx).Upsert(ctx, consent); err != nil {
			return err
		}
		return s.events.WithTx(tx).Insert(ctx, rec)
	})
	if err != nil {
		s.logger.Error("failed to update consent",
			zap.String("guest_id", req.GuestID),
			zap.Error(err))
		return nil, services.WrapDownstream("failed to store consent", err)
	}

	if err := s.recorder.Record(audit.ConsentChanged(consent.GuestID, consent.ConsentGiven, purposes, requestID)); err != nil {
		s.logger.Warn("failed to record consent audit entry", zap.Error(err))
	}

	s.logger.Info("consent updated",
		zap.String("guest_id", consent.GuestID),
		zap.Bool("consent_given", consent.ConsentGiven))

	return consent, nil
}

func (s *ConsentService) consentEvent(consent *models.GuestConsent, ts, receivedAt time.Time) (*models.StorageRecord, error) {
	payload, err := json.Marshal(models.ConsentChangePayload{
		GuestID:      consent.GuestID,
		ConsentGiven: consent.ConsentGiven,
		Purposes:     consent.Purposes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode consent payload: %w", err)
	}

	days := s.retention.Days(models.EventTypeConsentChange)
	return &models.StorageRecord{
		ID:            uuid.New(),
		EventType:     models.EventTypeConsentChange,
		Timestamp:     ts,
		GuestID:       consent.GuestID,
		SchemaVersion: models.DefaultSchemaVersion,
		Payload:       payload,
		RetentionDays: days,
		ExpiresAt:     receivedAt.AddDate(0, 0, days),
		ReceivedAt:    receivedAt,
	}, nil
}
