// Package guestdata serves the guest privacy rights: exporting and erasing everything
// stored about a pseudonymous guest, authorized by short-lived signed tokens.
package guestdata

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/privacytoken"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/services"
	"github.com/cbc-agent/analytics-ingest/services/audit"
)

// Privacy request operations, used as metric labels
const (
	OperationToken  = "token"
	OperationExport = "export"
	OperationDelete = "delete"
)

// TokenAuthority issues and checks privacy-rights tokens
type TokenAuthority interface {
	Issue(guestID string, purpose privacytoken.Purpose) (*privacytoken.Grant, error)
	Authorize(token, guestID string, purpose privacytoken.Purpose) error
}

// GuestDataService exports and deletes guest data
type GuestDataService struct {
	txMgr    repositories.TransactionManager
	repos    *repositories.Repositories
	tokens   TokenAuthority
	recorder audit.Recorder
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGuestDataService creates a new GuestDataService instance
func NewGuestDataService(
	txMgr repositories.TransactionManager,
	repos *repositories.Repositories,
	tokens TokenAuthority,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *GuestDataService {
	return &GuestDataService{
		txMgr:    txMgr,
		repos:    repos,
		tokens:   tokens,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// IssueToken issues a token authorizing purpose for guestID. Callers must have
// authenticated the requester.
func (s *GuestDataService) IssueToken(ctx context.Context, guestID string, purpose privacytoken.Purpose, requestID string) (*privacytoken.Grant, error) {
	grant, err := s.tokens.Issue(guestID, purpose)
	if err != nil {
		s.metrics.ObservePrivacyRequest(OperationToken, observability.ResultFailure)
		if errors.Is(err, privacytoken.ErrInvalidPurpose) || errors.Is(err, privacytoken.ErrMissingClaim) {
			return nil, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidInput.Message, err)
		}
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.record(audit.TokenIssued(guestID, string(purpose), requestID))
	s.metrics.ObservePrivacyRequest(OperationToken, observability.ResultSuccess)
	s.logger.Info("privacy token issued",
		zap.String("guest_id", guestID),
		zap.String("purpose", string(purpose)))

	return grant, nil
}

// Export returns everything stored about guestID, read in one transaction
func (s *GuestDataService) Export(ctx context.Context, guestID, token, requestID string) (*models.GuestExport, error) {
	if err := s.authorize(token, guestID, privacytoken.PurposeExport); err != nil {
		s.metrics.ObservePrivacyRequest(OperationExport, observability.ResultFailure)
		return nil, err
	}

	export, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.GuestExport, error) {
		export := &models.GuestExport{GuestID: guestID, Events: []*models.StorageRecord{}}

		consent, err := s.repos.Consents.WithTx(tx).GetByGuestID(ctx, guestID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		export.Consent = consent

		profile, err := s.repos.Profiles.WithTx(tx).GetByGuestID(ctx, guestID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
		export.Profile = profile

		events, err := s.repos.Events.WithTx(tx).ListByGuest(ctx, guestID)
		if err != nil {
			return nil, err
		}
		if events != nil {
			export.Events = events
		}
		return export, nil
	})
	if err != nil {
		s.metrics.ObservePrivacyRequest(OperationExport, observability.ResultFailure)
		s.logger.Error("failed to export guest data", zap.String("guest_id", guestID), zap.Error(err))
		return nil, services.WrapDownstream("failed to export guest data", err)
	}

	s.record(audit.DataExported(guestID, len(export.Events), requestID))
	s.metrics.ObservePrivacyRequest(OperationExport, observability.ResultSuccess)
	s.logger.Info("guest data exported",
		zap.String("guest_id", guestID),
		zap.Int("events", len(export.Events)))

	return export, nil
}

// Delete erases every event, the profile and the consent row of guestID in one
// transaction
func (s *GuestDataService) Delete(ctx context.Context, guestID, token, requestID string) (*models.DeletionSummary, error) {
	if err := s.authorize(token, guestID, privacytoken.PurposeDelete); err != nil {
		s.metrics.ObservePrivacyRequest(OperationDelete, observability.ResultFailure)
		return nil, err
	}

	summary, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.DeletionSummary, error) {
		var (
			summary models.DeletionSummary
			err     error
		)
		if summary.Events, err = s.repos.Events.WithTx(tx).DeleteByGuest(ctx, guestID); err != nil {
			return nil, err
		}
		if summary.Profiles, err = s.repos.Profiles.WithTx(tx).Delete(ctx, guestID); err != nil {
			return nil, err
		}
		if summary.Guests, err = s.repos.Consents.WithTx(tx).Delete(ctx, guestID); err != nil {
			return nil, err
		}
		return &summary, nil
	})
	if err != nil {
		s.metrics.ObservePrivacyRequest(OperationDelete, observability.ResultFailure)
		s.logger.Error("failed to delete guest data", zap.String("guest_id", guestID), zap.Error(err))
		return nil, services.WrapDownstream("failed to delete guest data", err)
	}

	s.record(audit.DataDeleted(guestID, *summary, requestID))
	s.metrics.ObservePrivacyRequest(OperationDelete, observability.ResultSuccess)
	s.logger.Info("guest data deleted",
		zap.String("guest_id", guestID),
		zap.Int64("events", summary.Events),
		zap.Int64("profiles", summary.Profiles),
		zap.Int64("guests", summary.Guests))

	return summary, nil
}

// authorize maps token failures to domain errors without telling the caller which
// check failed, except for a purpose mismatch on an otherwise valid token
func (s *GuestDataService) authorize(token, guestID string, purpose privacytoken.Purpose) error {
	err := s.tokens.Authorize(token, guestID, purpose)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, privacytoken.ErrPurposeMismatch):
		return services.ErrTokenPurposeMismatch
	default:
		s.logger.Info("privacy token rejected",
			zap.String("guest_id", guestID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return services.ErrInvalidToken
	}
}

func (s *GuestDataService) record(entry *models.AuditLog) {
	if err := s.recorder.Record(entry); err != nil {
		s.logger.Warn("failed to record privacy audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}
