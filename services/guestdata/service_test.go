package guestdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/privacytoken"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/repositories/mocks"
	"github.com/cbc-agent/analytics-ingest/services"
)

type testDeps struct {
	txMgr    *mocks.TransactionManager
	events   *mocks.EventRepository
	consents *mocks.ConsentRepository
	profiles *mocks.GuestProfileRepository
	recorder *mocks.Recorder
	tokens   *privacytoken.Issuer
}

func setupGuestDataService() (*GuestDataService, *testDeps) {
	deps := &testDeps{
		txMgr:    mocks.NewTransactionManager(),
		events:   new(mocks.EventRepository),
		consents: new(mocks.ConsentRepository),
		profiles: new(mocks.GuestProfileRepository),
		recorder: new(mocks.Recorder),
		tokens:   privacytoken.NewIssuer(privacytoken.Config{Secret: "test-secret", TTL: time.Minute}),
	}
	repos := &repositories.Repositories{
		Events:   deps.events,
		Consents: deps.consents,
		Profiles: deps.profiles,
	}
	svc := NewGuestDataService(deps.txMgr, repos, deps.tokens, deps.recorder, nil, zap.NewNop())
	return svc, deps
}

func issue(t *testing.T, deps *testDeps, guestID string, purpose privacytoken.Purpose) string {
	t.Helper()
	grant, err := deps.tokens.Issue(guestID, purpose)
	require.NoError(t, err)
	return grant.Token
}

func TestGuestDataService_IssueToken(t *testing.T) {
	svc, deps := setupGuestDataService()
	deps.recorder.On("Record", mock.MatchedBy(func(l *models.AuditLog) bool {
		return l.Action == models.AuditActionTokenIssued && l.GuestID == "guest-1"
	})).Return(nil)

	grant, err := svc.IssueToken(context.Background(), "guest-1", privacytoken.PurposeDelete, "req-1")

	require.NoError(t, err)
	assert.Equal(t, privacytoken.PurposeDelete, grant.Purpose)
	assert.NoError(t, deps.tokens.Authorize(grant.Token, "guest-1", privacytoken.PurposeDelete))
	deps.recorder.AssertExpectations(t)
}

func TestGuestDataService_IssueToken_InvalidPurpose(t *testing.T) {
	svc, deps := setupGuestDataService()

	_, err := svc.IssueToken(context.Background(), "guest-1", privacytoken.Purpose("share"), "")

	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	deps.recorder.AssertNotCalled(t, "Record", mock.Anything)
}

func TestGuestDataService_Export(t *testing.T) {
	svc, deps := setupGuestDataService()
	consent := &models.GuestConsent{GuestID: "guest-1", ConsentGiven: true}
	events := []*models.StorageRecord{{EventType: "page_view", GuestID: "guest-1"}}

	deps.consents.On("GetByGuestID", mock.Anything, "guest-1").Return(consent, nil)
	deps.profiles.On("GetByGuestID", mock.Anything, "guest-1").Return(nil, repositories.ErrNotFound)
	deps.events.On("ListByGuest", mock.Anything, "guest-1").Return(events, nil)
	deps.recorder.On("Record", mock.Anything).Return(nil)

	export, err := svc.Export(context.Background(), "guest-1", issue(t, deps, "guest-1", privacytoken.PurposeExport), "req-1")

	require.NoError(t, err)
	assert.Equal(t, "guest-1", export.GuestID)
	assert.Equal(t, consent, export.Consent)
	assert.Nil(t, export.Profile)
	assert.Len(t, export.Events, 1)
	deps.txMgr.Tx.AssertCalled(t, "Commit")
	deps.recorder.AssertCalled(t, "Record", mock.MatchedBy(func(l *models.AuditLog) bool {
		return l.Action == models.AuditActionDataExported && string(l.Details) == `{"events":1}`
	}))
}

func TestGuestDataService_Export_UnknownGuestIsEmpty(t *testing.T) {
	svc, deps := setupGuestDataService()
	deps.consents.On("GetByGuestID", mock.Anything, "guest-9").Return(nil, repositories.ErrNotFound)
	deps.profiles.On("GetByGuestID", mock.Anything, "guest-9").Return(nil, repositories.ErrNotFound)
	deps.events.On("ListByGuest", mock.Anything, "guest-9").Return(nil, nil)
	deps.recorder.On("Record", mock.Anything).Return(nil)

	export, err := svc.Export(context.Background(), "guest-9", issue(t, deps, "guest-9", privacytoken.PurposeExport), "")

	require.NoError(t, err)
	assert.NotNil(t, export.Events)
	assert.Empty(t, export.Events)
}

func TestGuestDataService_Export_StorageFailure(t *testing.T) {
	svc, deps := setupGuestDataService()
	deps.consents.On("GetByGuestID", mock.Anything, "guest-1").Return(nil, errors.New("connection reset"))

	_, err := svc.Export(context.Background(), "guest-1", issue(t, deps, "guest-1", privacytoken.PurposeExport), "")

	require.Error(t, err)
	assert.True(t, services.IsDownstreamError(err))
	deps.txMgr.Tx.AssertCalled(t, "Rollback")
}

func TestGuestDataService_TokenChecks(t *testing.T) {
	tests := []struct {
		name       string
		tokenGuest string
		purpose    privacytoken.Purpose
		token      string
		expectType services.ErrorType
	}{
		{name: "garbage token", token: "garbage", expectType: services.ErrorTypeAuthentication},
		{name: "token for another guest", tokenGuest: "guest-2", purpose: privacytoken.PurposeExport, expectType: services.ErrorTypeAuthentication},
		{name: "delete token used for export", tokenGuest: "guest-1", purpose: privacytoken.PurposeDelete, expectType: services.ErrorTypeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := setupGuestDataService()
			token := tt.token
			if token == "" {
				token = issue(t, deps, tt.tokenGuest, tt.purpose)
			}

			_, err := svc.Export(context.Background(), "guest-1", token, "")

			require.Error(t, err)
			assert.Equal(t, tt.expectType, services.GetErrorType(err))
			deps.txMgr.AssertNotCalled(t, "Begin", mock.Anything)
		})
	}
}

func TestGuestDataService_Delete(t *testing.T) {
	svc, deps := setupGuestDataService()
	deps.events.On("DeleteByGuest", mock.Anything, "guest-1").Return(int64(12), nil)
	deps.profiles.On("Delete", mock.Anything, "guest-1").Return(int64(1), nil)
	deps.consents.On("Delete", mock.Anything, "guest-1").Return(int64(1), nil)
	deps.recorder.On("Record", mock.Anything).Return(nil)

	summary, err := svc.Delete(context.Background(), "guest-1", issue(t, deps, "guest-1", privacytoken.PurposeDelete), "req-2")

	require.NoError(t, err)
	assert.Equal(t, models.DeletionSummary{Events: 12, Profiles: 1, Guests: 1}, *summary)
	deps.txMgr.Tx.AssertCalled(t, "Commit")
	deps.recorder.AssertCalled(t, "Record", mock.MatchedBy(func(l *models.AuditLog) bool {
		return l.Action == models.AuditActionDataDeleted && l.RequestID == "req-2"
	}))
}

func TestGuestDataService_Delete_RollsBack(t *testing.T) {
	svc, deps := setupGuestDataService()
	deps.events.On("DeleteByGuest", mock.Anything, "guest-1").Return(int64(12), nil)
	deps.profiles.On("Delete", mock.Anything, "guest-1").Return(int64(0), errors.New("lock timeout"))

	_, err := svc.Delete(context.Background(), "guest-1", issue(t, deps, "guest-1", privacytoken.PurposeDelete), "")

	require.Error(t, err)
	assert.True(t, services.IsDownstreamError(err))
	deps.consents.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	deps.txMgr.Tx.AssertCalled(t, "Rollback")
	deps.txMgr.Tx.AssertNotCalled(t, "Commit")
	deps.recorder.AssertNotCalled(t, "Record", mock.Anything)
}
