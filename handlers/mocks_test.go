package handlers

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cbc-agent/analytics-ingest/internal/pipeline"
	"github.com/cbc-agent/analytics-ingest/internal/webhook"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/privacytoken"
)

// MockEventProcessor is a mock implementation of EventProcessor
type MockEventProcessor struct {
	mock.Mock
}

func (m *MockEventProcessor) Process(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(pipeline.Outcome), args.Error(1)
}

func (m *MockEventProcessor) ProcessWebhook(ctx context.Context, req pipeline.WebhookRequest) (pipeline.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(pipeline.Outcome), args.Error(1)
}

// MockAuthenticator is a mock implementation of middleware.DeliveryAuthenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(d webhook.Delivery) error {
	args := m.Called(d)
	return args.Error(0)
}

// MockConsentService is a mock implementation of ConsentService
type MockConsentService struct {
	mock.Mock
}

func (m *MockConsentService) Update(ctx context.Context, req *models.ConsentRequest, requestID string) (*models.GuestConsent, error) {
	args := m.Called(ctx, req, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestConsent), args.Error(1)
}

// MockProfileService is a mock implementation of ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Update(ctx context.Context, profile *models.GuestProfile, requestID string) error {
	args := m.Called(ctx, profile, requestID)
	return args.Error(0)
}

// MockGuestDataService is a mock implementation of GuestDataService
type MockGuestDataService struct {
	mock.Mock
}

func (m *MockGuestDataService) IssueToken(ctx context.Context, guestID string, purpose privacytoken.Purpose, requestID string) (*privacytoken.Grant, error) {
	args := m.Called(ctx, guestID, purpose, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*privacytoken.Grant), args.Error(1)
}

func (m *MockGuestDataService) Export(ctx context.Context, guestID, token, requestID string) (*models.GuestExport, error) {
	args := m.Called(ctx, guestID, token, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestExport), args.Error(1)
}

func (m *MockGuestDataService) Delete(ctx context.Context, guestID, token, requestID string) (*models.DeletionSummary, error) {
	args := m.Called(ctx, guestID, token, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeletionSummary), args.Error(1)
}

// MockEventCounter is a mock implementation of EventCounter
type MockEventCounter struct {
	mock.Mock
}

func (m *MockEventCounter) CountByType(ctx context.Context, since time.Time, eventType string) ([]models.EventCount, error) {
	args := m.Called(ctx, since, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventCount), args.Error(1)
}
