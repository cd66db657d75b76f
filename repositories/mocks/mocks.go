// Package mocks provides testify mocks of the repository interfaces. WithTx returns
// the receiver, so expectations set on a mock also cover its transaction-bound use.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories"
)

// TransactionManager runs InTransaction callbacks against Tx
type TransactionManager struct {
	mock.Mock
	Tx *Transaction
}

// NewTransactionManager returns a manager whose transactions commit and roll back
// successfully
func NewTransactionManager() *TransactionManager {
	tx := new(Transaction)
	tx.On("Commit").Return(nil).Maybe()
	tx.On("Rollback").Return(nil).Maybe()

	m := &TransactionManager{Tx: tx}
	m.On("Begin", mock.Anything).Return(tx, nil).Maybe()
	return m
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Transaction records commits and rollbacks
type Transaction struct {
	mock.Mock
}

func (m *Transaction) Commit() error {
	return m.Called().Error(0)
}

func (m *Transaction) Rollback() error {
	return m.Called().Error(0)
}

func (m *Transaction) Context() context.Context {
	return context.Background()
}

// EventRepository mocks repositories.EventRepository
type EventRepository struct {
	mock.Mock
}

func (m *EventRepository) Insert(ctx context.Context, record *models.StorageRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *EventRepository) ListByGuest(ctx context.Context, guestID string) ([]*models.StorageRecord, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StorageRecord), args.Error(1)
}

func (m *EventRepository) CountByType(ctx context.Context, since time.Time, eventType string) ([]models.EventCount, error) {
	args := m.Called(ctx, since, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventCount), args.Error(1)
}

func (m *EventRepository) DeleteByGuest(ctx context.Context, guestID string) (int64, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EventRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *EventRepository) WithTx(tx repositories.Transaction) repositories.EventRepository {
	return m
}

// ConsentRepository mocks repositories.ConsentRepository
type ConsentRepository struct {
	mock.Mock
}

func (m *ConsentRepository) Upsert(ctx context.Context, consent *models.GuestConsent) error {
	return m.Called(ctx, consent).Error(0)
}

func (m *ConsentRepository) GetByGuestID(ctx context.Context, guestID string) (*models.GuestConsent, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestConsent), args.Error(1)
}

func (m *ConsentRepository) Delete(ctx context.Context, guestID string) (int64, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ConsentRepository) WithTx(tx repositories.Transaction) repositories.ConsentRepository {
	return m
}

// GuestProfileRepository mocks repositories.GuestProfileRepository
type GuestProfileRepository struct {
	mock.Mock
}

func (m *GuestProfileRepository) Upsert(ctx context.Context, profile *models.GuestProfile) error {
	return m.Called(ctx, profile).Error(0)
}

func (m *GuestProfileRepository) GetByGuestID(ctx context.Context, guestID string) (*models.GuestProfile, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestProfile), args.Error(1)
}

func (m *GuestProfileRepository) Delete(ctx context.Context, guestID string) (int64, error) {
	args := m.Called(ctx, guestID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *GuestProfileRepository) WithTx(tx repositories.Transaction) repositories.GuestProfileRepository {
	return m
}

// Recorder mocks audit.Recorder
type Recorder struct {
	mock.Mock
}

func (m *Recorder) Record(log *models.AuditLog) error {
	return m.Called(log).Error(0)
}
