// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// FakeDB satisfies ports.DBPort without a database. The callback receives a
// nil pgx.Tx, which is fine as long as the repositories under it are mocks.
// A mutex serializes transactions the way row locks would in Postgres.
type FakeDB struct {
	mu sync.Mutex
}

func (f *FakeDB) GetDB() *pgxpool.Pool { return nil }

func (f *FakeDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, nil)
}

func (f *FakeDB) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MockAccountRepository mocks ports.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, tx ports.DBTX, account *models.Account) error {
	args := m.Called(ctx, tx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByOwnerAndKind(ctx context.Context, db ports.DBTX, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	args := m.Called(ctx, db, ownerRef, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx ports.DBTX, id uuid.UUID, balance decimal.Decimal) error {
	args := m.Called(ctx, tx, id, balance)
	return args.Error(0)
}

func (m *MockAccountRepository) SetActive(ctx context.Context, tx ports.DBTX, id uuid.UUID, active bool) error {
	args := m.Called(ctx, tx, id, active)
	return args.Error(0)
}

func (m *MockAccountRepository) ListByKind(ctx context.Context, db ports.DBTX, kind models.AccountKind, limit, offset int32) ([]*models.Account, error) {
	args := m.Called(ctx, db, kind, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockTransactionRepository mocks ports.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, db, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByPayout(ctx context.Context, db ports.DBTX, payoutID uuid.UUID) ([]*models.Transaction, error) {
	args := m.Called(ctx, db, payoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByAccount(ctx context.Context, db ports.DBTX, accountID uuid.UUID, limit, offset int32) ([]*models.Transaction, error) {
	args := m.Called(ctx, db, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountCompletedInPeriod(ctx context.Context, db ports.DBTX, start, end time.Time) (int64, error) {
	args := m.Called(ctx, db, start, end)
	return args.Get(0).(int64), args.Error(1)
}

// MockPayoutRepository mocks ports.PayoutRepository.
type MockPayoutRepository struct {
	mock.Mock
}

func (m *MockPayoutRepository) Create(ctx context.Context, tx ports.DBTX, record *models.PayoutRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockPayoutRepository) Update(ctx context.Context, tx ports.DBTX, record *models.PayoutRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

func (m *MockPayoutRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.PayoutRecord, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutRecord), args.Error(1)
}

func (m *MockPayoutRepository) GetLatestByBookingRef(ctx context.Context, db ports.DBTX, bookingRef string) (*models.PayoutRecord, error) {
	args := m.Called(ctx, db, bookingRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutRecord), args.Error(1)
}

func (m *MockPayoutRepository) ListByStatus(ctx context.Context, db ports.DBTX, status models.PayoutStatus, limit, offset int32) ([]*models.PayoutRecord, error) {
	args := m.Called(ctx, db, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PayoutRecord), args.Error(1)
}

func (m *MockPayoutRepository) ListByProvider(ctx context.Context, db ports.DBTX, providerRef string, limit, offset int32) ([]*models.PayoutRecord, error) {
	args := m.Called(ctx, db, providerRef, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PayoutRecord), args.Error(1)
}

func (m *MockPayoutRepository) CountByStatus(ctx context.Context, db ports.DBTX) (map[models.PayoutStatus]int64, error) {
	args := m.Called(ctx, db)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.PayoutStatus]int64), args.Error(1)
}

// MockBookingFeed mocks ports.BookingFeed.
type MockBookingFeed struct {
	mock.Mock
}

func (m *MockBookingFeed) FetchPayableBookings(ctx context.Context, start, end time.Time) ([]models.PayableBooking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PayableBooking), args.Error(1)
}

func (m *MockBookingFeed) MarkPayoutProcessed(ctx context.Context, bookingRef string) error {
	args := m.Called(ctx, bookingRef)
	return args.Error(0)
}

// MockLedger mocks ports.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Transfer(ctx context.Context, params ports.TransferParams) (*models.Transaction, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) GetOrCreateAccount(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	args := m.Called(ctx, ownerRef, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedger) GetAccountByOwnerAndKind(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	args := m.Called(ctx, ownerRef, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

// MockPayoutGateway mocks ports.PayoutGateway.
type MockPayoutGateway struct {
	mock.Mock
}

func (m *MockPayoutGateway) SubmitPayout(ctx context.Context, req ports.SubmitPayoutRequest) (*ports.SubmitPayoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SubmitPayoutResult), args.Error(1)
}

// MockRunReportRepository mocks ports.RunReportRepository.
type MockRunReportRepository struct {
	mock.Mock
}

func (m *MockRunReportRepository) Create(ctx context.Context, tx ports.DBTX, report *models.RunReport) error {
	args := m.Called(ctx, tx, report)
	return args.Error(0)
}

func (m *MockRunReportRepository) ListRecent(ctx context.Context, db ports.DBTX, limit int32) ([]*models.RunReport, error) {
	args := m.Called(ctx, db, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RunReport), args.Error(1)
}

// MockNotifier mocks ports.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyReport(ctx context.Context, report *models.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockNotifier) NotifyFailure(ctx context.Context, job string, err error) error {
	args := m.Called(ctx, job, err)
	return args.Error(0)
}
