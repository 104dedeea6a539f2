package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/testutil/mocks"
)

type engineMocks struct {
	ledger  *mocks.MockLedger
	payouts *mocks.MockPayoutRepository
	feed    *mocks.MockBookingFeed
	gateway *mocks.MockPayoutGateway
	reports *mocks.MockRunReportRepository
}

func setupEngine(t *testing.T, withGateway bool) (*Engine, *engineMocks) {
	t.Helper()
	m := &engineMocks{
		ledger:  new(mocks.MockLedger),
		payouts: new(mocks.MockPayoutRepository),
		feed:    new(mocks.MockBookingFeed),
		gateway: new(mocks.MockPayoutGateway),
		reports: new(mocks.MockRunReportRepository),
	}
	var gateway ports.PayoutGateway
	if withGateway {
		gateway = m.gateway
	}
	engine := NewEngine(m.ledger, m.payouts, m.feed, gateway, m.reports, nil, Config{
		MaxAttempts:         3,
		ProviderConcurrency: 2,
		Currency:            "ZAR",
	}, zap.NewNop())
	return engine, m
}

func testAccount(ownerRef string, kind models.AccountKind) *models.Account {
	return &models.Account{
		ID:       uuid.New(),
		OwnerRef: ownerRef,
		Kind:     kind,
		Balance:  decimal.NewFromInt(100000),
		Currency: "ZAR",
		Active:   true,
	}
}

type sharedFixture struct {
	holding  *models.Account
	platform *models.Account
	provider *models.Account
}

func expectSharedAccounts(m *engineMocks) sharedFixture {
	f := sharedFixture{
		holding:  testAccount(models.HoldingOwnerRef, models.AccountHolding),
		platform: testAccount(models.PlatformOwnerRef, models.AccountPlatform),
		provider: testAccount("therapist-anna", models.AccountProvider),
	}
	m.ledger.On("GetAccountByOwnerAndKind", mock.Anything, models.HoldingOwnerRef, models.AccountHolding).
		Return(f.holding, nil)
	m.ledger.On("GetAccountByOwnerAndKind", mock.Anything, models.PlatformOwnerRef, models.AccountPlatform).
		Return(f.platform, nil)
	m.ledger.On("GetOrCreateAccount", mock.Anything, "therapist-anna", models.AccountProvider).
		Return(f.provider, nil)
	return f
}

func testBooking(ref string, gross string) models.PayableBooking {
	return models.PayableBooking{
		BookingRef:  ref,
		ProviderRef: "therapist-anna",
		GrossAmount: decimal.RequireFromString(gross),
		CompletedAt: time.Now().UTC().Add(-24 * time.Hour),
	}
}

func transferOfKind(kind models.TransactionKind) interface{} {
	return mock.MatchedBy(func(p ports.TransferParams) bool { return p.Kind == kind })
}

func runPeriod() (time.Time, time.Time) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -7), end
}

func TestRunSettlement_SingleBookingSuccess(t *testing.T) {
	engine, m := setupEngine(t, false)
	f := expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-001", "450.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-001").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var payoutParams, feeParams ports.TransferParams
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementPayout)).
		Run(func(args mock.Arguments) { payoutParams = args.Get(1).(ports.TransferParams) }).
		Return(&models.Transaction{ID: uuid.New(), Kind: models.TransactionSettlementPayout}, nil)
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementFee)).
		Run(func(args mock.Arguments) { feeParams = args.Get(1).(ports.TransferParams) }).
		Return(&models.Transaction{ID: uuid.New(), Kind: models.TransactionSettlementFee}, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-001").Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalBookings)
	assert.Equal(t, 1, report.SuccessfulPayouts)
	assert.Equal(t, 0, report.FailedPayouts)
	assert.True(t, report.TotalProcessedAmount.Equal(decimal.RequireFromString("450.00")))
	assert.True(t, report.TotalProviderPayouts.Equal(decimal.RequireFromString("396.00")))
	assert.True(t, report.TotalPlatformFees.Equal(decimal.RequireFromString("54.00")))
	require.Len(t, report.ProviderSummaries, 1)
	assert.Equal(t, "therapist-anna", report.ProviderSummaries[0].ProviderRef)

	// Payout leg: holding -> provider for 88% of gross
	assert.Equal(t, f.holding.ID, payoutParams.FromAccountID)
	assert.Equal(t, f.provider.ID, payoutParams.ToAccountID)
	assert.True(t, payoutParams.Amount.Equal(decimal.RequireFromString("396.00")))
	// Fee leg: holding -> platform for 12% of gross
	assert.Equal(t, f.holding.ID, feeParams.FromAccountID)
	assert.Equal(t, f.platform.ID, feeParams.ToAccountID)
	assert.True(t, feeParams.Amount.Equal(decimal.RequireFromString("54.00")))

	m.feed.AssertCalled(t, "MarkPayoutProcessed", mock.Anything, "BK-001")
	m.reports.AssertCalled(t, "Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport"))
}

func TestRunSettlement_FeeTransferFailureReversesPayout(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-002", "100.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-002").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var record *models.PayoutRecord
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).
		Run(func(args mock.Arguments) { record = args.Get(2).(*models.PayoutRecord) }).
		Return(nil)

	payoutTxn := &models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("88.00"), Kind: models.TransactionSettlementPayout, Reference: "TXN-abc"}
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementPayout)).
		Return(payoutTxn, nil)
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementFee)).
		Return(nil, domain.ErrAccountInsufficientBalance)

	var reversalParams ports.TransferParams
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionReversal)).
		Run(func(args mock.Arguments) { reversalParams = args.Get(1).(ports.TransferParams) }).
		Return(&models.Transaction{ID: uuid.New(), Kind: models.TransactionReversal}, nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedPayouts)
	assert.Equal(t, 0, report.SuccessfulPayouts)

	require.NotNil(t, record)
	assert.Equal(t, models.PayoutFailed, record.Status)
	assert.Contains(t, record.FailureReason, "fee transfer failed")
	assert.Equal(t, 1, record.AttemptCount)

	// The completed payout leg was compensated with an equal opposite entry
	assert.True(t, reversalParams.Amount.Equal(payoutTxn.Amount))
	assert.Equal(t, payoutTxn.ToAccountID, reversalParams.FromAccountID)
	assert.Equal(t, payoutTxn.FromAccountID, reversalParams.ToAccountID)

	m.feed.AssertNotCalled(t, "MarkPayoutProcessed", mock.Anything, "BK-002")
}

func TestRunSettlement_InactiveProviderFailsPayoutOnly(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-009", "450.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-009").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var record *models.PayoutRecord
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).
		Run(func(args mock.Arguments) { record = args.Get(2).(*models.PayoutRecord) }).
		Return(nil)

	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementPayout)).
		Return(nil, domain.ErrAccountInactive.WithDetail("account_owner_ref", "therapist-anna"))
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedPayouts)
	assert.Equal(t, 0, report.SuccessfulPayouts)
	assert.True(t, report.TotalProcessedAmount.IsZero())

	require.NotNil(t, record)
	assert.Equal(t, models.PayoutFailed, record.Status)
	assert.Contains(t, record.FailureReason, "inactive")
	assert.Equal(t, 1, record.AttemptCount)

	// No fee leg is attempted and the booking stays payable for the next run
	m.ledger.AssertNotCalled(t, "Transfer", mock.Anything, transferOfKind(models.TransactionSettlementFee))
	m.feed.AssertNotCalled(t, "MarkPayoutProcessed", mock.Anything, "BK-009")
}

func TestRunSettlement_SkipsAlreadyProcessedBooking(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	booking := testBooking("BK-003", "200.00")
	existing := models.NewPayoutRecord(booking, decimal.RequireFromString("24.00"), decimal.RequireFromString("176.00"), "ZAR")
	existing.Status = models.PayoutProcessed

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{booking}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-003").
		Return(existing, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-003").Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedBookings)
	assert.Equal(t, 0, report.SuccessfulPayouts)
	m.ledger.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	m.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	// The booking flag is healed so the next feed query excludes it
	m.feed.AssertCalled(t, "MarkPayoutProcessed", mock.Anything, "BK-003")
}

func TestRunSettlement_RetriesFailedRecord(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	booking := testBooking("BK-004", "100.00")
	failed := models.NewPayoutRecord(booking, decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	failed.Status = models.PayoutFailed
	failed.AttemptCount = 1
	failed.FailureReason = "provider transfer failed: insufficient account balance"

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{booking}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-004").
		Return(failed, nil)
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)
	m.ledger.On("Transfer", mock.Anything, mock.Anything).
		Return(&models.Transaction{ID: uuid.New()}, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-004").Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessfulPayouts)
	assert.Equal(t, models.PayoutProcessed, failed.Status)
	assert.Equal(t, 2, failed.AttemptCount)
	assert.Empty(t, failed.FailureReason)
	// Existing record is reused, not recreated
	m.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSettlement_SkipsExhaustedFailedRecord(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	booking := testBooking("BK-005", "100.00")
	exhausted := models.NewPayoutRecord(booking, decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	exhausted.Status = models.PayoutFailed
	exhausted.AttemptCount = 3

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{booking}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-005").
		Return(exhausted, nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedBookings)
	assert.Equal(t, models.PayoutFailed, exhausted.Status)
	m.ledger.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestRunSettlement_ZeroGrossBookingProcessesWithoutTransfers(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-006", "0.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-006").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var record *models.PayoutRecord
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).
		Run(func(args mock.Arguments) { record = args.Get(2).(*models.PayoutRecord) }).
		Return(nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-006").Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessfulPayouts)
	require.NotNil(t, record)
	assert.Equal(t, models.PayoutProcessed, record.Status)
	assert.Nil(t, record.PayoutTxnID)
	assert.Nil(t, record.FeeTxnID)
	m.ledger.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestRunSettlement_MissingSharedAccountAbortsRun(t *testing.T) {
	engine, m := setupEngine(t, false)
	start, end := runPeriod()

	m.ledger.On("GetAccountByOwnerAndKind", mock.Anything, models.HoldingOwnerRef, models.AccountHolding).
		Return(nil, domain.ErrAccountNotFound)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, domain.IsConfigurationError(err))
	m.feed.AssertNotCalled(t, "FetchPayableBookings", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSettlement_FeedErrorAbortsRun(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return(nil, domain.ErrDatabaseError)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestRunSettlement_RejectsConcurrentRunForSamePeriod(t *testing.T) {
	engine, _ := setupEngine(t, false)
	start, end := runPeriod()

	require.True(t, engine.tryLockPeriod(periodKey(start, end)))
	defer engine.unlockPeriod(periodKey(start, end))

	_, err := engine.RunSettlement(context.Background(), start, end)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeSettlementRunInProgress, domain.GetErrorCode(err))
}

func TestRunSettlement_GatewayFailureReversesBothLegs(t *testing.T) {
	engine, m := setupEngine(t, true)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-007", "100.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-007").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var record *models.PayoutRecord
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).
		Run(func(args mock.Arguments) { record = args.Get(2).(*models.PayoutRecord) }).
		Return(nil)

	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementPayout)).
		Return(&models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("88.00")}, nil)
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionSettlementFee)).
		Return(&models.Transaction{ID: uuid.New(), Amount: decimal.RequireFromString("12.00")}, nil)

	reversals := 0
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionReversal)).
		Run(func(mock.Arguments) { reversals++ }).
		Return(&models.Transaction{ID: uuid.New()}, nil)

	m.gateway.On("SubmitPayout", mock.Anything, mock.AnythingOfType("ports.SubmitPayoutRequest")).
		Return(nil, domain.ErrGatewaySubmissionFailed)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FailedPayouts)
	assert.Equal(t, 2, reversals)
	require.NotNil(t, record)
	assert.Equal(t, models.PayoutFailed, record.Status)
	assert.Contains(t, record.FailureReason, "gateway submission failed")
	m.feed.AssertNotCalled(t, "MarkPayoutProcessed", mock.Anything, "BK-007")
}

func TestRunSettlement_GatewaySuccessStampsGatewayID(t *testing.T) {
	engine, m := setupEngine(t, true)
	expectSharedAccounts(m)
	start, end := runPeriod()

	m.feed.On("FetchPayableBookings", mock.Anything, start, end).
		Return([]models.PayableBooking{testBooking("BK-008", "100.00")}, nil)
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, "BK-008").
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)

	var record *models.PayoutRecord
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).
		Run(func(args mock.Arguments) { record = args.Get(2).(*models.PayoutRecord) }).
		Return(nil)
	m.ledger.On("Transfer", mock.Anything, mock.Anything).
		Return(&models.Transaction{ID: uuid.New()}, nil)

	var submitted ports.SubmitPayoutRequest
	m.gateway.On("SubmitPayout", mock.Anything, mock.AnythingOfType("ports.SubmitPayoutRequest")).
		Run(func(args mock.Arguments) { submitted = args.Get(1).(ports.SubmitPayoutRequest) }).
		Return(&ports.SubmitPayoutResult{GatewayPayoutID: "pf-12345", Status: "ACCEPTED"}, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-008").Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessfulPayouts)
	require.NotNil(t, record)
	assert.Equal(t, "pf-12345", record.GatewayPayoutID)
	assert.Equal(t, "therapist-anna", submitted.BeneficiaryID)
	assert.True(t, submitted.Amount.Equal(decimal.RequireFromString("88.00")))
	assert.Equal(t, record.Reference, submitted.Reference)
}

func TestRunSettlement_MultipleProvidersAggregated(t *testing.T) {
	engine, m := setupEngine(t, false)
	f := sharedFixture{
		holding:  testAccount(models.HoldingOwnerRef, models.AccountHolding),
		platform: testAccount(models.PlatformOwnerRef, models.AccountPlatform),
	}
	m.ledger.On("GetAccountByOwnerAndKind", mock.Anything, models.HoldingOwnerRef, models.AccountHolding).
		Return(f.holding, nil)
	m.ledger.On("GetAccountByOwnerAndKind", mock.Anything, models.PlatformOwnerRef, models.AccountPlatform).
		Return(f.platform, nil)
	start, end := runPeriod()

	bookings := []models.PayableBooking{
		{BookingRef: "BK-A1", ProviderRef: "therapist-anna", GrossAmount: decimal.RequireFromString("100.00")},
		{BookingRef: "BK-B1", ProviderRef: "therapist-ben", GrossAmount: decimal.RequireFromString("200.00")},
		{BookingRef: "BK-A2", ProviderRef: "therapist-anna", GrossAmount: decimal.RequireFromString("300.00")},
	}
	m.feed.On("FetchPayableBookings", mock.Anything, start, end).Return(bookings, nil)

	for _, ref := range []string{"therapist-anna", "therapist-ben"} {
		m.ledger.On("GetOrCreateAccount", mock.Anything, ref, models.AccountProvider).
			Return(testAccount(ref, models.AccountProvider), nil)
	}
	m.payouts.On("GetLatestByBookingRef", mock.Anything, nil, mock.AnythingOfType("string")).
		Return(nil, domain.ErrPayoutNotFound)
	m.payouts.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)
	m.payouts.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.PayoutRecord")).Return(nil)
	m.ledger.On("Transfer", mock.Anything, mock.Anything).
		Return(&models.Transaction{ID: uuid.New()}, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	m.reports.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.RunReport")).Return(nil)

	report, err := engine.RunSettlement(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, 3, report.SuccessfulPayouts)
	assert.True(t, report.TotalProcessedAmount.Equal(decimal.RequireFromString("600.00")))
	assert.True(t, report.TotalPlatformFees.Equal(decimal.RequireFromString("72.00")))
	assert.True(t, report.TotalProviderPayouts.Equal(decimal.RequireFromString("528.00")))

	require.Len(t, report.ProviderSummaries, 2)
	assert.Equal(t, "therapist-anna", report.ProviderSummaries[0].ProviderRef)
	assert.Equal(t, 2, report.ProviderSummaries[0].BookingCount)
	assert.Equal(t, "therapist-ben", report.ProviderSummaries[1].ProviderRef)
	assert.Equal(t, 1, report.ProviderSummaries[1].BookingCount)
}

func TestRetryPayout_AlreadyProcessed(t *testing.T) {
	engine, m := setupEngine(t, false)

	record := models.NewPayoutRecord(testBooking("BK-010", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	record.Status = models.PayoutProcessed

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)

	_, err := engine.RetryPayout(context.Background(), record.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePayoutAlreadyProcessed, domain.GetErrorCode(err))
}

func TestRetryPayout_Exhausted(t *testing.T) {
	engine, m := setupEngine(t, false)

	record := models.NewPayoutRecord(testBooking("BK-011", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	record.Status = models.PayoutFailed
	record.AttemptCount = 3

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)

	_, err := engine.RetryPayout(context.Background(), record.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePayoutRetryExhausted, domain.GetErrorCode(err))
}

func TestRetryPayout_Succeeds(t *testing.T) {
	engine, m := setupEngine(t, false)
	expectSharedAccounts(m)

	record := models.NewPayoutRecord(testBooking("BK-012", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	record.Status = models.PayoutFailed
	record.AttemptCount = 2

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)
	m.payouts.On("Update", mock.Anything, nil, record).Return(nil)
	m.ledger.On("Transfer", mock.Anything, mock.Anything).
		Return(&models.Transaction{ID: uuid.New()}, nil)
	m.feed.On("MarkPayoutProcessed", mock.Anything, "BK-012").Return(nil)

	updated, err := engine.RetryPayout(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutProcessed, updated.Status)
	assert.Equal(t, 3, updated.AttemptCount)
}

func TestReversePayout_ReversesBothLegs(t *testing.T) {
	engine, m := setupEngine(t, false)
	f := expectSharedAccounts(m)

	record := models.NewPayoutRecord(testBooking("BK-013", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")
	record.Status = models.PayoutProcessed

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)
	m.payouts.On("Update", mock.Anything, nil, record).Return(nil)

	var params []ports.TransferParams
	m.ledger.On("Transfer", mock.Anything, transferOfKind(models.TransactionReversal)).
		Run(func(args mock.Arguments) { params = append(params, args.Get(1).(ports.TransferParams)) }).
		Return(&models.Transaction{ID: uuid.New()}, nil)

	updated, err := engine.ReversePayout(context.Background(), record.ID, "duplicate booking")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutReversed, updated.Status)
	assert.Equal(t, "duplicate booking", updated.FailureReason)

	require.Len(t, params, 2)
	// Provider leg claws the payout back into holding
	assert.Equal(t, f.provider.ID, params[0].FromAccountID)
	assert.Equal(t, f.holding.ID, params[0].ToAccountID)
	assert.True(t, params[0].Amount.Equal(decimal.RequireFromString("88.00")))
	// Fee leg returns the commission
	assert.Equal(t, f.platform.ID, params[1].FromAccountID)
	assert.Equal(t, f.holding.ID, params[1].ToAccountID)
	assert.True(t, params[1].Amount.Equal(decimal.RequireFromString("12.00")))
}

func TestReversePayout_RejectsUnprocessedRecord(t *testing.T) {
	engine, m := setupEngine(t, false)

	record := models.NewPayoutRecord(testBooking("BK-014", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)

	_, err := engine.ReversePayout(context.Background(), record.ID, "mistake")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
}

func TestCancelPayout(t *testing.T) {
	engine, m := setupEngine(t, false)

	record := models.NewPayoutRecord(testBooking("BK-015", "100.00"),
		decimal.RequireFromString("12.00"), decimal.RequireFromString("88.00"), "ZAR")

	m.payouts.On("GetByID", mock.Anything, nil, record.ID).Return(record, nil)
	m.payouts.On("Update", mock.Anything, nil, record).Return(nil)

	updated, err := engine.CancelPayout(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCancelled, updated.Status)
}
