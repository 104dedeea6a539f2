package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/observability"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/pkg/shutdown"
)

// Config holds settlement engine policy.
type Config struct {
	// FeeRate is the platform commission applied to every gross booking
	// amount. Zero value falls back to DefaultFeeRate.
	FeeRate decimal.Decimal
	// MaxAttempts bounds automatic retries of a failed payout.
	MaxAttempts int
	// ProviderConcurrency is the number of provider groups settled in
	// parallel. Bookings within one provider stay sequential.
	ProviderConcurrency int
	// Currency is the operating currency stamped on payout records.
	Currency string
}

func (c Config) feeRate() decimal.Decimal {
	if c.FeeRate.IsZero() {
		return DefaultFeeRate
	}
	return c.FeeRate
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 3
	}
	return c.MaxAttempts
}

// Engine turns completed, paid bookings into ledger transfers and payout
// records, one settlement run at a time. A booking's failure never aborts the
// batch; missing shared accounts abort the whole run.
type Engine struct {
	ledger  ports.Ledger
	payouts ports.PayoutRepository
	feed    ports.BookingFeed
	gateway ports.PayoutGateway // nil disables the bank-rail leg
	reports ports.RunReportRepository
	metrics *observability.SettlementMetrics
	cfg     Config
	logger  *zap.Logger

	inflight *shutdown.InFlightTracker

	mu         sync.Mutex
	activeRuns map[string]struct{}
}

// NewEngine creates a settlement engine. gateway may be nil for ledger-only
// operation; reports may be nil to skip run history.
func NewEngine(
	ledger ports.Ledger,
	payouts ports.PayoutRepository,
	feed ports.BookingFeed,
	gateway ports.PayoutGateway,
	reports ports.RunReportRepository,
	metrics *observability.SettlementMetrics,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		ledger:     ledger,
		payouts:    payouts,
		feed:       feed,
		gateway:    gateway,
		reports:    reports,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		inflight:   shutdown.NewInFlightTracker("settlement-runs", logger),
		activeRuns: make(map[string]struct{}),
	}
}

// sharedAccounts are the two fixed legs of every settlement transfer.
type sharedAccounts struct {
	holding  *models.Account
	platform *models.Account
}

type providerGroup struct {
	providerRef string
	bookings    []models.PayableBooking
}

const (
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// RunSettlement settles all eligible bookings completed within
// [periodStart, periodEnd). Safe to re-run for the same or an overlapping
// period: bookings with a PROCESSED or in-flight payout record are skipped
// and FAILED ones are retried while attempts remain.
func (e *Engine) RunSettlement(ctx context.Context, periodStart, periodEnd time.Time) (*models.RunReport, error) {
	key := periodKey(periodStart, periodEnd)
	if !e.tryLockPeriod(key) {
		return nil, domain.ErrSettlementRunInProgress.WithDetail("period", key)
	}
	defer e.unlockPeriod(key)

	if !e.inflight.Add() {
		return nil, domain.NewDomainError(domain.ErrorCodeInternalError, "settlement engine is draining")
	}
	defer e.inflight.Done()

	started := time.Now()
	e.logger.Info("settlement run starting",
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd))

	shared, err := e.resolveSharedAccounts(ctx)
	if err != nil {
		e.metrics.RecordRun("configuration_error", time.Since(started))
		return nil, err
	}

	bookings, err := e.feed.FetchPayableBookings(ctx, periodStart, periodEnd)
	if err != nil {
		e.metrics.RecordRun("feed_error", time.Since(started))
		return nil, fmt.Errorf("fetch payable bookings: %w", err)
	}
	e.logger.Info("eligible bookings fetched", zap.Int("count", len(bookings)))

	groups := groupByProvider(bookings)

	workers := e.cfg.ProviderConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(groups) && len(groups) > 0 {
		workers = len(groups)
	}

	groupCh := make(chan providerGroup)
	outcomeCh := make(chan providerOutcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupCh {
				outcomeCh <- e.processProviderGroup(ctx, shared, group)
			}
		}()
	}
	go func() {
		for _, group := range groups {
			groupCh <- group
		}
		close(groupCh)
		wg.Wait()
		close(outcomeCh)
	}()

	builder := newReportBuilder(periodStart, periodEnd, len(bookings))
	for outcome := range outcomeCh {
		builder.fold(outcome)
	}
	report := builder.build()

	if e.reports != nil {
		if err := e.reports.Create(ctx, nil, report); err != nil {
			e.logger.Warn("failed to persist run report", zap.Error(err))
		}
	}

	e.metrics.RecordRun("completed", time.Since(started))
	e.logger.Info("settlement run completed",
		zap.Int("total", report.TotalBookings),
		zap.Int("successful", report.SuccessfulPayouts),
		zap.Int("failed", report.FailedPayouts),
		zap.Int("skipped", report.SkippedBookings),
		zap.String("total_processed", report.TotalProcessedAmount.String()))
	return report, nil
}

// resolveSharedAccounts loads the holding and platform accounts. These must
// be provisioned before the first run; their absence or deactivation is a
// configuration failure that aborts the run.
func (e *Engine) resolveSharedAccounts(ctx context.Context) (sharedAccounts, error) {
	holding, err := e.ledger.GetAccountByOwnerAndKind(ctx, models.HoldingOwnerRef, models.AccountHolding)
	if err != nil {
		return sharedAccounts{}, domain.WrapError(domain.ErrorCodeSettlementConfiguration,
			"holding account unavailable", err)
	}
	platform, err := e.ledger.GetAccountByOwnerAndKind(ctx, models.PlatformOwnerRef, models.AccountPlatform)
	if err != nil {
		return sharedAccounts{}, domain.WrapError(domain.ErrorCodeSettlementConfiguration,
			"platform account unavailable", err)
	}
	if !holding.Active || !platform.Active {
		return sharedAccounts{}, domain.NewDomainError(domain.ErrorCodeSettlementConfiguration,
			"shared settlement account is inactive")
	}
	return sharedAccounts{holding: holding, platform: platform}, nil
}

func groupByProvider(bookings []models.PayableBooking) []providerGroup {
	byProvider := make(map[string][]models.PayableBooking)
	for _, booking := range bookings {
		byProvider[booking.ProviderRef] = append(byProvider[booking.ProviderRef], booking)
	}

	groups := make([]providerGroup, 0, len(byProvider))
	for ref, group := range byProvider {
		groups = append(groups, providerGroup{providerRef: ref, bookings: group})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].providerRef < groups[j].providerRef })
	return groups
}

// processProviderGroup settles one provider's bookings sequentially so the
// provider's balance-affecting transfers never race each other.
func (e *Engine) processProviderGroup(ctx context.Context, shared sharedAccounts, group providerGroup) providerOutcome {
	outcome := providerOutcome{
		summary: models.ProviderSummary{
			ProviderRef:    group.providerRef,
			ProviderAmount: decimal.Zero,
			FeeAmount:      decimal.Zero,
		},
		processedAmount: decimal.Zero,
	}

	provider, err := e.ledger.GetOrCreateAccount(ctx, group.providerRef, models.AccountProvider)
	if err != nil {
		e.logger.Error("failed to resolve provider account",
			zap.String("provider_ref", group.providerRef),
			zap.Error(err))
		outcome.failed = len(group.bookings)
		for range group.bookings {
			e.metrics.RecordPayout(outcomeFailed)
		}
		return outcome
	}

	for _, booking := range group.bookings {
		if ctx.Err() != nil {
			// Run aborted; unfinished bookings stay eligible for the next run.
			outcome.skipped += len(group.bookings) - outcome.successful - outcome.failed - outcome.skipped
			break
		}

		status, record := e.processBooking(ctx, shared, provider, booking)
		e.metrics.RecordPayout(status)
		switch status {
		case outcomeProcessed:
			outcome.successful++
			outcome.summary.BookingCount++
			outcome.summary.ProviderAmount = outcome.summary.ProviderAmount.Add(record.ProviderAmount)
			outcome.summary.FeeAmount = outcome.summary.FeeAmount.Add(record.PlatformFee)
			outcome.processedAmount = outcome.processedAmount.Add(record.GrossAmount)
		case outcomeFailed:
			outcome.failed++
		default:
			outcome.skipped++
		}
	}
	return outcome
}

// processBooking resolves the payout record for one booking and settles it.
// The booking reference is the idempotency key: an existing PROCESSED or
// in-flight record means the booking is skipped, a retryable FAILED one is
// re-entered.
func (e *Engine) processBooking(ctx context.Context, shared sharedAccounts, provider *models.Account, booking models.PayableBooking) (string, *models.PayoutRecord) {
	record, err := e.payouts.GetLatestByBookingRef(ctx, nil, booking.BookingRef)
	switch {
	case err == nil:
		switch record.Status {
		case models.PayoutProcessed:
			// Heal the booking flag in case the previous run crashed between
			// marking the record and marking the booking.
			if err := e.feed.MarkPayoutProcessed(ctx, booking.BookingRef); err != nil {
				e.logger.Warn("failed to re-mark processed booking",
					zap.String("booking_ref", booking.BookingRef),
					zap.Error(err))
			}
			return outcomeSkipped, record
		case models.PayoutProcessing:
			e.logger.Warn("payout already in flight, skipping",
				zap.String("booking_ref", booking.BookingRef))
			return outcomeSkipped, record
		case models.PayoutPending:
			// Resume a record left behind by an aborted run.
		case models.PayoutFailed:
			if !record.CanRetry(e.cfg.maxAttempts()) {
				e.logger.Warn("payout retry attempts exhausted, leaving for manual intervention",
					zap.String("booking_ref", booking.BookingRef),
					zap.Int("attempts", record.AttemptCount))
				return outcomeSkipped, record
			}
		default:
			// CANCELLED or REVERSED records are history; the booking became
			// payable again, so settle it under a fresh record.
			record = nil
		}
	case domain.IsNotFound(err):
		record = nil
	default:
		e.logger.Error("failed to look up payout record",
			zap.String("booking_ref", booking.BookingRef),
			zap.Error(err))
		return outcomeFailed, nil
	}

	if record == nil {
		fee, providerAmount := ComputeSplit(booking.GrossAmount, e.cfg.feeRate())
		record = models.NewPayoutRecord(booking, fee, providerAmount, e.cfg.Currency)
		if err := e.payouts.Create(ctx, nil, record); err != nil {
			e.logger.Error("failed to create payout record",
				zap.String("booking_ref", booking.BookingRef),
				zap.Error(err))
			return outcomeFailed, record
		}
	}

	if err := e.settleRecord(ctx, shared, provider, record); err != nil {
		return outcomeFailed, record
	}
	return outcomeProcessed, record
}

// settleRecord drives one payout record through PROCESSING to PROCESSED:
// the provider transfer, the fee transfer, the optional gateway submission,
// and the booking flag. Any failure lands the record in FAILED with a
// human-readable reason and compensates completed legs.
func (e *Engine) settleRecord(ctx context.Context, shared sharedAccounts, provider *models.Account, record *models.PayoutRecord) error {
	if err := record.MarkProcessing(e.cfg.maxAttempts()); err != nil {
		return err
	}
	if err := e.payouts.Update(ctx, nil, record); err != nil {
		return fmt.Errorf("update payout record: %w", err)
	}

	var payoutTxn, feeTxn *models.Transaction

	if record.ProviderAmount.IsPositive() {
		txn, err := e.ledger.Transfer(ctx, ports.TransferParams{
			FromAccountID: shared.holding.ID,
			ToAccountID:   provider.ID,
			Amount:        record.ProviderAmount,
			Kind:          models.TransactionSettlementPayout,
			Description:   fmt.Sprintf("Therapist payout - booking %s", record.BookingRef),
			PayoutID:      &record.ID,
		})
		e.metrics.RecordTransfer(string(models.TransactionSettlementPayout), transferStatus(err))
		if err != nil {
			return e.failRecord(ctx, record, fmt.Sprintf("provider transfer failed: %v", err))
		}
		payoutTxn = txn
	}

	if record.PlatformFee.IsPositive() {
		txn, err := e.ledger.Transfer(ctx, ports.TransferParams{
			FromAccountID: shared.holding.ID,
			ToAccountID:   shared.platform.ID,
			Amount:        record.PlatformFee,
			Kind:          models.TransactionSettlementFee,
			Description:   fmt.Sprintf("Platform fee - booking %s", record.BookingRef),
			PayoutID:      &record.ID,
		})
		e.metrics.RecordTransfer(string(models.TransactionSettlementFee), transferStatus(err))
		if err != nil {
			e.reverseTransfer(ctx, payoutTxn, &record.ID, "fee transfer failed")
			return e.failRecord(ctx, record, fmt.Sprintf("fee transfer failed: %v", err))
		}
		feeTxn = txn
	}

	if e.gateway != nil && record.ProviderAmount.IsPositive() {
		result, err := e.gateway.SubmitPayout(ctx, ports.SubmitPayoutRequest{
			BeneficiaryID: record.ProviderRef,
			Amount:        record.ProviderAmount,
			Currency:      record.Currency,
			Reference:     record.Reference,
		})
		if err != nil {
			e.reverseTransfer(ctx, feeTxn, &record.ID, "gateway submission failed")
			e.reverseTransfer(ctx, payoutTxn, &record.ID, "gateway submission failed")
			return e.failRecord(ctx, record, fmt.Sprintf("gateway submission failed: %v", err))
		}
		record.GatewayPayoutID = result.GatewayPayoutID
	}

	if err := record.MarkProcessed(txnID(payoutTxn), txnID(feeTxn)); err != nil {
		return err
	}
	if err := e.payouts.Update(ctx, nil, record); err != nil {
		return fmt.Errorf("update payout record: %w", err)
	}

	if err := e.feed.MarkPayoutProcessed(ctx, record.BookingRef); err != nil {
		// The record is PROCESSED; the next run heals the flag via the skip
		// path instead of paying twice.
		e.logger.Warn("failed to mark booking processed",
			zap.String("booking_ref", record.BookingRef),
			zap.Error(err))
	}

	e.logger.Info("payout processed",
		zap.String("booking_ref", record.BookingRef),
		zap.String("provider_ref", record.ProviderRef),
		zap.String("provider_amount", record.ProviderAmount.String()),
		zap.String("platform_fee", record.PlatformFee.String()))
	return nil
}

// failRecord lands the record in FAILED and returns the wrapped failure so
// callers can count it. The batch continues; only this booking is affected.
func (e *Engine) failRecord(ctx context.Context, record *models.PayoutRecord, reason string) error {
	if err := record.MarkFailed(reason); err != nil {
		e.logger.Error("failed to mark payout failed",
			zap.String("booking_ref", record.BookingRef),
			zap.Error(err))
		return err
	}
	if err := e.payouts.Update(ctx, nil, record); err != nil {
		e.logger.Error("failed to persist failed payout",
			zap.String("booking_ref", record.BookingRef),
			zap.Error(err))
	}
	e.logger.Warn("payout failed",
		zap.String("booking_ref", record.BookingRef),
		zap.String("reason", reason),
		zap.Int("attempt", record.AttemptCount))
	return domain.NewDomainError(domain.ErrorCodeInternalError, reason)
}

// reverseTransfer emits the compensating entry for a completed leg after a
// later leg failed. nil transfers (zero-amount legs) are ignored.
func (e *Engine) reverseTransfer(ctx context.Context, txn *models.Transaction, payoutID *uuid.UUID, why string) {
	if txn == nil {
		return
	}
	_, err := e.ledger.Transfer(ctx, ports.TransferParams{
		FromAccountID: txn.ToAccountID,
		ToAccountID:   txn.FromAccountID,
		Amount:        txn.Amount,
		Kind:          models.TransactionReversal,
		Description:   fmt.Sprintf("Reversal of %s: %s", txn.Reference, why),
		PayoutID:      payoutID,
	})
	e.metrics.RecordTransfer(string(models.TransactionReversal), transferStatus(err))
	if err != nil {
		e.logger.Error("compensating reversal failed",
			zap.String("reference", txn.Reference),
			zap.Error(err))
	}
}

// RetryPayout re-runs a FAILED payout on operator demand, bounded by the
// attempt limit.
func (e *Engine) RetryPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	record, err := e.payouts.GetByID(ctx, nil, payoutID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.PayoutProcessed {
		return nil, domain.ErrPayoutAlreadyProcessed.WithDetail("payout_id", payoutID.String())
	}
	if !record.CanRetry(e.cfg.maxAttempts()) {
		if record.Status != models.PayoutFailed {
			return nil, domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
				fmt.Sprintf("payout in state %s cannot be retried", record.Status))
		}
		return nil, domain.ErrPayoutRetryExhausted.WithDetail("attempts", record.AttemptCount)
	}

	shared, err := e.resolveSharedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := e.ledger.GetOrCreateAccount(ctx, record.ProviderRef, models.AccountProvider)
	if err != nil {
		return nil, err
	}

	if err := e.settleRecord(ctx, shared, provider, record); err != nil {
		return record, err
	}
	return record, nil
}

// ReversePayout manually corrects a PROCESSED payout with a compensating
// transaction pair and transitions the record to REVERSED. The booking flag
// is left alone; re-enabling the booking is an upstream decision.
func (e *Engine) ReversePayout(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRecord, error) {
	record, err := e.payouts.GetByID(ctx, nil, payoutID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.PayoutProcessed {
		return nil, domain.NewDomainError(domain.ErrorCodePayoutInvalidState,
			fmt.Sprintf("payout in state %s cannot be reversed", record.Status))
	}

	shared, err := e.resolveSharedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := e.ledger.GetOrCreateAccount(ctx, record.ProviderRef, models.AccountProvider)
	if err != nil {
		return nil, err
	}

	if record.ProviderAmount.IsPositive() {
		_, err := e.ledger.Transfer(ctx, ports.TransferParams{
			FromAccountID: provider.ID,
			ToAccountID:   shared.holding.ID,
			Amount:        record.ProviderAmount,
			Kind:          models.TransactionReversal,
			Description:   fmt.Sprintf("Payout reversal - booking %s: %s", record.BookingRef, reason),
			PayoutID:      &record.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("reverse provider transfer: %w", err)
		}
	}
	if record.PlatformFee.IsPositive() {
		_, err := e.ledger.Transfer(ctx, ports.TransferParams{
			FromAccountID: shared.platform.ID,
			ToAccountID:   shared.holding.ID,
			Amount:        record.PlatformFee,
			Kind:          models.TransactionReversal,
			Description:   fmt.Sprintf("Fee reversal - booking %s: %s", record.BookingRef, reason),
			PayoutID:      &record.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("reverse fee transfer: %w", err)
		}
	}

	if err := record.MarkReversed(reason); err != nil {
		return nil, err
	}
	if err := e.payouts.Update(ctx, nil, record); err != nil {
		return nil, fmt.Errorf("update payout record: %w", err)
	}
	return record, nil
}

// CancelPayout cancels an unfinished payout after the booking was reversed
// upstream.
func (e *Engine) CancelPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	record, err := e.payouts.GetByID(ctx, nil, payoutID)
	if err != nil {
		return nil, err
	}
	if err := record.Cancel(); err != nil {
		return nil, err
	}
	if err := e.payouts.Update(ctx, nil, record); err != nil {
		return nil, fmt.Errorf("update payout record: %w", err)
	}
	return record, nil
}

// GetPayout fetches one payout record for the operator surface
func (e *Engine) GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRecord, error) {
	return e.payouts.GetByID(ctx, nil, payoutID)
}

// ListPayouts lists payout records in one status
func (e *Engine) ListPayouts(ctx context.Context, status models.PayoutStatus, limit, offset int32) ([]*models.PayoutRecord, error) {
	return e.payouts.ListByStatus(ctx, nil, status, limit, offset)
}

// PayoutStats returns record counts per status
func (e *Engine) PayoutStats(ctx context.Context) (map[models.PayoutStatus]int64, error) {
	return e.payouts.CountByStatus(ctx, nil)
}

// RecentRuns returns the latest persisted run reports, newest first
func (e *Engine) RecentRuns(ctx context.Context, limit int32) ([]*models.RunReport, error) {
	if e.reports == nil {
		return nil, nil
	}
	return e.reports.ListRecent(ctx, nil, limit)
}

// Drain rejects new settlement runs and waits for in-flight ones to finish.
// Used during graceful shutdown, before the database pool closes.
func (e *Engine) Drain(ctx context.Context) error {
	return e.inflight.Shutdown(ctx)
}

func (e *Engine) tryLockPeriod(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.activeRuns[key]; running {
		return false
	}
	e.activeRuns[key] = struct{}{}
	return true
}

func (e *Engine) unlockPeriod(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeRuns, key)
}

func periodKey(start, end time.Time) string {
	return fmt.Sprintf("%d-%d", start.UTC().Unix(), end.UTC().Unix())
}

func transferStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}

func txnID(txn *models.Transaction) *uuid.UUID {
	if txn == nil {
		return nil
	}
	return &txn.ID
}
