package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
)

func payableBooking() PayableBooking {
	return PayableBooking{
		BookingRef:  "BK-2024-0042",
		ProviderRef: "therapist-anna",
		GrossAmount: decimal.RequireFromString("450.00"),
	}
}

func pendingRecord() *PayoutRecord {
	return NewPayoutRecord(payableBooking(),
		decimal.RequireFromString("54.00"),
		decimal.RequireFromString("396.00"),
		"ZAR")
}

func TestNewPayoutRecord(t *testing.T) {
	record := pendingRecord()

	assert.Equal(t, PayoutPending, record.Status)
	assert.Equal(t, "BK-2024-0042", record.BookingRef)
	assert.Equal(t, "therapist-anna", record.ProviderRef)
	assert.True(t, record.GrossAmount.Equal(decimal.RequireFromString("450.00")))
	assert.True(t, record.PlatformFee.Equal(decimal.RequireFromString("54.00")))
	assert.True(t, record.ProviderAmount.Equal(decimal.RequireFromString("396.00")))
	assert.Equal(t, "ZAR", record.Currency)
	assert.Equal(t, 0, record.AttemptCount)
	assert.True(t, strings.HasPrefix(record.Reference, "PAYOUT-"))
	assert.NotEqual(t, uuid.Nil, record.ID)
}

func TestMarkProcessing(t *testing.T) {
	t.Run("from pending counts the attempt", func(t *testing.T) {
		record := pendingRecord()
		require.NoError(t, record.MarkProcessing(3))

		assert.Equal(t, PayoutProcessing, record.Status)
		assert.Equal(t, 1, record.AttemptCount)
		require.NotNil(t, record.LastAttemptAt)
	})

	t.Run("retry from failed clears the failure reason", func(t *testing.T) {
		record := pendingRecord()
		require.NoError(t, record.MarkProcessing(3))
		require.NoError(t, record.MarkFailed("gateway timeout"))

		require.NoError(t, record.MarkProcessing(3))
		assert.Equal(t, PayoutProcessing, record.Status)
		assert.Equal(t, 2, record.AttemptCount)
		assert.Empty(t, record.FailureReason)
	})

	t.Run("exhausted record is rejected", func(t *testing.T) {
		record := pendingRecord()
		for i := 0; i < 3; i++ {
			require.NoError(t, record.MarkProcessing(3))
			require.NoError(t, record.MarkFailed("still broken"))
		}

		err := record.MarkProcessing(3)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodePayoutRetryExhausted, domain.GetErrorCode(err))
		assert.Equal(t, 3, record.AttemptCount)
		assert.Equal(t, PayoutFailed, record.Status)
	})

	t.Run("terminal states are rejected", func(t *testing.T) {
		for _, status := range []PayoutStatus{PayoutProcessing, PayoutProcessed, PayoutCancelled, PayoutReversed} {
			record := pendingRecord()
			record.Status = status

			err := record.MarkProcessing(3)
			require.Error(t, err, "state %s", status)
			assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
		}
	})
}

func TestMarkProcessed(t *testing.T) {
	t.Run("records both transaction ids", func(t *testing.T) {
		record := pendingRecord()
		require.NoError(t, record.MarkProcessing(3))

		payoutTxn := uuid.New()
		feeTxn := uuid.New()
		require.NoError(t, record.MarkProcessed(&payoutTxn, &feeTxn))

		assert.Equal(t, PayoutProcessed, record.Status)
		assert.Equal(t, &payoutTxn, record.PayoutTxnID)
		assert.Equal(t, &feeTxn, record.FeeTxnID)
	})

	t.Run("nil transaction ids allowed only for zero legs", func(t *testing.T) {
		record := NewPayoutRecord(PayableBooking{
			BookingRef:  "BK-FREE",
			ProviderRef: "therapist-anna",
			GrossAmount: decimal.Zero,
		}, decimal.Zero, decimal.Zero, "ZAR")
		require.NoError(t, record.MarkProcessing(3))

		require.NoError(t, record.MarkProcessed(nil, nil))
		assert.Equal(t, PayoutProcessed, record.Status)
	})

	t.Run("missing transaction for a positive leg rejected", func(t *testing.T) {
		record := pendingRecord()
		require.NoError(t, record.MarkProcessing(3))

		feeTxn := uuid.New()
		err := record.MarkProcessed(nil, &feeTxn)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
		assert.Equal(t, PayoutProcessing, record.Status)
	})

	t.Run("only processing records can complete", func(t *testing.T) {
		record := pendingRecord()
		payoutTxn := uuid.New()
		feeTxn := uuid.New()

		err := record.MarkProcessed(&payoutTxn, &feeTxn)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
	})
}

func TestMarkFailed(t *testing.T) {
	record := pendingRecord()
	require.NoError(t, record.MarkProcessing(3))

	require.NoError(t, record.MarkFailed("fee transfer failed"))
	assert.Equal(t, PayoutFailed, record.Status)
	assert.Equal(t, "fee transfer failed", record.FailureReason)
	assert.Nil(t, record.PayoutTxnID)
	assert.Nil(t, record.FeeTxnID)
	// The attempt was counted when processing started, not on failure
	assert.Equal(t, 1, record.AttemptCount)

	err := record.MarkFailed("again")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
}

func TestCancel(t *testing.T) {
	for _, status := range []PayoutStatus{PayoutPending, PayoutProcessing, PayoutFailed} {
		record := pendingRecord()
		record.Status = status

		require.NoError(t, record.Cancel(), "state %s", status)
		assert.Equal(t, PayoutCancelled, record.Status)
	}

	for _, status := range []PayoutStatus{PayoutProcessed, PayoutCancelled, PayoutReversed} {
		record := pendingRecord()
		record.Status = status

		err := record.Cancel()
		require.Error(t, err, "state %s", status)
		assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
	}
}

func TestMarkReversed(t *testing.T) {
	record := pendingRecord()
	require.NoError(t, record.MarkProcessing(3))
	payoutTxn := uuid.New()
	feeTxn := uuid.New()
	require.NoError(t, record.MarkProcessed(&payoutTxn, &feeTxn))

	require.NoError(t, record.MarkReversed("booking refunded"))
	assert.Equal(t, PayoutReversed, record.Status)
	assert.Equal(t, "booking refunded", record.FailureReason)

	fresh := pendingRecord()
	err := fresh.MarkReversed("not processed yet")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodePayoutInvalidState, domain.GetErrorCode(err))
}

func TestLivenessAndTerminality(t *testing.T) {
	tests := []struct {
		status   PayoutStatus
		live     bool
		terminal bool
	}{
		{PayoutPending, true, false},
		{PayoutProcessing, true, false},
		{PayoutProcessed, true, true},
		{PayoutFailed, false, false},
		{PayoutCancelled, false, true},
		{PayoutReversed, false, true},
	}

	for _, tt := range tests {
		record := pendingRecord()
		record.Status = tt.status
		assert.Equal(t, tt.live, record.IsLive(), "IsLive for %s", tt.status)
		assert.Equal(t, tt.terminal, record.IsTerminal(), "IsTerminal for %s", tt.status)
	}
}

func TestCanRetry(t *testing.T) {
	record := pendingRecord()
	assert.False(t, record.CanRetry(3), "pending record is not retryable")

	record.Status = PayoutFailed
	record.AttemptCount = 2
	assert.True(t, record.CanRetry(3))

	record.AttemptCount = 3
	assert.False(t, record.CanRetry(3))
}
