package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SubmitPayoutRequest asks the gateway to push funds to a provider's bank
// account.
type SubmitPayoutRequest struct {
	BeneficiaryID string
	Amount        decimal.Decimal
	Currency      string
	Reference     string
}

// SubmitPayoutResult is the gateway's acknowledgement of a payout submission.
type SubmitPayoutResult struct {
	GatewayPayoutID string
	Status          string
	Timestamp       time.Time
}

// PayoutGateway is the optional real-money leg of settlement: it moves funds
// out of the platform's bank account, independent of the internal ledger
// transfers. Failures map to a FAILED payout record with the gateway's error
// message.
type PayoutGateway interface {
	SubmitPayout(ctx context.Context, req SubmitPayoutRequest) (*SubmitPayoutResult, error)
}
