package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// TestDomainErrors_LedgerErrors tests the account-level domain errors
func TestDomainErrors_LedgerErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "account_not_found",
			err:      ErrAccountNotFound,
			contains: "account not found",
		},
		{
			name:     "account_inactive",
			err:      ErrAccountInactive,
			contains: "account is inactive",
		},
		{
			name:     "insufficient_balance",
			err:      ErrAccountInsufficientBalance,
			contains: "insufficient account balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", tt.err.Error(), tt.contains)
			}
			if !IsLedgerError(tt.err) {
				t.Errorf("IsLedgerError(%v) = false, want true", tt.err)
			}
		})
	}
}

func TestDomainError_ErrorFormat(t *testing.T) {
	plain := NewDomainError(ErrorCodePayoutInvalidState, "cannot cancel")
	if plain.Error() != "PAYOUT_INVALID_STATE: cannot cancel" {
		t.Errorf("Error() = %q", plain.Error())
	}

	cause := errors.New("connection refused")
	wrapped := WrapError(ErrorCodeDatabaseError, "query accounts", cause)
	want := "INTERNAL_DATABASE_ERROR: query accounts: connection refused"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapError(ErrorCodeGatewaySubmissionFailed, "submit payout", cause)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var domainErr *DomainError
	if !errors.As(wrapped, &domainErr) {
		t.Fatal("errors.As should extract *DomainError")
	}
	if domainErr.Code != ErrorCodeGatewaySubmissionFailed {
		t.Errorf("Code = %s", domainErr.Code)
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeSettlementRunInProgress, "run in progress").
		WithDetail("period", "1709251200-1709856000").
		WithDetail("workers", 4)

	if err.Details["period"] != "1709251200-1709856000" {
		t.Errorf("Details[period] = %v", err.Details["period"])
	}
	if err.Details["workers"] != 4 {
		t.Errorf("Details[workers] = %v", err.Details["workers"])
	}
}

func TestDomainError_WithDetailLeavesSharedInstancesUntouched(t *testing.T) {
	first := ErrAccountNotFound.WithDetail("account_id", "A")
	second := ErrAccountNotFound.WithDetail("account_id", "B")

	if first == second {
		t.Fatal("WithDetail should return distinct instances")
	}
	if got := first.Details["account_id"]; got != "A" {
		t.Errorf("first.Details[account_id] = %v, want A", got)
	}
	if got := second.Details["account_id"]; got != "B" {
		t.Errorf("second.Details[account_id] = %v, want B", got)
	}
	if len(ErrAccountNotFound.Details) != 0 {
		t.Errorf("shared instance gained details: %v", ErrAccountNotFound.Details)
	}
	if first.Code != ErrorCodeAccountNotFound || second.Code != ErrorCodeAccountNotFound {
		t.Error("copies should keep the original code")
	}
}

func TestDomainError_WithDetailConcurrentAnnotation(t *testing.T) {
	// Settlement workers annotate the same shared instance from separate
	// goroutines when several transfers fail in one run.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := ErrAccountInsufficientBalance.
					WithDetail("from_account_id", n).
					WithDetail("amount", j)
				if err.Details["from_account_id"] != n {
					t.Errorf("Details[from_account_id] = %v, want %d", err.Details["from_account_id"], n)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrPayoutNotFound); got != ErrorCodePayoutNotFound {
		t.Errorf("GetErrorCode = %s", got)
	}

	// Wrapped chains resolve to the outermost domain code
	wrapped := fmt.Errorf("run failed: %w", ErrSettlementConfiguration)
	if got := GetErrorCode(wrapped); got != ErrorCodeSettlementConfiguration {
		t.Errorf("GetErrorCode(wrapped) = %s", got)
	}

	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		classifier func(error) bool
		want       bool
	}{
		{"account not found is not-found", ErrAccountNotFound, IsNotFound, true},
		{"payout not found is not-found", ErrPayoutNotFound, IsNotFound, true},
		{"inactive is not not-found", ErrAccountInactive, IsNotFound, false},
		{"gateway submission", ErrGatewaySubmissionFailed, IsGatewayError, true},
		{"gateway generic", ErrGatewayError, IsGatewayError, true},
		{"validation failed", ErrValidationFailed, IsValidationError, true},
		{"amount invalid", ErrValidationAmountInvalid, IsValidationError, true},
		{"configuration", ErrSettlementConfiguration, IsConfigurationError, true},
		{"run in progress is not configuration", ErrSettlementRunInProgress, IsConfigurationError, false},
		{"plain error matches nothing", errors.New("plain"), IsLedgerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.classifier(tt.err); got != tt.want {
				t.Errorf("classifier(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrPayoutAlreadyProcessed, ErrorCodePayoutAlreadyProcessed) {
		t.Error("exact code should match")
	}
	if IsDomainError(ErrPayoutAlreadyProcessed, ErrorCodePayoutNotFound) {
		t.Error("different code should not match")
	}
	if IsDomainError(errors.New("plain"), ErrorCodeInternalError) {
		t.Error("plain error should not match")
	}
}
