package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Ledger Errors (ACCOUNT_*) — per-transfer, recoverable
	ErrorCodeAccountNotFound            ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrorCodeAccountInactive            ErrorCode = "ACCOUNT_INACTIVE"
	ErrorCodeAccountInsufficientBalance ErrorCode = "ACCOUNT_INSUFFICIENT_BALANCE"

	// Payout Errors (PAYOUT_*)
	ErrorCodePayoutNotFound         ErrorCode = "PAYOUT_NOT_FOUND"
	ErrorCodePayoutAlreadyProcessed ErrorCode = "PAYOUT_ALREADY_PROCESSED"
	ErrorCodePayoutInvalidState     ErrorCode = "PAYOUT_INVALID_STATE"
	ErrorCodePayoutRetryExhausted   ErrorCode = "PAYOUT_RETRY_EXHAUSTED"

	// Payout Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError            ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewaySubmissionFailed ErrorCode = "GATEWAY_SUBMISSION_FAILED"

	// Settlement Run Errors (SETTLEMENT_*)
	ErrorCodeSettlementConfiguration ErrorCode = "SETTLEMENT_CONFIGURATION"
	ErrorCodeSettlementRunInProgress ErrorCode = "SETTLEMENT_RUN_IN_PROGRESS"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error with the detail field set. The
// receiver is left untouched so the shared error instances stay immutable
// and safe to annotate from concurrent settlement workers.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAccountNotFound ||
		code == ErrorCodePayoutNotFound
}

// IsLedgerError reports whether a transfer failed for a ledger-level reason
// (missing, inactive or underfunded account). These are recoverable: the
// settlement engine records them on the payout and retries on a later run.
func IsLedgerError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAccountNotFound ||
		code == ErrorCodeAccountInactive ||
		code == ErrorCodeAccountInsufficientBalance
}

// IsGatewayError checks if an error is a payout gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewaySubmissionFailed
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid
}

// IsConfigurationError reports whether a settlement run failed fatally
// because a shared account or run precondition is missing. These abort the
// whole run and alert through the failure path, not the run report.
func IsConfigurationError(err error) bool {
	return GetErrorCode(err) == ErrorCodeSettlementConfiguration
}

// Structured error instances
var (
	ErrAccountNotFound            = NewDomainError(ErrorCodeAccountNotFound, "account not found")
	ErrAccountInactive            = NewDomainError(ErrorCodeAccountInactive, "account is inactive")
	ErrAccountInsufficientBalance = NewDomainError(ErrorCodeAccountInsufficientBalance, "insufficient account balance")

	ErrPayoutNotFound         = NewDomainError(ErrorCodePayoutNotFound, "payout record not found")
	ErrPayoutAlreadyProcessed = NewDomainError(ErrorCodePayoutAlreadyProcessed, "payout already processed")
	ErrPayoutInvalidState     = NewDomainError(ErrorCodePayoutInvalidState, "payout is in invalid state for this operation")
	ErrPayoutRetryExhausted   = NewDomainError(ErrorCodePayoutRetryExhausted, "payout retry attempts exhausted")

	ErrGatewayError            = NewDomainError(ErrorCodeGatewayError, "payout gateway error")
	ErrGatewaySubmissionFailed = NewDomainError(ErrorCodeGatewaySubmissionFailed, "payout gateway submission failed")

	ErrSettlementConfiguration = NewDomainError(ErrorCodeSettlementConfiguration, "settlement configuration failure")
	ErrSettlementRunInProgress = NewDomainError(ErrorCodeSettlementRunInProgress, "settlement run already in progress for period")

	ErrValidationFailed        = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
