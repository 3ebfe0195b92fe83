package errors

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrInsufficientFunds = &DomainError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrWalletUnavailable = &DomainError{Code: CodeWalletUnavailable, Message: "wallet unavailable"}
	ErrFraudBlocked      = &DomainError{Code: CodeFraudBlocked, Message: "transaction blocked"}
	ErrTransactionFailed = &DomainError{Code: CodeTransactionFailed, Message: "transaction failed"}
	ErrValidation        = &DomainError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound          = &DomainError{Code: CodeNotFound, Message: "not found"}
)

func InsufficientFunds(balance, required decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("insufficient funds: balance %s, required %s", balance.StringFixed(2), required.StringFixed(2)),
	}
}

func FraudBlocked(message string, reasons []string) *DomainError {
	if len(reasons) > 0 {
		message = fmt.Sprintf("%s: %s", message, strings.Join(reasons, "; "))
	}
	return &DomainError{Code: CodeFraudBlocked, Message: message, Reasons: reasons}
}

// LockTimeout is raised when a wallet row lock could not be taken in time.
// Nothing was changed, so the operation can be retried.
func LockTimeout(err error) *DomainError {
	return &DomainError{
		Code:      CodeTransactionFailed,
		Message:   "wallet is busy, try again",
		Retryable: true,
		Err:       err,
	}
}

func Validation(format string, args ...interface{}) *DomainError {
	return &DomainError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// WithCause builds a DomainError whose message is the cause's text. The
// cause stays reachable through errors.Is.
func WithCause(code Code, cause error) *DomainError {
	return &DomainError{Code: code, Message: cause.Error(), Err: cause}
}

// Wrap attaches cause to a TRANSACTION_FAILED error unless cause is already
// a DomainError, which is returned as is.
func Wrap(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	if _, ok := As(cause); ok {
		return cause
	}
	return &DomainError{Code: CodeTransactionFailed, Message: fmt.Sprintf(format, args...), Err: cause}
}
