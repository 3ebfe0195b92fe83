package errors

import (
	stderrors "errors"
	"fmt"
)

type Code string

const (
	CodeInsufficientFunds = Code("INSUFFICIENT_FUNDS")
	CodeWalletUnavailable = Code("WALLET_UNAVAILABLE")
	CodeFraudBlocked      = Code("FRAUD_BLOCKED")
	CodeTransactionFailed = Code("TRANSACTION_FAILED")
	CodeValidation        = Code("VALIDATION_ERROR")
	CodeNotFound          = Code("NOT_FOUND")
)

// DomainError is the error shape returned to callers of the wallet engine.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Code      Code     `json:"code"`
	Message   string   `json:"message"`
	Reasons   []string `json:"reasons,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
	Err       error    `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// As returns the first DomainError in err's chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of err, or TRANSACTION_FAILED for foreign errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeTransactionFailed
}

// IsRetryable reports whether the caller may safely try the operation again.
func IsRetryable(err error) bool {
	de, ok := As(err)
	return ok && de.Retryable
}

// Is mirrors the standard library so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }
