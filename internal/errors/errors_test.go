package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := InsufficientFunds(decimal.NewFromInt(10), decimal.NewFromInt(25))
	wrapped := fmt.Errorf("transfer: %w", err)

	assert.ErrorIs(t, wrapped, ErrInsufficientFunds)
	assert.NotErrorIs(t, wrapped, ErrWalletUnavailable)
	assert.Equal(t, "insufficient funds: balance 10.00, required 25.00", err.Error())
	assert.Equal(t, CodeInsufficientFunds, CodeOf(wrapped))
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("wallet is locked")
	err := WithCause(CodeWalletUnavailable, cause)

	assert.Equal(t, "wallet is locked", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	domain := Validation("amount must be positive")
	assert.Same(t, domain, Wrap(domain, "outer"))

	cause := stderrors.New("connection reset")
	err := Wrap(cause, "failed to execute %s", "TXN1")
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to execute TXN1: connection reset", err.Error())
}

func TestFraudBlocked(t *testing.T) {
	err := FraudBlocked("High fraud score (55)", []string{"velocity", "new receiver"})
	assert.Equal(t, "High fraud score (55): velocity; new receiver", err.Error())
	assert.Equal(t, []string{"velocity", "new receiver"}, err.Reasons)
	assert.ErrorIs(t, err, ErrFraudBlocked)
}

func TestRetryableAndForeignErrors(t *testing.T) {
	timeout := LockTimeout(stderrors.New("context deadline exceeded"))
	assert.True(t, IsRetryable(fmt.Errorf("outer: %w", timeout)))
	assert.ErrorIs(t, timeout, ErrTransactionFailed)

	foreign := stderrors.New("plain")
	assert.False(t, IsRetryable(foreign))
	assert.Equal(t, CodeTransactionFailed, CodeOf(foreign))
	_, ok := As(foreign)
	assert.False(t, ok)
}

func TestValidation(t *testing.T) {
	err := Validation("amount %s is not positive", "-5")
	assert.Equal(t, "amount -5 is not positive", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.False(t, err.Retryable)
}
