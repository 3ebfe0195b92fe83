package wallet

import "errors"

// Service errors. They are returned wrapped in a DomainError and can be
// matched with errors.Is.
var (
	ErrInvalidAmount        = errors.New("amount must be positive with at most two decimals")
	ErrInvalidCurrency      = errors.New("currency must be a three-letter ISO code")
	ErrInvalidLimits        = errors.New("limits must be positive")
	ErrDailyLimitExceeded   = errors.New("transaction exceeds daily limit")
	ErrMonthlyLimitExceeded = errors.New("transaction exceeds monthly limit")
	ErrWalletLocked         = errors.New("wallet is locked")
	ErrWalletInactive       = errors.New("wallet is not active")
	ErrWalletExists         = errors.New("wallet already exists for account")
)
