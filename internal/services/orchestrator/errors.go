package orchestrator

import "errors"

var (
	ErrInvalidAmount      = errors.New("amount must be positive with at most two decimals")
	ErrInvalidFee         = errors.New("fee must be zero or positive with at most two decimals")
	ErrSelfTransfer       = errors.New("sender and receiver must be different accounts")
	ErrAccountRequired    = errors.New("account id is required")
	ErrInvalidPaymentType = errors.New("unknown payment type")
	ErrInvalidHistoryDays = errors.New("history window must be between 1 and 365 days")
)
