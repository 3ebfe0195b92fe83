package transaction

import "errors"

// Service errors. They are returned wrapped in a DomainError and can be
// matched with errors.Is.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotPending          = errors.New("transaction is not pending")
	ErrNotCompleted        = errors.New("only completed transactions can be reversed")
	ErrNotCancellable      = errors.New("only pending or processing transactions can be cancelled")
	ErrInvalidType         = errors.New("unknown transaction type")
	ErrInvalidAmount       = errors.New("amount must be positive with at most two decimals")
	ErrInvalidFee          = errors.New("fee must be zero or positive with at most two decimals")
	ErrFeeNotAllowed       = errors.New("only payments and withdrawals carry a fee")
	ErrSenderRequired      = errors.New("sender wallet required")
	ErrReceiverRequired    = errors.New("receiver wallet required")
	ErrBothWalletsRequired = errors.New("both sender and receiver wallets required")
	ErrSameWallet          = errors.New("sender and receiver wallets must differ")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
	ErrConcurrentUpdate    = errors.New("transaction was changed concurrently")
)
