/*
Package wallet owns the wallets of the engine: their balances, limits and
lock state.

Every balance change goes through Credit or Debit. Both take the wallet's
exclusive row lock inside a unit of work, re-read the balance under that
lock and refuse to proceed on an inactive or locked wallet. Debit never
drives a balance below zero.

Usage:

	svc := wallet.NewService(store, cache, wallet.WalletConfig{
	    Currency:     "XOF",
	    Location:     loc,
	    DailyLimit:   decimal.NewFromInt(500000),
	    MonthlyLimit: decimal.NewFromInt(5000000),
	}, collector, log)

	w, err := svc.GetOrCreate(ctx, accountID)
	balance, err := svc.Credit(ctx, w.ID, decimal.NewFromInt(1000))

Inside a caller's unit of work, bind the service to it first so the
mutations join it and share its locks:

	err := store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
	    _, err := svc.WithTx(tx).Debit(ctx, senderID, amount)
	    return err
	})

Limits:

Daily and monthly spend are the sums of COMPLETED transactions the wallet
sent within the current calendar day or month, in the configured time zone.
CheckSend compares them against the wallet's limits together with the
balance and availability, and reports the first reason the send would fail.

Errors:

Failures are internal/errors DomainErrors. WALLET_UNAVAILABLE is returned
for inactive or locked wallets, INSUFFICIENT_FUNDS for debits larger than
the balance, and a retryable TRANSACTION_FAILED when the row lock could not
be obtained in time.

Cache Management:

Balance summaries are cached per account. The service never invalidates on
its own inside a unit of work; callers invalidate after commit.
*/
package wallet
