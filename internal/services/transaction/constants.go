package transaction

import "time"

// Reference format: prefix, UTC timestamp, then a random suffix.
const (
	ReferencePrefix       = "TXN"
	referenceTimeLayout   = "20060102150405"
	referenceSuffixLength = 8
	maxEntropyIncrement   = 1 << 20
)

// Default configuration values
const (
	DefaultCurrency  = "XOF"
	DefaultStaleAge  = 15 * time.Minute
	staleFailureText = "stale processing: execution did not finish"
)

// Operation names used for metrics and logs
const (
	OperationExecute = "execute"
	OperationCancel  = "cancel"
	OperationReverse = "reverse"
	OperationRecover = "recover_stale"
)
