package orchestrator

// Amounts in XOF.
const (
	HighValueThreshold = 1000000

	withdrawalFeeRate = "0.01"
	withdrawalFeeMin  = 100
	withdrawalFeeMax  = 5000

	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
)

const blockedCancelReason = "Blocked by fraud screening"
