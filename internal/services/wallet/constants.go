package wallet

// Default configuration values
const (
	DefaultCurrency     = "XOF"
	DefaultDailyLimit   = 500000
	DefaultMonthlyLimit = 5000000
	DefaultTimezone     = "Africa/Abidjan"
)

// Operation names used for metrics and logs
const (
	OperationCredit     = "credit"
	OperationDebit      = "debit"
	OperationLock       = "lock"
	OperationUnlock     = "unlock"
	OperationDeactivate = "deactivate"
)

const summaryCacheName = "balance_summary"
