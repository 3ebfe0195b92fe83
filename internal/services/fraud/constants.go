package fraud

import "time"

// Score bands applied by callers of Score.
const (
	ReviewThreshold = 30
	BlockThreshold  = 50
	MaxScore        = 100

	DefaultRuleScore = 10
)

// Built-in heuristic weights and thresholds, in XOF.
const (
	velocityWindow       = time.Hour
	velocityMaxCount     = 5
	velocityScore        = 15
	volumeThreshold      = 1000000
	volumeScore          = 20
	firstTxnThreshold    = 100000
	firstTxnScore        = 10
	roundAmountUnit      = 10000
	roundAmountScore     = 5
	newReceiverAge       = 24 * time.Hour
	newReceiverThreshold = 50000
	newReceiverScore     = 15
)

const (
	rulesCacheName  = "fraud_rules"
	OperationScore  = "fraud_score"
	autoBlockPrefix = "Auto-blocked by rule: "
)
