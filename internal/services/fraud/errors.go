package fraud

import "errors"

var (
	ErrRuleNotFound      = errors.New("fraud rule not found")
	ErrRuleExists        = errors.New("fraud rule with this name already exists")
	ErrRuleNameRequired  = errors.New("fraud rule name is required")
	ErrInvalidRuleType   = errors.New("unknown fraud rule type")
	ErrInvalidRuleScore  = errors.New("fraud score must be between 0 and 100")
	ErrThresholdRequired = errors.New("amount threshold rule needs a positive threshold")
	ErrWindowRequired    = errors.New("velocity rule needs a positive window and max transactions")
)
