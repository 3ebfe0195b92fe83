package cache

import (
	"fmt"
)

type EntityType string

const (
	EntityBalance    EntityType = "balance"
	EntityFraudRules EntityType = "fraud_rules"
)

type KeyType string

const (
	KeyAccount KeyType = "account"
	KeyActive  KeyType = "active"
)

// GenerateKey creates a standardized cache key
func GenerateKey(entity EntityType, keyType KeyType, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entity, keyType, value)
}

func BalanceKey(accountID string) string {
	return GenerateKey(EntityBalance, KeyAccount, accountID)
}

func ActiveRulesKey() string {
	return GenerateKey(EntityFraudRules, KeyActive, "all")
}
