package models

import "github.com/golang-jwt/jwt/v5"

const (
	RoleAccountHolder = "account_holder"
	RoleAdmin         = "admin"
)

// AccountClaims is the JWT payload issued by the identity service.
// The subject is the account id.
type AccountClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (c *AccountClaims) AccountID() string {
	return c.Subject
}

func (c *AccountClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
