// Package middleware provides HTTP middleware for the wallet API.
// Tokens are issued by the identity service; this package only verifies
// them and exposes the account id and role to handlers.
package middleware

import (
	"strings"

	"kalpe/internal/models"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const claimsKey = "claims"

// AuthMiddleware validates HS256 bearer tokens.
type AuthMiddleware struct {
	secret []byte
	log    logrus.FieldLogger
}

func NewAuthMiddleware(secret string, log logrus.FieldLogger) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), log: log}
}

// Handler validates the bearer token and stores its claims in the request
// context.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.Unauthorized(c, "invalid authorization format")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims := &models.AccountClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		m.log.WithError(err).WithField("path", c.Path()).Debug("token rejected")
		return utils.Unauthorized(c, "invalid token")
	}
	if claims.AccountID() == "" {
		return utils.Unauthorized(c, "invalid claims")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// AdminOnly rejects requests whose token does not carry the admin role.
func AdminOnly(c *fiber.Ctx) error {
	claims, ok := Claims(c)
	if !ok {
		return utils.Unauthorized(c, "invalid claims")
	}
	if !claims.IsAdmin() {
		return utils.Forbidden(c, "insufficient permissions")
	}
	return c.Next()
}

// Claims returns the claims stored by Handler.
func Claims(c *fiber.Ctx) (*models.AccountClaims, bool) {
	claims, ok := c.Locals(claimsKey).(*models.AccountClaims)
	return claims, ok && claims != nil
}

// SignToken issues a token for accountID. Used by the seed tooling and
// tests; production tokens come from the identity service.
func SignToken(secret, accountID, role string) (string, error) {
	claims := models.AccountClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: accountID},
		Role:             role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
