package utils

import (
	apperrors "kalpe/internal/errors"

	"github.com/gofiber/fiber/v2"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a JSON response with status 201.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message, "code": apperrors.CodeValidation})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message})
}

// Forbidden sends a JSON error response with status 403.
func Forbidden(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusForbidden, fiber.Map{"error": message})
}

// NotFound sends a JSON error response with status 404.
func NotFound(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusNotFound, fiber.Map{"error": message, "code": apperrors.CodeNotFound})
}

// InternalError sends a JSON error response with status 500.
func InternalError(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusInternalServerError, fiber.Map{"error": message})
}

// StatusOf maps a domain error code to its HTTP status.
func StatusOf(err error) int {
	de, ok := apperrors.As(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch de.Code {
	case apperrors.CodeValidation:
		return fiber.StatusBadRequest
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeFraudBlocked, apperrors.CodeWalletUnavailable:
		return fiber.StatusForbidden
	case apperrors.CodeInsufficientFunds:
		return fiber.StatusUnprocessableEntity
	case apperrors.CodeTransactionFailed:
		if de.Retryable {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// ErrorBody renders err as a JSON error body. Errors outside the domain
// are reported without their text.
func ErrorBody(err error) fiber.Map {
	de, ok := apperrors.As(err)
	if !ok {
		return fiber.Map{"error": "internal server error"}
	}
	body := fiber.Map{"error": de.Message, "code": de.Code}
	if len(de.Reasons) > 0 {
		body["reasons"] = de.Reasons
	}
	if de.Retryable {
		body["retryable"] = true
	}
	return body
}

// Error writes err with the status its code maps to.
func Error(c *fiber.Ctx, err error) error {
	return Respond(c, StatusOf(err), ErrorBody(err))
}
