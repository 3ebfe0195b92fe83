package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindJSON parses the request body into dst and runs its validate tags.
// The returned error text is safe to send back to the client.
func BindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("invalid request format")
	}
	if err := validate.Struct(dst); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, ", "))
}

// ParseAmount reads a decimal amount sent as a JSON string. An empty
// string yields zero.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number", field)
	}
	return d, nil
}
