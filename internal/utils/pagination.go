package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// QueryInt reads a positive integer query parameter, falling back to def
// when it is missing or unparsable and capping it at ceiling.
func QueryInt(c *fiber.Ctx, key string, def, ceiling int) int {
	n, err := strconv.Atoi(c.Query(key, strconv.Itoa(def)))
	if err != nil || n < 1 {
		n = def
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}
