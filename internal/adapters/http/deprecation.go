package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecationMiddleware marks a single route as deprecated. It sets the
// Deprecation, Sunset (RFC 8594) and successor Link (RFC 8288) headers.
func DeprecationMiddleware(sunset time.Time, successor string) fiber.Handler {
	sunsetHeader := sunset.UTC().Format(time.RFC1123)

	return func(c *fiber.Ctx) error {
		c.Set("Deprecation", "true")
		c.Set("Sunset", sunsetHeader)
		if successor != "" {
			c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, successor))
		}

		days := time.Until(sunset).Hours() / 24
		if days < 0 {
			days = 0
		}
		c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))

		return c.Next()
	}
}
