package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}
		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"

	case path == "/metrics":
		return "no-cache"

	// Pure functions of the query or of static configuration
	case path == "/v1/region" || path == "/v1/bounds":
		return "public, max-age=3600"

	// Per-session state
	case path == "/v1/viewport":
		return "private, no-store"

	// Replaced on refresh; ETag revalidation keeps this cheap
	case strings.HasPrefix(path, "/v1/predictions/"), path == "/predict":
		return "public, max-age=30, must-revalidate"

	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=300"

	case strings.HasPrefix(path, "/v1/"):
		return "no-cache"
	}
	return ""
}
