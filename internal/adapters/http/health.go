package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// ReadyHandler checks the prediction backend breaker, both NATS connections, and Valkey.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Prediction backend
		if deps.Upstream != nil {
			if deps.Upstream.Ready() {
				checks["upstream"] = "ok (" + deps.Upstream.BreakerState() + ")"
			} else {
				checks["upstream"] = "circuit " + deps.Upstream.BreakerState()
				allOK = false
			}
		} else {
			checks["upstream"] = "not configured"
			allOK = false
		}

		if deps.Predictions != nil {
			if err := deps.Predictions.LastError(); err != nil {
				checks["predictions"] = "stale: " + err.Error()
			} else {
				checks["predictions"] = "ok"
			}
		}

		// NATS: event publisher and WebSocket relay hold separate connections
		if deps.Events != nil {
			if deps.Events.Connected() {
				checks["nats_publisher"] = "ok"
			} else {
				checks["nats_publisher"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats_publisher"] = "not configured"
		}
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats_relay"] = "ok"
			} else {
				checks["nats_relay"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats_relay"] = "not configured"
		}

		// Valkey rate-limit storage
		if deps.Storage != nil {
			if err := deps.Storage.Ping(ctx); err != nil {
				checks["valkey"] = "error: " + err.Error()
				allOK = false
			} else {
				checks["valkey"] = "ok"
			}
		} else {
			checks["valkey"] = "not configured"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
