package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/florascope/internal/adapters/valkey"
	"github.com/samirrijal/florascope/internal/core/usecases"
)

// UpstreamStatus exposes the prediction backend's circuit breaker to readiness checks.
type UpstreamStatus interface {
	Ready() bool
	BreakerState() string
}

// EventStatus reports whether the event publisher's broker connection is up.
type EventStatus interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Viewports   *usecases.ViewportService
	Predictions *usecases.PredictionService
	Upstream    UpstreamStatus
	Events      EventStatus
	NATS        *nats.Conn
	Storage     *valkey.Storage

	// RateLimit is the per-IP request budget per minute. Zero uses 120.
	RateLimit int
	// RefreshTimeout bounds POST /v1/predictions/refresh. Zero uses 60s.
	RefreshTimeout time.Duration
	// OpenAPISpec is the path of the served OpenAPI document.
	OpenAPISpec string
	Version     string
}
