package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/florascope/internal/pkg/metrics"
)

// legacySunset is when GET /predict stops being served.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID, trace span, request-scoped logger
	app.Use(requestid.New())
	app.Use(TracingMiddleware())
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting per IP, shared across replicas when Valkey is configured
	rateLimit := deps.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}
	limiterCfg := limiter.Config{
		Max:        rateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/v1/health"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errTooManyRequests(c, "too many requests, please try again later")
		},
	}
	if deps.Storage != nil {
		limiterCfg.Storage = deps.Storage
	}
	app.Use(limiter.New(limiterCfg))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 5s per-request timeout for in-memory reads
	v1 := app.Group("/v1")
	v1.Get("/region", timeout.NewWithContext(RegionHandler(deps), 5*time.Second))
	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), 5*time.Second))
	v1.Delete("/sessions/:id", timeout.NewWithContext(DeleteSessionHandler(deps), 5*time.Second))
	v1.Get("/viewport", timeout.NewWithContext(GetViewportHandler(deps), 5*time.Second))
	v1.Put("/viewport", timeout.NewWithContext(SetViewportHandler(deps), 5*time.Second))
	v1.Post("/viewport/focus", timeout.NewWithContext(FocusRegionHandler(deps), 5*time.Second))
	v1.Get("/bounds", timeout.NewWithContext(BoundsHandler(deps), 5*time.Second))
	v1.Get("/predictions/points", timeout.NewWithContext(PointsHandler(deps), 5*time.Second))
	v1.Get("/predictions/months", timeout.NewWithContext(MonthsHandler(deps), 5*time.Second))
	v1.Get("/predictions/summary", timeout.NewWithContext(SummaryHandler(deps), 5*time.Second))
	v1.Get("/predictions/geojson", timeout.NewWithContext(GeoJSONHandler(deps), 5*time.Second))

	// Refresh waits on the model backend
	refreshTimeout := deps.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = 60 * time.Second
	}
	v1.Post("/predictions/refresh", timeout.NewWithContext(RefreshHandler(deps), refreshTimeout))

	// Backend-shaped payload for dashboards that still poll the model directly
	app.Get("/predict",
		DeprecationMiddleware(legacySunset, "/v1/predictions/summary"),
		LegacyPredictHandler(deps),
	)

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPISpec)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "event relay not configured")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
