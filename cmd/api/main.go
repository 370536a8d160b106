package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/florascope/internal/adapters/http"
	natsadapter "github.com/samirrijal/florascope/internal/adapters/nats"
	"github.com/samirrijal/florascope/internal/adapters/predictor"
	"github.com/samirrijal/florascope/internal/adapters/valkey"
	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/ports"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/config"
	"github.com/samirrijal/florascope/internal/pkg/logging"
	"github.com/samirrijal/florascope/internal/pkg/projection"
	"github.com/samirrijal/florascope/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("florascope-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Rate-limit storage
	var storage *valkey.Storage
	if cfg.Valkey.Addr != "" {
		storage, err = valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			slog.Warn("valkey unavailable, rate limiting per process", "error", err)
			storage = nil
		} else {
			defer storage.Close()
		}
	}

	// NATS
	var publisher ports.EventPublisher
	var events http.EventStatus
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			events = pub
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	// Prediction backend
	client := predictor.NewClient(predictor.Config{
		URL:             cfg.Upstream.URL,
		Timeout:         cfg.Upstream.Timeout,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerTimeout:  cfg.Upstream.BreakerTimeout,
	})

	// Use cases
	projector := projection.NewProjector(projection.Config{
		Margin:            cfg.Projection.Margin,
		NoDataPlaceholder: cfg.Projection.NoDataPlaceholder,
	})
	viewportSvc := usecases.NewViewportService(domain.CentralValley, publisher, cfg.Server.MaxSessions)
	predictionSvc := usecases.NewPredictionService(client, projector, publisher)

	// Single startup fetch. Until it lands (or if it fails) the empty set is served.
	if cfg.Upstream.FetchOnStartup {
		go func() {
			fetchCtx, fetchCancel := context.WithTimeout(ctx, cfg.Upstream.Timeout+5*time.Second)
			defer fetchCancel()
			if _, err := predictionSvc.Refresh(fetchCtx); err != nil {
				slog.Warn("startup prediction fetch failed", "upstream", cfg.Upstream.URL, "error", err)
			}
		}()
	}

	deps := &http.Dependencies{
		Viewports:      viewportSvc,
		Predictions:    predictionSvc,
		Upstream:       client,
		Events:         events,
		NATS:           natsConn,
		Storage:        storage,
		RateLimit:      cfg.Server.RateLimit,
		RefreshTimeout: cfg.Upstream.Timeout + 5*time.Second,
		OpenAPISpec:    cfg.Server.OpenAPISpec,
		Version:        version,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // viewport bodies are tiny
		AppName:      "FloraScope API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match, traceparent",
		ExposeHeaders:    "ETag, Link, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "upstream", cfg.Upstream.URL, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
