// Package predictor fetches flowering predictions from the model backend.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/pkg/metrics"
)

const (
	breakerName = "prediction-backend"

	// maxBodyBytes bounds a single payload read.
	maxBodyBytes = 64 << 20
)

var (
	// ErrUpstreamStatus means the backend answered with a non-2xx status.
	ErrUpstreamStatus = errors.New("prediction backend returned an error status")
	// ErrUpstreamUnavailable means the circuit breaker rejected the call.
	ErrUpstreamUnavailable = errors.New("prediction backend unavailable")
)

var tracer = otel.Tracer("florascope/predictor")

// Config configures the backend client.
type Config struct {
	URL     string
	Timeout time.Duration

	// Breaker settings. Zero values use the defaults below.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is a ports.PredictionSource backed by the HTTP prediction endpoint.
type Client struct {
	url  string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*domain.PredictionSet]
}

// NewClient creates a Client. The breaker opens after cfg.BreakerFailures
// consecutive failures (default 5) and probes again after cfg.BreakerTimeout
// (default 30s).
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*domain.PredictionSet](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   cb,
	}
}

// Fetch downloads and decodes the current prediction payload.
func (c *Client) Fetch(ctx context.Context) (*domain.PredictionSet, error) {
	ctx, span := tracer.Start(ctx, "predictor.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", c.url))

	set, err := c.cb.Execute(func() (*domain.PredictionSet, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("predictions.points", len(set.Predictions)),
		attribute.Int("predictions.months", len(set.MonthlyProbs)),
	)
	return set, nil
}

// Ready reports whether the breaker currently lets requests through.
func (c *Client) Ready() bool {
	return c.cb.State() != gobreaker.StateOpen
}

// BreakerState returns the breaker state name (closed, half-open, open).
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

func (c *Client) fetch(ctx context.Context) (*domain.PredictionSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch predictions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read prediction payload: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	return decode(body)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
