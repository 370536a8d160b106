package natsadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/florascope/internal/core/domain"
)

// Subjects published by the service.
const (
	SubjectViewportPrefix     = "florascope.viewport."
	SubjectViewportAll        = "florascope.viewport.>"
	SubjectPredictionsUpdated = "florascope.predictions.updated"
	SubjectPredictionsAll     = "florascope.predictions.>"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "FLORASCOPE_VIEWPORT",
			Subjects:  []string{SubjectViewportAll},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.MemoryStorage,
		},
		{
			Name:      "FLORASCOPE_PREDICTIONS",
			Subjects:  []string{SubjectPredictionsAll},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishViewportChanged publishes a session's new viewport status.
func (p *Publisher) PublishViewportChanged(ctx context.Context, status domain.ViewportStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ViewportSubject(status.Session), data, nats.Context(ctx))
	return err
}

// PublishPredictionsUpdated announces a newly installed prediction set.
func (p *Publisher) PublishPredictionsUpdated(ctx context.Context, summary domain.PredictionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPredictionsUpdated, data, nats.Context(ctx))
	return err
}

// Connected reports whether the underlying connection is up.
func (p *Publisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// ViewportSubject returns the subject for a session's viewport events.
// Subject tokens cannot contain dots or wildcards, so those are replaced.
func ViewportSubject(session string) string {
	if session == "" {
		session = "default"
	}
	return SubjectViewportPrefix + subjectToken.Replace(session)
}

var subjectToken = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("florascope"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
