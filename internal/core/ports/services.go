package ports

import (
	"context"

	"github.com/samirrijal/florascope/internal/core/domain"
)

// PredictionSource fetches the latest prediction payload from the model backend.
type PredictionSource interface {
	Fetch(ctx context.Context) (*domain.PredictionSet, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishViewportChanged(ctx context.Context, status domain.ViewportStatus) error
	PublishPredictionsUpdated(ctx context.Context, summary domain.PredictionSummary) error
}
