package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/florascope/internal/core/domain"
)

// --- Mock PredictionSource ---

type mockSource struct {
	fetchFn func(ctx context.Context) (*domain.PredictionSet, error)
}

func (m *mockSource) Fetch(ctx context.Context) (*domain.PredictionSet, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return domain.EmptyPredictionSet(), nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu          sync.Mutex
	viewports   []domain.ViewportStatus
	predictions []domain.PredictionSummary
	err         error
}

func (m *mockPublisher) PublishViewportChanged(ctx context.Context, status domain.ViewportStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewports = append(m.viewports, status)
	return m.err
}

func (m *mockPublisher) PublishPredictionsUpdated(ctx context.Context, summary domain.PredictionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, summary)
	return m.err
}
