package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/ports"
	"github.com/samirrijal/florascope/internal/pkg/geospatial"
	"github.com/samirrijal/florascope/internal/pkg/metrics"
)

// DefaultSession is used when a caller does not name a session.
const DefaultSession = "default"

// DefaultMaxSessions bounds the in-memory session registry.
const DefaultMaxSessions = 10000

var (
	ErrSessionNotFound = errors.New("viewport session not found")
	ErrTooManySessions = errors.New("too many viewport sessions")
)

// ViewportService manages per-session viewports against the region of interest.
type ViewportService struct {
	region      domain.Bounds
	publisher   ports.EventPublisher
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*RegionDetector
}

// NewViewportService creates a ViewportService with the default session installed.
// publisher may be nil.
func NewViewportService(region domain.Bounds, publisher ports.EventPublisher, maxSessions int) *ViewportService {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	s := &ViewportService{
		region:      region,
		publisher:   publisher,
		maxSessions: maxSessions,
		sessions:    make(map[string]*RegionDetector),
	}
	s.sessions[DefaultSession] = NewRegionDetector(region, domain.DefaultViewport)
	metrics.ActiveSessions.Set(1)
	return s
}

// Region returns the region of interest.
func (s *ViewportService) Region() domain.Bounds {
	return s.region
}

// CreateSession starts a new session at the default viewport.
func (s *ViewportService) CreateSession(ctx context.Context) (domain.ViewportStatus, error) {
	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return domain.ViewportStatus{}, ErrTooManySessions
	}
	id := uuid.NewString()
	d := NewRegionDetector(s.region, domain.DefaultViewport)
	s.sessions[id] = d
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	status := d.Status()
	status.Session = id
	return status, nil
}

// DeleteSession forgets a session. The default session cannot be deleted.
func (s *ViewportService) DeleteSession(ctx context.Context, session string) error {
	if session == "" || session == DefaultSession {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, session)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return nil
}

// Status returns the session's current viewport status.
func (s *ViewportService) Status(ctx context.Context, session string) (domain.ViewportStatus, error) {
	id, d, err := s.detector(session)
	if err != nil {
		return domain.ViewportStatus{}, err
	}
	status := d.Status()
	status.Session = id
	return status, nil
}

// SetViewport installs a new viewport (pan/zoom) for the session.
func (s *ViewportService) SetViewport(ctx context.Context, session string, v domain.Viewport) (domain.ViewportStatus, error) {
	id, d, err := s.detector(session)
	if err != nil {
		return domain.ViewportStatus{}, err
	}
	status := d.SetViewport(v)
	status.Session = id
	s.changed(ctx, "set", status)
	return status, nil
}

// FocusRegion snaps the session's viewport onto the region of interest.
func (s *ViewportService) FocusRegion(ctx context.Context, session string) (domain.ViewportStatus, error) {
	id, d, err := s.detector(session)
	if err != nil {
		return domain.ViewportStatus{}, err
	}
	status := d.FocusRegion()
	status.Session = id
	s.changed(ctx, "focus", status)
	return status, nil
}

// Evaluate computes the status of an arbitrary viewport without storing it.
func (s *ViewportService) Evaluate(v domain.Viewport) domain.ViewportStatus {
	b := geospatial.BoundsOf(v)
	return describe(v, b, geospatial.Overlaps(&b, &s.region), s.region)
}

func (s *ViewportService) detector(session string) (string, *RegionDetector, error) {
	if session == "" {
		session = DefaultSession
	}
	s.mu.RLock()
	d, ok := s.sessions[session]
	s.mu.RUnlock()
	if !ok {
		return session, nil, ErrSessionNotFound
	}
	return session, d, nil
}

func (s *ViewportService) changed(ctx context.Context, op string, status domain.ViewportStatus) {
	metrics.ViewportUpdates.WithLabelValues(op, strconv.FormatBool(status.OverlapsRegion)).Inc()

	slog.DebugContext(ctx, "viewport changed",
		"session", status.Session,
		"operation", op,
		"zoom", status.Viewport.Zoom,
		"overlaps_region", status.OverlapsRegion,
	)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishViewportChanged(ctx, status); err != nil {
		slog.WarnContext(ctx, "publish viewport change failed", "session", status.Session, "error", err)
	}
}
