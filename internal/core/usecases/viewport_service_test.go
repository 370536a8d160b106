package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/geospatial"
)

func TestViewportService_DefaultSession(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)

	st, err := svc.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Session != usecases.DefaultSession {
		t.Errorf("expected session %q, got %q", usecases.DefaultSession, st.Session)
	}
	if !st.OverlapsRegion {
		t.Error("default session should start overlapping the region")
	}
}

func TestViewportService_CreateSession(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)

	created, err := svc.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Session == "" || created.Session == usecases.DefaultSession {
		t.Fatalf("expected a fresh session id, got %q", created.Session)
	}

	// Sessions are independent.
	if _, err := svc.SetViewport(context.Background(), created.Session, domain.Viewport{CenterLat: 60, CenterLon: 10, Zoom: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, _ := svc.Status(context.Background(), usecases.DefaultSession)
	if !def.OverlapsRegion {
		t.Error("changing one session leaked into the default session")
	}
	other, _ := svc.Status(context.Background(), created.Session)
	if other.OverlapsRegion {
		t.Error("session viewport was not applied")
	}
}

func TestViewportService_UnknownSession(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)

	_, err := svc.SetViewport(context.Background(), "nope", domain.DefaultViewport)
	if !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.FocusRegion(context.Background(), "nope"); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestViewportService_SessionCap(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 2)

	if _, err := svc.CreateSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateSession(context.Background()); !errors.Is(err, usecases.ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}
}

func TestViewportService_DeleteSession(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)
	st, _ := svc.CreateSession(context.Background())

	if err := svc.DeleteSession(context.Background(), st.Session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Status(context.Background(), st.Session); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected deleted session to be gone, got %v", err)
	}
	if err := svc.DeleteSession(context.Background(), usecases.DefaultSession); err != nil {
		t.Errorf("deleting the default session should be a no-op, got %v", err)
	}
	if _, err := svc.Status(context.Background(), usecases.DefaultSession); err != nil {
		t.Errorf("default session must survive: %v", err)
	}
}

func TestViewportService_PublishesChanges(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewViewportService(domain.CentralValley, pub, 0)

	_, _ = svc.SetViewport(context.Background(), "", domain.Viewport{CenterLat: 50, CenterLon: -100, Zoom: 4})
	_, _ = svc.FocusRegion(context.Background(), "")

	if len(pub.viewports) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.viewports))
	}
	if pub.viewports[0].OverlapsRegion {
		t.Error("first event should report no overlap")
	}
	if !pub.viewports[1].OverlapsRegion || pub.viewports[1].Viewport.Zoom != usecases.FocusZoom {
		t.Errorf("unexpected focus event %+v", pub.viewports[1])
	}
}

func TestViewportService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := usecases.NewViewportService(domain.CentralValley, pub, 0)

	st, err := svc.SetViewport(context.Background(), "", domain.Viewport{CenterLat: 37, CenterLon: -120, Zoom: 2})
	if err != nil {
		t.Fatalf("publish failure must not fail the update: %v", err)
	}
	if !st.OverlapsRegion {
		t.Error("expected overlap")
	}
}

func TestViewportService_Evaluate(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)

	st := svc.Evaluate(domain.Viewport{CenterLat: -33, CenterLon: 151, Zoom: 3})
	if st.OverlapsRegion {
		t.Error("Sydney should not overlap the Central Valley")
	}

	def, _ := svc.Status(context.Background(), "")
	if def.Viewport != domain.DefaultViewport {
		t.Error("Evaluate must not change stored viewports")
	}
}

func TestViewportService_FocusReportsItsOwnViewport(t *testing.T) {
	svc := usecases.NewViewportService(domain.CentralValley, nil, 0)
	ctx := context.Background()
	far := domain.Viewport{CenterLat: -40, CenterLon: 150, Zoom: 6}

	var wg sync.WaitGroup
	errs := make(chan string, 200)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.SetViewport(ctx, "", far)
		}()
		go func() {
			defer wg.Done()
			st, err := svc.FocusRegion(ctx, "")
			if err != nil {
				errs <- err.Error()
				return
			}
			if st.Viewport.Zoom != usecases.FocusZoom || !st.OverlapsRegion {
				errs <- fmt.Sprintf("focus returned another writer's viewport: %+v", st.Viewport)
			}
			if st.BoundingBox != geospatial.BoundsOf(st.Viewport) {
				errs <- fmt.Sprintf("bounds %+v out of sync with %+v", st.BoundingBox, st.Viewport)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
