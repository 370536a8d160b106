package usecases

import (
	"sync"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/pkg/geospatial"
)

// FocusZoom is the zoom used when snapping to the region of interest.
// At this zoom the viewport box lies close to the region's own extent.
const FocusZoom = 3

// RegionDetector owns one viewport and the derived "overlaps region" flag.
// The flag is recomputed synchronously on every viewport write and has no
// setter of its own.
type RegionDetector struct {
	mu       sync.RWMutex
	region   domain.Bounds
	viewport domain.Viewport
	bounds   domain.Bounds
	overlaps bool
}

// NewRegionDetector creates a detector for region starting at the given viewport.
func NewRegionDetector(region domain.Bounds, initial domain.Viewport) *RegionDetector {
	d := &RegionDetector{region: region}
	d.install(initial)
	return d
}

// SetViewport replaces the viewport (pan/zoom) and returns the new status.
func (d *RegionDetector) SetViewport(v domain.Viewport) domain.ViewportStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.install(v)
	return d.statusLocked()
}

// FocusRegion centres the viewport on the region at FocusZoom and returns the
// resulting status.
func (d *RegionDetector) FocusRegion() domain.ViewportStatus {
	c := geospatial.Centroid(d.region)
	v := domain.Viewport{CenterLat: c.Lat, CenterLon: c.Lon, Zoom: FocusZoom}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.install(v)
	return d.statusLocked()
}

// Status returns the current viewport with its derived values.
func (d *RegionDetector) Status() domain.ViewportStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.statusLocked()
}

// OverlapsRegion reports whether the current viewport touches the region.
func (d *RegionDetector) OverlapsRegion() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.overlaps
}

// install must be the only place viewport, bounds and overlaps are written.
func (d *RegionDetector) install(v domain.Viewport) {
	d.viewport = v
	d.bounds = geospatial.BoundsOf(v)
	d.overlaps = geospatial.Overlaps(&d.bounds, &d.region)
}

func (d *RegionDetector) statusLocked() domain.ViewportStatus {
	return describe(d.viewport, d.bounds, d.overlaps, d.region)
}

func describe(v domain.Viewport, b domain.Bounds, overlaps bool, region domain.Bounds) domain.ViewportStatus {
	w, h := geospatial.Span(b)
	return domain.ViewportStatus{
		Viewport:       v,
		BoundingBox:    b,
		OverlapsRegion: overlaps,
		Region:         region,
		WidthKm:        w,
		HeightKm:       h,
	}
}
