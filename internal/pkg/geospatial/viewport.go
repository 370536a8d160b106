package geospatial

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/samirrijal/florascope/internal/core/domain"
)

const (
	// BaseLatSpan and BaseLonSpan are the spans covered at zoom 1,
	// calibrated for the Central Valley's aspect ratio.
	BaseLatSpan = 10.0
	BaseLonSpan = 15.0

	// MinZoom is the smallest zoom BoundsOf honours. Lower values are clamped.
	MinZoom = 1.0
)

// BoundsOf converts a viewport into the geographic box it displays.
// Each unit of zoom halves both spans. Zoom below MinZoom (or NaN) is treated
// as MinZoom, so the result is never wider than the base span and never inverted.
func BoundsOf(v domain.Viewport) domain.Bounds {
	zoom := v.Zoom
	if !(zoom >= MinZoom) {
		zoom = MinZoom
	}

	scale := math.Pow(2, zoom-1)
	latSpan := BaseLatSpan / scale
	lonSpan := BaseLonSpan / scale

	return domain.Bounds{
		MinLat: v.CenterLat - latSpan/2,
		MaxLat: v.CenterLat + latSpan/2,
		MinLon: v.CenterLon - lonSpan/2,
		MaxLon: v.CenterLon + lonSpan/2,
	}
}

// Overlaps reports whether two boxes share any area or boundary.
// A nil box never overlaps anything.
func Overlaps(a, b *domain.Bounds) bool {
	if a == nil || b == nil {
		return false
	}
	return toOrb(*a).Intersects(toOrb(*b))
}

// Centroid returns the centre of a bounding box.
func Centroid(b domain.Bounds) domain.GeoPoint {
	c := toOrb(b).Center()
	return domain.GeoPoint{Lat: c.Lat(), Lon: c.Lon()}
}

func toOrb(b domain.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}
