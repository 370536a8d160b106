package geospatial

import (
	"math"

	"github.com/samirrijal/florascope/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Span returns the ground extent of a bounding box in kilometers.
// Width is measured along the box's middle latitude.
func Span(b domain.Bounds) (widthKm, heightKm float64) {
	midLat := (b.MinLat + b.MaxLat) / 2
	midLon := (b.MinLon + b.MaxLon) / 2
	widthKm = Haversine(midLat, b.MinLon, midLat, b.MaxLon) / 1000
	heightKm = Haversine(b.MinLat, midLon, b.MaxLat, midLon) / 1000
	return widthKm, heightKm
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
