package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box in degrees.
// Both axes are closed intervals: MinLat <= MaxLat and MinLon <= MaxLon.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// CentralValley is the flowering detection region (California's Central Valley).
var CentralValley = Bounds{
	MinLon: -122.6, MaxLon: -118.6,
	MinLat: 35.0, MaxLat: 39.2,
}

// Viewport is the user's current map view.
// Larger zoom values cover a smaller geographic span.
type Viewport struct {
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
	Zoom      float64 `json:"zoom"`
}

// DefaultViewport is the whole-region view every session starts with.
var DefaultViewport = Viewport{CenterLat: 37.1, CenterLon: -120.6, Zoom: 1}

// ViewportStatus is what the presentation layer receives after every viewport change.
type ViewportStatus struct {
	Session        string   `json:"session"`
	Viewport       Viewport `json:"viewport"`
	BoundingBox    Bounds   `json:"bounding_box"`
	OverlapsRegion bool     `json:"overlaps_region"`
	Region         Bounds   `json:"region"`
	WidthKm        float64  `json:"width_km"`
	HeightKm       float64  `json:"height_km"`
}
