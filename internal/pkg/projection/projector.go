// Package projection places prediction points in display space and turns
// monthly probabilities into chart bars.
//
// The point projection is a heuristic scatter, not a map projection. Longitude
// and latitude are scaled linearly, folded into a repeating 100-unit tile and
// remapped into a display sub-range. Nearby sites end up visually separated,
// while distances and directions are not preserved. Replace Project wholesale
// if geographic accuracy is ever required.
package projection

import (
	"math"

	"github.com/samirrijal/florascope/internal/core/domain"
)

const (
	originLon = -122.3
	originLat = 40.5
	lonScale  = 200.0
	latScale  = 300.0
	tileSize  = 100.0

	// DefaultMargin keeps projected points off the display edges.
	DefaultMargin = 0.1
)

// Config selects between the dashboard's two projector variants.
type Config struct {
	// Margin is the fraction of the display left empty on each side, in [0, 0.5).
	Margin float64
	// NoDataPlaceholder marks empty projections so the UI can show a placeholder.
	NoDataPlaceholder bool
}

// Projector maps prediction points into normalized display coordinates.
type Projector struct {
	margin      float64
	placeholder bool
}

// ProjectedSet is the projector's output for one prediction set.
type ProjectedSet struct {
	Points []domain.PlotPoint `json:"points"`
	NoData bool               `json:"no_data"`
}

// NewProjector creates a Projector. An out-of-range margin falls back to DefaultMargin.
func NewProjector(cfg Config) *Projector {
	margin := cfg.Margin
	if !(margin >= 0 && margin < 0.5) {
		margin = DefaultMargin
	}
	return &Projector{margin: margin, placeholder: cfg.NoDataPlaceholder}
}

// Project maps one point into [0,1]x[0,1].
func (p *Projector) Project(pt domain.PredictionPoint) domain.NormalizedCoordinate {
	rawX := fold((pt.Lon - originLon) * lonScale)
	rawY := fold((originLat - pt.Lat) * latScale)

	return domain.NormalizedCoordinate{
		X: p.remap(rawX),
		Y: p.remap(rawY),
	}
}

// ProjectAll projects every point. An empty input yields an empty, non-nil slice.
func (p *Projector) ProjectAll(points []domain.PredictionPoint) ProjectedSet {
	out := make([]domain.PlotPoint, 0, len(points))
	for _, pt := range points {
		c := p.Project(pt)
		out = append(out, domain.PlotPoint{
			NormalizedX: c.X,
			NormalizedY: c.Y,
			IsFlowering: pt.Label.IsFlowering(),
			Lat:         pt.Lat,
			Lon:         pt.Lon,
		})
	}
	return ProjectedSet{
		Points: out,
		NoData: p.placeholder && len(out) == 0,
	}
}

// fold reduces v into [0, tileSize). Non-finite input folds to 0.
func fold(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	m := math.Mod(v, tileSize)
	if m < 0 {
		m += tileSize
	}
	return m
}

func (p *Projector) remap(raw float64) float64 {
	n := p.margin + raw/tileSize*(1-2*p.margin)
	return math.Min(1, math.Max(0, n))
}
