package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/ports"
	"github.com/samirrijal/florascope/internal/pkg/metrics"
	"github.com/samirrijal/florascope/internal/pkg/projection"
)

// MaxPointsPageSize caps a single page of projected points.
const MaxPointsPageSize = 5000

// ErrNoPredictionSource is returned by Refresh when the service has no backend.
var ErrNoPredictionSource = errors.New("no prediction source configured")

// PredictionService holds the latest prediction payload and derives the
// scatter plot and monthly chart from it.
//
// The installed set is swapped atomically on every successful refresh and
// never mutated in place, so readers never observe a half-updated payload.
type PredictionService struct {
	source    ports.PredictionSource
	projector *projection.Projector
	publisher ports.EventPublisher

	current atomic.Pointer[domain.PredictionSet]

	refreshMu sync.Mutex
	errMu     sync.RWMutex
	lastErr   error

	now func() time.Time
}

// NewPredictionService creates a PredictionService serving the empty set until
// the first successful Refresh. publisher may be nil.
func NewPredictionService(source ports.PredictionSource, projector *projection.Projector, publisher ports.EventPublisher) *PredictionService {
	if projector == nil {
		projector = projection.NewProjector(projection.Config{Margin: projection.DefaultMargin})
	}
	s := &PredictionService{
		source:    source,
		projector: projector,
		publisher: publisher,
		now:       time.Now,
	}
	s.current.Store(domain.EmptyPredictionSet())
	return s
}

// Refresh fetches a new payload and installs it. On failure the previously
// installed set is kept and the error is remembered for Summary.
func (s *PredictionService) Refresh(ctx context.Context) (domain.PredictionSummary, error) {
	if s.source == nil {
		return s.Summary(), ErrNoPredictionSource
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	set, err := s.source.Fetch(ctx)
	metrics.PredictionFetchDuration.Observe(time.Since(start).Seconds())

	if err == nil && set == nil {
		err = errors.New("prediction source returned no payload")
	}
	if err != nil {
		metrics.PredictionFetches.WithLabelValues("error").Inc()
		s.setLastErr(err)
		slog.WarnContext(ctx, "prediction refresh failed, keeping previous set", "error", err)
		return s.Summary(), err
	}

	set = normalize(set, s.now())
	if err := projection.VerifyPeak(set); err != nil {
		metrics.PeakMismatches.Inc()
		slog.WarnContext(ctx, "backend peak month disagrees with monthly probabilities", "error", err)
	}

	s.current.Store(set)
	s.setLastErr(nil)
	metrics.PredictionFetches.WithLabelValues("success").Inc()

	summary := s.Summary()
	metrics.PredictionPoints.WithLabelValues("flowering").Set(float64(summary.FloweringCount))
	metrics.PredictionPoints.WithLabelValues("not_flowering").Set(float64(summary.Points - summary.FloweringCount))

	slog.InfoContext(ctx, "prediction set installed",
		"points", summary.Points,
		"flowering", summary.FloweringCount,
		"months", summary.Months,
		"peak_month", summary.PeakMonthName,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishPredictionsUpdated(ctx, summary); err != nil {
			slog.WarnContext(ctx, "publish predictions update failed", "error", err)
		}
	}
	return summary, nil
}

// Current returns the installed prediction set. Callers must not modify it.
func (s *PredictionService) Current() *domain.PredictionSet {
	return s.current.Load()
}

// Points returns one page of projected points and the total number of points.
func (s *PredictionService) Points(offset, limit int) (projection.ProjectedSet, int) {
	set := s.current.Load()
	total := len(set.Predictions)

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxPointsPageSize {
		limit = MaxPointsPageSize
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := s.projector.ProjectAll(set.Predictions[offset:end])
	page.NoData = page.NoData && total == 0
	return page, total
}

// Months returns the monthly probability chart. The backend's peak month is
// authoritative for the highlighted bar.
func (s *PredictionService) Months() domain.MonthlyChart {
	set := s.current.Load()
	return domain.MonthlyChart{
		Bars:          projection.BarHeights(set.MonthlyProbs, set.PeakMonth),
		PeakMonth:     set.PeakMonth,
		PeakMonthName: set.PeakMonthName,
	}
}

// Summary describes the installed set.
func (s *PredictionService) Summary() domain.PredictionSummary {
	set := s.current.Load()

	flowering := 0
	for _, p := range set.Predictions {
		if p.Label.IsFlowering() {
			flowering++
		}
	}

	summary := domain.PredictionSummary{
		Points:         len(set.Predictions),
		FloweringCount: flowering,
		Months:         len(set.MonthlyProbs),
		PeakMonth:      set.PeakMonth,
		PeakMonthName:  set.PeakMonthName,
		PeakAgrees:     projection.VerifyPeak(set) == nil,
		FetchedAt:      set.FetchedAt,
	}
	if local, ok := projection.PeakMonthIndex(set.MonthlyProbs); ok {
		summary.LocalPeakMonth = &local
	}
	if err := s.LastError(); err != nil {
		summary.LastError = err.Error()
	}
	return summary
}

// FeatureCollection renders the installed points as GeoJSON.
func (s *PredictionService) FeatureCollection() *geojson.FeatureCollection {
	set := s.current.Load()

	fc := geojson.NewFeatureCollection()
	for _, p := range set.Predictions {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["pred_flowering"] = int(p.Label)
		f.Properties["is_flowering"] = p.Label.IsFlowering()
		if p.Elevation != nil {
			f.Properties["elev"] = *p.Elevation
		}
		if p.Date != "" {
			f.Properties["date"] = p.Date
		}
		fc.Append(f)
	}
	return fc
}

// LastError returns the error of the most recent refresh, or nil if it succeeded.
func (s *PredictionService) LastError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErr
}

func (s *PredictionService) setLastErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// normalize fills in the defaults for fields the backend may omit.
func normalize(set *domain.PredictionSet, now time.Time) *domain.PredictionSet {
	out := *set
	if out.Predictions == nil {
		out.Predictions = []domain.PredictionPoint{}
	}
	if out.MonthlyProbs == nil {
		out.MonthlyProbs = []domain.MonthlyProbability{}
	}
	if out.PeakMonthName == "" {
		out.PeakMonthName = domain.NoPeakMonthName
	}
	if out.FetchedAt.IsZero() {
		out.FetchedAt = now
	}
	return &out
}
