package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/florascope/internal/adapters/http"
	"github.com/samirrijal/florascope/internal/adapters/predictor"
	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/projection"
)

// ---- Mocks ----

type mockSource struct {
	fetchFn func(ctx context.Context) (*domain.PredictionSet, error)
}

func (m *mockSource) Fetch(ctx context.Context) (*domain.PredictionSet, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return domain.EmptyPredictionSet(), nil
}

type mockUpstream struct {
	ready bool
}

func (m *mockUpstream) Ready() bool { return m.ready }
func (m *mockUpstream) BreakerState() string {
	if m.ready {
		return "closed"
	}
	return "open"
}

type mockEvents struct {
	connected bool
}

func (m *mockEvents) Connected() bool { return m.connected }

func samplePayload() *domain.PredictionSet {
	return &domain.PredictionSet{
		Predictions: []domain.PredictionPoint{
			{Lon: -121.2, Lat: 38.1, Label: domain.LabelFlowering},
			{Lon: -119.9, Lat: 36.4, Label: domain.LabelNotFlowering},
			{Lon: -120.5, Lat: 37.0, Label: domain.LabelFlowering},
		},
		MonthlyProbs: []domain.MonthlyProbability{
			{Month: 0, Prob: 0.2},
			{Month: 1, Prob: 0.8},
		},
		PeakMonth:     1,
		PeakMonthName: "Feb",
	}
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	projector := projection.NewProjector(projection.Config{Margin: 0.1, NoDataPlaceholder: true})
	d := &handler.Dependencies{
		Viewports:   usecases.NewViewportService(domain.CentralValley, nil, 0),
		Predictions: usecases.NewPredictionService(&mockSource{}, projector, nil),
		Upstream:    &mockUpstream{ready: true},
		RateLimit:   10000,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withPredictions(t *testing.T, set *domain.PredictionSet) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		projector := projection.NewProjector(projection.Config{Margin: 0.1, NoDataPlaceholder: true})
		d.Predictions = usecases.NewPredictionService(&mockSource{
			fetchFn: func(ctx context.Context) (*domain.PredictionSet, error) { return set, nil },
		}, projector, nil)
		if _, err := d.Predictions.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, out interface{}) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		if err := json.Unmarshal(readBody(t, resp.Body), out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// ---- Region & viewport ----

func TestRegion(t *testing.T) {
	app := setupApp(makeDeps())

	var result handler.RegionResponse
	if code := doJSON(t, app, "GET", "/v1/region", "", &result); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if result.Region != domain.CentralValley {
		t.Errorf("unexpected region %+v", result.Region)
	}
	if result.FocusZoom != usecases.FocusZoom {
		t.Errorf("expected focus zoom %d, got %v", usecases.FocusZoom, result.FocusZoom)
	}
}

func TestViewport_DefaultSession(t *testing.T) {
	app := setupApp(makeDeps())

	var st domain.ViewportStatus
	if code := doJSON(t, app, "GET", "/v1/viewport", "", &st); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !st.OverlapsRegion {
		t.Error("default viewport should overlap the region")
	}
	if st.BoundingBox.MinLat > 32.11 || st.BoundingBox.MaxLon < -113.11 {
		t.Errorf("unexpected default bbox %+v", st.BoundingBox)
	}
}

func TestViewport_PanAwayAndFocus(t *testing.T) {
	app := setupApp(makeDeps())

	var st domain.ViewportStatus
	code := doJSON(t, app, "PUT", "/v1/viewport", `{"center_lat": 48.0, "center_lon": -100.0, "zoom": 4}`, &st)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if st.OverlapsRegion {
		t.Error("viewport far from the region should not overlap")
	}

	if code := doJSON(t, app, "POST", "/v1/viewport/focus", "", &st); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !st.OverlapsRegion || st.Viewport.Zoom != usecases.FocusZoom {
		t.Errorf("unexpected focus result %+v", st)
	}
}

func TestViewport_Validation(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		name string
		body string
	}{
		{"missing zoom", `{"center_lat": 37, "center_lon": -120}`},
		{"latitude out of range", `{"center_lat": 97, "center_lon": -120, "zoom": 2}`},
		{"longitude out of range", `{"center_lat": 37, "center_lon": -190, "zoom": 2}`},
		{"not json", `zoom=2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr handler.APIError
			if code := doJSON(t, app, "PUT", "/v1/viewport", tt.body, &apiErr); code != 400 {
				t.Fatalf("expected 400, got %d", code)
			}
			if apiErr.Code != "validation_error" && apiErr.Code != "bad_request" {
				t.Errorf("unexpected error code %q", apiErr.Code)
			}
		})
	}
}

func TestViewport_ZoomBelowOneIsClamped(t *testing.T) {
	app := setupApp(makeDeps())

	var clamped, base domain.ViewportStatus
	doJSON(t, app, "PUT", "/v1/viewport", `{"center_lat": 37.1, "center_lon": -120.6, "zoom": 0.25}`, &clamped)
	doJSON(t, app, "PUT", "/v1/viewport", `{"center_lat": 37.1, "center_lon": -120.6, "zoom": 1}`, &base)

	if clamped.BoundingBox != base.BoundingBox {
		t.Errorf("zoom 0.25 should produce the zoom-1 box: %+v vs %+v", clamped.BoundingBox, base.BoundingBox)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	app := setupApp(makeDeps())

	var created domain.ViewportStatus
	if code := doJSON(t, app, "POST", "/v1/sessions", "", &created); code != 201 {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.Session == "" {
		t.Fatal("expected a session id")
	}

	var st domain.ViewportStatus
	if code := doJSON(t, app, "PUT", "/v1/viewport?session="+created.Session,
		`{"center_lat": -33.9, "center_lon": 151.2, "zoom": 6}`, &st); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if st.Session != created.Session || st.OverlapsRegion {
		t.Errorf("unexpected session status %+v", st)
	}

	req := httptest.NewRequest("DELETE", "/v1/sessions/"+created.Session, nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	if code := doJSON(t, app, "GET", "/v1/viewport?session="+created.Session, "", &apiErr); code != 404 {
		t.Fatalf("expected 404 for deleted session, got %d", code)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %q", apiErr.Code)
	}
}

func TestBounds(t *testing.T) {
	app := setupApp(makeDeps())

	var st domain.ViewportStatus
	if code := doJSON(t, app, "GET", "/v1/bounds?lat=37.1&lon=-120.6&zoom=1", "", &st); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !st.OverlapsRegion {
		t.Error("expected overlap")
	}

	if code := doJSON(t, app, "GET", "/v1/bounds?lat=37.1", "", nil); code != 400 {
		t.Errorf("expected 400 for missing lon/zoom, got %d", code)
	}
}

// ---- Predictions ----

func TestPoints_EmptyBeforeFetch(t *testing.T) {
	app := setupApp(makeDeps())

	var result handler.PointsResponse
	if code := doJSON(t, app, "GET", "/v1/predictions/points", "", &result); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if result.Data == nil || len(result.Data) != 0 {
		t.Errorf("expected empty data array, got %v", result.Data)
	}
	if !result.NoData {
		t.Error("expected no_data placeholder flag")
	}
}

func TestPoints_Pagination(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	req := httptest.NewRequest("GET", "/v1/predictions/points?offset=1&limit=1", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev/next links, got %q", link)
	}

	var result handler.PointsResponse
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 3 || len(result.Data) != 1 {
		t.Fatalf("expected 1 of 3 points, got %d of %d", len(result.Data), result.Pagination.Total)
	}
	p := result.Data[0]
	if p.NormalizedX < 0.1 || p.NormalizedX > 0.9 || p.NormalizedY < 0.1 || p.NormalizedY > 0.9 {
		t.Errorf("point outside display range: %+v", p)
	}
	if p.IsFlowering {
		t.Error("second point is not flowering")
	}
}

func TestMonths(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	var chart domain.MonthlyChart
	if code := doJSON(t, app, "GET", "/v1/predictions/months", "", &chart); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(chart.Bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(chart.Bars))
	}
	if chart.Bars[1].BarHeightFraction != 1 || !chart.Bars[1].IsPeak || chart.Bars[0].IsPeak {
		t.Errorf("unexpected bars %+v", chart.Bars)
	}
	if chart.PeakMonthName != "Feb" {
		t.Errorf("expected Feb, got %q", chart.PeakMonthName)
	}
}

func TestSummary_Defaults(t *testing.T) {
	app := setupApp(makeDeps())

	var summary domain.PredictionSummary
	if code := doJSON(t, app, "GET", "/v1/predictions/summary", "", &summary); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if summary.Points != 0 || summary.PeakMonth != 0 || summary.PeakMonthName != domain.NoPeakMonthName {
		t.Errorf("unexpected defaults %+v", summary)
	}
}

func TestGeoJSON(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	req := httptest.NewRequest("GET", "/v1/predictions/geojson", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 3 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if c := fc.Features[0].Geometry.Coordinates; c[0] != -121.2 || c[1] != 38.1 {
		t.Errorf("expected [lon, lat] order, got %v", c)
	}
}

func TestRefresh_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"breaker open", predictor.ErrUpstreamUnavailable, 503},
		{"bad status", predictor.ErrUpstreamStatus, 502},
		{"network", errors.New("connection refused"), 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := makeDeps(func(d *handler.Dependencies) {
				d.Predictions = usecases.NewPredictionService(&mockSource{
					fetchFn: func(ctx context.Context) (*domain.PredictionSet, error) { return nil, tt.err },
				}, nil, nil)
			})
			app := setupApp(deps)

			if code := doJSON(t, app, "POST", "/v1/predictions/refresh", "", nil); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRefresh_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Predictions = usecases.NewPredictionService(&mockSource{
			fetchFn: func(ctx context.Context) (*domain.PredictionSet, error) { return samplePayload(), nil },
		}, nil, nil)
	})
	app := setupApp(deps)

	var summary domain.PredictionSummary
	if code := doJSON(t, app, "POST", "/v1/predictions/refresh", "", &summary); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if summary.Points != 3 || summary.FloweringCount != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestLegacyPredict_Deprecated(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	req := httptest.NewRequest("GET", "/predict", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" || resp.Header.Get("Sunset") == "" {
		t.Error("expected deprecation headers")
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(readBody(t, resp.Body), &body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"predictions", "monthlyProbs", "peakMonth", "peakMonthName"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing backend key %q", key)
		}
	}
}

// ---- GraphQL ----

func TestGraphQL_ViewportAndSummary(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	query := `{"query": "mutation { setViewport(lat: 48, lon: -100, zoom: 4) { overlaps_region bounding_box { min_lat } } }"}`
	var result struct {
		Data struct {
			SetViewport struct {
				OverlapsRegion bool `json:"overlaps_region"`
			} `json:"setViewport"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if code := doJSON(t, app, "POST", "/graphql", query, &result); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.SetViewport.OverlapsRegion {
		t.Error("expected no overlap")
	}

	var summary struct {
		Data struct {
			Summary struct {
				Points     int  `json:"points"`
				PeakAgrees bool `json:"peak_agrees"`
			} `json:"summary"`
			Months struct {
				Bars []struct {
					IsPeak bool `json:"is_peak"`
				} `json:"bars"`
			} `json:"months"`
		} `json:"data"`
	}
	doJSON(t, app, "POST", "/graphql", `{"query": "{ summary { points peak_agrees } months { bars { is_peak } } }"}`, &summary)
	if summary.Data.Summary.Points != 3 || !summary.Data.Summary.PeakAgrees {
		t.Errorf("unexpected summary %+v", summary.Data.Summary)
	}
	if len(summary.Data.Months.Bars) != 2 || !summary.Data.Months.Bars[1].IsPeak {
		t.Errorf("unexpected bars %+v", summary.Data.Months.Bars)
	}
}

func TestGraphQL_EmptyQuery(t *testing.T) {
	app := setupApp(makeDeps())
	if code := doJSON(t, app, "POST", "/graphql", `{"query": ""}`, nil); code != 400 {
		t.Errorf("expected 400, got %d", code)
	}
}

// ---- Health & middleware ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	var body map[string]string
	if code := doJSON(t, app, "GET", "/v1/health", "", &body); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected status %q", body["status"])
	}
}

func TestReady_BreakerOpen(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Upstream = &mockUpstream{ready: false}
	}))

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if code := doJSON(t, app, "GET", "/v1/ready", "", &body); code != 503 {
		t.Fatalf("expected 503, got %d", code)
	}
	if !strings.Contains(body.Checks["upstream"], "open") {
		t.Errorf("unexpected upstream check %q", body.Checks["upstream"])
	}
}

func TestReady_OK(t *testing.T) {
	app := setupApp(makeDeps())
	if code := doJSON(t, app, "GET", "/v1/ready", "", nil); code != 200 {
		t.Errorf("expected 200, got %d", code)
	}
}

func TestReady_EventPublisher(t *testing.T) {
	tests := []struct {
		name      string
		events    handler.EventStatus
		wantCode  int
		wantCheck string
	}{
		{"not configured", nil, 200, "not configured"},
		{"connected", &mockEvents{connected: true}, 200, "ok"},
		{"disconnected", &mockEvents{connected: false}, 503, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(func(d *handler.Dependencies) {
				d.Events = tt.events
			}))

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if code := doJSON(t, app, "GET", "/v1/ready", "", &body); code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, code)
			}
			if body.Checks["nats_publisher"] != tt.wantCheck {
				t.Errorf("expected nats_publisher %q, got %q", tt.wantCheck, body.Checks["nats_publisher"])
			}
		})
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(withPredictions(t, samplePayload())))

	req := httptest.NewRequest("GET", "/v1/predictions/months", nil)
	resp, _ := app.Test(req, -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req = httptest.NewRequest("GET", "/v1/predictions/months", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCaching_ViewportIsNotStored(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/viewport", nil)
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("expected no-store, got %q", cc)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("no-store responses should not carry an ETag")
	}
}

func TestRateLimit(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.RateLimit = 2 }))

	var last int
	for i := 0; i < 3; i++ {
		last = doJSON(t, app, "GET", "/v1/region", "", nil)
	}
	if last != 429 {
		t.Errorf("expected 429 after exceeding the limit, got %d", last)
	}
}

func TestRequestID_InErrors(t *testing.T) {
	app := setupApp(makeDeps())

	var apiErr handler.APIError
	doJSON(t, app, "GET", "/v1/viewport?session=missing", "", &apiErr)
	if apiErr.RequestID == "" {
		t.Error("expected request id in error body")
	}
	if apiErr.Status != 404 {
		t.Errorf("expected status 404 in body, got %d", apiErr.Status)
	}
}
