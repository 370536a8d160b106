package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/florascope/internal/adapters/predictor"
	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/geospatial"
)

// RegionResponse describes the region of interest.
type RegionResponse struct {
	Region    domain.Bounds   `json:"region"`
	Centroid  domain.GeoPoint `json:"centroid"`
	FocusZoom float64         `json:"focus_zoom"`
}

// PointsResponse is one page of projected prediction points.
type PointsResponse struct {
	Data       []domain.PlotPoint `json:"data"`
	NoData     bool               `json:"no_data"`
	Pagination Pagination         `json:"pagination"`
}

// RegionHandler returns the region of interest and its centroid.
func RegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region := deps.Viewports.Region()
		return c.JSON(RegionResponse{
			Region:    region,
			Centroid:  geospatial.Centroid(region),
			FocusZoom: usecases.FocusZoom,
		})
	}
}

// CreateSessionHandler starts a new viewport session at the default view.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Viewports.CreateSession(c.UserContext())
		if err != nil {
			return viewportError(c, err)
		}
		c.Location("/v1/viewport?session=" + st.Session)
		return c.Status(fiber.StatusCreated).JSON(st)
	}
}

// DeleteSessionHandler forgets a viewport session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Viewports.DeleteSession(c.UserContext(), c.Params("id")); err != nil {
			return viewportError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetViewportHandler returns the session's viewport, bounding box and region flag.
func GetViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Viewports.Status(c.UserContext(), c.Query("session"))
		if err != nil {
			return viewportError(c, err)
		}
		return c.JSON(st)
	}
}

// SetViewportHandler applies a pan/zoom to the session's viewport.
func SetViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req viewportRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errValidation(c, err)
		}

		st, err := deps.Viewports.SetViewport(c.UserContext(), c.Query("session"), req.viewport())
		if err != nil {
			return viewportError(c, err)
		}
		return c.JSON(st)
	}
}

// FocusRegionHandler snaps the session's viewport onto the region of interest.
func FocusRegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Viewports.FocusRegion(c.UserContext(), c.Query("session"))
		if err != nil {
			return viewportError(c, err)
		}
		return c.JSON(st)
	}
}

// BoundsHandler evaluates an arbitrary viewport without storing it.
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q boundsQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "lat, lon and zoom must be numbers")
		}
		if err := validate.Struct(q); err != nil {
			return errValidation(c, err)
		}
		return c.JSON(deps.Viewports.Evaluate(q.viewport()))
	}
}

// PointsHandler returns one page of prediction points in display space.
func PointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q pointsQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "offset and limit must be integers")
		}
		if err := validate.Struct(q); err != nil {
			return errValidation(c, err)
		}
		q.normalize()

		page, total := deps.Predictions.Points(q.Offset, q.Limit)
		pg := Pagination{Offset: q.Offset, Limit: q.Limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PointsResponse{Data: page.Points, NoData: page.NoData, Pagination: pg})
	}
}

// MonthsHandler returns the monthly probability chart.
func MonthsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Predictions.Months())
	}
}

// SummaryHandler describes the installed prediction set.
func SummaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Predictions.Summary())
	}
}

// GeoJSONHandler returns the prediction points as a GeoJSON FeatureCollection.
func GeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := deps.Predictions.FeatureCollection().MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}

// RefreshHandler refetches the prediction payload from the model backend.
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := deps.Predictions.Refresh(c.UserContext())
		switch {
		case err == nil:
			return c.JSON(summary)
		case errors.Is(err, usecases.ErrNoPredictionSource), errors.Is(err, predictor.ErrUpstreamUnavailable):
			c.Set(fiber.HeaderRetryAfter, "30")
			return errUnavailable(c, err.Error())
		default:
			return errBadGateway(c, err.Error())
		}
	}
}

// LegacyPredictHandler serves the installed set in the model backend's own
// shape, for dashboards that still poll /predict.
func LegacyPredictHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Predictions.Current())
	}
}

func viewportError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecases.ErrSessionNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, usecases.ErrTooManySessions):
		return errTooManyRequests(c, err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
