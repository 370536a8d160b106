package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/usecases"
)

var validate = newValidator()

// newValidator reports field errors by their JSON/query names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// viewportRequest is the body of PUT /v1/viewport.
// Zoom has no range: values below 1 are clamped when the box is computed.
type viewportRequest struct {
	CenterLat *float64 `json:"center_lat" validate:"required,latitude"`
	CenterLon *float64 `json:"center_lon" validate:"required,longitude"`
	Zoom      *float64 `json:"zoom" validate:"required"`
}

func (r viewportRequest) viewport() domain.Viewport {
	return domain.Viewport{CenterLat: *r.CenterLat, CenterLon: *r.CenterLon, Zoom: *r.Zoom}
}

// boundsQuery holds the query parameters of GET /v1/bounds.
type boundsQuery struct {
	Lat  *float64 `query:"lat" validate:"required,latitude"`
	Lon  *float64 `query:"lon" validate:"required,longitude"`
	Zoom *float64 `query:"zoom" validate:"required"`
}

func (q boundsQuery) viewport() domain.Viewport {
	return domain.Viewport{CenterLat: *q.Lat, CenterLon: *q.Lon, Zoom: *q.Zoom}
}

// pointsQuery holds the pagination parameters of GET /v1/predictions/points.
type pointsQuery struct {
	Offset int `query:"offset" validate:"min=0"`
	Limit  int `query:"limit" validate:"min=0"`
}

func (q *pointsQuery) normalize() {
	if q.Limit <= 0 || q.Limit > usecases.MaxPointsPageSize {
		q.Limit = defaultPointsLimit
	}
}

const defaultPointsLimit = 1000
