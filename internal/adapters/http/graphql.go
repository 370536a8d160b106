package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/florascope/internal/core/domain"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
// Field names follow the JSON tags of the domain types, which graphql-go's
// default resolver reads.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"center_lat": &graphql.Field{Type: graphql.Float},
			"center_lon": &graphql.Field{Type: graphql.Float},
			"zoom":       &graphql.Field{Type: graphql.Float},
		},
	})

	viewportStatusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ViewportStatus",
		Fields: graphql.Fields{
			"session":         &graphql.Field{Type: graphql.String},
			"viewport":        &graphql.Field{Type: viewportType},
			"bounding_box":    &graphql.Field{Type: boundsType},
			"overlaps_region": &graphql.Field{Type: graphql.Boolean},
			"region":          &graphql.Field{Type: boundsType},
			"width_km":        &graphql.Field{Type: graphql.Float},
			"height_km":       &graphql.Field{Type: graphql.Float},
		},
	})

	regionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Region",
		Fields: graphql.Fields{
			"region":     &graphql.Field{Type: boundsType},
			"centroid":   &graphql.Field{Type: geoPointType},
			"focus_zoom": &graphql.Field{Type: graphql.Float},
		},
	})

	plotPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PlotPoint",
		Fields: graphql.Fields{
			"normalized_x": &graphql.Field{Type: graphql.Float},
			"normalized_y": &graphql.Field{Type: graphql.Float},
			"is_flowering": &graphql.Field{Type: graphql.Boolean},
			"lat":          &graphql.Field{Type: graphql.Float},
			"lon":          &graphql.Field{Type: graphql.Float},
		},
	})

	pointsPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointsPage",
		Fields: graphql.Fields{
			"points":  &graphql.Field{Type: graphql.NewList(plotPointType)},
			"no_data": &graphql.Field{Type: graphql.Boolean},
			"total":   &graphql.Field{Type: graphql.Int},
		},
	})

	monthBarType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MonthBar",
		Fields: graphql.Fields{
			"month":               &graphql.Field{Type: graphql.Int},
			"label":               &graphql.Field{Type: graphql.String},
			"prob":                &graphql.Field{Type: graphql.Float},
			"bar_height_fraction": &graphql.Field{Type: graphql.Float},
			"is_peak":             &graphql.Field{Type: graphql.Boolean},
		},
	})

	monthlyChartType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MonthlyChart",
		Fields: graphql.Fields{
			"bars":            &graphql.Field{Type: graphql.NewList(monthBarType)},
			"peak_month":      &graphql.Field{Type: graphql.Int},
			"peak_month_name": &graphql.Field{Type: graphql.String},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PredictionSummary",
		Fields: graphql.Fields{
			"points":           &graphql.Field{Type: graphql.Int},
			"flowering_count":  &graphql.Field{Type: graphql.Int},
			"months":           &graphql.Field{Type: graphql.Int},
			"peak_month":       &graphql.Field{Type: graphql.Int},
			"peak_month_name":  &graphql.Field{Type: graphql.String},
			"local_peak_month": &graphql.Field{Type: graphql.Int},
			"peak_agrees":      &graphql.Field{Type: graphql.Boolean},
			"fetched_at":       &graphql.Field{Type: graphql.DateTime},
			"last_error":       &graphql.Field{Type: graphql.String},
		},
	})

	sessionArg := graphql.FieldConfigArgument{
		"session": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: usecases.DefaultSession},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"region": &graphql.Field{
				Type:        regionType,
				Description: "The region of interest and its centroid",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					region := deps.Viewports.Region()
					return RegionResponse{
						Region:    region,
						Centroid:  geospatial.Centroid(region),
						FocusZoom: usecases.FocusZoom,
					}, nil
				},
			},
			"viewport": &graphql.Field{
				Type:        viewportStatusType,
				Description: "A session's current viewport",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, _ := p.Args["session"].(string)
					return deps.Viewports.Status(p.Context, session)
				},
			},
			"bounds": &graphql.Field{
				Type:        viewportStatusType,
				Description: "Evaluate a viewport without storing it",
				Args: graphql.FieldConfigArgument{
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Viewports.Evaluate(viewportArgs(p.Args)), nil
				},
			},
			"points": &graphql.Field{
				Type:        pointsPageType,
				Description: "Prediction points projected into display space",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPointsLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					offset, _ := p.Args["offset"].(int)
					limit, _ := p.Args["limit"].(int)
					page, total := deps.Predictions.Points(offset, limit)
					return map[string]interface{}{
						"points":  page.Points,
						"no_data": page.NoData,
						"total":   total,
					}, nil
				},
			},
			"months": &graphql.Field{
				Type:        monthlyChartType,
				Description: "Monthly flowering probability chart",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Predictions.Months(), nil
				},
			},
			"summary": &graphql.Field{
				Type:        summaryType,
				Description: "Summary of the installed prediction set",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Predictions.Summary(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"setViewport": &graphql.Field{
				Type:        viewportStatusType,
				Description: "Pan/zoom a session's viewport",
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: usecases.DefaultSession},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, _ := p.Args["session"].(string)
					return deps.Viewports.SetViewport(p.Context, session, viewportArgs(p.Args))
				},
			},
			"focusRegion": &graphql.Field{
				Type:        viewportStatusType,
				Description: "Centre a session's viewport on the region",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					session, _ := p.Args["session"].(string)
					return deps.Viewports.FocusRegion(p.Context, session)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func viewportArgs(args map[string]interface{}) domain.Viewport {
	lat, _ := args["lat"].(float64)
	lon, _ := args["lon"].(float64)
	zoom, _ := args["zoom"].(float64)
	return domain.Viewport{CenterLat: lat, CenterLon: lon, Zoom: zoom}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
