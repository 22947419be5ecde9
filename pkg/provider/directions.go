package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// Routing profiles understood by the directions endpoint.
const (
	ProfileWalking        = "walking"
	ProfileCycling        = "cycling"
	ProfileDriving        = "driving"
	ProfileDrivingTraffic = "driving-traffic"
)

// ValidProfile reports whether p is a known routing profile.
func ValidProfile(p string) bool {
	switch p {
	case ProfileWalking, ProfileCycling, ProfileDriving, ProfileDrivingTraffic:
		return true
	}
	return false
}

// Route is the validated best route between two points.
type Route struct {
	Profile        string            `json:"profile"`
	Distance       float64           `json:"distance"` // metres
	Duration       float64           `json:"duration"` // seconds
	Summary        string            `json:"summary,omitempty"`
	Geometry       *geojson.Geometry `json:"geometry,omitempty"`
	GeometryLength float64           `json:"geometryLength,omitempty"` // metres along the geometry
	BBox           *[4]float64       `json:"bbox,omitempty"`
	Cached         bool              `json:"cached"`
}

// Path returns the route line, or nil when the provider sent no geometry.
func (r *Route) Path() orb.LineString {
	if r.Geometry == nil {
		return nil
	}
	ls, _ := r.Geometry.Geometry().(orb.LineString)
	return ls
}

// clone copies r deeply so cached entries never share memory with callers.
func (r *Route) clone() *Route {
	out := *r
	if ls := r.Path(); ls != nil {
		out.Geometry = geojson.NewGeometry(ls.Clone())
	}
	if r.BBox != nil {
		b := *r.BBox
		out.BBox = &b
	}
	return &out
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
		Geometry *geojson.Geometry `json:"geometry"`
		Legs     []struct {
			Summary string `json:"summary"`
		} `json:"legs"`
	} `json:"routes"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// decodeDirectionsResponse validates a directions payload and keeps the first route.
func decodeDirectionsResponse(profile string, body []byte) (*Route, error) {
	var dr directionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, core.NewError(core.ErrParseError, "directions response is not valid JSON").WithCause(err)
	}

	switch dr.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, core.NewError(core.ErrNoRoute, "no route found between the given points").
			WithGuidance("Move the points closer to a road or path, or try another mode")
	default:
		msg := dr.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected response code %q", dr.Code)
		}
		return nil, core.ServiceError(tracing.ServiceDirections, http.StatusUnprocessableEntity, msg)
	}

	if len(dr.Routes) == 0 {
		return nil, core.NewError(core.ErrNoRoute, "no route found between the given points")
	}

	best := dr.Routes[0]
	if !finite(best.Distance) || !finite(best.Duration) || best.Distance < 0 || best.Duration < 0 {
		return nil, core.NewError(core.ErrParseError, "route has an invalid distance or duration")
	}

	route := &Route{
		Profile:  profile,
		Distance: best.Distance,
		Duration: best.Duration,
	}
	if len(best.Legs) > 0 {
		route.Summary = best.Legs[0].Summary
	}

	if best.Geometry != nil {
		ls, ok := best.Geometry.Geometry().(orb.LineString)
		if !ok {
			return nil, core.NewError(core.ErrParseError, "route geometry is not a LineString")
		}
		route.Geometry = best.Geometry
		route.GeometryLength = core.Round(geo.Length(ls), 1)
		b := ls.Bound()
		route.BBox = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	}

	return route, nil
}

// Directions fetches the best route from start to end for profile.
func (c *Client) Directions(ctx context.Context, start, end core.Coordinate, profile string) (*Route, error) {
	if err := start.Validate(); err != nil {
		return nil, core.AsError(err).WithField("start")
	}
	if err := end.Validate(); err != nil {
		return nil, core.AsError(err).WithField("end")
	}
	if !ValidProfile(profile) {
		return nil, core.NewValidationError("profile", fmt.Sprintf("unknown routing profile %q", profile))
	}

	ctx, span := tracing.StartSpan(ctx, "provider.directions",
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderService, tracing.ServiceDirections),
			attribute.String(tracing.AttrProviderProfile, profile),
		))
	defer span.End()

	key, keyErr := cache.DirectionsKey(start, end, profile)
	if keyErr == nil && c.directionsCache != nil {
		v, ok := c.directionsCache.Get(key)
		tracing.SetAttributes(ctx, tracing.CacheAttributes(c.directionsCache.Name(), ok)...)
		if ok {
			hit := v.clone()
			hit.Cached = true
			return hit, nil
		}
	}

	if err := c.requireToken(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	q.Set("steps", "false")
	path := fmt.Sprintf("/directions/v5/mapbox/%s/%s;%s", profile, start.String(), end.String())

	body, status, err := c.get(ctx, tracing.ServiceDirections, profile, c.endpoint(path, q))
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	// NoRoute arrives as 200 or 422 depending on the deployment
	if status != http.StatusOK && status != http.StatusUnprocessableEntity {
		err := rejected(tracing.ServiceDirections, status, body)
		tracing.RecordError(ctx, err)
		return nil, err
	}

	route, err := decodeDirectionsResponse(profile, body)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	c.logger.Debug("fetched directions",
		"profile", profile,
		"distance_m", route.Distance,
		"duration_s", route.Duration,
	)

	if keyErr == nil && c.directionsCache != nil {
		c.directionsCache.Set(key, *route.clone())
	}
	return route, nil
}
