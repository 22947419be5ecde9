package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
)

// GeocodeTool returns the geocode tool definition.
func GeocodeTool() mcp.Tool {
	return mcp.NewTool("geocode",
		mcp.WithDescription("Convert an address or place name into coordinates. Results are cached"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Address or place name to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (1-10)"),
			mcp.Min(1),
			mcp.Max(provider.MaxGeocodeLimit),
		),
		mcp.WithString("proximity",
			mcp.Description("Bias results towards \"lng,lat\""),
		),
		mcp.WithString("bbox",
			mcp.Description("Restrict results to \"minLng,minLat,maxLng,maxLat\""),
		),
		mcp.WithArray("types",
			mcp.Description("Feature types to include, e.g. address, place, poi"),
			mcp.WithStringItems(),
		),
	)
}

// HandleGeocode performs forward geocoding.
func (r *Registry) HandleGeocode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return ErrorResult(core.NewValidationError("query", "query must not be empty")), nil
	}

	opts := provider.GeocodeOptions{
		Limit: int(req.GetFloat("limit", 0)),
		Types: req.GetStringSlice("types", nil),
	}
	if s := req.GetString("proximity", ""); s != "" {
		p, err := core.ParseCoordinate("proximity", s)
		if err != nil {
			return ErrorResult(err), nil
		}
		opts.Proximity = &p
	}
	if s := req.GetString("bbox", ""); s != "" {
		bbox, err := core.ParseBBox(s)
		if err != nil {
			return ErrorResult(err), nil
		}
		opts.BBox = &bbox
	}

	result, err := r.geocoder.Geocode(ctx, query, opts)
	if err != nil {
		r.logger.Warn("geocode failed", "tool", "geocode", "error", err)
		return ErrorResult(err), nil
	}
	return JSONResult(result), nil
}

// ReverseGeocodeTool returns the reverse_geocode tool definition.
func ReverseGeocodeTool() mcp.Tool {
	return mcp.NewTool("reverse_geocode",
		mcp.WithDescription("Find the address and country/region context of a coordinate. Results are cached"),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Latitude in decimal degrees"),
			mcp.Min(-90),
			mcp.Max(90),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Longitude in decimal degrees"),
			mcp.Min(-180),
			mcp.Max(180),
		),
	)
}

// HandleReverseGeocode performs reverse geocoding.
func (r *Registry) HandleReverseGeocode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return ErrorResult(core.NewValidationError("latitude", err.Error())), nil
	}
	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return ErrorResult(core.NewValidationError("longitude", err.Error())), nil
	}
	at, err := coordinate("coordinate", lat, lon)
	if err != nil {
		return ErrorResult(err), nil
	}

	result, err := r.geocoder.ReverseGeocode(ctx, at)
	if err != nil {
		return ErrorResult(err), nil
	}
	return JSONResult(result), nil
}

func withEndpoints(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithNumber("start_lat", mcp.Required(), mcp.Description("Start latitude")),
		mcp.WithNumber("start_lon", mcp.Required(), mcp.Description("Start longitude")),
		mcp.WithNumber("end_lat", mcp.Required(), mcp.Description("End latitude")),
		mcp.WithNumber("end_lon", mcp.Required(), mcp.Description("End longitude")),
	)
}

type endpointsInput struct {
	StartLat *float64 `json:"start_lat"`
	StartLon *float64 `json:"start_lon"`
	EndLat   *float64 `json:"end_lat"`
	EndLon   *float64 `json:"end_lon"`
}

func (in endpointsInput) coordinates() (core.Coordinate, core.Coordinate, error) {
	if in.StartLat == nil || in.StartLon == nil {
		return core.Coordinate{}, core.Coordinate{}, core.NewValidationError("start", "start_lat and start_lon are required")
	}
	if in.EndLat == nil || in.EndLon == nil {
		return core.Coordinate{}, core.Coordinate{}, core.NewValidationError("end", "end_lat and end_lon are required")
	}
	start, err := coordinate("start", *in.StartLat, *in.StartLon)
	if err != nil {
		return start, core.Coordinate{}, err
	}
	end, err := coordinate("end", *in.EndLat, *in.EndLon)
	return start, end, err
}

// DirectionsTool returns the directions tool definition.
func DirectionsTool() mcp.Tool {
	return mcp.NewTool("directions", withEndpoints(
		mcp.WithDescription("Fetch the best route between two points for a routing profile. Results are cached"),
		mcp.WithString("profile",
			mcp.Description("Routing profile"),
			mcp.Enum(provider.ProfileWalking, provider.ProfileCycling, provider.ProfileDriving, provider.ProfileDrivingTraffic),
			mcp.DefaultString(provider.ProfileDriving),
		),
	)...)
}

type directionsInput struct {
	endpointsInput
	Profile string `json:"profile,omitempty"`
}

// HandleDirections fetches one route.
func (r *Registry) HandleDirections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := InputParser[directionsInput](req)
	if err != nil {
		return ErrorResult(err), nil
	}
	start, end, err := input.coordinates()
	if err != nil {
		return ErrorResult(err), nil
	}
	profile := input.Profile
	if profile == "" {
		profile = provider.ProfileDriving
	}

	route, err := r.routes.Directions(ctx, start, end, profile)
	if err != nil {
		return ErrorResult(err), nil
	}
	return JSONResult(route), nil
}

// CompareRoutesTool returns the compare_routes tool definition.
func CompareRoutesTool() mcp.Tool {
	return mcp.NewTool("compare_routes", withEndpoints(
		mcp.WithDescription("Fetch real routes between two points for several transport modes and compare their emissions, cost and health impact"),
		mcp.WithArray("modes",
			mcp.Description("Modes to compare. Defaults to all modes"),
			mcp.WithStringEnumItems(emissions.ModeNames()),
		),
		mcp.WithString("country",
			mcp.Description("Optional country code for fuel prices. When omitted the origin is reverse geocoded"),
		),
		mcp.WithString("region",
			mcp.Description("Optional region or state name for fuel prices"),
		),
	)...)
}

type compareRoutesInput struct {
	endpointsInput
	Modes []string `json:"modes,omitempty"`
	LocationInput
}

// HandleCompareRoutes compares real routes across modes.
func (r *Registry) HandleCompareRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := InputParser[compareRoutesInput](req)
	if err != nil {
		return ErrorResult(err), nil
	}
	start, end, err := input.coordinates()
	if err != nil {
		return ErrorResult(err), nil
	}
	modes, err := ParseModesOrAll(input.Modes)
	if err != nil {
		return ErrorResult(err), nil
	}

	loc := input.Context()
	comparison, err := r.planner.CompareRoutes(ctx, planner.Request{
		From:            start,
		To:              end,
		Modes:           modes,
		Location:        loc,
		ResolveLocation: loc == nil,
	})
	if err != nil {
		return ErrorResult(err), nil
	}
	for _, m := range comparison.Routes {
		monitoring.RecordMetricsCalculation(string(m.Mode), string(m.EnvironmentalRating), m.CarbonEmissions)
	}
	return JSONResult(comparison), nil
}
