package tools

import (
	"context"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// RouteMetricsTool returns the route_metrics tool definition.
func RouteMetricsTool() mcp.Tool {
	return mcp.NewTool("route_metrics",
		mcp.WithDescription("Calculate carbon emissions, cost, calories and an A-E environmental rating for a trip"),
		mcp.WithNumber("distance",
			mcp.Required(),
			mcp.Description("Trip distance in metres"),
			mcp.Min(0),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Transport mode"),
			mcp.Enum(emissions.ModeNames()...),
		),
		mcp.WithNumber("duration",
			mcp.Description("Optional trip duration in seconds"),
			mcp.Min(0),
		),
		mcp.WithString("country",
			mcp.Description("Optional ISO 3166-1 alpha-2 country code used for fuel prices"),
		),
		mcp.WithString("region",
			mcp.Description("Optional region or state name used for fuel prices"),
		),
	)
}

type routeMetricsInput struct {
	Distance *float64 `json:"distance"`
	Mode     string   `json:"mode"`
	Duration *float64 `json:"duration,omitempty"`
	LocationInput
}

// HandleRouteMetrics computes the metrics of a single trip.
func (r *Registry) HandleRouteMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "route_metrics")

	input, err := InputParser[routeMetricsInput](req)
	if err != nil {
		return ErrorResult(err), nil
	}
	if input.Distance == nil {
		return ErrorResult(core.NewValidationError("distance", "distance is required")), nil
	}
	mode, err := emissions.ParseMode(input.Mode)
	if err != nil {
		return ErrorResult(err), nil
	}

	metrics, err := r.calc.CalculateMetrics(emissions.MetricsRequest{
		Distance: *input.Distance,
		Mode:     mode,
		Duration: input.Duration,
		Location: input.Context(),
	})
	if err != nil {
		logger.Debug("metrics rejected", "error", err)
		return ErrorResult(err), nil
	}
	monitoring.RecordMetricsCalculation(string(mode), string(metrics.EnvironmentalRating), metrics.CarbonEmissions)
	tracing.SetAttributes(ctx, tracing.MetricsAttributes(string(mode), metrics.Details.DistanceKm, string(metrics.EnvironmentalRating))...)

	return JSONResult(metrics), nil
}

// CompareModesTool returns the compare_modes tool definition.
func CompareModesTool() mcp.Tool {
	return mcp.NewTool("compare_modes",
		mcp.WithDescription("Compare transport modes over the same distance, ordered from lowest to highest emissions"),
		mcp.WithNumber("distance",
			mcp.Required(),
			mcp.Description("Trip distance in metres"),
			mcp.Min(0),
		),
		mcp.WithArray("modes",
			mcp.Required(),
			mcp.Description("Modes to compare, at least one"),
			mcp.WithStringEnumItems(emissions.ModeNames()),
		),
		mcp.WithString("country",
			mcp.Description("Optional ISO 3166-1 alpha-2 country code used for fuel prices"),
		),
		mcp.WithString("region",
			mcp.Description("Optional region or state name used for fuel prices"),
		),
	)
}

type compareModesInput struct {
	Distance *float64 `json:"distance"`
	Modes    []string `json:"modes,omitempty"`
	LocationInput
}

// HandleCompareModes compares modes over one distance.
func (r *Registry) HandleCompareModes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := InputParser[compareModesInput](req)
	if err != nil {
		return ErrorResult(err), nil
	}
	if input.Distance == nil {
		return ErrorResult(core.NewValidationError("distance", "distance is required")), nil
	}
	modes, err := ParseModes(input.Modes)
	if err != nil {
		return ErrorResult(err), nil
	}

	comparison, err := r.calc.CompareModes(emissions.CompareRequest{
		Distance: *input.Distance,
		Modes:    modes,
		Location: input.Context(),
	})
	if err != nil {
		return ErrorResult(err), nil
	}
	for _, m := range comparison.Modes {
		monitoring.RecordMetricsCalculation(string(m.Mode), string(m.EnvironmentalRating), m.CarbonEmissions)
	}

	return JSONResult(comparison), nil
}

// TransportRecommendationsTool returns the transport_recommendations tool definition.
func TransportRecommendationsTool() mcp.Tool {
	return mcp.NewTool("transport_recommendations",
		mcp.WithDescription("Suggest transport modes to use and to avoid for a trip length"),
		mcp.WithNumber("distance_km",
			mcp.Required(),
			mcp.Description("Trip distance in kilometres"),
			mcp.Min(0),
		),
	)
}

// HandleTransportRecommendations bands a distance into mode suggestions.
func (r *Registry) HandleTransportRecommendations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	km, err := req.RequireFloat("distance_km")
	if err != nil {
		return ErrorResult(core.NewValidationError("distance_km", err.Error())), nil
	}
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return ErrorResult(core.NewValidationError("distance_km", "distance_km must be a finite non-negative number")), nil
	}
	return JSONResult(emissions.GetRecommendations(km)), nil
}

// GasPriceTool returns the gas_price tool definition.
func GasPriceTool() mcp.Tool {
	return mcp.NewTool("gas_price",
		mcp.WithDescription("Look up the fuel price for a location and the resulting per-kilometre driving cost range"),
		mcp.WithString("country",
			mcp.Description("ISO 3166-1 alpha-2 country code. Omit for the global default"),
		),
		mcp.WithString("region",
			mcp.Description("Region or state name, e.g. Texas"),
		),
	)
}

// GasPriceResult is returned by the gas_price tool and REST endpoint.
type GasPriceResult struct {
	Location       *gasprice.LocationContext `json:"location,omitempty"`
	PricePerGallon float64                   `json:"pricePerGallon"`
	Match          gasprice.Match            `json:"match"`
	CostPerKm      gasprice.CostRange        `json:"costPerKm"`
}

// LookupGasPrice resolves price and per-km cost range for loc.
func LookupGasPrice(table *gasprice.Table, loc *gasprice.LocationContext) GasPriceResult {
	price, match := table.Lookup(loc)
	return GasPriceResult{
		Location:       loc,
		PricePerGallon: price,
		Match:          match,
		CostPerKm:      table.CostRange(loc),
	}
}

// HandleGasPrice reports the price table entry used for a location.
func (r *Registry) HandleGasPrice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc := LocationInput{
		Country: req.GetString("country", ""),
		Region:  req.GetString("region", ""),
	}
	if loc.Country == "" && loc.Region != "" {
		return ErrorResult(core.NewValidationError("country", "country is required when region is given")), nil
	}
	return JSONResult(LookupGasPrice(r.calc.Prices(), loc.Context())), nil
}
