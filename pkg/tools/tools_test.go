package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
)

type fakeGeocoder struct {
	query string
	opts  provider.GeocodeOptions
	err   error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string, opts provider.GeocodeOptions) (*provider.GeocodeResult, error) {
	f.query, f.opts = query, opts
	if f.err != nil {
		return nil, f.err
	}
	return &provider.GeocodeResult{Query: query, Places: []provider.Place{{Name: "Austin"}}}, nil
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, at core.Coordinate) (*provider.GeocodeResult, error) {
	return &provider.GeocodeResult{Query: at.String()}, f.err
}

type fakeRoutes struct {
	profile string
	err     error
}

func (f *fakeRoutes) Directions(ctx context.Context, start, end core.Coordinate, profile string) (*provider.Route, error) {
	f.profile = profile
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Route{Profile: profile, Distance: 1200, Duration: 300}, nil
}

type fakePlanner struct {
	req planner.Request
}

func (f *fakePlanner) CompareRoutes(ctx context.Context, req planner.Request) (*planner.Comparison, error) {
	f.req = req
	return &planner.Comparison{}, nil
}

func newRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func errorCode(t *testing.T, result *mcp.CallToolResult) core.ErrorCode {
	t.Helper()
	require.True(t, result.IsError, "expected an error result")
	var e core.Error
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &e))
	return e.Code
}

func TestHandleRouteMetrics(t *testing.T) {
	r := NewRegistry(Deps{}, nil)

	tests := []struct {
		name     string
		args     map[string]any
		wantCode core.ErrorCode
		check    func(t *testing.T, m emissions.RouteMetrics)
	}{
		{
			name: "driving",
			args: map[string]any{"distance": 10000.0, "mode": "driving"},
			check: func(t *testing.T, m emissions.RouteMetrics) {
				assert.Equal(t, 1.8, m.CarbonEmissions)
				assert.Equal(t, 1.5, m.EstimatedCost)
				assert.Equal(t, emissions.RatingD, m.EnvironmentalRating)
				assert.Nil(t, m.Calories)
			},
		},
		{
			name: "driving priced in texas",
			args: map[string]any{"distance": 10000.0, "mode": "driving", "country": "us", "region": "Texas"},
			check: func(t *testing.T, m emissions.RouteMetrics) {
				require.NotNil(t, m.CostRange)
				assert.Equal(t, m.CostRange.Average, m.EstimatedCost)
			},
		},
		{
			name: "walking with duration",
			args: map[string]any{"distance": 2000.0, "mode": "walking", "duration": 1500.0},
			check: func(t *testing.T, m emissions.RouteMetrics) {
				assert.Equal(t, emissions.RatingA, m.EnvironmentalRating)
				require.NotNil(t, m.Calories)
				assert.Equal(t, 90, *m.Calories)
				require.NotNil(t, m.Details.DurationMinutes)
				assert.Equal(t, 25.0, *m.Details.DurationMinutes)
			},
		},
		{name: "missing distance", args: map[string]any{"mode": "driving"}, wantCode: core.ErrValidation},
		{name: "negative distance", args: map[string]any{"distance": -1.0, "mode": "driving"}, wantCode: core.ErrValidation},
		{name: "distance not a number", args: map[string]any{"distance": "far", "mode": "driving"}, wantCode: core.ErrValidation},
		{name: "unknown mode", args: map[string]any{"distance": 10.0, "mode": "teleport"}, wantCode: core.ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.HandleRouteMetrics(context.Background(), newRequest("route_metrics", tt.args))
			require.NoError(t, err)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, result))
				return
			}
			require.False(t, result.IsError, resultText(t, result))
			var m emissions.RouteMetrics
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &m))
			tt.check(t, m)
		})
	}
}

func TestHandleCompareModes(t *testing.T) {
	r := NewRegistry(Deps{}, nil)

	result, err := r.HandleCompareModes(context.Background(), newRequest("compare_modes", map[string]any{
		"distance": 5000.0,
		"modes":    []any{"driving", "walking", "transit"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var c emissions.Comparison
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &c))
	require.Len(t, c.Modes, 3)
	assert.Equal(t, emissions.Walking, c.Modes[0].Mode)
	assert.Equal(t, emissions.Driving, c.Modes[2].Mode)
	assert.Equal(t, emissions.Walking, c.Summary.BestOption)
	assert.Equal(t, 0.9, c.Summary.CarbonSavings)

	result, err = r.HandleCompareModes(context.Background(), newRequest("compare_modes", map[string]any{
		"distance": 5000.0,
		"modes":    []any{"driving", "hovercraft"},
	}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrUnknownMode, errorCode(t, result))
}

func TestHandleCompareModesRequiresModes(t *testing.T) {
	r := NewRegistry(Deps{}, nil)

	for _, args := range []map[string]any{
		{"distance": 1000.0},
		{"distance": 1000.0, "modes": []any{}},
	} {
		result, err := r.HandleCompareModes(context.Background(), newRequest("compare_modes", args))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, core.ErrValidation, errorCode(t, result))
	}
}

func TestParseModes(t *testing.T) {
	modes, err := ParseModes([]string{"driving", "walking"})
	require.NoError(t, err)
	assert.Equal(t, []emissions.Mode{emissions.Driving, emissions.Walking}, modes)

	_, err = ParseModes(nil)
	assert.True(t, core.HasCode(err, core.ErrValidation))

	all, err := ParseModesOrAll(nil)
	require.NoError(t, err)
	assert.Equal(t, emissions.Modes(), all)

	_, err = ParseModesOrAll([]string{"hovercraft"})
	assert.True(t, core.HasCode(err, core.ErrUnknownMode))
}

func TestHandleTransportRecommendations(t *testing.T) {
	r := NewRegistry(Deps{}, nil)

	result, err := r.HandleTransportRecommendations(context.Background(), newRequest("transport_recommendations", map[string]any{"distance_km": 0.5}))
	require.NoError(t, err)

	var rec emissions.Recommendations
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &rec))
	assert.Equal(t, []emissions.Mode{emissions.Walking}, rec.Recommended)

	result, err = r.HandleTransportRecommendations(context.Background(), newRequest("transport_recommendations", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))
}

func TestHandleGasPrice(t *testing.T) {
	r := NewRegistry(Deps{}, nil)

	result, err := r.HandleGasPrice(context.Background(), newRequest("gas_price", map[string]any{"country": "US", "region": "Texas"}))
	require.NoError(t, err)

	var got GasPriceResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, 2.95, got.PricePerGallon)
	assert.Equal(t, gasprice.MatchRegion, got.Match)
	assert.True(t, got.CostPerKm.Min <= got.CostPerKm.Average && got.CostPerKm.Average <= got.CostPerKm.Max)

	result, err = r.HandleGasPrice(context.Background(), newRequest("gas_price", map[string]any{}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, gasprice.MatchDefault, got.Match)

	result, err = r.HandleGasPrice(context.Background(), newRequest("gas_price", map[string]any{"region": "Texas"}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))
}

func TestHandleGeocode(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewRegistry(Deps{Geocoder: geo}, nil)

	result, err := r.HandleGeocode(context.Background(), newRequest("geocode", map[string]any{
		"query":     "Austin TX",
		"limit":     3.0,
		"proximity": "-97.74,30.27",
		"types":     []any{"place"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, "Austin TX", geo.query)
	assert.Equal(t, 3, geo.opts.Limit)
	require.NotNil(t, geo.opts.Proximity)
	assert.Equal(t, 30.27, geo.opts.Proximity.Latitude)
	assert.Equal(t, []string{"place"}, geo.opts.Types)

	result, err = r.HandleGeocode(context.Background(), newRequest("geocode", map[string]any{"query": "  "}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))

	result, err = r.HandleGeocode(context.Background(), newRequest("geocode", map[string]any{"query": "x", "bbox": "1,2,3"}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))

	geo.err = core.NewProviderUnavailableError("geocoding", nil)
	result, err = r.HandleGeocode(context.Background(), newRequest("geocode", map[string]any{"query": "Austin"}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrProviderUnavailable, errorCode(t, result))
}

func TestHandleReverseGeocode(t *testing.T) {
	r := NewRegistry(Deps{Geocoder: &fakeGeocoder{}}, nil)

	result, err := r.HandleReverseGeocode(context.Background(), newRequest("reverse_geocode", map[string]any{"latitude": 30.0, "longitude": -97.0}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "-97,30")

	result, err = r.HandleReverseGeocode(context.Background(), newRequest("reverse_geocode", map[string]any{"latitude": 91.0, "longitude": 0.0}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))
}

func TestHandleDirections(t *testing.T) {
	routes := &fakeRoutes{}
	r := NewRegistry(Deps{Routes: routes}, nil)

	args := map[string]any{"start_lat": 30.0, "start_lon": -97.0, "end_lat": 30.1, "end_lon": -97.1}
	result, err := r.HandleDirections(context.Background(), newRequest("directions", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, provider.ProfileDriving, routes.profile)

	routes.err = core.NewError(core.ErrNoRoute, "no route found")
	result, err = r.HandleDirections(context.Background(), newRequest("directions", args))
	require.NoError(t, err)
	assert.Equal(t, core.ErrNoRoute, errorCode(t, result))

	result, err = r.HandleDirections(context.Background(), newRequest("directions", map[string]any{"start_lat": 30.0}))
	require.NoError(t, err)
	assert.Equal(t, core.ErrValidation, errorCode(t, result))
}

func TestHandleCompareRoutes(t *testing.T) {
	p := &fakePlanner{}
	r := NewRegistry(Deps{Planner: p}, nil)

	result, err := r.HandleCompareRoutes(context.Background(), newRequest("compare_routes", map[string]any{
		"start_lat": 30.0, "start_lon": -97.0, "end_lat": 30.1, "end_lon": -97.1,
		"modes": []any{"cycling", "driving"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, []emissions.Mode{emissions.Cycling, emissions.Driving}, p.req.Modes)
	assert.True(t, p.req.ResolveLocation)

	_, err = r.HandleCompareRoutes(context.Background(), newRequest("compare_routes", map[string]any{
		"start_lat": 30.0, "start_lon": -97.0, "end_lat": 30.1, "end_lon": -97.1,
		"country": "ca",
	}))
	require.NoError(t, err)
	assert.False(t, p.req.ResolveLocation)
	require.NotNil(t, p.req.Location)
	assert.Equal(t, "CA", p.req.Location.Country)
}

func TestGetToolDefinitions(t *testing.T) {
	r := NewRegistry(Deps{}, nil)
	assert.ElementsMatch(t,
		[]string{"get_version", "route_metrics", "compare_modes", "transport_recommendations", "gas_price"},
		r.GetToolNames())

	full := NewRegistry(Deps{Geocoder: &fakeGeocoder{}, Routes: &fakeRoutes{}, Planner: &fakePlanner{}}, nil)
	assert.Contains(t, full.GetToolNames(), "compare_routes")
	assert.Contains(t, full.GetToolNames(), "directions")

	for _, def := range full.GetToolDefinitions() {
		assert.Equal(t, def.Name, def.Tool.Name)
	}
}

func TestRegisterTools(t *testing.T) {
	r := NewRegistry(Deps{}, nil)
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(false))
	r.RegisterTools(s)

	handler := r.instrument("route_metrics", r.HandleRouteMetrics)
	result, err := handler(context.Background(), newRequest("route_metrics", map[string]any{"distance": 100.0, "mode": "cycling"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}
