package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/provider"
)

type fakeRoutes struct {
	mu       sync.Mutex
	profiles []string
	byProf   map[string]provider.Route
	err      error
}

func (f *fakeRoutes) Directions(ctx context.Context, start, end core.Coordinate, profile string) (*provider.Route, error) {
	f.mu.Lock()
	f.profiles = append(f.profiles, profile)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r := f.byProf[profile]
	r.Profile = profile
	return &r, nil
}

type fakeLocations struct {
	loc   *gasprice.LocationContext
	err   error
	calls int
}

func (f *fakeLocations) LocationAt(ctx context.Context, at core.Coordinate) (*gasprice.LocationContext, error) {
	f.calls++
	return f.loc, f.err
}

var (
	from = core.Coordinate{Longitude: -97.7431, Latitude: 30.2672}
	to   = core.Coordinate{Longitude: -97.70, Latitude: 30.31}
)

func newFakeRoutes() *fakeRoutes {
	return &fakeRoutes{byProf: map[string]provider.Route{
		provider.ProfileWalking: {Distance: 6000, Duration: 4500},
		provider.ProfileCycling: {Distance: 6500, Duration: 1500},
		provider.ProfileDriving: {Distance: 8000, Duration: 720},
	}}
}

func TestCompareRoutesAllModes(t *testing.T) {
	routes := newFakeRoutes()
	p := New(routes, nil, emissions.NewCalculator(nil), nil)

	cmp, err := p.CompareRoutes(context.Background(), Request{From: from, To: to})
	require.NoError(t, err)

	require.Len(t, cmp.Routes, 4)
	got := make([]emissions.Mode, len(cmp.Routes))
	for i, r := range cmp.Routes {
		got[i] = r.Mode
	}
	assert.Equal(t, []emissions.Mode{emissions.Walking, emissions.Cycling, emissions.Transit, emissions.Driving}, got)
	assert.Len(t, routes.profiles, 4)

	// driving over the 8 km driving route
	driving := cmp.Routes[3]
	assert.Equal(t, 1.44, driving.CarbonEmissions)
	require.NotNil(t, driving.Details.DurationMinutes)
	assert.Equal(t, 12.0, *driving.Details.DurationMinutes)

	assert.Equal(t, emissions.Walking, cmp.Summary.BestOption)
	assert.Equal(t, emissions.Driving, cmp.Summary.WorstOption)
	assert.Equal(t, 1.44, cmp.Summary.CarbonSavings)
	// shortest route is 6 km
	assert.Equal(t, []emissions.Mode{emissions.Cycling, emissions.Transit}, cmp.Summary.Recommendations.Recommended)
}

func TestCompareRoutesResolvesLocation(t *testing.T) {
	locs := &fakeLocations{loc: &gasprice.LocationContext{Country: "US", Region: "Texas"}}
	p := New(newFakeRoutes(), locs, emissions.NewCalculator(nil), nil)

	cmp, err := p.CompareRoutes(context.Background(), Request{
		From: from, To: to,
		Modes:           []emissions.Mode{emissions.Driving},
		ResolveLocation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locs.calls)
	assert.Equal(t, locs.loc, cmp.Location)
	require.NotNil(t, cmp.Routes[0].CostRange)
	assert.Equal(t, 2.95, cmp.Routes[0].CostRange.PricePerGallon)
}

func TestCompareRoutesLocationFailureFallsBack(t *testing.T) {
	locs := &fakeLocations{err: errors.New("geocoder down")}
	p := New(newFakeRoutes(), locs, emissions.NewCalculator(nil), nil)

	cmp, err := p.CompareRoutes(context.Background(), Request{
		From: from, To: to,
		Modes:           []emissions.Mode{emissions.Driving},
		ResolveLocation: true,
	})
	require.NoError(t, err)
	assert.Nil(t, cmp.Routes[0].CostRange)
	assert.Equal(t, 1.2, cmp.Routes[0].EstimatedCost)
}

func TestCompareRoutesExplicitLocationSkipsLookup(t *testing.T) {
	locs := &fakeLocations{}
	p := New(newFakeRoutes(), locs, emissions.NewCalculator(nil), nil)

	_, err := p.CompareRoutes(context.Background(), Request{
		From: from, To: to,
		Modes:           []emissions.Mode{emissions.Driving},
		Location:        &gasprice.LocationContext{Country: "GB"},
		ResolveLocation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, locs.calls)
}

func TestCompareRoutesProviderFailure(t *testing.T) {
	routes := newFakeRoutes()
	routes.err = core.NewProviderUnavailableError("directions", errors.New("timeout"))
	p := New(routes, nil, emissions.NewCalculator(nil), nil)

	cmp, err := p.CompareRoutes(context.Background(), Request{From: from, To: to})
	require.Error(t, err)
	assert.Nil(t, cmp)
	assert.True(t, core.HasCode(err, core.ErrProviderUnavailable))
}

func TestCompareRoutesValidation(t *testing.T) {
	p := New(newFakeRoutes(), nil, emissions.NewCalculator(nil), nil)

	_, err := p.CompareRoutes(context.Background(), Request{From: core.Coordinate{Latitude: 95}, To: to})
	require.Error(t, err)
	assert.Equal(t, "from", core.AsError(err).Field)

	_, err = p.CompareRoutes(context.Background(), Request{From: from, To: to, Modes: []emissions.Mode{"rocket"}})
	assert.True(t, core.HasCode(err, core.ErrUnknownMode))
}

func TestProfileForMode(t *testing.T) {
	assert.Equal(t, provider.ProfileWalking, ProfileForMode(emissions.Walking))
	assert.Equal(t, provider.ProfileCycling, ProfileForMode(emissions.Cycling))
	assert.Equal(t, provider.ProfileDriving, ProfileForMode(emissions.Driving))
	assert.Equal(t, provider.ProfileDriving, ProfileForMode(emissions.Transit))
}
