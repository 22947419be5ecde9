// Package planner compares real routes between two points across transport modes.
package planner

import (
	"context"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// RouteSource fetches directions.
type RouteSource interface {
	Directions(ctx context.Context, start, end core.Coordinate, profile string) (*provider.Route, error)
}

// LocationSource resolves the pricing context of a coordinate.
type LocationSource interface {
	LocationAt(ctx context.Context, at core.Coordinate) (*gasprice.LocationContext, error)
}

// ProfileForMode maps a transport mode to a routing profile. Transit has no
// dedicated profile and follows the road network.
func ProfileForMode(mode emissions.Mode) string {
	switch mode {
	case emissions.Walking:
		return provider.ProfileWalking
	case emissions.Cycling:
		return provider.ProfileCycling
	default:
		return provider.ProfileDriving
	}
}

// Request asks for a comparison between two points.
type Request struct {
	From     core.Coordinate           `json:"from"`
	To       core.Coordinate           `json:"to"`
	Modes    []emissions.Mode          `json:"modes,omitempty"`
	Location *gasprice.LocationContext `json:"location,omitempty"`
	// ResolveLocation reverse-geocodes From when Location is nil.
	ResolveLocation bool `json:"resolveLocation,omitempty"`
}

// ModeRoute is the route and metrics for one mode.
type ModeRoute struct {
	emissions.ModeMetrics
	Route *provider.Route `json:"route"`
}

// Comparison is the result of CompareRoutes.
type Comparison struct {
	Routes   []ModeRoute               `json:"routes"`
	Summary  emissions.Summary         `json:"summary"`
	Location *gasprice.LocationContext `json:"location,omitempty"`
}

// Planner fetches routes for several modes and annotates them with metrics.
type Planner struct {
	routes      RouteSource
	locations   LocationSource
	calc        *emissions.Calculator
	concurrency int
	logger      *slog.Logger
}

// New creates a planner. locations may be nil, which disables ResolveLocation.
func New(routes RouteSource, locations LocationSource, calc *emissions.Calculator, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		routes:      routes,
		locations:   locations,
		calc:        calc,
		concurrency: 4,
		logger:      logger.With("component", "planner"),
	}
}

// CompareRoutes fetches one route per mode concurrently and compares them.
// Any failed lookup fails the whole comparison.
func (p *Planner) CompareRoutes(ctx context.Context, req Request) (*Comparison, error) {
	if err := req.From.Validate(); err != nil {
		return nil, core.AsError(err).WithField("from")
	}
	if err := req.To.Validate(); err != nil {
		return nil, core.AsError(err).WithField("to")
	}
	modes := req.Modes
	if len(modes) == 0 {
		modes = emissions.Modes()
	}
	for _, m := range modes {
		if _, err := emissions.ProfileFor(m); err != nil {
			return nil, err
		}
	}

	ctx, span := tracing.StartSpan(ctx, "planner.compare_routes",
		trace.WithAttributes(attribute.Int("greenroute.modes", len(modes))))
	defer span.End()

	loc := req.Location
	if loc == nil && req.ResolveLocation && p.locations != nil {
		resolved, err := p.locations.LocationAt(ctx, req.From)
		if err != nil {
			// pricing falls back to the static cost factor
			p.logger.Warn("could not resolve location context", "error", err)
		} else {
			loc = resolved
		}
	}

	routes := make([]*provider.Route, len(modes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, mode := range modes {
		g.Go(func() error {
			r, err := p.routes.Directions(gctx, req.From, req.To, ProfileForMode(mode))
			if err != nil {
				return err
			}
			routes[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	results := make([]ModeRoute, 0, len(modes))
	for i, mode := range modes {
		r := routes[i]
		duration := r.Duration
		m, err := p.calc.CalculateMetrics(emissions.MetricsRequest{
			Distance: r.Distance,
			Mode:     mode,
			Duration: &duration,
			Location: loc,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, ModeRoute{
			ModeMetrics: emissions.ModeMetrics{Mode: mode, RouteMetrics: *m},
			Route:       r,
		})
	}

	sortByEmissions(results)

	metrics := make([]emissions.ModeMetrics, len(results))
	for i := range results {
		metrics[i] = results[i].ModeMetrics
	}

	// summary recommendations use the shortest route found
	shortest := results[0].Route.Distance
	for _, r := range results[1:] {
		if r.Route.Distance < shortest {
			shortest = r.Route.Distance
		}
	}

	p.logger.Debug("compared routes", "modes", len(results), "best", results[0].Mode)

	return &Comparison{
		Routes:   results,
		Summary:  emissions.Summarize(metrics, shortest/1000),
		Location: loc,
	}, nil
}

func sortByEmissions(results []ModeRoute) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CarbonEmissions < results[j].CarbonEmissions
	})
}
