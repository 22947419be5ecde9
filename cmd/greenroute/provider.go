package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/greenroute/pkg/coords"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/tools"
)

// withServices loads configuration and runs fn with the provider stack.
func withServices(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, s *services) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if !providerConfigured(cfg) {
		return core.NewError(core.ErrProviderRejected, "provider access token is not configured").
			WithGuidance("Set MAPBOX_ACCESS_TOKEN or provider.access_token")
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	s, err := newServices(cfg, logger, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

func newGeocodeCmd(opts *rootOptions) *cobra.Command {
	var (
		reverse   bool
		limit     int
		proximity string
		bbox      string
		types     []string
	)

	cmd := &cobra.Command{
		Use:   "geocode <query | coordinate>",
		Short: "Look up places by name, or by coordinate with --reverse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var geocodeOpts provider.GeocodeOptions
			var at core.Coordinate
			if reverse {
				c, err := coords.Parse("at", args[0])
				if err != nil {
					return err
				}
				at = c
			} else {
				geocodeOpts = provider.GeocodeOptions{Limit: limit, Types: types}
				if proximity != "" {
					p, err := core.ParseCoordinate("proximity", proximity)
					if err != nil {
						return err
					}
					geocodeOpts.Proximity = &p
				}
				if bbox != "" {
					b, err := core.ParseBBox(bbox)
					if err != nil {
						return err
					}
					geocodeOpts.BBox = &b
				}
			}

			return withServices(cmd, opts, func(ctx context.Context, s *services) error {
				var (
					res *provider.GeocodeResult
					err error
				)
				if reverse {
					res, err = s.client.ReverseGeocode(ctx, at)
				} else {
					res, err = s.client.Geocode(ctx, args[0], geocodeOpts)
				}
				if err != nil {
					return err
				}
				return renderPlaces(newRenderer(cmd, opts), res)
			})
		},
	}

	cmd.Flags().BoolVar(&reverse, "reverse", false, "treat the argument as a coordinate (lng,lat, MGRS, UTM or DMS)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of places (1-10)")
	cmd.Flags().StringVar(&proximity, "proximity", "", "bias results towards lng,lat")
	cmd.Flags().StringVar(&bbox, "bbox", "", "restrict results to minLng,minLat,maxLng,maxLat")
	cmd.Flags().StringSliceVar(&types, "types", nil, "place types to include")
	return cmd
}

func renderPlaces(r *renderer, res *provider.GeocodeResult) error {
	if r.json {
		return r.JSON(res)
	}
	rows := make([][]string, 0, len(res.Places))
	for _, p := range res.Places {
		country := "-"
		if p.Location != nil {
			country = p.Location.Country
			if p.Location.Region != "" {
				country += "-" + p.Location.Region
			}
		}
		rows = append(rows, []string{
			p.PlaceName,
			strings.Join(p.PlaceType, ","),
			p.Center.String(),
			country,
			printer.Sprintf("%.2f", p.Relevance),
		})
	}
	if err := r.Table("Places for "+res.Query, []string{"Place", "Type", "Lng,Lat", "Location", "Relevance"}, rows); err != nil {
		return err
	}
	if res.Cached {
		return r.Note("served from cache")
	}
	return nil
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	var (
		from  string
		to    string
		modes []string
		loc   locationFlags
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Fetch routes between two points and compare their metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := coords.Parse("from", from)
			if err != nil {
				return err
			}
			end, err := coords.Parse("to", to)
			if err != nil {
				return err
			}
			parsed, err := tools.ParseModesOrAll(modes)
			if err != nil {
				return err
			}
			in, err := loc.input()
			if err != nil {
				return err
			}
			req := planner.Request{From: start, To: end, Modes: parsed, Location: in.Context()}
			req.ResolveLocation = req.Location == nil

			return withServices(cmd, opts, func(ctx context.Context, s *services) error {
				cmp, err := s.planner.CompareRoutes(ctx, req)
				if err != nil {
					return err
				}
				return renderRoutes(newRenderer(cmd, opts), cmp)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start coordinate: lng,lat, MGRS, UTM or DMS")
	cmd.Flags().StringVar(&to, "to", "", "end coordinate: lng,lat, MGRS, UTM or DMS")
	cmd.Flags().StringSliceVar(&modes, "modes", nil, "modes to route (default all)")
	loc.register(cmd)
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func renderRoutes(r *renderer, cmp *planner.Comparison) error {
	if r.json {
		return r.JSON(cmp)
	}
	rows := make([][]string, 0, len(cmp.Routes))
	for _, mr := range cmp.Routes {
		distance, duration := "-", "-"
		if mr.Route != nil {
			distance = km(mr.Route.Distance)
			duration = minutes(mr.Route.Duration)
		}
		rows = append(rows, []string{
			string(mr.Mode),
			distance,
			duration,
			kg(mr.CarbonEmissions),
			money(mr.EstimatedCost),
			optionalInt(mr.Calories),
			string(mr.EnvironmentalRating),
		})
	}
	if err := r.Table("Route comparison", []string{"Mode", "Distance", "Duration", "CO2", "Cost", "Calories", "Rating"}, rows); err != nil {
		return err
	}
	if cmp.Location != nil {
		if err := r.Note("Fuel priced for %s %s", cmp.Location.Country, cmp.Location.Region); err != nil {
			return err
		}
	}
	return r.Note("Best: %s. %s", cmp.Summary.BestOption, cmp.Summary.Recommendations.Message)
}
