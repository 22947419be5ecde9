package main

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/tools"
)

// locationFlags select the fuel price region.
type locationFlags struct {
	country string
	region  string
}

func (l *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.country, "country", "", "ISO country code used for fuel prices, e.g. US")
	cmd.Flags().StringVar(&l.region, "region", "", "region code within --country, e.g. CA")
}

func (l *locationFlags) input() (tools.LocationInput, error) {
	in := tools.LocationInput{Country: l.country, Region: l.region}
	if in.Country == "" && in.Region != "" {
		return in, core.NewValidationError("country", "--country is required when --region is given")
	}
	return in, nil
}

// newCalculator builds the calculator from configuration.
func newCalculator(opts *rootOptions, cmd *cobra.Command) (*emissions.Calculator, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	return emissions.NewCalculator(cfg.PriceTable(), emissions.WithLogger(logger)), nil
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	var (
		distance float64
		mode     string
		duration float64
		loc      locationFlags
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute emissions, cost and calories for one trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := emissions.ParseMode(mode)
			if err != nil {
				return err
			}
			in, err := loc.input()
			if err != nil {
				return err
			}
			req := emissions.MetricsRequest{Distance: distance, Mode: m, Location: in.Context()}
			if cmd.Flags().Changed("duration") {
				req.Duration = &duration
			}

			calc, err := newCalculator(opts, cmd)
			if err != nil {
				return err
			}
			metrics, err := calc.CalculateMetrics(req)
			if err != nil {
				return err
			}

			r := newRenderer(cmd, opts)
			if r.json {
				return r.JSON(metrics)
			}
			rows := [][]string{
				{"Carbon emissions", kg(metrics.CarbonEmissions)},
				{"Estimated cost", money(metrics.EstimatedCost)},
				{"Calories", optionalInt(metrics.Calories)},
				{"Rating", string(metrics.EnvironmentalRating)},
				{"Health impact", metrics.HealthImpact},
			}
			if metrics.CostRange != nil {
				rows = append(rows, []string{"Cost range", money(metrics.CostRange.Min) + " - " + money(metrics.CostRange.Max)})
			}
			if metrics.Details.DurationMinutes != nil {
				rows = append(rows, []string{"Duration", printer.Sprintf("%.1f min", *metrics.Details.DurationMinutes)})
			}
			if metrics.Details.AverageSpeedKmh != nil {
				rows = append(rows, []string{"Average speed", printer.Sprintf("%.1f km/h", *metrics.Details.AverageSpeedKmh)})
			}
			title := printer.Sprintf("%s, %.2f km", m, metrics.Details.DistanceKm)
			if err := r.Table(title, []string{"Metric", "Value"}, rows); err != nil {
				return err
			}
			return r.Note("%s", metrics.Details.Breakdown)
		},
	}

	cmd.Flags().Float64Var(&distance, "distance", 0, "trip distance in metres")
	cmd.Flags().StringVar(&mode, "mode", "", "transport mode: walking, cycling, driving or transit")
	cmd.Flags().Float64Var(&duration, "duration", 0, "trip duration in seconds")
	loc.register(cmd)
	_ = cmd.MarkFlagRequired("distance")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var (
		distance float64
		modes    []string
		loc      locationFlags
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare transport modes over the same distance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := tools.ParseModes(modes)
			if err != nil {
				return err
			}
			in, err := loc.input()
			if err != nil {
				return err
			}

			calc, err := newCalculator(opts, cmd)
			if err != nil {
				return err
			}
			cmp, err := calc.CompareModes(emissions.CompareRequest{
				Distance: distance,
				Modes:    parsed,
				Location: in.Context(),
			})
			if err != nil {
				return err
			}

			r := newRenderer(cmd, opts)
			if r.json {
				return r.JSON(cmp)
			}
			rows := make([][]string, 0, len(cmp.Modes))
			for _, m := range cmp.Modes {
				rows = append(rows, []string{
					string(m.Mode),
					kg(m.CarbonEmissions),
					money(m.EstimatedCost),
					optionalInt(m.Calories),
					string(m.EnvironmentalRating),
				})
			}
			title := printer.Sprintf("Mode comparison over %.2f km", distance/1000)
			if err := r.Table(title, []string{"Mode", "CO2", "Cost", "Calories", "Rating"}, rows); err != nil {
				return err
			}
			s := cmp.Summary
			if err := r.Note("Best: %s, worst: %s. Choosing %s saves %.3f kg CO2 and %s.",
				s.BestOption, s.WorstOption, s.BestOption, s.CarbonSavings, money(s.CostSavings)); err != nil {
				return err
			}
			return r.Note("%s", s.Recommendations.Message)
		},
	}

	cmd.Flags().Float64Var(&distance, "distance", 0, "trip distance in metres")
	cmd.Flags().StringSliceVar(&modes, "modes", emissions.ModeNames(), "modes to compare")
	loc.register(cmd)
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var distanceKm float64

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest transport modes for a trip length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
				return core.NewValidationError("distance-km", "distance must be a finite non-negative number of kilometres")
			}
			rec := emissions.GetRecommendations(distanceKm)

			r := newRenderer(cmd, opts)
			if r.json {
				return r.JSON(rec)
			}
			rows := make([][]string, 0, len(rec.Recommended)+len(rec.Avoid))
			for _, m := range rec.Recommended {
				rows = append(rows, []string{string(m), "recommended"})
			}
			for _, m := range rec.Avoid {
				rows = append(rows, []string{string(m), "avoid"})
			}
			title := printer.Sprintf("Recommendations for %.2f km", distanceKm)
			if err := r.Table(title, []string{"Mode", "Advice"}, rows); err != nil {
				return err
			}
			return r.Note("%s", rec.Message)
		},
	}

	cmd.Flags().Float64Var(&distanceKm, "distance-km", 0, "trip distance in kilometres")
	_ = cmd.MarkFlagRequired("distance-km")
	return cmd
}

func newGasPriceCmd(opts *rootOptions) *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "gas-price",
		Short: "Show the fuel price and driving cost used for a location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := loc.input()
			if err != nil {
				return err
			}
			calc, err := newCalculator(opts, cmd)
			if err != nil {
				return err
			}
			res := tools.LookupGasPrice(calc.Prices(), in.Context())

			r := newRenderer(cmd, opts)
			if r.json {
				return r.JSON(res)
			}
			where := "default"
			if res.Location != nil {
				where = res.Location.Country
				if res.Location.Region != "" {
					where += "-" + res.Location.Region
				}
			}
			rows := [][]string{
				{"Price per gallon", money(res.PricePerGallon)},
				{"Matched", string(res.Match)},
				{"Cost per km (min)", printer.Sprintf("$%.3f", res.CostPerKm.Min)},
				{"Cost per km (average)", printer.Sprintf("$%.3f", res.CostPerKm.Average)},
				{"Cost per km (max)", printer.Sprintf("$%.3f", res.CostPerKm.Max)},
			}
			return r.Table("Fuel price for "+where, []string{"Field", "Value"}, rows)
		},
	}

	loc.register(cmd)
	return cmd
}
