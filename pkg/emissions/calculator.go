package emissions

import (
	"log/slog"
	"math"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
)

// MetricsRequest is the input to CalculateMetrics.
type MetricsRequest struct {
	Distance float64                   `json:"distance"`           // metres
	Mode     Mode                      `json:"mode"`
	Duration *float64                  `json:"duration,omitempty"` // seconds
	Location *gasprice.LocationContext `json:"location,omitempty"`
}

// Details explains how the metrics were derived.
type Details struct {
	EmissionsFactor float64  `json:"emissionsFactor"`
	DistanceKm      float64  `json:"distanceKm"`
	Breakdown       string   `json:"breakdown"`
	DurationMinutes *float64 `json:"durationMinutes,omitempty"`
	AverageSpeedKmh *float64 `json:"averageSpeedKmh,omitempty"`
}

// RouteMetrics is the environmental, cost and health profile of one trip.
type RouteMetrics struct {
	CarbonEmissions     float64             `json:"carbonEmissions"`
	EstimatedCost       float64             `json:"estimatedCost"`
	CostRange           *gasprice.CostRange `json:"costRange,omitempty"` // whole trip
	CostPerKm           *gasprice.CostRange `json:"costPerKm,omitempty"`
	Calories            *int                `json:"calories,omitempty"`
	EnvironmentalRating Rating              `json:"environmentalRating"`
	HealthImpact        string              `json:"healthImpact"`
	Details             Details             `json:"details"`
}

// Calculator computes route metrics. It holds no mutable state and is safe
// for concurrent use.
type Calculator struct {
	prices *gasprice.Table
	logger *slog.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the calculator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// NewCalculator creates a calculator backed by prices. A nil table selects
// the compiled-in default.
func NewCalculator(prices *gasprice.Table, opts ...Option) *Calculator {
	if prices == nil {
		prices = gasprice.DefaultTable()
	}
	c := &Calculator{
		prices: prices,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "emissions")
	return c
}

// Prices returns the table used for driving costs.
func (c *Calculator) Prices() *gasprice.Table {
	return c.prices
}

// CalculateMetrics derives the metrics for a single trip.
func (c *Calculator) CalculateMetrics(req MetricsRequest) (*RouteMetrics, error) {
	profile, err := ProfileFor(req.Mode)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateDistance(req.Distance); err != nil {
		return nil, err
	}
	if err := core.ValidateDuration(req.Duration); err != nil {
		return nil, err
	}

	distanceKm := req.Distance / 1000
	carbon := core.Round(distanceKm*profile.EmissionsFactor, 3)

	m := &RouteMetrics{
		CarbonEmissions: carbon,
		// rated from the rounded emissions, not the raw product
		EnvironmentalRating: RateEmissions(carbon, distanceKm),
		HealthImpact:        HealthImpact(profile.Mode, distanceKm),
		Details: Details{
			EmissionsFactor: profile.EmissionsFactor,
			DistanceKm:      core.Round(distanceKm, 3),
			Breakdown:       breakdown(profile, distanceKm, carbon),
		},
	}

	if profile.Mode == Driving && req.Location != nil {
		trip := c.prices.TripCostRange(req.Location, distanceKm)
		perKm := c.prices.CostRange(req.Location)
		m.CostRange = &trip
		m.CostPerKm = &perKm
		m.EstimatedCost = trip.Average
	} else {
		m.EstimatedCost = core.Round(distanceKm*profile.CostFactor, 2)
	}

	if profile.HasCalories {
		kcal := int(math.Round(distanceKm * profile.CaloriesFactor))
		m.Calories = &kcal
	}

	if req.Duration != nil && *req.Duration > 0 {
		minutes := core.Round(*req.Duration/60, 1)
		m.Details.DurationMinutes = &minutes
		// a vanishing duration leaves the speed unknown
		if kmh := distanceKm / (*req.Duration / 3600); !math.IsInf(kmh, 0) && !math.IsNaN(kmh) {
			speed := core.Round(kmh, 1)
			m.Details.AverageSpeedKmh = &speed
		}
	}

	c.logger.Debug("calculated route metrics",
		"mode", profile.Mode,
		"distance_km", distanceKm,
		"carbon_kg", m.CarbonEmissions,
		"rating", m.EnvironmentalRating,
	)

	return m, nil
}
