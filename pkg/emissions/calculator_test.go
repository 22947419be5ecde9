package emissions

import (
	"testing"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator() *Calculator {
	return NewCalculator(gasprice.DefaultTable())
}

func TestCalculateMetricsWalkingMile(t *testing.T) {
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 1609, Mode: Walking})
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.CarbonEmissions)
	assert.Equal(t, 0.0, m.EstimatedCost)
	require.NotNil(t, m.Calories)
	assert.Equal(t, 72, *m.Calories)
	assert.Equal(t, RatingA, m.EnvironmentalRating)
	assert.Nil(t, m.CostRange)
	assert.Equal(t, 1.609, m.Details.DistanceKm)
	assert.Contains(t, m.Details.Breakdown, "45 kcal/km")
}

func TestCalculateMetricsDrivingNoContext(t *testing.T) {
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 10000, Mode: Driving})
	require.NoError(t, err)

	assert.Equal(t, 1.8, m.CarbonEmissions)
	assert.Equal(t, RatingD, m.EnvironmentalRating)
	assert.Equal(t, 1.5, m.EstimatedCost)
	assert.Nil(t, m.CostRange)
	assert.Nil(t, m.CostPerKm)
	assert.Nil(t, m.Calories)
	assert.Equal(t, 0.18, m.Details.EmissionsFactor)
	assert.Contains(t, m.Details.Breakdown, "0.180 kg CO2/km")
	assert.Contains(t, m.Details.Breakdown, "1.800 kg CO2")
}

func TestCalculateMetricsDrivingWithContext(t *testing.T) {
	loc := &gasprice.LocationContext{Country: "US", Region: "Texas"}
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 10000, Mode: Driving, Location: loc})
	require.NoError(t, err)

	// Texas: 2.95 per gallon
	require.NotNil(t, m.CostRange)
	assert.Equal(t, 2.95, m.CostRange.PricePerGallon)
	assert.Equal(t, core.Round(10*2.95/(35*gasprice.KmPerMile), 2), m.CostRange.Min)
	assert.Equal(t, core.Round(10*2.95/(25*gasprice.KmPerMile), 2), m.CostRange.Average)
	assert.Equal(t, core.Round(10*2.95/(18*gasprice.KmPerMile), 2), m.CostRange.Max)
	assert.Equal(t, m.CostRange.Average, m.EstimatedCost)
	assert.LessOrEqual(t, m.CostRange.Min, m.CostRange.Average)
	assert.LessOrEqual(t, m.CostRange.Average, m.CostRange.Max)

	require.NotNil(t, m.CostPerKm)
	assert.Equal(t, gasprice.DefaultTable().CostRange(loc), *m.CostPerKm)
	assert.Equal(t, core.Round(2.95/(25*gasprice.KmPerMile), 2), m.CostPerKm.Average)
}

func TestCalculateMetricsTransitIgnoresContext(t *testing.T) {
	loc := &gasprice.LocationContext{Country: "US"}
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 10000, Mode: Transit, Location: loc})
	require.NoError(t, err)

	assert.Equal(t, 0.89, m.CarbonEmissions)
	assert.Equal(t, 1.2, m.EstimatedCost)
	assert.Nil(t, m.CostRange)
	assert.Equal(t, RatingB, m.EnvironmentalRating)
}

func TestCalculateMetricsEmissionsProperty(t *testing.T) {
	calc := newTestCalculator()
	distances := []float64{0, 1, 49, 500, 1609, 2500, 9999, 10000, 123456}
	for _, mode := range Modes() {
		p, err := ProfileFor(mode)
		require.NoError(t, err)
		for _, d := range distances {
			m, err := calc.CalculateMetrics(MetricsRequest{Distance: d, Mode: mode})
			require.NoError(t, err)

			assert.Equal(t, core.Round(d/1000*p.EmissionsFactor, 3), m.CarbonEmissions, "%s %v", mode, d)
			assert.GreaterOrEqual(t, m.CarbonEmissions, 0.0)
			assert.GreaterOrEqual(t, m.EstimatedCost, 0.0)
			if m.Calories != nil {
				assert.GreaterOrEqual(t, *m.Calories, 0)
			}
			if mode == Walking || mode == Cycling {
				assert.Equal(t, 0.0, m.CarbonEmissions)
				assert.Equal(t, RatingA, m.EnvironmentalRating)
			}
		}
	}
}

func TestCalculateMetricsZeroDistance(t *testing.T) {
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 0, Mode: Driving})
	require.NoError(t, err)
	assert.Equal(t, RatingA, m.EnvironmentalRating)
	assert.Equal(t, 0.0, m.CarbonEmissions)
}

func TestCalculateMetricsRatingUsesRoundedEmissions(t *testing.T) {
	// 1 m of driving emits 0.00018 kg, which rounds to 0 and rates A
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 1, Mode: Driving})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.CarbonEmissions)
	assert.Equal(t, RatingA, m.EnvironmentalRating)
}

func TestCalculateMetricsDuration(t *testing.T) {
	d := 1800.0
	m, err := newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 15000, Mode: Cycling, Duration: &d})
	require.NoError(t, err)
	require.NotNil(t, m.Details.DurationMinutes)
	require.NotNil(t, m.Details.AverageSpeedKmh)
	assert.Equal(t, 30.0, *m.Details.DurationMinutes)
	assert.Equal(t, 30.0, *m.Details.AverageSpeedKmh)

	zero := 0.0
	m, err = newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 15000, Mode: Cycling, Duration: &zero})
	require.NoError(t, err)
	assert.Nil(t, m.Details.AverageSpeedKmh)
}

func TestCalculateMetricsVanishingDuration(t *testing.T) {
	d := 1e-320
	var m *RouteMetrics
	var err error
	require.NotPanics(t, func() {
		m, err = newTestCalculator().CalculateMetrics(MetricsRequest{Distance: 1000, Mode: Walking, Duration: &d})
	})
	require.NoError(t, err)
	require.NotNil(t, m.Details.DurationMinutes)
	assert.Equal(t, 0.0, *m.Details.DurationMinutes)
	assert.Nil(t, m.Details.AverageSpeedKmh)
	assert.Equal(t, 45, *m.Calories)
}

func TestCalculateMetricsDistanceTooLarge(t *testing.T) {
	calc := newTestCalculator()
	for _, mode := range Modes() {
		_, err := calc.CalculateMetrics(MetricsRequest{Distance: 1e300, Mode: mode})
		assert.True(t, core.HasCode(err, core.ErrValidation), mode)
	}

	m, err := calc.CalculateMetrics(MetricsRequest{Distance: core.MaxDistance, Mode: Walking})
	require.NoError(t, err)
	assert.Equal(t, 4500000, *m.Calories)
}

func TestCalculateMetricsErrors(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.CalculateMetrics(MetricsRequest{Distance: 100, Mode: "teleport"})
	assert.True(t, core.HasCode(err, core.ErrUnknownMode))

	_, err = calc.CalculateMetrics(MetricsRequest{Distance: -1, Mode: Walking})
	assert.True(t, core.HasCode(err, core.ErrValidation))

	neg := -10.0
	_, err = calc.CalculateMetrics(MetricsRequest{Distance: 100, Mode: Walking, Duration: &neg})
	assert.True(t, core.HasCode(err, core.ErrValidation))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Driving ")
	require.NoError(t, err)
	assert.Equal(t, Driving, m)

	_, err = ParseMode("hovercraft")
	assert.True(t, core.HasCode(err, core.ErrUnknownMode))

	assert.Equal(t, []string{"walking", "cycling", "driving", "transit"}, ModeNames())
}

func TestRateEmissions(t *testing.T) {
	tests := []struct {
		carbon, km float64
		want       Rating
	}{
		{0, 0, RatingA},
		{5, 0, RatingA},
		{0, 10, RatingA},
		{0.5, 10, RatingA},
		{0.51, 10, RatingB},
		{1.0, 10, RatingB},
		{1.5, 10, RatingC},
		{2.5, 10, RatingD},
		{2.51, 10, RatingE},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RateEmissions(tt.carbon, tt.km), "%v kg over %v km", tt.carbon, tt.km)
	}
}

func TestHealthImpactBands(t *testing.T) {
	tests := []struct {
		mode  Mode
		bands []float64
	}{
		{Walking, []float64{0.5, 2, 5}},
		{Cycling, []float64{1, 5, 20}},
		{Driving, []float64{1, 3, 10}},
		{Transit, []float64{2, 10}},
	}
	for _, tt := range tests {
		seen := map[string]bool{}
		for _, km := range tt.bands {
			msg := HealthImpact(tt.mode, km)
			assert.NotEmpty(t, msg)
			seen[msg] = true
		}
		assert.Len(t, seen, len(tt.bands), "mode %s", tt.mode)
	}

	// band edges are exclusive on the upper side
	assert.Equal(t, HealthImpact(Walking, 1), HealthImpact(Walking, 2.9))
	assert.NotEqual(t, HealthImpact(Walking, 0.99), HealthImpact(Walking, 1))
	assert.Equal(t, HealthImpact(Transit, 5), HealthImpact(Transit, 50))
}
