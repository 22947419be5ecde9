package emissions

import (
	"sort"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
)

// ModeMetrics tags RouteMetrics with the mode that produced them.
type ModeMetrics struct {
	Mode Mode `json:"mode"`
	RouteMetrics
}

// CompareRequest is the input to CompareModes.
type CompareRequest struct {
	Distance float64                   `json:"distance"`
	Modes    []Mode                    `json:"modes"`
	Location *gasprice.LocationContext `json:"location,omitempty"`
}

// Summary highlights the extremes of a comparison.
type Summary struct {
	BestOption      Mode            `json:"bestOption"`
	WorstOption     Mode            `json:"worstOption"`
	CarbonSavings   float64         `json:"carbonSavings"`
	CostSavings     float64         `json:"costSavings"`
	Recommendations Recommendations `json:"recommendations"`
}

// Comparison is the result of CompareModes.
type Comparison struct {
	Modes   []ModeMetrics `json:"modes"`
	Summary Summary       `json:"summary"`
}

// CompareTransportModes computes metrics for each mode over the same
// distance, ordered by ascending emissions. Ties keep input order.
func (c *Calculator) CompareTransportModes(distance float64, modes []Mode) ([]ModeMetrics, error) {
	return c.compare(distance, modes, nil)
}

func (c *Calculator) compare(distance float64, modes []Mode, loc *gasprice.LocationContext) ([]ModeMetrics, error) {
	if len(modes) == 0 {
		return nil, core.NewValidationError("modes", "at least one transport mode is required")
	}

	results := make([]ModeMetrics, 0, len(modes))
	for _, mode := range modes {
		m, err := c.CalculateMetrics(MetricsRequest{Distance: distance, Mode: mode, Location: loc})
		if err != nil {
			return nil, err
		}
		results = append(results, ModeMetrics{Mode: mode, RouteMetrics: *m})
	}

	SortByEmissions(results)
	return results, nil
}

// SortByEmissions orders results by ascending carbon emissions, stably.
func SortByEmissions(results []ModeMetrics) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CarbonEmissions < results[j].CarbonEmissions
	})
}

// CompareModes compares modes over a distance and summarises the outcome.
func (c *Calculator) CompareModes(req CompareRequest) (*Comparison, error) {
	results, err := c.compare(req.Distance, req.Modes, req.Location)
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Modes:   results,
		Summary: Summarize(results, req.Distance/1000),
	}, nil
}

// Summarize builds the summary of results already sorted by emissions.
func Summarize(results []ModeMetrics, distanceKm float64) Summary {
	s := Summary{Recommendations: GetRecommendations(distanceKm)}
	if len(results) == 0 {
		return s
	}
	best, worst := results[0], results[len(results)-1]
	s.BestOption = best.Mode
	s.WorstOption = worst.Mode
	s.CarbonSavings = core.Round(worst.CarbonEmissions-best.CarbonEmissions, 3)
	s.CostSavings = core.Round(worst.EstimatedCost-best.EstimatedCost, 2)
	return s
}
