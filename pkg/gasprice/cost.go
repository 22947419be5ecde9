package gasprice

import "github.com/NERVsystems/greenroute/pkg/core"

// KmPerMile converts miles to kilometres.
const KmPerMile = 1.60934

// Reference fuel efficiencies in miles per gallon.
const (
	EfficientMPG   = 35.0
	AverageMPG     = 25.0
	InefficientMPG = 18.0
)

// CostRange is the per-kilometre driving cost across the reference efficiencies.
type CostRange struct {
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Average        float64 `json:"average"`
	PricePerGallon float64 `json:"pricePerGallon"`
}

// CostPerKm converts a fuel price and efficiency into a cost per kilometre.
func CostPerKm(pricePerGallon, mpg float64) float64 {
	if mpg <= 0 {
		return 0
	}
	return pricePerGallon / (mpg * KmPerMile)
}

// CostRange evaluates the reference efficiencies at the price for loc.
// Each figure is a per-kilometre cost rounded to 2 decimals.
func (t *Table) CostRange(loc *LocationContext) CostRange {
	return t.TripCostRange(loc, 1)
}

// TripCostRange is CostRange scaled to a trip of distanceKm before rounding.
func (t *Table) TripCostRange(loc *LocationContext, distanceKm float64) CostRange {
	price := t.PriceFor(loc)
	return CostRange{
		Min:            core.Round(distanceKm*CostPerKm(price, EfficientMPG), 2),
		Max:            core.Round(distanceKm*CostPerKm(price, InefficientMPG), 2),
		Average:        core.Round(distanceKm*CostPerKm(price, AverageMPG), 2),
		PricePerGallon: price,
	}
}
