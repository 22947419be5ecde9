package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero.
// NaN and infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
