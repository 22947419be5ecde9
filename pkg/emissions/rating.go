package emissions

// Rating is an environmental grade from A (best) to E (worst).
type Rating string

const (
	RatingA Rating = "A"
	RatingB Rating = "B"
	RatingC Rating = "C"
	RatingD Rating = "D"
	RatingE Rating = "E"
)

// ratingBands are inclusive upper bounds on kg CO2 per km, ascending.
var ratingBands = []struct {
	max    float64
	rating Rating
}{
	{0, RatingA},
	{0.05, RatingA},
	{0.10, RatingB},
	{0.15, RatingC},
	{0.25, RatingD},
}

// RateEmissions grades total emissions over a distance. A zero distance is A.
func RateEmissions(carbonKg, distanceKm float64) Rating {
	if distanceKm == 0 {
		return RatingA
	}
	perKm := carbonKg / distanceKm
	for _, band := range ratingBands {
		if perKm <= band.max {
			return band.rating
		}
	}
	return RatingE
}
