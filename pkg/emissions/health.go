package emissions

// HealthImpact describes the physical-activity effect of a trip.
func HealthImpact(mode Mode, distanceKm float64) string {
	switch mode {
	case Walking:
		switch {
		case distanceKm < 1:
			return "Light activity: a short walk that adds to your daily step count."
		case distanceKm < 3:
			return "Moderate exercise: a brisk walk that supports cardiovascular health."
		default:
			return "Excellent workout: a long walk that burns significant calories."
		}
	case Cycling:
		switch {
		case distanceKm < 2:
			return "Light activity: an easy ride that gets you moving."
		case distanceKm < 10:
			return "Moderate exercise: a ride that builds fitness and endurance."
		default:
			return "Excellent workout: a long ride that strengthens heart and legs."
		}
	case Transit:
		if distanceKm < 5 {
			return "Low activity: includes short walks to and from stops."
		}
		return "Minimal activity: mostly seated, with walks at either end."
	case Driving:
		switch {
		case distanceKm < 2:
			return "Sedentary: this short trip could easily be walked or cycled."
		case distanceKm < 5:
			return "Sedentary: consider cycling for trips of this length."
		default:
			return "Sedentary: no physical activity; consider combining with transit."
		}
	}
	return ""
}
