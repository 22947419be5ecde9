package emissions

// Recommendations suggests modes suited to a trip length.
type Recommendations struct {
	Recommended []Mode `json:"recommended"`
	Avoid       []Mode `json:"avoid"`
	Message     string `json:"message"`
}

// GetRecommendations bands a distance in kilometres into mode suggestions.
func GetRecommendations(distanceKm float64) Recommendations {
	switch {
	case distanceKm < 1:
		return Recommendations{
			Recommended: []Mode{Walking},
			Avoid:       []Mode{Driving},
			Message:     "Short distance: walking is the healthiest and cleanest choice.",
		}
	case distanceKm < 3:
		return Recommendations{
			Recommended: []Mode{Walking, Cycling},
			Avoid:       []Mode{Driving},
			Message:     "Walkable or bikeable: both are quick at this distance and produce no emissions.",
		}
	case distanceKm < 8:
		return Recommendations{
			Recommended: []Mode{Cycling, Transit},
			Avoid:       []Mode{},
			Message:     "Medium distance: cycling or public transit keeps emissions low without a long trip.",
		}
	default:
		return Recommendations{
			Recommended: []Mode{Transit, Driving},
			Avoid:       []Mode{},
			Message:     "Long distance: public transit is the cleaner option; share the ride if you drive.",
		}
	}
}
