package emissions

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func breakdown(p Profile, distanceKm, carbonKg float64) string {
	switch p.Mode {
	case Walking:
		return printer.Sprintf("Walking produces no direct emissions (%.3f kg CO2/km) and burns about %.0f kcal/km.",
			p.EmissionsFactor, p.CaloriesFactor)
	case Cycling:
		return printer.Sprintf("Cycling produces no direct emissions (%.3f kg CO2/km) and burns about %.0f kcal/km.",
			p.EmissionsFactor, p.CaloriesFactor)
	case Driving:
		return printer.Sprintf("Driving emits %.3f kg CO2/km, %.3f kg CO2 in total over %.2f km.",
			p.EmissionsFactor, carbonKg, distanceKm)
	case Transit:
		return printer.Sprintf("Public transit emits %.3f kg CO2/km per passenger, %.3f kg CO2 in total over %.2f km.",
			p.EmissionsFactor, carbonKg, distanceKm)
	}
	return ""
}
