// Package emissions derives carbon, cost and health metrics for a trip.
package emissions

import (
	"strings"

	"github.com/NERVsystems/greenroute/pkg/core"
)

// Mode is a transport mode.
type Mode string

const (
	Walking Mode = "walking"
	Cycling Mode = "cycling"
	Driving Mode = "driving"
	Transit Mode = "transit"
)

// Profile holds the fixed per-kilometre factors of a mode.
type Profile struct {
	Mode            Mode
	EmissionsFactor float64 // kg CO2 per km
	CostFactor      float64 // currency per km
	CaloriesFactor  float64 // kcal per km, meaningful when HasCalories
	HasCalories     bool
}

var profiles = map[Mode]Profile{
	Walking: {Mode: Walking, CaloriesFactor: 45, HasCalories: true},
	Cycling: {Mode: Cycling, CaloriesFactor: 30, HasCalories: true},
	Driving: {Mode: Driving, EmissionsFactor: 0.18, CostFactor: 0.15},
	Transit: {Mode: Transit, EmissionsFactor: 0.089, CostFactor: 0.12},
}

// Modes returns every supported mode in a stable order.
func Modes() []Mode {
	return []Mode{Walking, Cycling, Driving, Transit}
}

// ModeNames returns the supported modes as strings.
func ModeNames() []string {
	names := make([]string, 0, len(profiles))
	for _, m := range Modes() {
		names = append(names, string(m))
	}
	return names
}

// ParseMode converts s to a Mode, failing with UNKNOWN_MODE.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[m]; !ok {
		return "", core.NewUnknownModeError(s)
	}
	return m, nil
}

// ProfileFor returns the factors for mode.
func ProfileFor(mode Mode) (Profile, error) {
	p, ok := profiles[mode]
	if !ok {
		return Profile{}, core.NewUnknownModeError(string(mode))
	}
	return p, nil
}
