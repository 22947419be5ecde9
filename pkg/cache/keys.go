package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/NERVsystems/greenroute/pkg/core"
)

// GeocodeParams are the optional geocoding inputs that affect the response.
// Zero values mean "not provided".
type GeocodeParams struct {
	Limit     int
	Proximity *core.Coordinate
	BBox      *[4]float64
	Types     []string
}

// canonical returns the provided params as a JSON object with sorted keys.
func (p GeocodeParams) canonical() (string, error) {
	fields := map[string]any{}
	if p.Limit != 0 {
		fields["limit"] = p.Limit
	}
	if p.Proximity != nil {
		fields["proximity"] = []float64{p.Proximity.Longitude, p.Proximity.Latitude}
	}
	if p.BBox != nil {
		fields["bbox"] = p.BBox[:]
	}
	if p.Types != nil {
		fields["types"] = p.Types
	}
	// encoding/json sorts map keys
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GeocodingKey derives the cache key for a forward geocoding request.
func GeocodingKey(query string, params GeocodeParams) (string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", errors.New("geocoding key: empty query")
	}
	opts, err := params.canonical()
	if err != nil {
		return "", fmt.Errorf("geocoding key: %w", err)
	}
	return "geocoding:" + q + ":" + opts, nil
}

// DirectionsKey derives the cache key for a directions request.
func DirectionsKey(start, end core.Coordinate, profile string) (string, error) {
	if profile == "" {
		return "", errors.New("directions key: empty profile")
	}
	for _, v := range []float64{start.Longitude, start.Latitude, end.Longitude, end.Latitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", errors.New("directions key: coordinate is not finite")
		}
	}
	return "directions:" + formatFloat(start.Longitude) + "," + formatFloat(start.Latitude) +
		":" + formatFloat(end.Longitude) + "," + formatFloat(end.Latitude) +
		":" + profile, nil
}

// ReverseGeocodingKey derives the cache key for a reverse geocoding request.
func ReverseGeocodingKey(at core.Coordinate) (string, error) {
	if math.IsNaN(at.Longitude) || math.IsNaN(at.Latitude) ||
		math.IsInf(at.Longitude, 0) || math.IsInf(at.Latitude, 0) {
		return "", errors.New("reverse geocoding key: coordinate is not finite")
	}
	return "geocoding:reverse:" + formatFloat(at.Longitude) + "," + formatFloat(at.Latitude), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
