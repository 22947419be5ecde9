package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate is a WGS84 position. Longitude first, as providers expect.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// String renders the coordinate as "lng,lat".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewValidationError("latitude", fmt.Sprintf("latitude must be between -90 and 90, got %v", lat)).
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return NewValidationError("longitude", fmt.Sprintf("longitude must be between -180 and 180, got %v", lon)).
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// Validate checks the coordinate ranges.
func (c Coordinate) Validate() error {
	return ValidateCoords(c.Latitude, c.Longitude)
}

// MaxDistance is the longest route accepted, in metres (100,000 km).
const MaxDistance = 1e8

// ValidateDistance checks a route distance in metres.
func ValidateDistance(meters float64) error {
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return NewValidationError("distance", fmt.Sprintf("distance must be a finite non-negative number of metres, got %v", meters))
	}
	if meters > MaxDistance {
		return NewValidationError("distance", fmt.Sprintf("distance must not exceed %.0f metres, got %v", MaxDistance, meters))
	}
	return nil
}

// ValidateDuration checks an optional duration in seconds.
func ValidateDuration(seconds *float64) error {
	if seconds == nil {
		return nil
	}
	if math.IsNaN(*seconds) || math.IsInf(*seconds, 0) || *seconds < 0 {
		return NewValidationError("duration", fmt.Sprintf("duration must be a finite non-negative number of seconds, got %v", *seconds))
	}
	return nil
}

// ParseCoordinate parses a "lng,lat" pair.
func ParseCoordinate(field, s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Coordinate{}, NewValidationError(field, fmt.Sprintf("%s must be formatted as \"lng,lat\"", field))
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, NewValidationError(field, fmt.Sprintf("%s has an invalid longitude", field))
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, NewValidationError(field, fmt.Sprintf("%s has an invalid latitude", field))
	}
	c := Coordinate{Longitude: lng, Latitude: lat}
	if err := c.Validate(); err != nil {
		AsError(err).Field = field
		return Coordinate{}, err
	}
	return c, nil
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat".
func ParseBBox(s string) ([4]float64, error) {
	var bbox [4]float64
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 4 {
		return bbox, NewValidationError("bbox", "bbox must be formatted as \"minLng,minLat,maxLng,maxLat\"")
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return bbox, NewValidationError("bbox", fmt.Sprintf("bbox value %q is not a number", p))
		}
		bbox[i] = v
	}
	if err := ValidateCoords(bbox[1], bbox[0]); err != nil {
		return bbox, NewValidationError("bbox", "bbox minimum corner is out of range")
	}
	if err := ValidateCoords(bbox[3], bbox[2]); err != nil {
		return bbox, NewValidationError("bbox", "bbox maximum corner is out of range")
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return bbox, NewValidationError("bbox", "bbox minimum corner must be south-west of the maximum corner")
	}
	return bbox, nil
}
