// Package coords parses user-supplied positions in the grid and angular
// notations people copy from maps, in addition to plain "lng,lat".
//
// Supported formats:
//   - Decimal: "lng,lat", the order used across greenroute (e.g. "-97.7431,30.2672")
//   - MGRS: e.g. "14RPU2137749407"
//   - UTM: e.g. "14R 621377 3349407"
//   - DMS: latitude first, e.g. "30°16'02"N 97°44'35"W"
package coords

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/akhenakh/mgrs"

	"github.com/NERVsystems/greenroute/pkg/core"
)

// Format is a coordinate notation.
type Format int

const (
	FormatUnknown Format = iota
	FormatDecimal
	FormatDMS
	FormatMGRS
	FormatUTM
)

func (f Format) String() string {
	switch f {
	case FormatDecimal:
		return "decimal"
	case FormatDMS:
		return "dms"
	case FormatMGRS:
		return "mgrs"
	case FormatUTM:
		return "utm"
	default:
		return "unknown"
	}
}

var (
	// zone, latitude band (no I/O), 100 km square, even count of digits
	mgrsRegex = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})(\d{2,10})$`)

	// zone + band, easting, northing
	utmRegex = regexp.MustCompile(`(?i)^(\d{1,2})([C-HJ-NP-X])\s+(\d+(?:\.\d+)?)\s+(\d+(?:\.\d+)?)$`)

	dmsRegex = regexp.MustCompile(`(?i)^(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([NS])[\s,]+(\d+)[°d\s]+(\d+)[′'m\s]+(\d+(?:\.\d+)?)[″"s]?\s*([EW])$`)

	decimalRegex = regexp.MustCompile(`^\s*-?\d+(?:\.\d+)?\s*,\s*-?\d+(?:\.\d+)?\s*$`)
)

// DetectFormat reports the notation of input without converting it.
func DetectFormat(input string) Format {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return FormatUnknown
	case mgrsRegex.MatchString(input):
		return FormatMGRS
	case utmRegex.MatchString(input):
		return FormatUTM
	case dmsRegex.MatchString(input):
		return FormatDMS
	case decimalRegex.MatchString(input):
		return FormatDecimal
	}
	return FormatUnknown
}

// Parse converts input in any supported notation to a validated coordinate.
// Failures are validation errors attributed to field.
func Parse(field, input string) (core.Coordinate, error) {
	input = strings.TrimSpace(input)

	var (
		c   core.Coordinate
		err error
	)
	switch DetectFormat(input) {
	case FormatDecimal:
		return core.ParseCoordinate(field, input)
	case FormatMGRS:
		c, err = parseMGRS(input)
	case FormatUTM:
		c, err = parseUTM(input)
	case FormatDMS:
		c, err = parseDMS(input)
	default:
		return core.Coordinate{}, core.NewValidationError(field,
			fmt.Sprintf("%s is not a recognised coordinate", field)).
			WithGuidance(`Use "lng,lat", MGRS, UTM or degrees-minutes-seconds`)
	}
	if err != nil {
		return core.Coordinate{}, core.NewValidationError(field, fmt.Sprintf("%s: %v", field, err))
	}
	if err := c.Validate(); err != nil {
		return core.Coordinate{}, core.AsError(err).WithField(field)
	}
	return c, nil
}

func parseMGRS(input string) (core.Coordinate, error) {
	lat, lng, err := mgrs.MGRSToLatLng(strings.ToUpper(input))
	if err != nil {
		return core.Coordinate{}, fmt.Errorf("invalid MGRS reference: %w", err)
	}
	return core.Coordinate{Longitude: lng, Latitude: lat}, nil
}

func parseUTM(input string) (core.Coordinate, error) {
	m := utmRegex.FindStringSubmatch(strings.ToUpper(input))
	zone, err := strconv.Atoi(m[1])
	if err != nil || zone < 1 || zone > 60 {
		return core.Coordinate{}, fmt.Errorf("invalid UTM zone %s", m[1])
	}
	easting, _ := strconv.ParseFloat(m[3], 64)
	northing, _ := strconv.ParseFloat(m[4], 64)

	// bands C-M lie south of the equator
	northern := m[2][0] >= 'N'
	lat, lng := utmToLatLng(zone, easting, northing, northern)
	return core.Coordinate{Longitude: lng, Latitude: lat}, nil
}

func parseDMS(input string) (core.Coordinate, error) {
	m := dmsRegex.FindStringSubmatch(input)
	lat, err := dmsToDegrees(m[1], m[2], m[3], 90)
	if err != nil {
		return core.Coordinate{}, fmt.Errorf("latitude %w", err)
	}
	lng, err := dmsToDegrees(m[5], m[6], m[7], 180)
	if err != nil {
		return core.Coordinate{}, fmt.Errorf("longitude %w", err)
	}
	if strings.EqualFold(m[4], "S") {
		lat = -lat
	}
	if strings.EqualFold(m[8], "W") {
		lng = -lng
	}
	return core.Coordinate{Longitude: lng, Latitude: lat}, nil
}

func dmsToDegrees(d, m, s string, maxDeg float64) (float64, error) {
	deg, _ := strconv.ParseFloat(d, 64)
	min, _ := strconv.ParseFloat(m, 64)
	sec, _ := strconv.ParseFloat(s, 64)
	if deg > maxDeg || min >= 60 || sec >= 60 {
		return 0, fmt.Errorf("%s°%s'%s\" is out of range", d, m, s)
	}
	return deg + min/60 + sec/3600, nil
}

// utmToLatLng inverts the transverse Mercator projection on the WGS84 ellipsoid.
func utmToLatLng(zone int, easting, northing float64, northern bool) (lat, lng float64) {
	const (
		a  = 6378137.0
		f  = 1 / 298.257223563
		k0 = 0.9996
	)

	b := a * (1 - f)
	e2 := (a*a - b*b) / (a * a)
	ep2 := (a*a - b*b) / (b * b)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	x := easting - 500000.0
	y := northing
	if !northern {
		y -= 10000000.0
	}

	lng0 := float64((zone-1)*6-180+3) * math.Pi / 180.0

	mu := (y / k0) / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1, tanPhi1 := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	n1 := a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	t1 := tanPhi1 * tanPhi1
	c1 := ep2 * cosPhi1 * cosPhi1
	r1 := a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * k0)

	lat = phi1 - (n1*tanPhi1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d*d*d*d/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d*d*d*d*d*d/720)
	lng = lng0 + (d-
		(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d*d*d*d*d/120)/cosPhi1

	return lat * 180 / math.Pi, lng * 180 / math.Pi
}
