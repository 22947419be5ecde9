package cache

import (
	"math"
	"testing"

	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodingKey(t *testing.T) {
	key, err := GeocodingKey("  Austin, TX ", GeocodeParams{})
	require.NoError(t, err)
	assert.Equal(t, "geocoding:austin, tx:{}", key)

	key, err = GeocodingKey("Austin", GeocodeParams{
		Types:     []string{"place", "address"},
		Limit:     5,
		Proximity: &core.Coordinate{Longitude: -97.74, Latitude: 30.27},
		BBox:      &[4]float64{-98, 30, -97, 31},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`geocoding:austin:{"bbox":[-98,30,-97,31],"limit":5,"proximity":[-97.74,30.27],"types":["place","address"]}`,
		key)
}

func TestGeocodingKeyNormalizesQuery(t *testing.T) {
	a, err := GeocodingKey("AUSTIN", GeocodeParams{Limit: 3})
	require.NoError(t, err)
	b, err := GeocodingKey(" austin\t", GeocodeParams{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := GeocodingKey("austin", GeocodeParams{Limit: 4})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGeocodingKeyErrors(t *testing.T) {
	_, err := GeocodingKey("   ", GeocodeParams{})
	assert.Error(t, err)

	_, err = GeocodingKey("austin", GeocodeParams{Proximity: &core.Coordinate{Longitude: math.NaN()}})
	assert.Error(t, err)
}

func TestDirectionsKey(t *testing.T) {
	start := core.Coordinate{Longitude: -97.7431, Latitude: 30.2672}
	end := core.Coordinate{Longitude: -97.7, Latitude: 30.3}

	key, err := DirectionsKey(start, end, "cycling")
	require.NoError(t, err)
	assert.Equal(t, "directions:-97.7431,30.2672:-97.7,30.3:cycling", key)

	// deterministic
	again, _ := DirectionsKey(start, end, "cycling")
	assert.Equal(t, key, again)

	reversed, _ := DirectionsKey(end, start, "cycling")
	assert.NotEqual(t, key, reversed)

	_, err = DirectionsKey(start, core.Coordinate{Longitude: math.Inf(1)}, "driving")
	assert.Error(t, err)

	_, err = DirectionsKey(start, end, "")
	assert.Error(t, err)
}

func TestReverseGeocodingKey(t *testing.T) {
	key, err := ReverseGeocodingKey(core.Coordinate{Longitude: 2.35, Latitude: 48.85})
	require.NoError(t, err)
	assert.Equal(t, "geocoding:reverse:2.35,48.85", key)

	_, err = ReverseGeocodingKey(core.Coordinate{Latitude: math.NaN()})
	assert.Error(t, err)
}
