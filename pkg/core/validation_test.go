package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoords(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		wantField string
	}{
		{"valid", 30.27, -97.74, ""},
		{"poles", 90, 180, ""},
		{"lat too high", 91, 0, "latitude"},
		{"lon too low", 0, -181, "longitude"},
		{"nan", math.NaN(), 0, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoords(tt.lat, tt.lon)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantField, AsError(err).Field)
			assert.True(t, HasCode(err, ErrValidation))
		})
	}
}

func TestValidateDistance(t *testing.T) {
	assert.NoError(t, ValidateDistance(0))
	assert.NoError(t, ValidateDistance(1609))
	assert.Error(t, ValidateDistance(-1))
	assert.Error(t, ValidateDistance(math.NaN()))
	assert.Error(t, ValidateDistance(math.Inf(1)))
	assert.NoError(t, ValidateDistance(MaxDistance))
	assert.True(t, HasCode(ValidateDistance(1e300), ErrValidation))
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(nil))
	d := 600.0
	assert.NoError(t, ValidateDuration(&d))
	neg := -5.0
	err := ValidateDuration(&neg)
	require.Error(t, err)
	assert.Equal(t, "duration", AsError(err).Field)
}

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("start", " -97.7431, 30.2672 ")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Longitude: -97.7431, Latitude: 30.2672}, c)
	assert.Equal(t, "-97.7431,30.2672", c.String())

	_, err = ParseCoordinate("end", "30.2672")
	require.Error(t, err)
	assert.Equal(t, "end", AsError(err).Field)

	_, err = ParseCoordinate("end", "10,95")
	require.Error(t, err)
	assert.Equal(t, "end", AsError(err).Field)
}

func TestParseBBox(t *testing.T) {
	bbox, err := ParseBBox("-98,30,-97,31")
	require.NoError(t, err)
	assert.Equal(t, [4]float64{-98, 30, -97, 31}, bbox)

	_, err = ParseBBox("-97,31,-98,30")
	assert.Error(t, err)

	_, err = ParseBBox("a,b,c,d")
	assert.Error(t, err)

	_, err = ParseBBox("1,2,3")
	assert.Error(t, err)
}
