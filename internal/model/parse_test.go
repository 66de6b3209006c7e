package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinatePair(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLat float64
		wantLon float64
	}{
		{"plain pair", "[38.9072, -77.0369]", 38.9072, -77.0369},
		{"no space after comma", "[38.9072,-77.0369]", 38.9072, -77.0369},
		{"extra whitespace", "  [ 38.9072 ,  -77.0369 ]  ", 38.9072, -77.0369},
		{"integer values", "[39, -77]", 39, -77},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCoordinatePair(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLat, c.Latitude)
			assert.Equal(t, tt.wantLon, c.Longitude)
		})
	}
}

func TestParseCoordinatePair_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no brackets", "38.9072, -77.0369"},
		{"missing close", "[38.9072, -77.0369"},
		{"one field", "[38.9072]"},
		{"three fields", "[38.9, -77.0, 1.0]"},
		{"non-numeric latitude", "[north, -77.0369]"},
		{"non-numeric longitude", "[38.9072, west]"},
		{"latitude out of range", "[91.0, -77.0369]"},
		{"longitude out of range", "[38.9072, -181.0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCoordinatePair(tt.input)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidArgument))
		})
	}
}

func TestFeatureName(t *testing.T) {
	assert.Equal(t, "0.5mi 2 dollar", FeatureName(0.5, 2))
	assert.Equal(t, "1mi 4 dollar", FeatureName(1.0, 4))
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Latitude: 38.9, Longitude: -77.0}.Valid())
	assert.True(t, Coordinate{Latitude: -90, Longitude: 180}.Valid())
	assert.False(t, Coordinate{Latitude: 90.1, Longitude: 0}.Valid())
	assert.False(t, Coordinate{Latitude: 0, Longitude: -180.1}.Valid())
}
