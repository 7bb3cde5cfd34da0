package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDMSToDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantLat float64
		wantLon float64
	}{
		{name: "north east", in: "N34 23 47.1 E64 30 57.2", wantLat: 34.3964, wantLon: 64.5159},
		{name: "south west", in: "S10 0 0 W20 0 0", wantLat: -10, wantLon: -20},
		{name: "lowercase hemisphere", in: "s1 30 0 e2 15 0", wantLat: -1.5, wantLon: 2.25},
		{name: "extra whitespace", in: "  N0 0 36   E0 0 0 ", wantLat: 0.01, wantLon: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lat, lon := DMSToDecimal(tt.in)
			require.InDelta(t, tt.wantLat, lat, 1e-3)
			require.InDelta(t, tt.wantLon, lon, 1e-3)
		})
	}
}

func TestDMSToDecimalMalformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"N34 23",
		"X34 23 47.1 E64 30 57.2",
		"N34 23 47.1 N64 30 57.2",
		"E34 23 47.1 N64 30 57.2",
		"Nabc 23 47.1 E64 30 57.2",
		"N34 75 47.1 E64 30 57.2",
		"N34 23 47.1 E64 30 57.2 extra",
		"N 23 47.1 E64 30 57.2",
	}
	for _, in := range inputs {
		lat, lon := DMSToDecimal(in)
		require.True(t, math.IsNaN(lat), "lat for %q", in)
		require.True(t, math.IsNaN(lon), "lon for %q", in)
		require.False(t, Valid(lat, lon))
	}
}

func TestParseLatLongText(t *testing.T) {
	t.Parallel()

	lat, lon := Parse("Coordinates - LAT: 34.5, long: -64.25 (approx)")
	require.InDelta(t, 34.5, lat, 1e-9)
	require.InDelta(t, -64.25, lon, 1e-9)

	lat, lon = Parse("N34 23 47.1 E64 30 57.2")
	require.InDelta(t, 34.3964, lat, 1e-3)
	require.InDelta(t, 64.5159, lon, 1e-3)

	lat, lon = Parse("somewhere near the river")
	require.False(t, Valid(lat, lon))
}

func TestValidDistinguishesZero(t *testing.T) {
	t.Parallel()

	require.True(t, Valid(0, 0))
	require.False(t, Valid(math.NaN(), 0))
	require.False(t, Valid(0, math.NaN()))
}
