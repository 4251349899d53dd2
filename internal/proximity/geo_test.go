package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	bogota := Point{Latitude: 4.7110, Longitude: -74.0721}

	assert.InDelta(t, 0, Haversine(bogota, bogota), 1e-9)

	// One degree of latitude along a meridian.
	d := Haversine(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 1, Longitude: 0})
	assert.InDelta(t, 111194.9, d, 1)

	medellin := Point{Latitude: 6.2442, Longitude: -75.5812}
	assert.InDelta(t, Haversine(bogota, medellin), Haversine(medellin, bogota), 1e-6)
	assert.InDelta(t, 240000, Haversine(bogota, medellin), 5000)
}

func TestHaversine_ReferencePoints(t *testing.T) {
	fix := Point{Latitude: 4.6097, Longitude: -74.0817}
	assert.Equal(t, 0.0, Haversine(fix, fix))

	// 0.008993 degrees of latitude along the meridian through fix is 1000 m.
	north := Point{Latitude: 4.6097 + 0.008993, Longitude: -74.0817}
	assert.InDelta(t, 1000, Haversine(fix, north), 1)
	assert.InDelta(t, 1000, Haversine(north, fix), 1)
}

func TestFormatDistance(t *testing.T) {
	cases := []struct {
		meters float64
		want   string
	}{
		{0, "less than 100 meters"},
		{99.9, "less than 100 meters"},
		{100, "100 meters"},
		{250, "200 meters"},
		{999.9, "900 meters"},
		{1000, "1.0 km"},
		{1250, "1.3 km"},
		{1249, "1.2 km"},
		{15400, "15.4 km"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDistance(tc.meters), "meters=%v", tc.meters)
	}
}

func TestNotifiedSet(t *testing.T) {
	set := NewNotifiedSet()
	require.True(t, set.TryAdd("o-1"))
	assert.False(t, set.TryAdd("o-1"))
	assert.True(t, set.Contains("o-1"))

	set.Remove("o-1")
	assert.True(t, set.TryAdd("o-1"))

	set.Reset()
	assert.Equal(t, 0, set.Len())
}
