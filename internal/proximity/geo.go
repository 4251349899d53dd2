package proximity

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

const earthRadiusMeters = 6371000.0

type Point struct {
	Latitude  float64
	Longitude float64
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders meters for a notification: under 100 m is "less than 100 meters",
// under 1 km is floored to the hundred, anything else is km with one decimal.
func FormatDistance(meters float64) string {
	switch {
	case meters < 100:
		return "less than 100 meters"
	case meters < 1000:
		return strconv.Itoa(int(meters/100)*100) + " meters"
	default:
		return decimal.NewFromFloat(meters/1000).StringFixed(1) + " km"
	}
}
