package geo

import (
	"fmt"
	"math"
)

// earthRadiusKm is the mean Earth radius used by the Haversine formula.
const earthRadiusKm = 6371

// UnknownDistance is the sort value for listings whose distance cannot
// be computed, so they order after everything with a real estimate.
const UnknownDistance = 9999

// Distance returns the great-circle distance in kilometers between two
// latitude/longitude pairs (Haversine formula).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Estimate computes the display string and sort value for a viewer and a
// lender position. Either side missing coordinates means unknown.
func Estimate(viewerLat, viewerLon *float64, lenderLat, lenderLon *float64) (string, float64) {
	if viewerLat == nil || viewerLon == nil || lenderLat == nil || lenderLon == nil {
		return "Distance unknown", UnknownDistance
	}
	d := Distance(*viewerLat, *viewerLon, *lenderLat, *lenderLon)
	return FormatDistance(d), d
}

// FormatDistance renders a distance in km as the UI string, e.g. "3.2 km away".
func FormatDistance(km float64) string {
	return fmt.Sprintf("%.1f km away", km)
}
