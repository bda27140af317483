package utils

import (
	"math"
)

// HaversineDistance calculates the distance between two points on Earth using the Haversine formula
// Returns distance in kilometers
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// IsLocationValid checks if the provided coordinates are valid
func IsLocationValid(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IsLocationSet reports whether coordinates were provided at all.
// (0,0) is treated as "unknown", which is how clients send an empty pin.
func IsLocationSet(lat, lng float64) bool {
	return lat != 0 || lng != 0
}

// WithinRadius reports whether two points are at most radiusKm apart
func WithinRadius(lat1, lng1, lat2, lng2, radiusKm float64) bool {
	if radiusKm <= 0 {
		return false
	}
	return HaversineDistance(lat1, lng1, lat2, lng2) <= radiusKm
}
