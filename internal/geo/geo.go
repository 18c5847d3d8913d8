// Package geo provides the distance contract used by checkout pricing.
package geo

import (
	"math"

	"snapkart-be/internal/apperr"
)

const earthRadiusKm = 6371

// DistanceProvider returns the distance in kilometres between two points.
type DistanceProvider interface {
	DistanceKm(lat1, lng1, lat2, lng2 float64) (float64, error)
}

// Haversine is the default great-circle DistanceProvider.
type Haversine struct{}

func (Haversine) DistanceKm(lat1, lng1, lat2, lng2 float64) (float64, error) {
	if err := ValidatePoint(lat1, lng1); err != nil {
		return 0, err
	}
	if err := ValidatePoint(lat2, lng2); err != nil {
		return 0, err
	}
	return HaversineKm(lat1, lng1, lat2, lng2), nil
}

// HaversineKm is rounded to 2 decimal places.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(earthRadiusKm*c*100) / 100
}

func ValidatePoint(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperr.Validationf("invalid coordinates (%.6f, %.6f)", lat, lng)
	}
	return nil
}
