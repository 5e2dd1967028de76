package domain

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// earthRadiusKm is the mean Earth radius used for great-circle lengths.
const earthRadiusKm = 6371.0

// SpatialExtent is (min lon, max lon, min lat, max lat) in degrees.
type SpatialExtent struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
}

// SpatialLength is the physical distance spanned by a grid, in km.
type SpatialLength struct {
	X, Y float64
}

var errEmptyCoordinates = errors.New("empty coordinate array")

// ExtentOf derives the bounding extent of a grid from its coordinates.
func ExtentOf(lons, lats []float64) (SpatialExtent, error) {
	if len(lons) == 0 || len(lats) == 0 {
		return SpatialExtent{}, errEmptyCoordinates
	}
	return SpatialExtent{
		MinLon: floats.Min(lons),
		MaxLon: floats.Max(lons),
		MinLat: floats.Min(lats),
		MaxLat: floats.Max(lats),
	}, nil
}

// LengthOf returns the east-west span along the central latitude and the
// north-south span along the central longitude.
func LengthOf(lons, lats []float64) (SpatialLength, error) {
	e, err := ExtentOf(lons, lats)
	if err != nil {
		return SpatialLength{}, err
	}
	midLat := (e.MinLat + e.MaxLat) / 2
	midLon := (e.MinLon + e.MaxLon) / 2
	return SpatialLength{
		X: haversineKm(midLat, e.MinLon, midLat, e.MaxLon),
		Y: haversineKm(e.MinLat, midLon, e.MaxLat, midLon),
	}, nil
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
