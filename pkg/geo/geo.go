// Package geo provides the spherical distance and search radius math used to
// turn a geocoded bounding box into an Overpass query radius.
package geo

import "math"

// EarthRadiusMeters is the mean radius of Earth according to WGS-84.
const EarthRadiusMeters = 6371000.0

const (
	// MinSearchRadiusMeters and MaxSearchRadiusMeters clamp the computed
	// search radius. Overpass mirrors enforce practical query size and
	// time limits, so the radius must never be unbounded for sprawling
	// bounding boxes, nor degenerate to zero for point-like ones.
	MinSearchRadiusMeters = 2500.0
	MaxSearchRadiusMeters = 30000.0

	// DefaultSearchRadiusMeters is substituted when the bounding box or
	// centroid is missing or non-finite.
	DefaultSearchRadiusMeters = 9000.0

	// radiusPadding widens the centroid-to-edge distance slightly so
	// venues right on the box edge are still captured.
	radiusPadding = 1.05
)

// BoundingBox is a south/west/north/east rectangle in degrees.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Valid reports whether every edge of the box is a finite number.
func (b BoundingBox) Valid() bool {
	return isFinite(b.South) && isFinite(b.West) && isFinite(b.North) && isFinite(b.East)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// DistanceMeters calculates the great-circle distance between two points
// given their latitude and longitude in degrees, using the haversine formula.
// The result is in meters and always non-negative.
func DistanceMeters(latA, lonA, latB, lonB float64) float64 {
	lat1 := latA * math.Pi / 180.0
	lon1 := lonA * math.Pi / 180.0
	lat2 := latB * math.Pi / 180.0
	lon2 := lonB * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return EarthRadiusMeters * c
}

// SearchRadiusMeters computes the venue search radius for a location: the
// maximum of the four centroid-to-edge distances, padded by 5% and clamped to
// [MinSearchRadiusMeters, MaxSearchRadiusMeters]. A malformed box or centroid
// yields DefaultSearchRadiusMeters. The centroid is not required to lie
// inside the box; some geocoders return centroids outside sprawling
// administrative boundaries.
func SearchRadiusMeters(box BoundingBox, centroidLat, centroidLon float64) float64 {
	if !box.Valid() || !isFinite(centroidLat) || !isFinite(centroidLon) {
		return DefaultSearchRadiusMeters
	}

	north := DistanceMeters(centroidLat, centroidLon, box.North, centroidLon)
	south := DistanceMeters(centroidLat, centroidLon, box.South, centroidLon)
	east := DistanceMeters(centroidLat, centroidLon, centroidLat, box.East)
	west := DistanceMeters(centroidLat, centroidLon, centroidLat, box.West)

	radius := math.Max(math.Max(north, south), math.Max(east, west)) * radiusPadding

	if radius < MinSearchRadiusMeters {
		return MinSearchRadiusMeters
	}
	if radius > MaxSearchRadiusMeters {
		return MaxSearchRadiusMeters
	}
	return radius
}
