package geo

import (
	"encoding/json"
	"math"
	"time"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// MinRegionSpan keeps a region around a single point or a straight line from
// collapsing to zero size.
const MinRegionSpan = 0.01

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fix is a single GPS sample as delivered by the location provider.
// Course is negative when the provider has no valid heading.
type Fix struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Timestamp          time.Time `json:"timestamp"`
	Speed              float64   `json:"speed"`
	Altitude           float64   `json:"altitude"`
	Course             float64   `json:"course"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	VerticalAccuracy   float64   `json:"vertical_accuracy"`
}

// Coordinate returns the position of the fix.
func (f Fix) Coordinate() Coordinate {
	return Coordinate{Latitude: f.Latitude, Longitude: f.Longitude}
}

// HasCourse reports whether the fix carries a usable heading.
func (f Fix) HasCourse() bool {
	return f.Course >= 0 && f.Course < 360 && !math.IsNaN(f.Course)
}

// NoCourse marks a fix without a usable heading.
const NoCourse = -1.0

// UnmarshalJSON decodes a fix whose course may be absent; a missing course
// becomes NoCourse rather than a heading of north.
func (f *Fix) UnmarshalJSON(data []byte) error {
	type plain Fix
	v := plain{Course: NoCourse}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Fix(v)
	return nil
}

// Normalized returns the fix with every optional field in its documented
// range: speed floored to zero, an invalid course set to NoCourse, unknown
// accuracies set to -1 and a non-finite altitude set to zero.
func (f Fix) Normalized() Fix {
	if f.Speed < 0 || !finite(f.Speed) {
		f.Speed = 0
	}
	if f.Course < 0 || f.Course >= 360 || !finite(f.Course) {
		f.Course = NoCourse
	}
	if !finite(f.HorizontalAccuracy) {
		f.HorizontalAccuracy = -1
	}
	if !finite(f.VerticalAccuracy) {
		f.VerticalAccuracy = -1
	}
	if !finite(f.Altitude) {
		f.Altitude = 0
	}
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Distance returns the great-circle distance in meters between two
// coordinates. s2 computes the central angle with the haversine formula.
func Distance(a, b Coordinate) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Span is the size of a region in degrees.
type Span struct {
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// Region is a map viewport.
type Region struct {
	Center Coordinate `json:"center"`
	Span   Span       `json:"span"`
}

// IsZero reports whether the region carries no extent at all.
func (r Region) IsZero() bool {
	return r == Region{}
}

// RegionAround builds a region of roughly the given size in meters centered
// on c.
func RegionAround(c Coordinate, meters float64) Region {
	latDelta := meters / EarthRadiusMeters * 180 / math.Pi
	lonDelta := latDelta
	if cos := math.Cos(c.Latitude * math.Pi / 180); cos > 1e-9 {
		lonDelta = latDelta / cos
	}
	return Region{
		Center: c,
		Span:   Span{LatitudeDelta: latDelta, LongitudeDelta: lonDelta},
	}
}

// BoundingRegion returns a region enclosing all coordinates padded by half
// on each axis. It returns false when coords is empty.
func BoundingRegion(coords []Coordinate) (Region, bool) {
	if len(coords) == 0 {
		return Region{}, false
	}

	minLat, maxLat := coords[0].Latitude, coords[0].Latitude
	minLon, maxLon := coords[0].Longitude, coords[0].Longitude
	for _, c := range coords[1:] {
		minLat = math.Min(minLat, c.Latitude)
		maxLat = math.Max(maxLat, c.Latitude)
		minLon = math.Min(minLon, c.Longitude)
		maxLon = math.Max(maxLon, c.Longitude)
	}

	return Region{
		Center: Coordinate{
			Latitude:  (minLat + maxLat) / 2,
			Longitude: (minLon + maxLon) / 2,
		},
		Span: Span{
			LatitudeDelta:  math.Max((maxLat-minLat)*1.5, MinRegionSpan),
			LongitudeDelta: math.Max((maxLon-minLon)*1.5, MinRegionSpan),
		},
	}, true
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW", "N"}

// Compass maps a course in degrees to an eight-point compass label, or
// "N/A" when the course is invalid.
func Compass(course float64) string {
	if course < 0 || math.IsNaN(course) {
		return "N/A"
	}
	idx := int(math.Round(math.Mod(course, 360) / 45))
	return compassPoints[idx]
}
