package ride

import (
	"math"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
)

// Statistics is derived from a trace on demand and never stored.
type Statistics struct {
	Distance     float64       `json:"distance"`
	Duration     time.Duration `json:"duration"`
	AverageSpeed float64       `json:"average_speed"`
	MaxSpeed     float64       `json:"max_speed"`
	MinAltitude  float64       `json:"min_altitude"`
	MaxAltitude  float64       `json:"max_altitude"`
	TotalAscent  float64       `json:"total_ascent"`
	TotalDescent float64       `json:"total_descent"`
	Region       *geo.Region   `json:"region,omitempty"`
}

// Compute derives every statistic of the trace. end is the ride's end time,
// or the current time for a ride still being recorded.
func Compute(trace Trace, end time.Time) Statistics {
	s := Statistics{
		Distance:     Distance(trace),
		Duration:     Duration(trace, end),
		AverageSpeed: AverageSpeed(trace),
		MaxSpeed:     MaxSpeed(trace),
		MinAltitude:  MinAltitude(trace),
		MaxAltitude:  MaxAltitude(trace),
		TotalAscent:  TotalAscent(trace),
		TotalDescent: TotalDescent(trace),
	}
	if region, ok := BoundingRegion(trace); ok {
		s.Region = &region
	}
	return s
}

// Distance sums the haversine lengths of consecutive segments, ignoring
// altitude.
func Distance(trace Trace) float64 {
	if len(trace) < 2 {
		return 0
	}

	total := 0.0
	for i := 1; i < len(trace); i++ {
		total += geo.Distance(trace[i-1].Coordinate(), trace[i].Coordinate())
	}
	return total
}

// Duration measures from the first fix to end. An empty trace has zero
// duration.
func Duration(trace Trace, end time.Time) time.Duration {
	if len(trace) == 0 {
		return 0
	}
	return end.Sub(trace[0].Timestamp)
}

// AverageSpeed is the unweighted mean of the per-fix speed samples, not
// distance over duration.
func AverageSpeed(trace Trace) float64 {
	if len(trace) == 0 {
		return 0
	}

	total := 0.0
	for _, f := range trace {
		total += f.Speed
	}
	return total / float64(len(trace))
}

func MaxSpeed(trace Trace) float64 {
	if len(trace) == 0 {
		return 0
	}

	top := trace[0].Speed
	for _, f := range trace[1:] {
		top = math.Max(top, f.Speed)
	}
	return top
}

func TotalAscent(trace Trace) float64 {
	ascent := 0.0
	for i := 1; i < len(trace); i++ {
		if diff := trace[i].Altitude - trace[i-1].Altitude; diff > 0 {
			ascent += diff
		}
	}
	return ascent
}

func TotalDescent(trace Trace) float64 {
	descent := 0.0
	for i := 1; i < len(trace); i++ {
		if diff := trace[i].Altitude - trace[i-1].Altitude; diff < 0 {
			descent -= diff
		}
	}
	return descent
}

// MinAltitude returns 0 for an empty trace.
func MinAltitude(trace Trace) float64 {
	if len(trace) == 0 {
		return 0
	}

	low := trace[0].Altitude
	for _, f := range trace[1:] {
		low = math.Min(low, f.Altitude)
	}
	return low
}

// MaxAltitude returns 0 for an empty trace.
func MaxAltitude(trace Trace) float64 {
	if len(trace) == 0 {
		return 0
	}

	high := trace[0].Altitude
	for _, f := range trace[1:] {
		high = math.Max(high, f.Altitude)
	}
	return high
}

// BoundingRegion frames the whole trace for display.
func BoundingRegion(trace Trace) (geo.Region, bool) {
	return geo.BoundingRegion(trace.Coordinates())
}

// Splits cuts the trace into one kilometer splits, followed by a partial
// split for whatever distance is left over.
func Splits(trace Trace) []Split {
	var splits []Split
	if len(trace) < 2 {
		return splits
	}

	totalDistance := 0.0
	startTime := trace[0].Timestamp

	for i := 1; i < len(trace); i++ {
		p1 := trace[i-1]
		p2 := trace[i]

		totalDistance += geo.Distance(p1.Coordinate(), p2.Coordinate())

		for totalDistance >= 1000 {
			splits = append(splits, Split{
				Distance:  1000,
				SplitTime: p2.Timestamp.Sub(startTime).Seconds(),
				Elevation: p2.Altitude,
			})

			startTime = p2.Timestamp
			totalDistance -= 1000
		}
	}

	if totalDistance > 0 {
		last := trace[len(trace)-1]
		splits = append(splits, Split{
			Distance:  totalDistance,
			SplitTime: last.Timestamp.Sub(startTime).Seconds(),
			Elevation: last.Altitude,
		})
	}

	return splits
}
