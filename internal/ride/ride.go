package ride

import (
	"time"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/google/uuid"
)

// Trace is the ordered list of fixes of one ride, in arrival order.
type Trace []geo.Fix

// Coordinates returns the positions of the trace.
func (t Trace) Coordinates() []geo.Coordinate {
	coords := make([]geo.Coordinate, len(t))
	for i, f := range t {
		coords[i] = f.Coordinate()
	}
	return coords
}

// Normalized returns a copy of the trace with every fix normalized.
func (t Trace) Normalized() Trace {
	if t == nil {
		return nil
	}
	out := make(Trace, len(t))
	for i, f := range t {
		out[i] = f.Normalized()
	}
	return out
}

type Split struct {
	Distance  float64 `json:"distance"`
	SplitTime float64 `json:"split_time"`
	Elevation float64 `json:"elevation"`
}

// Ride is a recorded ride. EndTime is nil while the ride is still being
// recorded.
type Ride struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Trace     Trace      `json:"location_points"`
}

func New(name string, start time.Time) Ride {
	if name == "" {
		name = DefaultName
	}
	return Ride{
		ID:        uuid.New(),
		Name:      name,
		StartTime: start,
		Trace:     Trace{},
	}
}

const DefaultName = "My Ride"

// Finished reports whether recording of the ride has stopped.
func (r Ride) Finished() bool {
	return r.EndTime != nil
}

// Duration is the wall time from start to end, or to now while open.
func (r Ride) Duration(now time.Time) time.Duration {
	end := now
	if r.EndTime != nil {
		end = *r.EndTime
	}
	return end.Sub(r.StartTime)
}

// Stats derives the statistics of the ride. The duration is measured from
// the first fix to the end time, or to now for an open ride.
func (r Ride) Stats(now time.Time) Statistics {
	end := now
	if r.EndTime != nil {
		end = *r.EndTime
	}
	return Compute(r.Trace, end)
}

// nameForTime picks a ride name from the time of day it started.
func nameForTime(t time.Time) string {
	switch {
	case t.Hour() >= 18:
		return "Night Ride"
	case t.Hour() >= 12:
		return "Afternoon Ride"
	default:
		return "Morning Ride"
	}
}
