package ride

import (
	"errors"
	"fmt"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/tkrajina/gpxgo/gpx"
)

var ErrEmptyGPX = errors.New("gpx contains no track points")

const gpxCreator = "moto"

// ExportGPX writes the ride as a single-track GPX 1.1 document.
func ExportGPX(r Ride) ([]byte, error) {
	segment := gpx.GPXTrackSegment{}
	for _, f := range r.Trace {
		segment.Points = append(segment.Points, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  f.Latitude,
				Longitude: f.Longitude,
				Elevation: *gpx.NewNullableFloat64(f.Altitude),
			},
			Timestamp: f.Timestamp,
		})
	}

	start := r.StartTime
	g := &gpx.GPX{
		Creator: gpxCreator,
		Name:    r.Name,
		Time:    &start,
		Tracks: []gpx.GPXTrack{{
			Name:     r.Name,
			Type:     "motorcycling",
			Segments: []gpx.GPXTrackSegment{segment},
		}},
	}

	data, err := g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("writing gpx for ride %s: %w", r.ID, err)
	}
	return data, nil
}

// ImportGPX builds a finished ride from the tracks of a GPX document. GPX
// carries no speed, so each fix gets the speed of the segment leading to it.
func ImportGPX(data []byte) (Ride, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return Ride{}, fmt.Errorf("parsing gpx: %w", err)
	}

	var trace Trace
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				trace = append(trace, fixFromPoint(p, trace))
			}
		}
	}
	if len(trace) == 0 {
		return Ride{}, ErrEmptyGPX
	}

	start := trace[0].Timestamp
	if g.Time != nil && (start.IsZero() || g.Time.Before(start)) {
		start = *g.Time
	}

	name := g.Name
	if name == "" && len(g.Tracks) > 0 {
		name = g.Tracks[0].Name
	}
	if name == "" && g.Description == "" {
		name = nameForTime(start)
	}

	r := New(name, start)
	r.Trace = trace
	end := trace[len(trace)-1].Timestamp
	if end.Before(start) {
		end = start
	}
	r.EndTime = &end
	return r, nil
}

func fixFromPoint(p gpx.GPXPoint, previous Trace) geo.Fix {
	f := geo.Fix{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: p.Timestamp,
		Course:    -1,
	}
	if p.Elevation.NotNull() {
		f.Altitude = p.Elevation.Value()
	}

	if len(previous) > 0 {
		last := previous[len(previous)-1]
		if dt := f.Timestamp.Sub(last.Timestamp).Seconds(); dt > 0 {
			f.Speed = geo.Distance(last.Coordinate(), f.Coordinate()) / dt
		}
	}
	return f
}
