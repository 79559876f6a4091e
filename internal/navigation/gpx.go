package navigation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/tkrajina/gpxgo/gpx"
)

// DestinationMatchRadius is how close a stored route must end to the
// requested destination to be offered.
const DestinationMatchRadius = 250.0

// DefaultCruiseSpeedKmh is used to estimate travel time of stored routes.
const DefaultCruiseSpeedKmh = 60.0

// GPXProvider answers directions and place searches from a GPX document:
// every <rte> is a candidate route whose route points anchor its steps, and
// every <wpt> is a searchable place.
type GPXProvider struct {
	routes []Route
	places []Place
}

func LoadGPX(data []byte, cruiseSpeedKmh float64) (*GPXProvider, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing gpx: %w", err)
	}
	if cruiseSpeedKmh <= 0 {
		cruiseSpeedKmh = DefaultCruiseSpeedKmh
	}

	p := &GPXProvider{}
	for i, rte := range g.Routes {
		if len(rte.Points) == 0 {
			continue
		}
		name := rte.Name
		if name == "" {
			name = fmt.Sprintf("Route %d", i+1)
		}
		p.routes = append(p.routes, routeFromPoints(name, rte.Points, cruiseSpeedKmh))
	}

	for _, wpt := range g.Waypoints {
		p.places = append(p.places, Place{
			Name:       wpt.Name,
			Address:    wpt.Description,
			Coordinate: geo.Coordinate{Latitude: wpt.Latitude, Longitude: wpt.Longitude},
		})
	}
	return p, nil
}

func routeFromPoints(name string, points []gpx.GPXPoint, cruiseSpeedKmh float64) Route {
	route := Route{
		Name:          name,
		TransportType: Automobile,
	}

	last := len(points) - 1
	for i, pt := range points {
		step := Step{
			Instruction: instructionFor(pt, i, last),
			Anchor:      geo.Coordinate{Latitude: pt.Latitude, Longitude: pt.Longitude},
		}
		if i < last {
			next := geo.Coordinate{Latitude: points[i+1].Latitude, Longitude: points[i+1].Longitude}
			step.Distance = geo.Distance(step.Anchor, next)
		}
		route.Distance += step.Distance
		route.Steps = append(route.Steps, step)
	}

	route.Destination = route.Steps[last].Anchor
	route.ExpectedTravelTime = time.Duration(route.Distance / (cruiseSpeedKmh / 3.6) * float64(time.Second))
	return route
}

func instructionFor(pt gpx.GPXPoint, i, last int) string {
	for _, text := range []string{pt.Name, pt.Description, pt.Comment} {
		if text != "" {
			return text
		}
	}
	switch i {
	case 0:
		return "Head to the start of the route"
	case last:
		return "Arrive at your destination"
	default:
		return "Continue along the route"
	}
}

func (p *GPXProvider) Routes(_ context.Context, req RouteRequest) ([]Route, error) {
	var routes []Route
	for _, r := range p.routes {
		if geo.Distance(r.Destination, req.Destination) > DestinationMatchRadius {
			continue
		}
		if req.TransportType != "" {
			r.TransportType = req.TransportType
		}
		routes = append(routes, r)
		if !req.Alternatives {
			break
		}
	}
	return routes, nil
}

func (p *GPXProvider) Search(_ context.Context, query string, bias geo.Region) ([]Place, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	var results []Place
	for _, place := range p.places {
		if strings.Contains(strings.ToLower(place.Name), q) || strings.Contains(strings.ToLower(place.Address), q) {
			results = append(results, place)
		}
	}

	if !bias.IsZero() {
		sort.SliceStable(results, func(i, j int) bool {
			return geo.Distance(results[i].Coordinate, bias.Center) < geo.Distance(results[j].Coordinate, bias.Center)
		})
	}
	return results, nil
}
