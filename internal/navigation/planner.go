package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/briangreenhill/moto/internal/geo"
)

var (
	ErrLocationUnavailable = errors.New("current location is not available")
	ErrNoResults           = errors.New("no results found")
)

// SearchRadius is the size of the region search results are biased towards
// when the current position is known.
const SearchRadius = 5000.0

type RouteRequest struct {
	Origin        geo.Coordinate `json:"origin"`
	Destination   geo.Coordinate `json:"destination"`
	TransportType TransportType  `json:"transport_type"`
	AvoidHighways bool           `json:"avoid_highways"`
	AvoidTolls    bool           `json:"avoid_tolls"`
	Alternatives  bool           `json:"alternatives"`
}

// Directions computes candidate routes between two points.
type Directions interface {
	Routes(ctx context.Context, req RouteRequest) ([]Route, error)
}

// Places looks up destinations by free text.
type Places interface {
	Search(ctx context.Context, query string, bias geo.Region) ([]Place, error)
}

type RouteOptions struct {
	TransportType TransportType
	AvoidHighways bool
	AvoidTolls    bool
}

// Planner runs place searches and route calculations and hands the
// resulting routes to a Tracker.
type Planner struct {
	directions Directions
	places     Places
	tracker    *Tracker
	logger     *slog.Logger
	options    RouteOptions
}

func NewPlanner(directions Directions, places Places, tracker *Tracker, logger *slog.Logger, options RouteOptions) *Planner {
	if options.TransportType == "" {
		options.TransportType = Automobile
	}
	return &Planner{
		directions: directions,
		places:     places,
		tracker:    tracker,
		logger:     logger,
		options:    options,
	}
}

// Search finds places matching query, biased towards near when known.
func (p *Planner) Search(ctx context.Context, query string, near *geo.Fix) ([]Place, error) {
	var bias geo.Region
	if near != nil {
		bias = geo.RegionAround(near.Coordinate(), SearchRadius)
	}

	results, err := p.places.Search(ctx, query, bias)
	if err != nil {
		p.logger.Error("Error searching places", slog.String("query", query), slog.Any("error", err))
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// Calculate requests routes from origin to destination and prepares the
// tracker with them. The first route becomes the working route.
func (p *Planner) Calculate(ctx context.Context, destination Place, origin *geo.Fix) ([]Route, error) {
	if origin == nil {
		return nil, ErrLocationUnavailable
	}

	routes, err := p.directions.Routes(ctx, RouteRequest{
		Origin:        origin.Coordinate(),
		Destination:   destination.Coordinate,
		TransportType: p.options.TransportType,
		AvoidHighways: p.options.AvoidHighways,
		AvoidTolls:    p.options.AvoidTolls,
		Alternatives:  true,
	})
	if err != nil {
		p.logger.Error("Error calculating route", slog.String("destination", destination.Name), slog.Any("error", err))
		return nil, fmt.Errorf("calculating route to %s: %w", destination.Name, err)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}

	if err := p.tracker.Prepare(routes); err != nil {
		return nil, err
	}
	p.logger.Info("Calculated routes", slog.String("destination", destination.Name), slog.Int("routes", len(routes)))
	return routes, nil
}
