package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/briangreenhill/moto/internal/geo"
)

type fakeDirections struct {
	routes  []Route
	err     error
	lastReq RouteRequest
	calls   int
}

func (f *fakeDirections) Routes(_ context.Context, req RouteRequest) ([]Route, error) {
	f.calls++
	f.lastReq = req
	return f.routes, f.err
}

type fakePlaces struct {
	results  []Place
	err      error
	lastBias geo.Region
}

func (f *fakePlaces) Search(_ context.Context, _ string, bias geo.Region) ([]Place, error) {
	f.lastBias = bias
	return f.results, f.err
}

var harbour = Place{Name: "Harbour", Coordinate: geo.Coordinate{Latitude: 0, Longitude: 0.01}}

func TestPlannerCalculate(t *testing.T) {
	dirs := &fakeDirections{routes: []Route{threeStepRoute()}}
	tr := NewTracker(testLogger())
	p := NewPlanner(dirs, &fakePlaces{}, tr, testLogger(), RouteOptions{AvoidTolls: true})

	origin := at(0, 0)
	routes, err := p.Calculate(context.Background(), harbour, &origin)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route")
	}
	if dirs.lastReq.TransportType != Automobile || !dirs.lastReq.AvoidTolls || dirs.lastReq.AvoidHighways || !dirs.lastReq.Alternatives {
		t.Fatalf("options not passed through: %+v", dirs.lastReq)
	}
	if dirs.lastReq.Destination != harbour.Coordinate {
		t.Fatalf("unexpected destination")
	}

	s := tr.State()
	if s.Active || s.Route == nil || s.Route.Name != "equator" {
		t.Fatalf("expected prepared but inactive tracker: %+v", s)
	}
}

func TestPlannerCalculateErrors(t *testing.T) {
	origin := at(0, 0)
	boom := errors.New("network down")

	cases := []struct {
		name   string
		dirs   *fakeDirections
		origin *geo.Fix
		want   error
	}{
		{"no location", &fakeDirections{routes: []Route{threeStepRoute()}}, nil, ErrLocationUnavailable},
		{"no routes", &fakeDirections{}, &origin, ErrNoRoute},
		{"provider error", &fakeDirections{err: boom}, &origin, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(testLogger())
			p := NewPlanner(tc.dirs, &fakePlaces{}, tr, testLogger(), RouteOptions{})
			_, err := p.Calculate(context.Background(), harbour, tc.origin)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tr.State().Route != nil || tr.Active() {
				t.Fatalf("tracker must stay untouched on failure")
			}
		})
	}

	dirs := &fakeDirections{}
	NewPlanner(dirs, &fakePlaces{}, NewTracker(testLogger()), testLogger(), RouteOptions{}).
		Calculate(context.Background(), harbour, nil)
	if dirs.calls != 0 {
		t.Fatalf("directions must not be called without a location")
	}
}

func TestPlannerSearch(t *testing.T) {
	places := &fakePlaces{results: []Place{harbour}}
	p := NewPlanner(&fakeDirections{}, places, NewTracker(testLogger()), testLogger(), RouteOptions{})

	results, err := p.Search(context.Background(), "harb", nil)
	if err != nil || len(results) != 1 {
		t.Fatalf("search: %v %+v", err, results)
	}
	if !places.lastBias.IsZero() {
		t.Fatalf("expected no bias without a location")
	}

	near := at(45, 7)
	if _, err := p.Search(context.Background(), "harb", &near); err != nil {
		t.Fatalf("search: %v", err)
	}
	if places.lastBias.Center != near.Coordinate() || places.lastBias.Span.LatitudeDelta <= 0 {
		t.Fatalf("expected bias around location, got %+v", places.lastBias)
	}

	places.results = nil
	if _, err := p.Search(context.Background(), "nothing", nil); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}

	boom := errors.New("offline")
	places.err = boom
	if _, err := p.Search(context.Background(), "x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
