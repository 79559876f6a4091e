package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/briangreenhill/moto/internal/navigation"
	"github.com/briangreenhill/moto/internal/ride"
	"github.com/briangreenhill/moto/internal/units"
	"github.com/google/uuid"
)

var ErrNoPlaceSelected = errors.New("no place matches the search")

// Session is the single logical thread of the app. The recorder and the
// navigation tracker are not safe for concurrent use, so every command and
// every fix goes through the session lock.
type Session struct {
	logger   *slog.Logger
	library  *ride.Library
	recorder *ride.Recorder
	tracker  *navigation.Tracker
	hub      *Hub
	options  navigation.RouteOptions

	mu       sync.Mutex
	planner  *navigation.Planner
	location *geo.Fix
	places   []navigation.Place
}

type RecordingStatus struct {
	Recording bool             `json:"recording"`
	Ride      *ride.Ride       `json:"ride,omitempty"`
	Stats     *ride.Statistics `json:"stats,omitempty"`
	Location  *geo.Fix         `json:"location,omitempty"`
	Heading   string           `json:"heading,omitempty"`
}

func NewSession(logger *slog.Logger, library *ride.Library, recorder *ride.Recorder, tracker *navigation.Tracker, provider *navigation.GPXProvider, options navigation.RouteOptions, hub *Hub) *Session {
	s := &Session{
		logger:   logger,
		library:  library,
		recorder: recorder,
		tracker:  tracker,
		hub:      hub,
		options:  options,
		planner:  navigation.NewPlanner(provider, provider, tracker, logger, options),
	}

	recorder.Subscribe(func(e ride.RecorderEvent) {
		if e.Type == ride.FixRecorded {
			// fixes are published together with the navigation state in HandleFix
			return
		}
		hub.Publish(string(e.Type), e.Ride)
	})
	tracker.Subscribe(func(e navigation.Event) {
		hub.Publish("navigation_"+string(e.Type), e)
	})
	return s
}

// UseRoutes replaces the routes and places the planner answers from.
func (s *Session) UseRoutes(provider *navigation.GPXProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planner = navigation.NewPlanner(provider, provider, s.tracker, s.logger, s.options)
}

// HandleFix delivers one location fix to the recorder and to the tracker.
// It reports whether the fix was appended to the ride being recorded.
func (s *Session) HandleFix(fix geo.Fix) (bool, []navigation.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fix = fix.Normalized()
	s.location = &fix

	recorded := s.recorder.Record(fix)
	events := s.tracker.OnFix(fix)

	status := s.recordingStatus()
	s.hub.Publish("location", status)
	return recorded, events
}

// Locate updates the known location without recording or navigating, so
// places can be searched and routed before the first fix is handled.
func (s *Session) Locate(fix geo.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fix = fix.Normalized()
	s.location = &fix
}

func (s *Session) StartRecording(name string) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder.Start(name)
}

// StopRecording finishes the ride in progress and adds it to the library.
func (s *Session) StopRecording(ctx context.Context) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recorder.Stop()
	if err != nil {
		return ride.Ride{}, err
	}
	if err := s.library.Add(ctx, r); err != nil {
		return r, fmt.Errorf("saving ride %s: %w", r.ID, err)
	}
	s.logger.Info("Saved ride", slog.String("id", r.ID.String()), slog.Int("fixes", len(r.Trace)))
	return r, nil
}

func (s *Session) DiscardRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder.Discard()
}

func (s *Session) Recording() RecordingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingStatus()
}

func (s *Session) recordingStatus() RecordingStatus {
	status := RecordingStatus{Location: s.location}
	if s.location != nil {
		status.Heading = units.Heading(*s.location)
	}
	if r, ok := s.recorder.Active(); ok {
		stats, _ := s.recorder.Stats()
		status.Recording = true
		status.Ride = &r
		status.Stats = &stats
	}
	return status
}

// Search looks places up near the last known location and remembers the
// results for RouteToResult.
func (s *Session) Search(ctx context.Context, query string) ([]navigation.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	places, err := s.planner.Search(ctx, query, s.location)
	if err != nil {
		return nil, err
	}
	s.places = places
	return places, nil
}

// RouteTo calculates routes from the last known location to place.
func (s *Session) RouteTo(ctx context.Context, place navigation.Place) ([]navigation.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.Calculate(ctx, place, s.location)
}

// RouteToResult calculates routes to the index-th place of the last search.
func (s *Session) RouteToResult(ctx context.Context, index int) ([]navigation.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.places) {
		return nil, ErrNoPlaceSelected
	}
	return s.planner.Calculate(ctx, s.places[index], s.location)
}

func (s *Session) SelectRoute(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.SelectAlternative(index)
}

func (s *Session) StartNavigation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.StartSelected()
}

func (s *Session) StopNavigation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Stop()
}

func (s *Session) Navigation() navigation.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.State()
}

// Location returns the last fix delivered, if any.
func (s *Session) Location() (geo.Fix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return geo.Fix{}, false
	}
	return *s.location, true
}

// Ride returns a stored ride or the one being recorded.
func (s *Session) Ride(id uuid.UUID) (ride.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recorder.Active(); ok && r.ID == id {
		return r, nil
	}
	return s.library.Get(id)
}
