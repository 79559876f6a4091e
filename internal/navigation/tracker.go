package navigation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
)

const (
	// StepAdvanceThreshold is how close to the current step's anchor a fix
	// must be for the next step to become current.
	StepAdvanceThreshold = 20.0
	// ArrivalThreshold is how close to the destination a fix must be for
	// navigation to complete.
	ArrivalThreshold = 20.0
)

var (
	ErrNoRoute              = errors.New("no route found")
	ErrRouteIndex           = errors.New("route index out of range")
	ErrNavigationInProgress = errors.New("navigation already under way")
)

type EventType string

const (
	EventStarted      EventType = "started"
	EventProgress     EventType = "progress"
	EventStepAdvanced EventType = "step_advanced"
	EventArrived      EventType = "arrived"
	EventStopped      EventType = "stopped"
)

type Event struct {
	Type        EventType `json:"type"`
	StepIndex   int       `json:"step_index"`
	Instruction string    `json:"instruction,omitempty"`
	Maneuver    Maneuver  `json:"maneuver,omitempty"`
	State       State     `json:"state"`
}

// State is a read-only snapshot of the navigation session.
type State struct {
	Active            bool          `json:"active"`
	Route             *Route        `json:"route,omitempty"`
	Alternatives      []Route       `json:"alternatives,omitempty"`
	StepIndex         int           `json:"step_index"`
	CurrentStep       *Step         `json:"current_step,omitempty"`
	NextStep          *Step         `json:"next_step,omitempty"`
	RemainingDistance float64       `json:"remaining_distance"`
	RemainingInStep   float64       `json:"remaining_in_step"`
	RemainingTime     time.Duration `json:"remaining_time"`
}

// Tracker follows progress along a route as fixes arrive. Steps only ever
// advance forward, by proximity to the current step's anchor; the position
// is never re-matched against earlier steps.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	logger *slog.Logger

	alternatives []Route
	route        *Route
	active       bool
	fixes        int

	stepIndex       int
	remaining       float64
	remainingInStep float64
	remainingTime   time.Duration

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(Event)
}

func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Subscribe registers fn for every navigation event and returns a function
// removing it again. Listeners are called in subscription order.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	id := t.nextID
	t.nextID++
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// Prepare loads the candidate routes of a directions response and makes the
// first one the working route without starting navigation.
func (t *Tracker) Prepare(routes []Route) error {
	if len(routes) == 0 {
		return ErrNoRoute
	}
	if t.active {
		return ErrNavigationInProgress
	}

	t.alternatives = append([]Route(nil), routes...)
	t.load(t.alternatives[0])
	return nil
}

// SelectAlternative makes alternatives[index] the working route. It is
// allowed until the first fix of an active session has been processed.
func (t *Tracker) SelectAlternative(index int) error {
	if index < 0 || index >= len(t.alternatives) {
		return ErrRouteIndex
	}
	if t.active && t.fixes > 0 {
		return ErrNavigationInProgress
	}

	t.load(t.alternatives[index])
	return nil
}

// Start begins navigating route.
func (t *Tracker) Start(route Route) {
	t.load(route)
	t.active = true
	t.fixes = 0

	t.logger.Info("Started navigation",
		slog.String("route", route.Name),
		slog.Float64("distance", route.Distance),
		slog.Int("steps", len(route.Steps)))
	t.emit([]Event{t.event(EventStarted)})
}

// StartSelected begins navigating the working route chosen by Prepare or
// SelectAlternative.
func (t *Tracker) StartSelected() error {
	if t.route == nil {
		return ErrNoRoute
	}
	t.Start(*t.route)
	return nil
}

// OnFix advances the session with a new position and returns the events it
// produced. Fixes are ignored unless navigation is active.
func (t *Tracker) OnFix(fix geo.Fix) []Event {
	if !t.active || t.route == nil {
		return nil
	}
	t.fixes++

	position := fix.Coordinate()
	route := t.route

	t.remaining = geo.Distance(position, route.Destination)
	if route.Distance > 0 {
		t.remainingTime = time.Duration(float64(route.ExpectedTravelTime) * t.remaining / route.Distance)
	}

	var events []Event
	if t.stepIndex < len(route.Steps) {
		t.remainingInStep = geo.Distance(position, route.Steps[t.stepIndex].Anchor)

		if t.remainingInStep < StepAdvanceThreshold && t.stepIndex < len(route.Steps)-1 {
			t.stepIndex++
			step := route.Steps[t.stepIndex]
			t.remainingInStep = step.Distance

			t.logger.Info("Advanced step", slog.Int("step", t.stepIndex), slog.String("instruction", step.Instruction))
			events = append(events, t.event(EventStepAdvanced))
		}
	}
	events = append(events, t.event(EventProgress))

	if t.remaining < ArrivalThreshold {
		events = append(events, t.event(EventArrived))
		t.logger.Info("Arrived at destination", slog.String("route", route.Name))
		t.reset()
	}

	t.emit(events)
	return events
}

// Stop ends navigation and forgets every route. Calling it while inactive
// is a no-op apart from dropping prepared routes.
func (t *Tracker) Stop() {
	wasActive := t.active
	t.reset()

	if wasActive {
		t.logger.Info("Stopped navigation")
		t.emit([]Event{t.event(EventStopped)})
	}
}

func (t *Tracker) Active() bool {
	return t.active
}

func (t *Tracker) State() State {
	s := State{
		Active:            t.active,
		StepIndex:         t.stepIndex,
		RemainingDistance: t.remaining,
		RemainingInStep:   t.remainingInStep,
		RemainingTime:     t.remainingTime,
	}
	if len(t.alternatives) > 0 {
		s.Alternatives = append([]Route(nil), t.alternatives...)
	}
	if t.route == nil {
		return s
	}

	route := *t.route
	s.Route = &route
	if t.stepIndex < len(route.Steps) {
		current := route.Steps[t.stepIndex]
		s.CurrentStep = &current
	}
	if t.stepIndex+1 < len(route.Steps) {
		next := route.Steps[t.stepIndex+1]
		s.NextStep = &next
	}
	return s
}

func (t *Tracker) load(route Route) {
	t.route = &route
	t.stepIndex = 0
	t.remaining = route.Distance
	t.remainingTime = route.ExpectedTravelTime
	t.remainingInStep = 0
	if len(route.Steps) > 0 {
		t.remainingInStep = route.Steps[0].Distance
	}
}

func (t *Tracker) reset() {
	t.active = false
	t.route = nil
	t.alternatives = nil
	t.fixes = 0
	t.stepIndex = 0
	t.remaining = 0
	t.remainingInStep = 0
	t.remainingTime = 0
}

func (t *Tracker) event(typ EventType) Event {
	e := Event{Type: typ, StepIndex: t.stepIndex, State: t.State()}
	if t.route != nil && t.stepIndex < len(t.route.Steps) {
		step := t.route.Steps[t.stepIndex]
		e.Instruction = step.Instruction
		e.Maneuver = step.Maneuver()
	}
	return e
}

func (t *Tracker) emit(events []Event) {
	for _, e := range events {
		for _, l := range t.listeners {
			l.fn(e)
		}
	}
}
