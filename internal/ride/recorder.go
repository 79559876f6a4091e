package ride

import (
	"errors"
	"log/slog"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
)

var (
	ErrAlreadyRecording = errors.New("a ride is already being recorded")
	ErrNotRecording     = errors.New("no ride is being recorded")
)

// DefaultMaxHorizontalAccuracy drops fixes whose accuracy radius is this
// large or larger.
const DefaultMaxHorizontalAccuracy = 50.0

type RecorderEventType string

const (
	RecordingStarted   RecorderEventType = "recording_started"
	FixRecorded        RecorderEventType = "fix_recorded"
	RecordingStopped   RecorderEventType = "recording_stopped"
	RecordingDiscarded RecorderEventType = "recording_discarded"
)

type RecorderEvent struct {
	Type RecorderEventType `json:"type"`
	Ride Ride              `json:"ride"`
	Fix  *geo.Fix          `json:"fix,omitempty"`
}

// Recorder owns the trace of the ride in progress. It is not safe for
// concurrent use; the host delivers fixes and commands from one goroutine
// at a time.
type Recorder struct {
	logger      *slog.Logger
	now         func() time.Time
	maxAccuracy float64

	active    *Ride
	listeners []recorderListener
	nextID    int
}

type recorderListener struct {
	id int
	fn func(RecorderEvent)
}

type RecorderOption func(*Recorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithMaxHorizontalAccuracy overrides DefaultMaxHorizontalAccuracy. Values
// that are not positive are ignored.
func WithMaxHorizontalAccuracy(meters float64) RecorderOption {
	return func(r *Recorder) {
		if meters > 0 {
			r.maxAccuracy = meters
		}
	}
}

func NewRecorder(logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		logger:      logger,
		now:         time.Now,
		maxAccuracy: DefaultMaxHorizontalAccuracy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn for every recorder event and returns a function
// removing it again. Listeners are called in subscription order.
func (r *Recorder) Subscribe(fn func(RecorderEvent)) func() {
	id := r.nextID
	r.nextID++
	r.listeners = append(r.listeners, recorderListener{id: id, fn: fn})
	return func() {
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

func (r *Recorder) Recording() bool {
	return r.active != nil
}

func (r *Recorder) Start(name string) (Ride, error) {
	if r.active != nil {
		return Ride{}, ErrAlreadyRecording
	}

	ride := New(name, r.now())
	r.active = &ride
	r.logger.Info("Started recording", slog.String("ride", ride.ID.String()), slog.String("name", ride.Name))
	r.emit(RecorderEvent{Type: RecordingStarted, Ride: r.snapshot()})
	return r.snapshot(), nil
}

// Record appends fix to the active ride. Fixes arriving while nothing is
// being recorded, or with an unusable accuracy, are dropped and false is
// returned.
func (r *Recorder) Record(fix geo.Fix) bool {
	if r.active == nil {
		return false
	}
	fix = fix.Normalized()
	if fix.HorizontalAccuracy < 0 || fix.HorizontalAccuracy >= r.maxAccuracy {
		r.logger.Debug("Dropped inaccurate fix", slog.Float64("accuracy", fix.HorizontalAccuracy))
		return false
	}
	r.active.Trace = append(r.active.Trace, fix)
	r.emit(RecorderEvent{Type: FixRecorded, Ride: r.snapshot(), Fix: &fix})
	return true
}

// Stop closes the active ride and hands it back; the recorder no longer
// references it afterwards.
func (r *Recorder) Stop() (Ride, error) {
	if r.active == nil {
		return Ride{}, ErrNotRecording
	}

	end := r.now()
	r.active.EndTime = &end
	ride := r.snapshot()
	r.active = nil

	r.logger.Info("Stopped recording", slog.String("ride", ride.ID.String()), slog.Int("fixes", len(ride.Trace)))
	r.emit(RecorderEvent{Type: RecordingStopped, Ride: ride})
	return ride, nil
}

func (r *Recorder) Discard() {
	if r.active == nil {
		return
	}

	ride := r.snapshot()
	r.active = nil
	r.logger.Info("Discarded recording", slog.String("ride", ride.ID.String()))
	r.emit(RecorderEvent{Type: RecordingDiscarded, Ride: ride})
}

// Active returns a copy of the ride being recorded.
func (r *Recorder) Active() (Ride, bool) {
	if r.active == nil {
		return Ride{}, false
	}
	return r.snapshot(), true
}

// Stats derives live statistics of the ride being recorded.
func (r *Recorder) Stats() (Statistics, bool) {
	if r.active == nil {
		return Statistics{}, false
	}
	return r.active.Stats(r.now()), true
}

func (r *Recorder) snapshot() Ride {
	ride := *r.active
	ride.Trace = append(Trace(nil), r.active.Trace...)
	if ride.Trace == nil {
		ride.Trace = Trace{}
	}
	return ride
}

func (r *Recorder) emit(e RecorderEvent) {
	for _, l := range r.listeners {
		l.fn(e)
	}
}
