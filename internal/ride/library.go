package ride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/briangreenhill/moto/internal/store"
	"github.com/google/uuid"
)

// SaveKey is the key the ride list is kept under.
const SaveKey = "savedRides"

var ErrRideNotFound = errors.New("ride not found")

// Library is the local list of finished rides, persisted as one document in
// a key-value store after every change.
type Library struct {
	kv     store.KV
	logger *slog.Logger

	mu    sync.RWMutex
	rides []Ride
}

func NewLibrary(kv store.KV, logger *slog.Logger) *Library {
	return &Library{
		kv:     kv,
		logger: logger,
	}
}

// Load replaces the in-memory list with the persisted one. A store without
// a saved list yields an empty library.
func (l *Library) Load(ctx context.Context) error {
	data, err := l.kv.Get(ctx, SaveKey)
	if errors.Is(err, store.ErrNotFound) {
		l.mu.Lock()
		l.rides = nil
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading rides: %w", err)
	}

	rides, err := Decode(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.rides = rides
	l.mu.Unlock()
	l.logger.Info("Loaded rides", slog.Int("count", len(rides)))
	return nil
}

// Add stores r, replacing a ride with the same id. Fix fields the codec
// cannot represent are normalized first.
func (l *Library) Add(ctx context.Context, r Ride) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.Trace = r.Trace.Normalized()
	rides := append([]Ride(nil), l.rides...)
	if i := l.index(r.ID); i >= 0 {
		rides[i] = r
	} else {
		rides = append(rides, r)
	}
	return l.commit(ctx, rides)
}

func (l *Library) Rename(ctx context.Context, id uuid.UUID, name string) (Ride, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return Ride{}, ErrRideNotFound
	}
	rides := append([]Ride(nil), l.rides...)
	rides[i].Name = name
	if err := l.commit(ctx, rides); err != nil {
		return Ride{}, err
	}
	return rides[i], nil
}

func (l *Library) Delete(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return ErrRideNotFound
	}
	rides := make([]Ride, 0, len(l.rides)-1)
	rides = append(rides, l.rides[:i]...)
	rides = append(rides, l.rides[i+1:]...)
	return l.commit(ctx, rides)
}

// Clear removes every ride.
func (l *Library) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.kv.Delete(ctx, SaveKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clearing rides: %w", err)
	}
	l.rides = nil
	return nil
}

func (l *Library) Get(id uuid.UUID) (Ride, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.index(id)
	if i < 0 {
		return Ride{}, ErrRideNotFound
	}
	return l.rides[i], nil
}

// List returns the rides in insertion order.
func (l *Library) List() []Ride {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]Ride(nil), l.rides...)
}

// Summary aggregates lifetime statistics over every ride.
type Summary struct {
	Count         int           `json:"count"`
	TotalDistance float64       `json:"total_distance"`
	TotalDuration time.Duration `json:"total_duration"`
	AverageSpeed  float64       `json:"average_speed"`
	Longest       *Ride         `json:"longest,omitempty"`
	Fastest       *Ride         `json:"fastest,omitempty"`
}

// Summary averages the per-ride average speeds rather than weighting by
// distance.
func (l *Library) Summary(now time.Time) Summary {
	rides := l.List()
	s := Summary{Count: len(rides)}
	if len(rides) == 0 {
		return s
	}

	speedSum := 0.0
	longest, fastest := -1.0, -1.0
	for i := range rides {
		r := rides[i]
		distance := Distance(r.Trace)
		avg := AverageSpeed(r.Trace)

		s.TotalDistance += distance
		s.TotalDuration += r.Duration(now)
		speedSum += avg

		if distance > longest {
			longest = distance
			s.Longest = &rides[i]
		}
		if avg > fastest {
			fastest = avg
			s.Fastest = &rides[i]
		}
	}
	s.AverageSpeed = speedSum / float64(len(rides))
	return s
}

// Recent returns the rides newest first.
func (l *Library) Recent() []Ride {
	rides := l.List()
	sort.SliceStable(rides, func(i, j int) bool {
		return rides[i].StartTime.After(rides[j].StartTime)
	})
	return rides
}

func (l *Library) index(id uuid.UUID) int {
	for i, r := range l.rides {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// commit persists rides and only then makes them the library's list, so a
// failed save leaves memory matching the store.
func (l *Library) commit(ctx context.Context, rides []Ride) error {
	data, err := Encode(rides)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, SaveKey, data); err != nil {
		l.logger.Error("Error saving rides", slog.Any("error", err))
		return fmt.Errorf("saving rides: %w", err)
	}
	l.rides = rides
	return nil
}
