package ride

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
	"github.com/briangreenhill/moto/internal/store"
	"github.com/google/uuid"
)

type failingKV struct {
	store.KV
	err error
}

func (f failingKV) Set(context.Context, string, []byte) error { return f.err }

func finishedRide(name string, start time.Time, trace Trace) Ride {
	r := New(name, start)
	r.Trace = trace
	end := start.Add(10 * time.Minute)
	r.EndTime = &end
	return r
}

func TestLibraryPersistsAcrossLoad(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	lib := NewLibrary(kv, testLogger())
	if err := lib.Load(ctx); err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(lib.List()) != 0 {
		t.Fatalf("expected empty library")
	}

	a := finishedRide("a", epoch, Trace{fixAt(0, 0, 0, 0), fixAt(0, 0.01, 0, 60)})
	b := finishedRide("b", epoch.Add(time.Hour), Trace{fixAt(0, 0, 0, 0)})
	if err := lib.Add(ctx, a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := lib.Add(ctx, b); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded := NewLibrary(kv, testLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	rides := reloaded.List()
	if len(rides) != 2 || rides[0].ID != a.ID || rides[1].ID != b.ID {
		t.Fatalf("unexpected rides after reload: %+v", rides)
	}
	if len(rides[0].Trace) != 2 {
		t.Fatalf("trace lost on reload")
	}

	recent := reloaded.Recent()
	if recent[0].ID != b.ID {
		t.Fatalf("expected newest ride first")
	}
}

func TestLibraryMutations(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(store.NewMemory(), testLogger())

	r := finishedRide("old", epoch, nil)
	if err := lib.Add(ctx, r); err != nil {
		t.Fatalf("add: %v", err)
	}

	renamed, err := lib.Rename(ctx, r.ID, "new")
	if err != nil || renamed.Name != "new" {
		t.Fatalf("rename: %v %+v", err, renamed)
	}
	if _, err := lib.Rename(ctx, uuid.New(), "x"); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}

	// adding an existing id replaces it
	r.Name = "replaced"
	if err := lib.Add(ctx, r); err != nil {
		t.Fatalf("add existing: %v", err)
	}
	if len(lib.List()) != 1 {
		t.Fatalf("expected replacement, not a duplicate")
	}

	if err := lib.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lib.Delete(ctx, r.ID); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestLibraryClear(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	lib := NewLibrary(kv, testLogger())

	if err := lib.Clear(ctx); err != nil {
		t.Fatalf("clear empty: %v", err)
	}
	lib.Add(ctx, finishedRide("x", epoch, nil))
	if err := lib.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := kv.Get(ctx, SaveKey); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected saved list removed")
	}
}

type flakyKV struct {
	*store.Memory
	fail error
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.fail != nil {
		return f.fail
	}
	return f.Memory.Set(ctx, key, value)
}

func TestLibrarySaveError(t *testing.T) {
	boom := errors.New("disk full")
	lib := NewLibrary(failingKV{KV: store.NewMemory(), err: boom}, testLogger())
	if err := lib.Add(context.Background(), finishedRide("x", epoch, nil)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if len(lib.List()) != 0 {
		t.Fatalf("a ride that was not saved must not be listed")
	}
}

func TestLibraryFailedSaveLeavesListUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Memory: store.NewMemory()}
	lib := NewLibrary(kv, testLogger())

	a := finishedRide("a", epoch, nil)
	b := finishedRide("b", epoch, nil)
	lib.Add(ctx, a)
	lib.Add(ctx, b)

	kv.fail = errors.New("disk full")
	if err := lib.Add(ctx, finishedRide("c", epoch, nil)); err == nil {
		t.Fatalf("expected add to fail")
	}
	if _, err := lib.Rename(ctx, a.ID, "renamed"); err == nil {
		t.Fatalf("expected rename to fail")
	}
	if err := lib.Delete(ctx, a.ID); err == nil {
		t.Fatalf("expected delete to fail")
	}

	rides := lib.List()
	if len(rides) != 2 || rides[0].ID != a.ID || rides[0].Name != "a" || rides[1].ID != b.ID {
		t.Fatalf("list changed by failed saves: %+v", rides)
	}

	kv.fail = nil
	reloaded := NewLibrary(kv, testLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.List()) != 2 {
		t.Fatalf("store and memory drifted apart")
	}
}

func TestLibraryInvalidCourseDoesNotBreakSaving(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	lib := NewLibrary(kv, testLogger())

	bad := fixAt(0, 0, 0, 0)
	bad.Course = math.NaN()
	bad.HorizontalAccuracy = math.NaN()
	if err := lib.Add(ctx, finishedRide("no heading", epoch, Trace{bad, fixAt(0, 0.001, 0, 10)})); err != nil {
		t.Fatalf("add ride with invalid course: %v", err)
	}
	if err := lib.Add(ctx, finishedRide("next", epoch, nil)); err != nil {
		t.Fatalf("add after invalid course: %v", err)
	}

	reloaded := NewLibrary(kv, testLogger())
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	rides := reloaded.List()
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides after reload, got %d", len(rides))
	}
	if f := rides[0].Trace[0]; f.Course != geo.NoCourse || f.HorizontalAccuracy != -1 {
		t.Fatalf("unexpected normalized fix %+v", f)
	}
}

func TestLibraryLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	kv.Set(ctx, SaveKey, []byte("{not json"))

	if err := NewLibrary(kv, testLogger()).Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLibrarySummary(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(store.NewMemory(), testLogger())

	empty := lib.Summary(epoch)
	if empty.Count != 0 || empty.Longest != nil || empty.AverageSpeed != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	short := finishedRide("short", epoch, Trace{fixAt(0, 0, 0, 0), fixAt(0, 0.001, 0, 10)})
	short.Trace[0].Speed, short.Trace[1].Speed = 30, 30
	long := finishedRide("long", epoch, Trace{fixAt(0, 0, 0, 0), fixAt(0, 0.01, 0, 10)})
	long.Trace[0].Speed, long.Trace[1].Speed = 10, 10
	lib.Add(ctx, short)
	lib.Add(ctx, long)

	s := lib.Summary(epoch)
	if s.Count != 2 {
		t.Fatalf("unexpected count %d", s.Count)
	}
	if s.Longest == nil || s.Longest.ID != long.ID {
		t.Fatalf("unexpected longest ride")
	}
	if s.Fastest == nil || s.Fastest.ID != short.ID {
		t.Fatalf("unexpected fastest ride")
	}
	if s.AverageSpeed != 20 {
		t.Fatalf("average = %v, want 20", s.AverageSpeed)
	}
	if s.TotalDuration != 20*time.Minute {
		t.Fatalf("total duration = %v", s.TotalDuration)
	}
	if s.TotalDistance != Distance(short.Trace)+Distance(long.Trace) {
		t.Fatalf("unexpected total distance")
	}
}
