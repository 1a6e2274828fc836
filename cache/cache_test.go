package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stealcache/stealcache/placement"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// newTestCache builds an engine with the given workers registered and a
// small LoadNormalization so load factors are visible with few entries.
func newTestCache(t *testing.T, cfg Config, workers ...string) ManagedCache[string, string] {
	t.Helper()
	c := New[string, string](Options[string, string]{Config: cfg})
	t.Cleanup(func() { _ = c.Close() })
	for _, id := range workers {
		if err := c.RegisterWorker(id); err != nil {
			t.Fatalf("RegisterWorker(%s): %v", id, err)
		}
	}
	return c
}

// Insert followed by Get must return the stored value (round-trip).
func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1")
	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get k want v, got %q ok=%v", v, ok)
	}
}

// With no predictor, a write replicates to every active worker; Remove must
// delete every replica, and Size counts physical entries.
func TestCache_ReplicationAndFullRemove(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1", "w2", "w3")

	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := c.Size(); got != 3 {
		t.Fatalf("Size after replicated insert: want 3 physical entries, got %d", got)
	}

	if v, ok := c.Remove("k"); !ok || v != "v" {
		t.Fatalf("Remove want (v,true), got (%q,%v)", v, ok)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("key must be absent after Remove")
	}
	if got := c.Size(); got != 0 {
		t.Fatalf("Size after Remove: want 0, got %d (a replica survived)", got)
	}
}

// Per-entry TTL with a fake clock: expired entries read as absent, and a
// sweep reports the removal exactly once.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: 1}
	c := New[string, string](Options[string, string]{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })
	if err := c.RegisterWorker("w1"); err != nil {
		t.Fatal(err)
	}

	if err := c.Insert("x", "v", 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("x"); !ok {
		t.Fatal("fresh miss")
	}
	clk.add(200 * time.Millisecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired hit")
	}

	// The miss above lazily removed the copy it saw; the sweep must not
	// count the entry again.
	if n, err := c.CleanupExpired(); err != nil || n != 0 {
		t.Fatalf("CleanupExpired after lazy removal: want 0, got %d err=%v", n, err)
	}

	// Sweep path without a prior read.
	if err := c.Insert("y", "v", 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	clk.add(time.Second)
	if n, err := c.CleanupExpired(); err != nil || n != 1 {
		t.Fatalf("CleanupExpired: want 1 removed, got %d err=%v", n, err)
	}
	if got := c.Size(); got != 0 {
		t.Fatalf("Size after sweep: want 0, got %d", got)
	}
}

// Inserting with no registered workers must fail loudly.
func TestCache_InsertNoWorkers(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{})
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Insert("k", "v", 0); err != ErrNoWorkersAvailable {
		t.Fatalf("want ErrNoWorkersAvailable, got %v", err)
	}
}

// An entry held only by an inactive worker is invisible to Get and Contains
// but survives for management (re-activation brings it back).
func TestCache_InactiveWorkerExclusion(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1")
	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterWorker("w2"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetWorkerActive("w1", false); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("k"); ok {
		t.Fatal("Get must not see entries on inactive workers")
	}
	if c.Contains("k") {
		t.Fatal("Contains must not see entries on inactive workers")
	}
	// Entries are retained, not dropped.
	if got := c.Size(); got != 1 {
		t.Fatalf("Size counts all workers: want 1, got %d", got)
	}

	if err := c.SetWorkerActive("w1", true); err != nil {
		t.Fatal(err)
	}
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("re-activated worker must serve again, got (%q,%v)", v, ok)
	}
}

// Contains reports presence without counting a hit or a miss.
func TestCache_ContainsNoStats(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1")
	_ = c.Insert("k", "v", 0)

	if !c.Contains("k") || c.Contains("nope") {
		t.Fatal("Contains gave wrong answers")
	}
	st := c.Stats()
	if st.TotalHits != 0 || st.TotalMisses != 0 {
		t.Fatalf("Contains must not move hit/miss counters: %+v", st)
	}
}

// Stats counters and the hit ratio.
func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1", "w2")
	_ = c.Insert("a", "1", 0)
	_ = c.Insert("b", "2", 0)
	c.Get("a")    // hit
	c.Get("nope") // miss

	st := c.Stats()
	if st.TotalSets != 2 {
		t.Fatalf("sets: want 2, got %d", st.TotalSets)
	}
	if st.TotalHits != 1 || st.TotalMisses != 1 {
		t.Fatalf("hits/misses: want 1/1, got %d/%d", st.TotalHits, st.TotalMisses)
	}
	if st.HitRatio != 0.5 {
		t.Fatalf("hit ratio: want 0.5, got %v", st.HitRatio)
	}
	if st.TotalEntries != 4 {
		t.Fatalf("entries: want 4 physical, got %d", st.TotalEntries)
	}
}

// Clear drops all entries on all workers and resets counters.
func TestCache_Clear(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1", "w2")
	for i := 0; i < 10; i++ {
		_ = c.Insert(fmt.Sprintf("k%d", i), "v", 0)
	}
	c.Get("k0")

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := c.Size(); got != 0 {
		t.Fatalf("Size after Clear: want 0, got %d", got)
	}
	st := c.Stats()
	if st.TotalHits != 0 || st.TotalSets != 0 {
		t.Fatalf("Clear must reset stats: %+v", st)
	}
	for _, w := range c.Workers() {
		if w.LoadFactor != 0 {
			t.Fatalf("worker %s load factor not reset: %v", w.ID, w.LoadFactor)
		}
	}
}

// A configured predictor with an opinion narrows the write fan-out.
func TestCache_PredictivePlacement(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{
		Config:    Config{PredictivePlacement: true},
		Predictor: staticPredictor{targets: []string{"w2"}},
	})
	t.Cleanup(func() { _ = c.Close() })
	for _, id := range []string{"w1", "w2", "w3"} {
		if err := c.RegisterWorker(id); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if got := c.Size(); got != 1 {
		t.Fatalf("predicted placement must write one copy, got %d", got)
	}
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("broadcast fallback must find the single copy, got (%q,%v)", v, ok)
	}
}

// The engine filters predictor proposals without writing into the returned
// slice; predictors may hand out a slice they retain.
func TestCache_PredictorSliceNotMutated(t *testing.T) {
	t.Parallel()

	pred := staticPredictor{targets: []string{"ghost", "w2"}}
	c := New[string, string](Options[string, string]{
		Config:    Config{PredictivePlacement: true},
		Predictor: pred,
	})
	t.Cleanup(func() { _ = c.Close() })
	_ = c.RegisterWorker("w1")
	_ = c.RegisterWorker("w2")

	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if pred.targets[0] != "ghost" || pred.targets[1] != "w2" {
		t.Fatalf("predictor-owned slice rewritten: %v", pred.targets)
	}
	// The surviving proposal still took effect: one copy, on w2.
	if got := c.Size(); got != 1 {
		t.Fatalf("want single predicted copy, got %d", got)
	}
}

// A predictor proposing only dead workers falls back to replication.
func TestCache_PredictorInvalidTargetsFallBack(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{
		Config:    Config{PredictivePlacement: true},
		Predictor: staticPredictor{targets: []string{"ghost"}},
	})
	t.Cleanup(func() { _ = c.Close() })
	_ = c.RegisterWorker("w1")
	_ = c.RegisterWorker("w2")

	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if got := c.Size(); got != 2 {
		t.Fatalf("invalid prediction must replicate to all active workers, got %d", got)
	}
}

// ReplicationFactor caps the default fan-out.
func TestCache_ReplicationFactor(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{ReplicationFactor: 2}, "w1", "w2", "w3", "w4")
	if err := c.Insert("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	if got := c.Size(); got != 2 {
		t.Fatalf("ReplicationFactor=2 must write two copies, got %d", got)
	}
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get after capped replication: (%q,%v)", v, ok)
	}
}

// Adaptive partitioning routes through the consistent-hash ring; behavior
// stays correct (round-trip, full remove).
func TestCache_AdaptivePartitioning(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{AdaptivePartitioning: true, VirtualNodes: 32}, "w1", "w2", "w3")
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("k%d", i)
		if err := c.Insert(k, "v", 0); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("k%d", i)
		if v, ok := c.Get(k); !ok || v != "v" {
			t.Fatalf("Get %s: (%q,%v)", k, v, ok)
		}
	}
}

// GetOrLoad loads on miss, caches the result, and coalesces concurrent
// loads elsewhere (see race test).
func TestCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	c := New[string, string](Options[string, string]{
		Loader: func(_ context.Context, k string) (string, error) {
			calls.Add(1)
			return "v:" + k, nil
		},
	})
	t.Cleanup(func() { _ = c.Close() })
	_ = c.RegisterWorker("w1")

	v, err := c.GetOrLoad(context.Background(), "a")
	if err != nil || v != "v:a" {
		t.Fatalf("GetOrLoad: v=%q err=%v", v, err)
	}
	// Second call must be a pure cache hit.
	if v, err = c.GetOrLoad(context.Background(), "a"); err != nil || v != "v:a" {
		t.Fatalf("GetOrLoad (cached): v=%q err=%v", v, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader calls: want 1, got %d", n)
	}
}

func TestCache_GetOrLoadNoLoader(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1")
	if _, err := c.GetOrLoad(context.Background(), "a"); err != ErrNoLoader {
		t.Fatalf("want ErrNoLoader, got %v", err)
	}
}

// Operations after Close degrade: reads miss, writes fail with ErrClosed.
func TestCache_Closed(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Config{}, "w1")
	_ = c.Insert("k", "v", 0)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get after Close must miss")
	}
	if err := c.Insert("k2", "v", 0); err != ErrClosed {
		t.Fatalf("Insert after Close: want ErrClosed, got %v", err)
	}
	if err := c.RegisterWorker("w2"); err != ErrClosed {
		t.Fatalf("RegisterWorker after Close: want ErrClosed, got %v", err)
	}
}

// staticPredictor always proposes the same worker set.
type staticPredictor struct{ targets []string }

func (p staticPredictor) PredictPlacement(string, placement.History) []string {
	return p.targets
}
