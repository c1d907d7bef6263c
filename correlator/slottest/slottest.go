package slottest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/insight-stream-go/correlator"
)

// SlotFactory creates a new, empty Slot for one test.
type SlotFactory func(t *testing.T) correlator.Slot

// RunSlotTests runs the complete Slot test suite against the provided factory.
func RunSlotTests(t *testing.T, factory SlotFactory) {
	t.Run("Empty_SnapshotIsZero", func(t *testing.T) { testEmptySnapshot(t, factory) })
	t.Run("Begin_SetsActiveAndConnecting", func(t *testing.T) { testBeginSetsActive(t, factory) })
	t.Run("Begin_RejectsEmptyID", func(t *testing.T) { testBeginRejectsEmpty(t, factory) })
	t.Run("Begin_SupersedesPrevious", func(t *testing.T) { testBeginSupersedes(t, factory) })
	t.Run("MarkStreaming_OnlyForActive", func(t *testing.T) { testMarkStreaming(t, factory) })
	t.Run("Release_OnlyForActive", func(t *testing.T) { testReleaseOnlyActive(t, factory) })
	t.Run("Release_ExactlyOnceUnderContention", func(t *testing.T) { testReleaseExactlyOnce(t, factory) })
	t.Run("Release_DoesNotClobberSuccessor", func(t *testing.T) { testReleaseKeepsSuccessor(t, factory) })
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustSnapshot(t *testing.T, ctx context.Context, s correlator.Slot) correlator.State {
	t.Helper()
	st, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return st
}

func testEmptySnapshot(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	if st := mustSnapshot(t, ctx, s); st != (correlator.State{}) {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if ok, err := s.IsActive(ctx, ""); err != nil || ok {
		t.Fatalf("empty id must never be active: ok=%v err=%v", ok, err)
	}
}

func testBeginSetsActive(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	if err := s.Begin(ctx, "a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if want, got := (correlator.State{ActiveID: "a", Connecting: true}), mustSnapshot(t, ctx, s); want != got {
		t.Fatalf("want %+v got %+v", want, got)
	}
	ok, err := s.IsActive(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("expected a active: ok=%v err=%v", ok, err)
	}
}

func testBeginRejectsEmpty(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	if err := s.Begin(ctx, ""); !errors.Is(err, correlator.ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
}

func testBeginSupersedes(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	for i := 0; i < 5; i++ {
		if err := s.Begin(ctx, "id-"+strconv.Itoa(i)); err != nil {
			t.Fatalf("begin %d: %v", i, err)
		}
	}
	if st := mustSnapshot(t, ctx, s); st.ActiveID != "id-4" || !st.Connecting {
		t.Fatalf("expected last begin to win, got %+v", st)
	}
	if ok, _ := s.IsActive(ctx, "id-3"); ok {
		t.Fatalf("superseded id must not be active")
	}
}

func testMarkStreaming(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	_ = s.Begin(ctx, "a")

	ok, err := s.MarkStreaming(ctx, "b")
	if err != nil || ok {
		t.Fatalf("stale id must not mark streaming: ok=%v err=%v", ok, err)
	}
	if st := mustSnapshot(t, ctx, s); !st.Connecting {
		t.Fatalf("stale mark must not change state: %+v", st)
	}

	ok, err = s.MarkStreaming(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("active id should mark streaming: ok=%v err=%v", ok, err)
	}
	if want, got := (correlator.State{ActiveID: "a"}), mustSnapshot(t, ctx, s); want != got {
		t.Fatalf("want %+v got %+v", want, got)
	}
}

func testReleaseOnlyActive(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	_ = s.Begin(ctx, "a")

	if ok, err := s.Release(ctx, "b"); err != nil || ok {
		t.Fatalf("stale release must fail: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Release(ctx, "a"); err != nil || !ok {
		t.Fatalf("active release must succeed: ok=%v err=%v", ok, err)
	}
	if st := mustSnapshot(t, ctx, s); st != (correlator.State{}) {
		t.Fatalf("expected empty state after release, got %+v", st)
	}
	if ok, _ := s.Release(ctx, "a"); ok {
		t.Fatalf("second release must fail")
	}
}

func testReleaseExactlyOnce(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	_ = s.Begin(ctx, "a")

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Release(ctx, "a")
			if err != nil {
				t.Errorf("release: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning release, got %d", wins)
	}
}

func testReleaseKeepsSuccessor(t *testing.T, factory SlotFactory) {
	ctx := testContext(t)
	s := factory(t)
	_ = s.Begin(ctx, "a")
	_ = s.Begin(ctx, "b")

	if ok, _ := s.Release(ctx, "a"); ok {
		t.Fatalf("superseded release must fail")
	}
	if st := mustSnapshot(t, ctx, s); st.ActiveID != "b" {
		t.Fatalf("successor must survive, got %+v", st)
	}
}
