package player

import (
	"sync"
	"testing"
	"time"
)

// tickCounter stands in for the controller poll: it records fires and
// keeps the cycle going by calling advance, like pollTick does after a
// successful emit.
type tickCounter struct {
	mu    sync.Mutex
	fires int
	w     *watcher
}

func (tc *tickCounter) fire() {
	tc.mu.Lock()
	tc.fires++
	tc.mu.Unlock()
	tc.w.advance()
}

func (tc *tickCounter) count() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.fires
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherFiresRepeatedly(t *testing.T) {
	tc := &tickCounter{}
	tc.w = newWatcher(5*time.Millisecond, tc.fire)

	tc.w.start()
	defer tc.w.stop()

	waitFor(t, time.Second, func() bool { return tc.count() >= 3 })
}

func TestWatcherStopHaltsCycle(t *testing.T) {
	tc := &tickCounter{}
	tc.w = newWatcher(5*time.Millisecond, tc.fire)

	tc.w.start()
	waitFor(t, time.Second, func() bool { return tc.count() >= 1 })
	tc.w.stop()

	if tc.w.running() {
		t.Error("watcher still running after stop")
	}

	// One tick may already be in flight; after it lands the count must
	// hold still.
	time.Sleep(20 * time.Millisecond)
	settled := tc.count()
	time.Sleep(50 * time.Millisecond)
	if got := tc.count(); got != settled {
		t.Errorf("fires advanced from %d to %d after stop", settled, got)
	}
}

func TestWatcherStartIdempotent(t *testing.T) {
	var mu sync.Mutex
	fires := 0

	// No advance call, so each armed tick fires at most once.
	w := newWatcher(5*time.Millisecond, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})

	w.start()
	w.start()
	defer w.stop()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fires != 1 {
		t.Errorf("fires = %d, expected a second start to arm nothing", fires)
	}
}

func TestWatcherAdvanceAfterStopIsInert(t *testing.T) {
	var mu sync.Mutex
	fires := 0

	w := newWatcher(5*time.Millisecond, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})

	w.stop()
	w.advance()

	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fires != 0 {
		t.Errorf("fires = %d, expected none from a stopped watcher", fires)
	}
}

func TestWatcherRestartsAfterStop(t *testing.T) {
	tc := &tickCounter{}
	tc.w = newWatcher(5*time.Millisecond, tc.fire)

	tc.w.start()
	waitFor(t, time.Second, func() bool { return tc.count() >= 1 })
	tc.w.stop()

	time.Sleep(20 * time.Millisecond)
	base := tc.count()

	tc.w.start()
	defer tc.w.stop()
	waitFor(t, time.Second, func() bool { return tc.count() > base })
}

func TestWatcherDefaultInterval(t *testing.T) {
	w := newWatcher(0, func() {})
	if w.interval != DefaultPollInterval {
		t.Errorf("interval = %v, expected %v", w.interval, DefaultPollInterval)
	}

	w = newWatcher(-time.Second, func() {})
	if w.interval != DefaultPollInterval {
		t.Errorf("interval = %v, expected %v for negative input", w.interval, DefaultPollInterval)
	}
}
