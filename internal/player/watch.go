package player

import (
	"sync"
	"time"
)

// DefaultPollInterval is the progress poll period used when no interval
// is configured.
const DefaultPollInterval = 250 * time.Millisecond

// watcher schedules the periodic progress poll. It only arms timers;
// the poll itself belongs to the controller, which calls advance after
// each delivered tick to keep the cycle going. stop cancels the pending
// tick, but a tick already in flight may still fire once; the
// controller's playing guard discards it.
type watcher struct {
	interval time.Duration
	fire     func()

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func newWatcher(interval time.Duration, fire func()) *watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &watcher{interval: interval, fire: fire}
}

// start arms the first tick. Starting a running watcher is a no-op.
func (w *watcher) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return
	}
	w.active = true
	w.arm()
}

// advance arms the next tick unless the watcher has been stopped.
func (w *watcher) advance() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	w.arm()
}

// arm schedules one tick. Caller holds w.mu.
func (w *watcher) arm() {
	w.timer = time.AfterFunc(w.interval, func() {
		w.mu.Lock()
		stale := !w.active
		w.mu.Unlock()
		if stale {
			return
		}
		w.fire()
	})
}

// stop cancels the pending tick and ends the cycle.
func (w *watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// running reports whether a tick is armed or in flight.
func (w *watcher) running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}
