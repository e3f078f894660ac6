// Package player implements the playback controller: a per-source state
// machine that coordinates asynchronous preparation of a native voice,
// serializes commands against it, derives state transitions from native
// events and a progress poll, and fans every transition out to
// subscribers.
package player

import (
	"log/slog"
	"sync"
	"time"

	"cueplay.click/internal/backend"
	"cueplay.click/internal/media"
)

// Options configures a Controller beyond its defaults.
type Options struct {
	// PollInterval is the progress poll period. Zero selects
	// DefaultPollInterval.
	PollInterval time.Duration

	// Prepare is handed to the backend prepare call. Backends ignore
	// keys they do not recognize.
	Prepare map[string]any
}

// Controller drives playback of one source against a backend. Commands
// and asynchronous completions execute one at a time in submission
// order, so transitions reach subscribers in delivery order with no
// coalescing. Accessors are safe from any goroutine.
//
// A handle addresses exactly one native voice; constructing two
// controllers for the same resolved handle is the caller's mistake,
// not detected here.
type Controller struct {
	be      backend.Backend
	src     media.Source
	handle  media.Handle
	locator string
	prepare map[string]any

	queue runQueue
	hub   hub
	watch *watcher

	// gen is bumped on release; completions carrying an older value
	// are dropped. Touched only inside queue tasks.
	gen uint64

	mu       sync.RWMutex
	state    State
	loaded   bool
	playing  bool
	paused   bool
	stopped  bool
	duration time.Duration
	channels int
	volume   float64
	pan      float64
	loops    int
	speed    float64
	position time.Duration
}

// New constructs an idle controller for the source.
func New(b backend.Backend, src media.Source) *Controller {
	return NewWithOptions(b, src, Options{})
}

// NewWithOptions constructs an idle controller with explicit options.
func NewWithOptions(b backend.Backend, src media.Source, opts Options) *Controller {
	norm, _ := b.(media.PathNormalizer)
	handle, locator := media.Resolve(src, norm)

	c := &Controller{
		be:      b,
		src:     src,
		handle:  handle,
		locator: locator,
		prepare: opts.Prepare,
		state:   StateIdle,
		volume:  1,
		speed:   1,
	}
	c.watch = newWatcher(opts.PollInterval, func() {
		c.queue.do(c.pollTick)
	})

	slog.Debug("controller created",
		"handle", uint64(handle),
		"locator", locator)

	return c
}

// Subscribe registers fn for every subsequent state transition and
// returns its unsubscribe func. Subscribing the same func twice is
// ignored with a warning; unsubscribing twice is harmless.
func (c *Controller) Subscribe(fn func(Change)) func() {
	return c.hub.subscribe(fn)
}

// emit fans the change out, then updates the canonical state field.
// An observer reading CurrentState during the dispatch still sees the
// state the transition is leaving, so an error always arrives alongside
// the state it produced.
func (c *Controller) emit(ch Change) {
	slog.Debug("state transition",
		"handle", uint64(c.handle),
		"from", c.state,
		"to", ch.State,
		"ended", ch.Ended)

	c.hub.dispatch(ch)

	c.mu.Lock()
	c.state = ch.State
	c.mu.Unlock()
}

// Prepare resolves and readies the native voice. It is idempotent: a
// loaded controller and one with a prepare already in flight both
// return without a second backend call.
func (c *Controller) Prepare() {
	c.queue.do(func() {
		if c.loaded || c.state == StatePreparing || c.state == StateDestroyed {
			slog.Debug("prepare skipped",
				"handle", uint64(c.handle),
				"state", c.state,
				"loaded", c.loaded)
			return
		}

		c.emit(Change{State: StatePreparing, Position: c.position})

		gen := c.gen
		req := backend.PrepareRequest{
			Handle:  c.handle,
			Locator: c.locator,
			Options: c.prepare,
		}
		c.be.Prepare(req, func(meta backend.Metadata, err error) {
			c.queue.do(func() { c.finishPrepare(gen, meta, err) })
		})
	})
}

// finishPrepare applies the prepare completion. A failure still leaves
// the controller loaded: the Error transition, carrying the cause and
// whatever partial metadata arrived, is followed unconditionally by
// Prepared, so a degraded voice stays usable.
func (c *Controller) finishPrepare(gen uint64, meta backend.Metadata, err error) {
	if gen != c.gen {
		slog.Debug("dropping stale prepare completion", "handle", uint64(c.handle))
		return
	}

	c.mu.Lock()
	if meta.Duration > 0 {
		c.duration = meta.Duration
	}
	if meta.Channels > 0 {
		c.channels = meta.Channels
	}
	c.mu.Unlock()

	if err != nil {
		slog.Warn("prepare failed",
			"handle", uint64(c.handle),
			"locator", c.locator,
			"error", err)
		c.emit(Change{State: StateError, Err: err, Position: c.position})
	}

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()

	c.be.Events().Attach(c.handle, func(playing bool) {
		c.queue.do(func() { c.handleEvent(gen, playing) })
	})
	c.pushCached()

	slog.Debug("prepared",
		"handle", uint64(c.handle),
		"duration_ms", meta.Duration.Milliseconds(),
		"channels", meta.Channels)

	c.emit(Change{State: StatePrepared, Position: c.position})
}

// pushCached applies property values set before the voice was loaded.
func (c *Controller) pushCached() {
	l, r := backend.ChannelGains(c.volume, c.pan)
	if err := c.be.SetChannelVolume(c.handle, l, r); err != nil {
		slog.Debug("volume push rejected", "handle", uint64(c.handle), "error", err)
	}
	if err := c.be.SetLoops(c.handle, c.loops); err != nil {
		slog.Debug("loop push rejected", "handle", uint64(c.handle), "error", err)
	}
	if c.speed != 1 {
		c.pushSpeed()
	}
}

func (c *Controller) pushSpeed() {
	sc, ok := c.be.(backend.SpeedController)
	if !ok {
		slog.Debug("speed unsupported by backend", "handle", uint64(c.handle))
		return
	}
	if err := sc.SetSpeed(c.handle, c.speed); err != nil {
		slog.Debug("speed rejected", "handle", uint64(c.handle), "error", err)
	}
}

// Play starts or resumes playback. Progress Playing transitions come
// from the poll loop once the backend reports the voice playing; the
// completion of the whole run transitions back to Prepared.
func (c *Controller) Play() {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("play ignored before load", "handle", uint64(c.handle))
			return
		}

		c.mu.Lock()
		c.playing = true
		c.paused = false
		c.stopped = false
		c.mu.Unlock()

		gen := c.gen
		c.be.Play(c.handle, func(ok bool) {
			c.queue.do(func() { c.finishPlay(gen, ok) })
		})
	})
}

// finishPlay handles the end of a play run, natural or stopped.
func (c *Controller) finishPlay(gen uint64, ok bool) {
	if gen != c.gen {
		slog.Debug("dropping stale play completion", "handle", uint64(c.handle))
		return
	}

	c.watch.stop()
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()

	slog.Debug("play run finished", "handle", uint64(c.handle), "ok", ok)
	c.emit(Change{State: StatePrepared, Position: c.position})
}

// Pause suspends playback. Flags and state flip only on the backend's
// acknowledgment; the optional done runs after the Paused transition.
func (c *Controller) Pause(done func()) {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("pause ignored before load", "handle", uint64(c.handle))
			return
		}

		gen := c.gen
		c.be.Pause(c.handle, func() {
			c.queue.do(func() {
				if gen != c.gen {
					return
				}
				c.watch.stop()
				c.mu.Lock()
				c.paused = true
				c.playing = false
				c.stopped = false
				c.mu.Unlock()
				c.emit(Change{State: StatePaused, Position: c.position})
				if done != nil {
					done()
				}
			})
		})
	})
}

// Stop halts playback and rewinds. Flags and state flip only on the
// backend's acknowledgment; the optional done runs after the Prepared
// transition.
func (c *Controller) Stop(done func()) {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("stop ignored before load", "handle", uint64(c.handle))
			return
		}

		gen := c.gen
		c.be.Stop(c.handle, func() {
			c.queue.do(func() {
				if gen != c.gen {
					return
				}
				c.watch.stop()
				c.mu.Lock()
				c.stopped = true
				c.playing = false
				c.paused = false
				c.position = 0
				c.mu.Unlock()
				c.emit(Change{State: StatePrepared})
				if done != nil {
					done()
				}
			})
		})
	})
}

// Reset returns the voice to the start synchronously, where the backend
// supports a discrete return-to-start.
func (c *Controller) Reset() {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("reset ignored before load", "handle", uint64(c.handle))
			return
		}
		r, ok := c.be.(backend.Resetter)
		if !ok {
			slog.Debug("reset unsupported by backend", "handle", uint64(c.handle))
			return
		}

		c.watch.stop()
		r.Reset(c.handle)

		c.mu.Lock()
		c.stopped = true
		c.playing = false
		c.paused = false
		c.position = 0
		c.mu.Unlock()

		c.emit(Change{State: StatePrepared})
	})
}

// Release tears the native voice down and transitions to Destroyed
// exactly once. The controller must not be reused afterwards; a second
// call is a no-op because the voice is no longer loaded.
func (c *Controller) Release() {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("release ignored", "handle", uint64(c.handle), "state", c.state)
			return
		}

		c.watch.stop()
		c.gen++
		c.be.Events().Detach(c.handle)
		c.be.Release(c.handle)

		c.mu.Lock()
		c.loaded = false
		c.playing = false
		c.paused = false
		c.stopped = false
		c.mu.Unlock()

		slog.Debug("controller released", "handle", uint64(c.handle))
		c.emit(Change{State: StateDestroyed, Position: c.position})
	})
}

// SetVolume caches the level and, when loaded, pushes the folded
// channel gains. The value survives across prepare either way.
func (c *Controller) SetVolume(level float64) {
	c.queue.do(func() {
		c.mu.Lock()
		c.volume = level
		c.mu.Unlock()

		if !c.loaded {
			return
		}
		l, r := backend.ChannelGains(c.volume, c.pan)
		if err := c.be.SetChannelVolume(c.handle, l, r); err != nil {
			slog.Debug("volume rejected", "handle", uint64(c.handle), "error", err)
		}
	})
}

// SetPan caches the stereo position and, when loaded, pushes the folded
// channel gains.
func (c *Controller) SetPan(pan float64) {
	c.queue.do(func() {
		c.mu.Lock()
		c.pan = pan
		c.mu.Unlock()

		if !c.loaded {
			return
		}
		l, r := backend.ChannelGains(c.volume, c.pan)
		if err := c.be.SetChannelVolume(c.handle, l, r); err != nil {
			slog.Debug("pan rejected", "handle", uint64(c.handle), "error", err)
		}
	})
}

// SetLoops caches the repeat count and pushes it when loaded. Negative
// counts repeat forever.
func (c *Controller) SetLoops(count int) {
	c.queue.do(func() {
		c.mu.Lock()
		c.loops = count
		c.mu.Unlock()

		if !c.loaded {
			return
		}
		if err := c.be.SetLoops(c.handle, count); err != nil {
			slog.Debug("loops rejected", "handle", uint64(c.handle), "error", err)
		}
	})
}

// SetSpeed caches the playback rate and pushes it when the loaded
// backend supports rates.
func (c *Controller) SetSpeed(rate float64) {
	c.queue.do(func() {
		c.mu.Lock()
		c.speed = rate
		c.mu.Unlock()

		if !c.loaded {
			return
		}
		c.pushSpeed()
	})
}

// SeekTo moves the playback position. The Seeking transition is
// optimistic and has no completion; the next play or poll activity
// moves state onward.
func (c *Controller) SeekTo(to time.Duration) {
	c.queue.do(func() {
		if !c.loaded {
			slog.Debug("seek ignored before load", "handle", uint64(c.handle))
			return
		}
		if to < 0 {
			to = 0
		}

		c.mu.Lock()
		c.position = to
		c.mu.Unlock()

		c.emit(Change{State: StateSeeking, Position: to})
		c.be.Seek(c.handle, to)
	})
}

// handleEvent applies a native play-state event. The not-playing branch
// reads the controller's own flags: a pause or stop already
// acknowledged keeps its state, anything else is a natural end.
func (c *Controller) handleEvent(gen uint64, playing bool) {
	if gen != c.gen {
		slog.Debug("dropping stale native event", "handle", uint64(c.handle))
		return
	}

	slog.Debug("native play change",
		"handle", uint64(c.handle),
		"playing", playing)

	if playing {
		c.watch.start()
		return
	}

	c.watch.stop()
	switch {
	case c.paused:
		c.emit(Change{State: StatePaused, Position: c.position})
	case c.stopped:
		c.emit(Change{State: StatePrepared, Position: c.position})
	default:
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
		c.emit(Change{State: StatePrepared, Position: c.position, Ended: true})
	}
}

// pollTick queries progress while playback runs. The playing flag is
// checked before the query and again when the result arrives, so a tick
// landing after a pause or stop is discarded.
func (c *Controller) pollTick() {
	if !c.playing {
		return
	}

	gen := c.gen
	c.be.Position(c.handle, func(pos time.Duration, err error) {
		c.queue.do(func() {
			if gen != c.gen || !c.playing {
				return
			}
			if err != nil {
				slog.Debug("progress query failed",
					"handle", uint64(c.handle),
					"error", err)
				c.watch.advance()
				return
			}

			c.mu.Lock()
			c.position = pos
			c.mu.Unlock()

			c.emit(Change{State: StatePlaying, Position: pos})
			c.watch.advance()
		})
	})
}

// Handle reports the resolved native voice key.
func (c *Controller) Handle() media.Handle { return c.handle }

// Locator reports the backend-addressable resource locator.
func (c *Controller) Locator() string { return c.locator }

// Source reports the source the controller was built for.
func (c *Controller) Source() media.Source { return c.src }

// IsLoaded reports whether prepare has completed.
func (c *Controller) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// CanPlay reports whether the controller is ready for playback
// commands.
func (c *Controller) CanPlay() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded && c.state.AtLeast(StatePrepared)
}

// IsPlaying reports whether a play run is in progress.
func (c *Controller) IsPlaying() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playing
}

// IsPaused reports whether playback is suspended.
func (c *Controller) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Duration reports the clip length from the prepare metadata.
func (c *Controller) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duration
}

// Channels reports the channel count from the prepare metadata.
func (c *Controller) Channels() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels
}

// Volume reports the cached level.
func (c *Controller) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Pan reports the cached stereo position.
func (c *Controller) Pan() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pan
}

// Loops reports the cached repeat count.
func (c *Controller) Loops() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loops
}

// Speed reports the cached playback rate.
func (c *Controller) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// CurrentTime reports the last known playback position.
func (c *Controller) CurrentTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// CurrentState reports the canonical state. During a subscriber
// dispatch it still reads the state the transition is leaving.
func (c *Controller) CurrentState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
