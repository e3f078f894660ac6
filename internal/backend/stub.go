package backend

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cueplay.click/internal/media"
)

// StubClip is the scripted shape of a stub resource.
type StubClip struct {
	Duration time.Duration
	Channels int
}

// Stub simulates a native engine in memory: prepares resolve against
// scripted clips, playback advances against the wall clock and ends on
// a timer. Completions are delivered inline, which keeps test
// interleavings deterministic.
type Stub struct {
	mu           sync.Mutex
	bus          *Bus
	now          func() time.Time
	normalize    func(string) string
	clips        map[string]StubClip
	prepareErrs  map[string]error
	defaultClip  StubClip
	voices       map[media.Handle]*stubVoice
	prepareCalls []PrepareRequest
	sysVolume    float64
	sessionOn    bool
	category     string
	closed       bool
}

type stubVoice struct {
	clip      StubClip
	pos       time.Duration
	playStart time.Time
	playing   bool
	loops     int
	speed     float64
	gainL     float64
	gainR     float64
	endTimer  *time.Timer
	playDone  func(ok bool)
}

// NewStub creates a stub backend with a 2s stereo default clip.
func NewStub() *Stub {
	return &Stub{
		bus:         NewBus(),
		now:         time.Now,
		clips:       make(map[string]StubClip),
		prepareErrs: make(map[string]error),
		defaultClip: StubClip{Duration: 2 * time.Second, Channels: 2},
		voices:      make(map[media.Handle]*stubVoice),
		sysVolume:   1,
	}
}

// SetClip scripts the metadata returned for a locator.
func (s *Stub) SetClip(locator string, clip StubClip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[locator] = clip
}

// SetDefaultClip scripts the metadata for unscripted locators.
func (s *Stub) SetDefaultClip(clip StubClip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultClip = clip
}

// SetPrepareError scripts a prepare failure for a locator. When the
// locator also has a scripted clip, the error is reported alongside the
// clip's metadata (a partially failed prepare).
func (s *Stub) SetPrepareError(locator string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareErrs[locator] = err
}

// SetNormalizer installs the path normalization applied by this
// backend. Without one, NormalizePath is the identity.
func (s *Stub) SetNormalizer(fn func(string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normalize = fn
}

// SetClock replaces the wall clock, for tests.
func (s *Stub) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PrepareCalls returns a copy of every prepare request seen.
func (s *Stub) PrepareCalls() []PrepareRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]PrepareRequest, len(s.prepareCalls))
	copy(calls, s.prepareCalls)
	return calls
}

// Events returns the bus this backend publishes play-state changes on.
func (s *Stub) Events() *Bus {
	return s.bus
}

// NormalizePath applies the configured normalization, defaulting to
// identity.
func (s *Stub) NormalizePath(locator string) string {
	s.mu.Lock()
	fn := s.normalize
	s.mu.Unlock()
	if fn == nil {
		return locator
	}
	return fn(locator)
}

// Prepare resolves the locator against the scripted clips and reports
// inline.
func (s *Stub) Prepare(req PrepareRequest, done func(Metadata, error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done(Metadata{}, ErrClosed)
		return
	}

	s.prepareCalls = append(s.prepareCalls, req)

	clip, scripted := s.clips[req.Locator]
	if !scripted {
		clip = s.defaultClip
	}
	err := s.prepareErrs[req.Locator]

	if err != nil && !scripted {
		s.mu.Unlock()
		slog.Debug("stub prepare failed", "handle", req.Handle, "locator", req.Locator, "error", err)
		done(Metadata{}, err)
		return
	}

	s.voices[req.Handle] = &stubVoice{
		clip:  clip,
		speed: 1,
		gainL: 1,
		gainR: 1,
	}
	s.mu.Unlock()

	slog.Debug("stub prepare completed",
		"handle", req.Handle,
		"locator", req.Locator,
		"duration_ms", clip.Duration.Milliseconds(),
		"error", err)
	done(Metadata{Duration: clip.Duration, Channels: clip.Channels}, err)
}

func (s *Stub) lockedVoice(h media.Handle) (*stubVoice, error) {
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.voices[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return v, nil
}

// posNow computes the voice position at t. Looped playback reports the
// position within the current pass.
func (v *stubVoice) posNow(t time.Time) time.Duration {
	pos := v.pos
	if v.playing {
		pos += time.Duration(float64(t.Sub(v.playStart)) * v.speed)
	}
	if v.clip.Duration <= 0 {
		return 0
	}
	if v.loops != 0 {
		return pos % v.clip.Duration
	}
	if pos > v.clip.Duration {
		return v.clip.Duration
	}
	return pos
}

// armEnd schedules the natural end of the run. Caller must hold s.mu.
func (s *Stub) armEnd(h media.Handle, v *stubVoice) {
	if v.endTimer != nil {
		v.endTimer.Stop()
		v.endTimer = nil
	}
	if v.loops < 0 {
		return
	}

	total := v.clip.Duration * time.Duration(v.loops+1)
	remaining := time.Duration(float64(total-v.pos) / v.speed)
	if remaining < 0 {
		remaining = 0
	}
	v.endTimer = time.AfterFunc(remaining, func() {
		s.finish(h, v)
	})
}

// finish reports a natural end.
func (s *Stub) finish(h media.Handle, v *stubVoice) {
	s.mu.Lock()
	if s.voices[h] != v || !v.playing {
		s.mu.Unlock()
		return
	}
	v.playing = false
	v.pos = v.clip.Duration
	v.endTimer = nil
	pd := v.playDone
	v.playDone = nil
	s.mu.Unlock()

	slog.Debug("stub playback ended", "handle", h)
	s.bus.Publish(h, false)
	if pd != nil {
		pd(true)
	}
}

// Play starts or resumes the voice against the wall clock.
func (s *Stub) Play(h media.Handle, done func(ok bool)) {
	s.mu.Lock()
	v, err := s.lockedVoice(h)
	if err != nil {
		s.mu.Unlock()
		slog.Debug("stub play rejected", "handle", h, "error", err)
		if done != nil {
			done(false)
		}
		return
	}

	if v.playing {
		if done != nil {
			v.playDone = done
		}
		s.mu.Unlock()
		return
	}

	if v.pos >= v.clip.Duration {
		v.pos = 0
	}
	if done != nil {
		v.playDone = done
	}
	v.playing = true
	v.playStart = s.now()
	s.armEnd(h, v)
	s.mu.Unlock()

	slog.Debug("stub playback started", "handle", h)
	s.bus.Publish(h, true)
}

// Pause freezes the position.
func (s *Stub) Pause(h media.Handle, done func()) {
	s.mu.Lock()
	v, err := s.lockedVoice(h)
	if err == nil && v.playing {
		v.pos = v.posNow(s.now())
		v.playing = false
		if v.endTimer != nil {
			v.endTimer.Stop()
			v.endTimer = nil
		}
	}
	s.mu.Unlock()

	if done != nil {
		done()
	}
}

// Stop freezes and rewinds, then fires the pending play completion.
func (s *Stub) Stop(h media.Handle, done func()) {
	s.mu.Lock()
	var pd func(bool)
	v, err := s.lockedVoice(h)
	if err == nil {
		v.pos = 0
		v.playing = false
		if v.endTimer != nil {
			v.endTimer.Stop()
			v.endTimer = nil
		}
		pd = v.playDone
		v.playDone = nil
	}
	s.mu.Unlock()

	if done != nil {
		done()
	}
	if pd != nil {
		pd(true)
	}
}

// Seek moves the position, rescheduling the end of a running play.
func (s *Stub) Seek(h media.Handle, to time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.lockedVoice(h)
	if err != nil {
		return
	}

	if to < 0 {
		to = 0
	}
	if to > v.clip.Duration {
		to = v.clip.Duration
	}
	v.pos = to
	if v.playing {
		v.playStart = s.now()
		s.armEnd(h, v)
	}
}

// Position reports the wall-clock position inline.
func (s *Stub) Position(h media.Handle, done func(time.Duration, error)) {
	s.mu.Lock()
	v, err := s.lockedVoice(h)
	var pos time.Duration
	if err == nil {
		pos = v.posNow(s.now())
	}
	s.mu.Unlock()

	done(pos, err)
}

// SetChannelVolume records per-channel gains.
func (s *Stub) SetChannelVolume(h media.Handle, left, right float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.lockedVoice(h)
	if err != nil {
		return err
	}
	v.gainL, v.gainR = left, right
	return nil
}

// Gains reports the recorded channel gains for assertions.
func (s *Stub) Gains(h media.Handle) (left, right float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.voices[h]
	if !found {
		return 0, 0, false
	}
	return v.gainL, v.gainR, true
}

// SetLoops sets the repeat count. Negative repeats forever.
func (s *Stub) SetLoops(h media.Handle, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.lockedVoice(h)
	if err != nil {
		return err
	}
	v.loops = count
	if v.playing {
		s.armEnd(h, v)
	}
	return nil
}

// Loops reports the recorded loop count for assertions.
func (s *Stub) Loops(h media.Handle) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.voices[h]
	if !found {
		return 0, false
	}
	return v.loops, true
}

// SetSpeed sets the playback rate.
func (s *Stub) SetSpeed(h media.Handle, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid playback rate: %f", rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.lockedVoice(h)
	if err != nil {
		return err
	}
	if v.playing {
		v.pos = v.posNow(s.now())
		v.playStart = s.now()
	}
	v.speed = rate
	if v.playing {
		s.armEnd(h, v)
	}
	return nil
}

// Reset halts playback and rewinds without completing the run.
func (s *Stub) Reset(h media.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.lockedVoice(h)
	if err != nil {
		return
	}

	v.pos = 0
	v.playing = false
	if v.endTimer != nil {
		v.endTimer.Stop()
		v.endTimer = nil
	}
}

// Release discards the voice, firing its pending play completion as
// unsuccessful.
func (s *Stub) Release(h media.Handle) {
	s.mu.Lock()
	v, ok := s.voices[h]
	delete(s.voices, h)
	var pd func(bool)
	if ok {
		if v.endTimer != nil {
			v.endTimer.Stop()
		}
		pd = v.playDone
		v.playDone = nil
	}
	s.mu.Unlock()

	slog.Debug("stub release", "handle", h)
	if pd != nil {
		pd(false)
	}
}

// SystemVolume reports the simulated host mixer level.
func (s *Stub) SystemVolume() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.sysVolume, nil
}

// SetSystemVolume sets the simulated host mixer level.
func (s *Stub) SetSystemVolume(level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("invalid system volume: %f", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sysVolume = level
	return nil
}

// SetSessionActive toggles the simulated audio session.
func (s *Stub) SetSessionActive(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sessionOn = active
	return nil
}

// SetSessionCategory records the simulated session category.
func (s *Stub) SetSessionCategory(category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.category = category
	return nil
}

// Session reports the simulated session state for assertions.
func (s *Stub) Session() (active bool, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionOn, s.category
}

// Close releases every voice.
func (s *Stub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := make([]media.Handle, 0, len(s.voices))
	for h := range s.voices {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.Release(h)
	}
	return nil
}
