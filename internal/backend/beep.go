package backend

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/spf13/afero"

	"cueplay.click/internal/media"
)

// Beep streams audio through the beep/v2 speaker. Each prepared handle
// keeps a seekable decoded stream; playback queues a
// loop→resample→volume→pan→ctrl chain on the shared speaker.
//
// The speaker is process-global and initialized once at the first play;
// later streams with other sample rates go through the resampler.
type Beep struct {
	mu          sync.Mutex
	voices      map[media.Handle]*beepVoice
	bus         *Bus
	fsys        afero.Fs
	speakerRate beep.SampleRate
	closed      bool
}

// NewBeep creates a beep backend reading from the OS filesystem.
func NewBeep() *Beep {
	return NewBeepWithFs(afero.NewOsFs())
}

// NewBeepWithFs creates a beep backend reading audio through fsys.
func NewBeepWithFs(fsys afero.Fs) *Beep {
	slog.Debug("creating beep backend")
	return &Beep{
		voices: make(map[media.Handle]*beepVoice),
		bus:    NewBus(),
		fsys:   fsys,
	}
}

type beepVoice struct {
	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format

	// chain nodes, valid while queued on the speaker
	loop      *loopStream
	resampler *beep.Resampler
	volNode   *effects.Volume
	panNode   *effects.Pan
	ctrl      *beep.Ctrl

	level    float64
	pan      float64
	speed    float64
	loops    int
	playing  bool
	active   bool
	released bool
	playDone func(ok bool)
}

// loopStream replays its core until the remaining repeat count hits
// zero. left is mutated only under the speaker lock.
type loopStream struct {
	core beep.StreamSeekCloser
	left int
}

func (l *loopStream) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		n, ok := l.core.Stream(samples[filled:])
		filled += n
		if !ok {
			if l.left == 0 {
				break
			}
			if l.left > 0 {
				l.left--
			}
			if err := l.core.Seek(0); err != nil {
				break
			}
		}
	}
	if filled == 0 {
		return 0, false
	}
	return filled, true
}

func (l *loopStream) Err() error {
	return l.core.Err()
}

// Events returns the bus this backend publishes play-state changes on.
func (b *Beep) Events() *Bus {
	return b.bus
}

// Prepare opens and decodes the locator lazily. The file stays open for
// streaming until release.
func (b *Beep) Prepare(req PrepareRequest, done func(Metadata, error)) {
	go func() {
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			done(Metadata{}, ErrClosed)
			return
		}

		slog.Debug("beep prepare", "handle", req.Handle, "locator", req.Locator)

		f, err := b.fsys.Open(req.Locator)
		if err != nil {
			slog.Error("beep prepare failed to open locator",
				"handle", req.Handle, "locator", req.Locator, "error", err)
			done(Metadata{}, fmt.Errorf("open %s: %w", req.Locator, err))
			return
		}

		streamer, format, err := decodeBeepStream(req.Locator, f)
		if err != nil {
			f.Close()
			slog.Error("beep prepare failed to decode",
				"handle", req.Handle, "locator", req.Locator, "error", err)
			done(Metadata{}, err)
			return
		}

		b.dropVoice(req.Handle)

		v := &beepVoice{
			streamer: streamer,
			format:   format,
			level:    1,
			speed:    1,
		}
		b.mu.Lock()
		b.voices[req.Handle] = v
		b.mu.Unlock()

		meta := Metadata{
			Duration: format.SampleRate.D(streamer.Len()),
			Channels: format.NumChannels,
		}
		slog.Debug("beep prepare completed",
			"handle", req.Handle,
			"duration_ms", meta.Duration.Milliseconds(),
			"channels", meta.Channels)
		done(meta, nil)
	}()
}

func decodeBeepStream(locator string, f afero.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(locator)) {
	case ".wav", ".wave":
		return wav.Decode(f)
	case ".mp3", ".mpeg":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrNotSupported, locator)
	}
}

func (b *Beep) voice(h media.Handle) (*beepVoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	v, ok := b.voices[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return v, nil
}

// ensureSpeaker initializes the global speaker at the first play.
func (b *Beep) ensureSpeaker(format beep.Format) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speakerRate != 0 {
		return nil
	}

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	b.speakerRate = format.SampleRate
	slog.Debug("speaker initialized", "sample_rate", format.SampleRate)
	return nil
}

// levelToVolume maps a linear level in (0,1] onto the exponent of a
// base-2 volume effect.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Log2(level)
}

// queueChain builds the playback chain for a fresh run and hands it to
// the speaker. Caller must hold v.mu.
func (b *Beep) queueChain(h media.Handle, v *beepVoice) {
	b.mu.Lock()
	speakerRate := b.speakerRate
	b.mu.Unlock()

	speaker.Lock()
	if v.streamer.Position() >= v.streamer.Len() {
		_ = v.streamer.Seek(0)
	}
	v.loop = &loopStream{core: v.streamer, left: v.loops}
	ratio := float64(v.format.SampleRate) / float64(speakerRate) * v.speed
	v.resampler = beep.ResampleRatio(4, ratio, v.loop)
	v.volNode = &effects.Volume{
		Streamer: v.resampler,
		Base:     2,
		Volume:   levelToVolume(v.level),
		Silent:   v.level <= 0,
	}
	v.panNode = &effects.Pan{Streamer: v.volNode, Pan: v.pan}
	v.ctrl = &beep.Ctrl{Streamer: v.panNode}
	speaker.Unlock()

	v.active = true
	speaker.Play(beep.Seq(v.ctrl, beep.Callback(func() {
		go b.chainDrained(h, v)
	})))
}

// chainDrained runs when a queued chain plays through to its natural
// end and the speaker drops it.
func (b *Beep) chainDrained(h media.Handle, v *beepVoice) {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	wasPlaying := v.playing
	v.playing = false
	v.active = false
	pd := v.playDone
	v.playDone = nil
	v.mu.Unlock()

	if !wasPlaying {
		return
	}

	slog.Debug("beep playback ended", "handle", h)
	b.bus.Publish(h, false)
	if pd != nil {
		pd(true)
	}
}

// Play starts or resumes the voice.
func (b *Beep) Play(h media.Handle, done func(ok bool)) {
	go func() {
		v, err := b.voice(h)
		if err != nil {
			slog.Debug("beep play rejected", "handle", h, "error", err)
			if done != nil {
				done(false)
			}
			return
		}

		if err := b.ensureSpeaker(v.format); err != nil {
			slog.Error("beep play failed", "handle", h, "error", err)
			if done != nil {
				done(false)
			}
			return
		}

		v.mu.Lock()
		if v.playing {
			if done != nil {
				v.playDone = done
			}
			v.mu.Unlock()
			return
		}
		if done != nil {
			v.playDone = done
		}
		if v.active {
			speaker.Lock()
			v.ctrl.Paused = false
			speaker.Unlock()
		} else {
			b.queueChain(h, v)
		}
		v.playing = true
		v.mu.Unlock()

		slog.Debug("beep playback started", "handle", h)
		b.bus.Publish(h, true)
	}()
}

// Pause pauses the queued chain keeping position.
func (b *Beep) Pause(h media.Handle, done func()) {
	go func() {
		v, err := b.voice(h)
		if err != nil {
			slog.Debug("beep pause rejected", "handle", h, "error", err)
			if done != nil {
				done()
			}
			return
		}

		v.mu.Lock()
		if v.active {
			speaker.Lock()
			v.ctrl.Paused = true
			speaker.Unlock()
		}
		v.playing = false
		v.mu.Unlock()

		slog.Debug("beep paused", "handle", h)
		if done != nil {
			done()
		}
	}()
}

// Stop pauses the chain, rewinds, acknowledges, then fires the pending
// play completion.
func (b *Beep) Stop(h media.Handle, done func()) {
	go func() {
		v, err := b.voice(h)
		if err != nil {
			slog.Debug("beep stop rejected", "handle", h, "error", err)
			if done != nil {
				done()
			}
			return
		}

		v.mu.Lock()
		if v.active {
			speaker.Lock()
			v.ctrl.Paused = true
			_ = v.streamer.Seek(0)
			v.loop.left = v.loops
			speaker.Unlock()
		}
		v.playing = false
		pd := v.playDone
		v.playDone = nil
		v.mu.Unlock()

		slog.Debug("beep stopped", "handle", h)
		if done != nil {
			done()
		}
		if pd != nil {
			pd(true)
		}
	}()
}

// Seek moves the stream position.
func (b *Beep) Seek(h media.Handle, to time.Duration) {
	v, err := b.voice(h)
	if err != nil {
		slog.Debug("beep seek rejected", "handle", h, "error", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	speaker.Lock()
	defer speaker.Unlock()

	n := v.format.SampleRate.N(to)
	if n < 0 {
		n = 0
	}
	if max := v.streamer.Len(); n > max {
		n = max
	}
	if err := v.streamer.Seek(n); err != nil {
		slog.Error("beep seek failed", "handle", h, "error", err)
		return
	}
	slog.Debug("beep seek", "handle", h, "to_ms", to.Milliseconds())
}

// Position reports the stream position within the current pass.
func (b *Beep) Position(h media.Handle, done func(time.Duration, error)) {
	go func() {
		v, err := b.voice(h)
		if err != nil {
			done(0, err)
			return
		}

		v.mu.Lock()
		speaker.Lock()
		pos := v.format.SampleRate.D(v.streamer.Position())
		speaker.Unlock()
		v.mu.Unlock()

		done(pos, nil)
	}()
}

// SetChannelVolume folds channel gains back into a level and a pan
// position on the volume and pan nodes.
func (b *Beep) SetChannelVolume(h media.Handle, left, right float64) error {
	v, err := b.voice(h)
	if err != nil {
		return err
	}

	level := math.Max(left, right)
	pan := 0.0
	if level > 0 {
		pan = (right - left) / level
	}

	v.mu.Lock()
	v.level = level
	v.pan = pan
	if v.active {
		speaker.Lock()
		v.volNode.Volume = levelToVolume(level)
		v.volNode.Silent = level <= 0
		v.panNode.Pan = pan
		speaker.Unlock()
	}
	v.mu.Unlock()

	slog.Debug("beep channel gains", "handle", h, "level", level, "pan", pan)
	return nil
}

// SetLoops sets the repeat count. Negative repeats forever.
func (b *Beep) SetLoops(h media.Handle, count int) error {
	v, err := b.voice(h)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.loops = count
	if v.active {
		speaker.Lock()
		v.loop.left = count
		speaker.Unlock()
	}
	v.mu.Unlock()

	slog.Debug("beep loops", "handle", h, "count", count)
	return nil
}

// SetSpeed adjusts the playback rate through the resampler ratio.
func (b *Beep) SetSpeed(h media.Handle, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid playback rate: %f", rate)
	}

	v, err := b.voice(h)
	if err != nil {
		return err
	}

	b.mu.Lock()
	speakerRate := b.speakerRate
	b.mu.Unlock()

	v.mu.Lock()
	v.speed = rate
	if v.active && speakerRate != 0 {
		speaker.Lock()
		v.resampler.SetRatio(float64(v.format.SampleRate) / float64(speakerRate) * rate)
		speaker.Unlock()
	}
	v.mu.Unlock()

	slog.Debug("beep speed", "handle", h, "rate", rate)
	return nil
}

// Reset pauses the chain and rewinds the stream without completing the
// run.
func (b *Beep) Reset(h media.Handle) {
	v, err := b.voice(h)
	if err != nil {
		slog.Debug("beep reset rejected", "handle", h, "error", err)
		return
	}

	v.mu.Lock()
	if v.active {
		speaker.Lock()
		v.ctrl.Paused = true
		_ = v.streamer.Seek(0)
		v.loop.left = v.loops
		speaker.Unlock()
	}
	v.playing = false
	v.mu.Unlock()

	slog.Debug("beep reset", "handle", h)
}

// dropVoice removes and tears down the voice for a handle, firing its
// pending play completion as unsuccessful.
func (b *Beep) dropVoice(h media.Handle) {
	b.mu.Lock()
	v, ok := b.voices[h]
	delete(b.voices, h)
	b.mu.Unlock()
	if !ok {
		return
	}

	v.mu.Lock()
	v.released = true
	v.playing = false
	pd := v.playDone
	v.playDone = nil
	active := v.active
	v.active = false
	v.mu.Unlock()

	if active {
		// Unpausing a nil-streamer ctrl drains it so the speaker
		// drops the chain.
		speaker.Lock()
		v.ctrl.Streamer = nil
		v.ctrl.Paused = false
		speaker.Unlock()
	}
	v.streamer.Close()

	if pd != nil {
		pd(false)
	}
}

// Release discards the player for the handle.
func (b *Beep) Release(h media.Handle) {
	slog.Debug("beep release", "handle", h)
	b.dropVoice(h)
}

// Close releases every voice. The global speaker stays initialized for
// other users of the process.
func (b *Beep) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	handles := make([]media.Handle, 0, len(b.voices))
	for h := range b.voices {
		handles = append(handles, h)
	}
	b.mu.Unlock()

	for _, h := range handles {
		b.dropVoice(h)
	}

	slog.Debug("beep backend closed")
	return nil
}
