package backend

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/spf13/afero"

	"cueplay.click/internal/media"
	"cueplay.click/internal/pcm"
)

// Malgo plays PCM decoded in memory through malgo playback devices, one
// device per prepared handle. Devices persist across pause so position
// survives; they are torn down on release.
type Malgo struct {
	mu       sync.Mutex
	ctx      *deviceContext
	voices   map[media.Handle]*malgoVoice
	bus      *Bus
	registry *pcm.Registry
	fsys     afero.Fs
	closed   bool
}

// NewMalgo creates a malgo backend reading from the OS filesystem.
func NewMalgo() *Malgo {
	return NewMalgoWithFs(afero.NewOsFs())
}

// NewMalgoWithFs creates a malgo backend reading audio through fsys.
func NewMalgoWithFs(fsys afero.Fs) *Malgo {
	slog.Debug("creating malgo backend")
	return &Malgo{
		voices:   make(map[media.Handle]*malgoVoice),
		bus:      NewBus(),
		registry: pcm.NewDefaultRegistry(),
		fsys:     fsys,
	}
}

// malgoVoice is one prepared player: a clip, a playback cursor and the
// device feeding from it.
type malgoVoice struct {
	mu        sync.Mutex
	clip      *pcm.Clip
	device    *malgo.Device
	frame     int
	loops     int
	loopsLeft int
	gainL     float64
	gainR     float64
	playing   bool
	playDone  func(ok bool)
	endCh     chan struct{}
	endOnce   *sync.Once
	abortCh   chan struct{}
}

// abortMonitor releases the natural-end monitor of the current run.
// Caller must hold v.mu.
func (v *malgoVoice) abortMonitor() {
	if v.abortCh != nil {
		close(v.abortCh)
		v.abortCh = nil
	}
}

// feed is the device data callback. It copies interleaved frames from
// the clip into the device buffer, wrapping for loops, silencing the
// tail and applying channel gains.
func (v *malgoVoice) feed(out []byte) {
	v.mu.Lock()

	clip := v.clip
	frameBytes := clip.FrameBytes()
	total := clip.Frames() * frameBytes
	start := v.frame * frameBytes
	written := 0
	finished := false

	for written < len(out) {
		if start >= total {
			if v.loopsLeft != 0 {
				if v.loopsLeft > 0 {
					v.loopsLeft--
				}
				v.frame = 0
				start = 0
				continue
			}
			finished = true
			break
		}
		n := copy(out[written:], clip.Data[start:total])
		written += n
		start += n
		v.frame += n / frameBytes
	}

	for i := written; i < len(out); i++ {
		out[i] = 0
	}

	gains := channelGainTable(int(clip.Channels), v.gainL, v.gainR)
	applyChannelGains(out[:written], clip.Format, int(clip.Channels), gains)

	endOnce, endCh := v.endOnce, v.endCh
	v.mu.Unlock()

	if finished && endOnce != nil {
		endOnce.Do(func() { close(endCh) })
	}
}

// Events returns the bus this backend publishes play-state changes on.
func (m *Malgo) Events() *Bus {
	return m.bus
}

// Prepare decodes the locator into memory and stores a voice for the
// handle. A handle already prepared is replaced.
func (m *Malgo) Prepare(req PrepareRequest, done func(Metadata, error)) {
	go func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			done(Metadata{}, ErrClosed)
			return
		}

		slog.Debug("malgo prepare", "handle", req.Handle, "locator", req.Locator)

		f, err := m.fsys.Open(req.Locator)
		if err != nil {
			slog.Error("malgo prepare failed to open locator",
				"handle", req.Handle, "locator", req.Locator, "error", err)
			done(Metadata{}, fmt.Errorf("open %s: %w", req.Locator, err))
			return
		}
		defer f.Close()

		clip, err := m.registry.Decode(filepath.Base(req.Locator), f)
		if err != nil {
			slog.Error("malgo prepare failed to decode",
				"handle", req.Handle, "locator", req.Locator, "error", err)
			done(Metadata{}, fmt.Errorf("decode %s: %w", req.Locator, err))
			return
		}

		m.dropVoice(req.Handle)

		v := &malgoVoice{clip: clip, gainL: 1, gainR: 1}
		m.mu.Lock()
		m.voices[req.Handle] = v
		m.mu.Unlock()

		meta := Metadata{Duration: clip.Duration(), Channels: int(clip.Channels)}
		slog.Debug("malgo prepare completed",
			"handle", req.Handle,
			"duration_ms", meta.Duration.Milliseconds(),
			"channels", meta.Channels)
		done(meta, nil)
	}()
}

func (m *Malgo) voice(h media.Handle) (*malgoVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.voices[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return v, nil
}

// ensureDevice lazily initializes the shared context and the voice's
// playback device.
func (m *Malgo) ensureDevice(v *malgoVoice) error {
	v.mu.Lock()
	if v.device != nil {
		v.mu.Unlock()
		return nil
	}
	clip := v.clip
	v.mu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.ctx == nil {
		ctx, err := newDeviceContext()
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("init device context: %w", err)
		}
		m.ctx = ctx
	}
	ctx := m.ctx
	m.mu.Unlock()

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = clip.Format
	cfg.Playback.Channels = clip.Channels
	cfg.SampleRate = clip.SampleRate
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			v.feed(pOutput)
		},
	}

	device, err := malgo.InitDevice(ctx.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}

	v.mu.Lock()
	v.device = device
	v.mu.Unlock()
	return nil
}

// Play starts or resumes the voice. done fires once when this run ends
// naturally or through Stop; a play issued while already running only
// replaces the pending completion.
func (m *Malgo) Play(h media.Handle, done func(ok bool)) {
	go func() {
		v, err := m.voice(h)
		if err != nil {
			slog.Debug("malgo play rejected", "handle", h, "error", err)
			if done != nil {
				done(false)
			}
			return
		}

		v.mu.Lock()
		if v.playing {
			if v.playDone != nil && done != nil {
				slog.Debug("malgo play while playing, replacing completion", "handle", h)
			}
			if done != nil {
				v.playDone = done
			}
			v.mu.Unlock()
			return
		}
		v.mu.Unlock()

		if err := m.ensureDevice(v); err != nil {
			slog.Error("malgo play failed", "handle", h, "error", err)
			if done != nil {
				done(false)
			}
			return
		}

		v.mu.Lock()
		if v.frame >= v.clip.Frames() {
			v.frame = 0
		}
		if v.frame == 0 {
			v.loopsLeft = v.loops
		}
		if done != nil {
			v.playDone = done
		}
		endCh := make(chan struct{})
		abortCh := make(chan struct{})
		v.endCh, v.endOnce, v.abortCh = endCh, &sync.Once{}, abortCh
		device := v.device
		v.mu.Unlock()

		if err := device.Start(); err != nil {
			slog.Error("malgo device start failed", "handle", h, "error", err)
			v.mu.Lock()
			v.playDone = nil
			v.abortMonitor()
			v.mu.Unlock()
			if done != nil {
				done(false)
			}
			return
		}

		v.mu.Lock()
		v.playing = true
		v.mu.Unlock()

		slog.Debug("malgo playback started", "handle", h)
		m.bus.Publish(h, true)

		go m.watchEnd(h, v, endCh, abortCh)
	}()
}

// watchEnd waits for the data callback to exhaust the clip, then halts
// the device and reports the natural end.
func (m *Malgo) watchEnd(h media.Handle, v *malgoVoice, endCh, abortCh chan struct{}) {
	select {
	case <-endCh:
	case <-abortCh:
		return
	}

	v.mu.Lock()
	device := v.device
	v.playing = false
	v.abortCh = nil
	pd := v.playDone
	v.playDone = nil
	v.mu.Unlock()

	if device != nil {
		_ = device.Stop()
	}

	slog.Debug("malgo playback ended", "handle", h)
	m.bus.Publish(h, false)
	if pd != nil {
		pd(true)
	}
}

// Pause halts the device keeping the cursor. The pending play
// completion stays armed for the resumed run.
func (m *Malgo) Pause(h media.Handle, done func()) {
	go func() {
		v, err := m.voice(h)
		if err != nil {
			slog.Debug("malgo pause rejected", "handle", h, "error", err)
			if done != nil {
				done()
			}
			return
		}

		v.mu.Lock()
		device := v.device
		wasPlaying := v.playing
		v.playing = false
		v.abortMonitor()
		v.mu.Unlock()

		if wasPlaying && device != nil {
			_ = device.Stop()
		}

		slog.Debug("malgo paused", "handle", h)
		if done != nil {
			done()
		}
	}()
}

// Stop halts the device, rewinds, acknowledges, then fires the pending
// play completion.
func (m *Malgo) Stop(h media.Handle, done func()) {
	go func() {
		v, err := m.voice(h)
		if err != nil {
			slog.Debug("malgo stop rejected", "handle", h, "error", err)
			if done != nil {
				done()
			}
			return
		}

		v.mu.Lock()
		device := v.device
		wasPlaying := v.playing
		v.playing = false
		v.frame = 0
		v.loopsLeft = v.loops
		pd := v.playDone
		v.playDone = nil
		v.abortMonitor()
		v.mu.Unlock()

		if wasPlaying && device != nil {
			_ = device.Stop()
		}

		slog.Debug("malgo stopped", "handle", h)
		if done != nil {
			done()
		}
		if pd != nil {
			pd(true)
		}
	}()
}

// Seek moves the cursor. The running callback picks the new position up
// on its next pass.
func (m *Malgo) Seek(h media.Handle, to time.Duration) {
	v, err := m.voice(h)
	if err != nil {
		slog.Debug("malgo seek rejected", "handle", h, "error", err)
		return
	}

	v.mu.Lock()
	frame := int(to.Seconds() * float64(v.clip.SampleRate))
	if frame < 0 {
		frame = 0
	}
	if max := v.clip.Frames(); frame > max {
		frame = max
	}
	v.frame = frame
	v.mu.Unlock()

	slog.Debug("malgo seek", "handle", h, "to_ms", to.Milliseconds())
}

// Position reports the cursor as a duration.
func (m *Malgo) Position(h media.Handle, done func(time.Duration, error)) {
	go func() {
		v, err := m.voice(h)
		if err != nil {
			done(0, err)
			return
		}

		v.mu.Lock()
		frame := v.frame
		rate := v.clip.SampleRate
		v.mu.Unlock()

		if rate == 0 {
			done(0, nil)
			return
		}
		done(time.Duration(frame)*time.Second/time.Duration(rate), nil)
	}()
}

// SetChannelVolume sets per-channel gains applied in the data callback.
func (m *Malgo) SetChannelVolume(h media.Handle, left, right float64) error {
	v, err := m.voice(h)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.gainL, v.gainR = left, right
	v.mu.Unlock()

	slog.Debug("malgo channel gains", "handle", h, "left", left, "right", right)
	return nil
}

// SetLoops sets the repeat count. Negative repeats forever.
func (m *Malgo) SetLoops(h media.Handle, count int) error {
	v, err := m.voice(h)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.loops = count
	v.loopsLeft = count
	v.mu.Unlock()

	slog.Debug("malgo loops", "handle", h, "count", count)
	return nil
}

// Reset halts the device and rewinds the cursor without completing the
// run.
func (m *Malgo) Reset(h media.Handle) {
	v, err := m.voice(h)
	if err != nil {
		slog.Debug("malgo reset rejected", "handle", h, "error", err)
		return
	}

	v.mu.Lock()
	device := v.device
	wasPlaying := v.playing
	v.playing = false
	v.frame = 0
	v.loopsLeft = v.loops
	v.abortMonitor()
	v.mu.Unlock()

	if wasPlaying && device != nil {
		_ = device.Stop()
	}

	slog.Debug("malgo reset", "handle", h)
}

// dropVoice removes and tears down the voice for a handle, firing its
// pending play completion as unsuccessful.
func (m *Malgo) dropVoice(h media.Handle) {
	m.mu.Lock()
	v, ok := m.voices[h]
	delete(m.voices, h)
	m.mu.Unlock()
	if !ok {
		return
	}

	v.mu.Lock()
	device := v.device
	v.device = nil
	v.playing = false
	pd := v.playDone
	v.playDone = nil
	v.abortMonitor()
	v.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if pd != nil {
		pd(false)
	}
}

// Release discards the player for the handle.
func (m *Malgo) Release(h media.Handle) {
	slog.Debug("malgo release", "handle", h)
	m.dropVoice(h)
}

// Close releases every voice and the device context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	handles := make([]media.Handle, 0, len(m.voices))
	for h := range m.voices {
		handles = append(handles, h)
	}
	ctx := m.ctx
	m.ctx = nil
	m.mu.Unlock()

	for _, h := range handles {
		m.dropVoice(h)
	}
	if ctx != nil {
		if err := ctx.close(); err != nil {
			return err
		}
	}

	slog.Debug("malgo backend closed")
	return nil
}

// channelGainTable expands left/right gains to one gain per channel.
// Mono collapses to the average; channels past the first two get the
// average as well.
func channelGainTable(channels int, left, right float64) []float64 {
	switch {
	case channels <= 0:
		return nil
	case channels == 1:
		return []float64{(left + right) / 2}
	case channels == 2:
		return []float64{left, right}
	default:
		gains := make([]float64, channels)
		mid := (left + right) / 2
		for i := range gains {
			gains[i] = mid
		}
		gains[0], gains[1] = left, right
		return gains
	}
}

// applyChannelGains scales interleaved samples in place by per-channel
// gains. Formats outside S16/S24/S32 pass through unscaled.
func applyChannelGains(samples []byte, format malgo.FormatType, channels int, gains []float64) {
	if channels <= 0 || len(gains) < channels {
		return
	}
	unity := true
	for _, g := range gains {
		if g != 1.0 {
			unity = false
			break
		}
	}
	if unity {
		return
	}

	switch format {
	case malgo.FormatS16:
		for i := 0; i+1 < len(samples); i += 2 {
			g := gains[(i/2)%channels]
			s := int16(samples[i]) | int16(samples[i+1])<<8
			s = int16(float64(s) * g)
			samples[i] = byte(s)
			samples[i+1] = byte(s >> 8)
		}
	case malgo.FormatS24:
		for i := 0; i+2 < len(samples); i += 3 {
			g := gains[(i/3)%channels]
			s := int32(samples[i]) | int32(samples[i+1])<<8 | int32(samples[i+2])<<16
			if s&0x800000 != 0 {
				s |= ^int32(0xFFFFFF)
			}
			s = int32(float64(s) * g)
			samples[i] = byte(s)
			samples[i+1] = byte(s >> 8)
			samples[i+2] = byte(s >> 16)
		}
	case malgo.FormatS32:
		for i := 0; i+3 < len(samples); i += 4 {
			g := gains[(i/4)%channels]
			s := int32(samples[i]) | int32(samples[i+1])<<8 | int32(samples[i+2])<<16 | int32(samples[i+3])<<24
			s = int32(float64(s) * g)
			samples[i] = byte(s)
			samples[i+1] = byte(s >> 8)
			samples[i+2] = byte(s >> 16)
			samples[i+3] = byte(s >> 24)
		}
	default:
		slog.Warn("gain adjustment not implemented for format", "format", format)
	}
}
