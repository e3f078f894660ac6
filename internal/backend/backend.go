package backend

import (
	"errors"
	"time"

	"cueplay.click/internal/media"
)

// Common errors for Backend implementations
var (
	ErrClosed         = errors.New("audio backend is closed")
	ErrNotSupported   = errors.New("operation not supported by backend")
	ErrUnknownHandle  = errors.New("unknown player handle")
	ErrInvalidBackend = errors.New("invalid backend kind")
)

// PrepareRequest carries everything a backend needs to ready one player.
// Options are backend-defined; unrecognized keys are ignored.
type PrepareRequest struct {
	Handle  media.Handle
	Locator string
	Options map[string]any
}

// Metadata is what a backend learned about a prepared resource. Duration
// and Channels are zero when the backend could not determine them.
type Metadata struct {
	Duration time.Duration
	Channels int
}

// Backend drives one native audio engine. Every call completing
// asynchronously takes a done callback invoked from a backend goroutine;
// callers are responsible for rescheduling onto their own dispatch.
type Backend interface {
	// Prepare readies a player for the request's locator and reports
	// metadata or an error. A handle already prepared is replaced.
	Prepare(req PrepareRequest, done func(Metadata, error))

	// Play starts or resumes playback. done fires when this play run
	// finishes, by reaching the end of the resource or by Stop.
	Play(h media.Handle, done func(ok bool))

	// Pause halts playback keeping position. done fires on acknowledgment.
	Pause(h media.Handle, done func())

	// Stop halts playback and rewinds to the start. done fires on
	// acknowledgment.
	Stop(h media.Handle, done func())

	// Seek moves the playback position. Fire-and-forget.
	Seek(h media.Handle, to time.Duration)

	// Position reports the current playback position.
	Position(h media.Handle, done func(time.Duration, error))

	// SetChannelVolume sets per-channel gains in [0,1].
	SetChannelVolume(h media.Handle, left, right float64) error

	// SetLoops sets how many times playback repeats after the first
	// pass. Negative means repeat forever.
	SetLoops(h media.Handle, count int) error

	// Release discards the player for the handle.
	Release(h media.Handle)

	// Events returns the bus this backend publishes play-state changes on.
	Events() *Bus

	// Close releases all players and shuts the engine down.
	Close() error
}

// Resetter is implemented by backends with a discrete return-to-start.
// Reset halts output and rewinds without firing completion callbacks or
// bus events; a pending play completion stays armed.
type Resetter interface {
	Reset(h media.Handle)
}

// SpeedController is implemented by backends supporting playback rate.
type SpeedController interface {
	SetSpeed(h media.Handle, rate float64) error
}

// PathNormalizer is implemented by backends that address relative paths
// through a platform-specific spelling.
type PathNormalizer interface {
	NormalizePath(locator string) string
}

// SystemVolumer is implemented by backends exposing the host mixer.
type SystemVolumer interface {
	SystemVolume() (float64, error)
	SetSystemVolume(level float64) error
}

// SessionController is implemented by backends with a global audio
// session (category, active flag) independent of any handle.
type SessionController interface {
	SetSessionActive(active bool) error
	SetSessionCategory(category string) error
}

// ChannelGains folds a volume in [0,1] and a pan in [-1,1] into
// left/right channel gains. Center pan leaves both channels at volume;
// panning attenuates the opposite channel linearly.
func ChannelGains(volume, pan float64) (left, right float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}

	left, right = volume, volume
	if pan > 0 {
		left = volume * (1 - pan)
	} else if pan < 0 {
		right = volume * (1 + pan)
	}
	return left, right
}
