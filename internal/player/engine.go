package player

import (
	"fmt"
	"time"

	"cueplay.click/internal/backend"
	"cueplay.click/internal/media"
)

// Engine owns one backend instance and hands out controllers bound to
// it. It also surfaces the backend's global capabilities, which degrade
// to ErrNotSupported where the backend lacks them.
type Engine struct {
	be           backend.Backend
	kind         string
	pollInterval time.Duration
}

// NewEngine creates the backend for kind and wraps it. An empty kind or
// KindAuto selects per platform.
func NewEngine(kind string) (*Engine, error) {
	be, err := backend.NewFactory().Create(kind)
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}
	return NewEngineWithBackend(be, kind), nil
}

// NewEngineWithBackend wraps an existing backend.
func NewEngineWithBackend(be backend.Backend, kind string) *Engine {
	return &Engine{
		be:           be,
		kind:         kind,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval sets the progress poll period handed to controllers.
func (e *Engine) SetPollInterval(d time.Duration) {
	if d > 0 {
		e.pollInterval = d
	}
}

// Backend exposes the owned backend.
func (e *Engine) Backend() backend.Backend { return e.be }

// Kind reports the backend kind the engine was created with.
func (e *Engine) Kind() string { return e.kind }

// Controller builds a controller for src bound to the engine's backend.
func (e *Engine) Controller(src media.Source) *Controller {
	return NewWithOptions(e.be, src, Options{PollInterval: e.pollInterval})
}

// ControllerWithOptions builds a controller overriding the engine
// defaults where opts sets them.
func (e *Engine) ControllerWithOptions(src media.Source, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = e.pollInterval
	}
	return NewWithOptions(e.be, src, opts)
}

// SystemVolume reports the host mixer level where supported.
func (e *Engine) SystemVolume() (float64, error) {
	sv, ok := e.be.(backend.SystemVolumer)
	if !ok {
		return 0, fmt.Errorf("system volume: %w", backend.ErrNotSupported)
	}
	return sv.SystemVolume()
}

// SetSystemVolume sets the host mixer level where supported.
func (e *Engine) SetSystemVolume(level float64) error {
	sv, ok := e.be.(backend.SystemVolumer)
	if !ok {
		return fmt.Errorf("system volume: %w", backend.ErrNotSupported)
	}
	return sv.SetSystemVolume(level)
}

// SetSessionActive toggles the platform audio session where supported.
func (e *Engine) SetSessionActive(active bool) error {
	sc, ok := e.be.(backend.SessionController)
	if !ok {
		return fmt.Errorf("audio session: %w", backend.ErrNotSupported)
	}
	return sc.SetSessionActive(active)
}

// SetSessionCategory sets the platform audio category where supported.
func (e *Engine) SetSessionCategory(category string) error {
	sc, ok := e.be.(backend.SessionController)
	if !ok {
		return fmt.Errorf("audio session: %w", backend.ErrNotSupported)
	}
	return sc.SetSessionCategory(category)
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.be.Close()
}
