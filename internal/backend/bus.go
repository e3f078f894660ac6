package backend

import (
	"log/slog"
	"sync"

	"cueplay.click/internal/media"
)

// Bus routes the backend's shared play-state stream to per-handle
// listeners. Backends publish (handle, playing) pairs; the controller
// owning a handle attaches exactly one relay at prepare completion and
// detaches it on release. Events for unattached handles are dropped.
//
// The bus holds plain function references, never the controllers
// themselves, so a detached controller is immediately collectable.
type Bus struct {
	mu     sync.RWMutex
	relays map[media.Handle]func(playing bool)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{relays: make(map[media.Handle]func(playing bool))}
}

// Attach registers the relay for a handle. A handle already attached
// keeps its existing relay; the duplicate attempt is logged and ignored.
func (b *Bus) Attach(h media.Handle, relay func(playing bool)) {
	if relay == nil {
		slog.Warn("attempted to attach nil relay", "handle", h)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.relays[h]; exists {
		slog.Warn("handle already attached to event bus, ignoring", "handle", h)
		return
	}

	b.relays[h] = relay
	slog.Debug("relay attached to event bus", "handle", h, "attached", len(b.relays))
}

// Detach removes the relay for a handle. Detaching an unknown handle is
// a no-op.
func (b *Bus) Detach(h media.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.relays[h]; !exists {
		slog.Debug("detach for unattached handle", "handle", h)
		return
	}

	delete(b.relays, h)
	slog.Debug("relay detached from event bus", "handle", h, "attached", len(b.relays))
}

// Attached reports whether a relay is registered for the handle.
func (b *Bus) Attached(h media.Handle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.relays[h]
	return exists
}

// Publish delivers a play-state change to the handle's relay, if any.
func (b *Bus) Publish(h media.Handle, playing bool) {
	b.mu.RLock()
	relay := b.relays[h]
	b.mu.RUnlock()

	if relay == nil {
		slog.Debug("dropping event for unattached handle", "handle", h, "playing", playing)
		return
	}

	slog.Debug("publishing play-state change", "handle", h, "playing", playing)
	relay(playing)
}
