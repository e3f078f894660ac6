package player

import (
	"log/slog"
	"reflect"
	"sync"
)

// hub fans state changes out to subscribers. Dispatch iterates a
// snapshot of the subscriber list, so a removal during a dispatch
// leaves that dispatch intact and takes effect on the next one.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

// subscription pairs a callback with its registration id. The func
// pointer identifies duplicates, the id identifies the registration for
// removal.
type subscription struct {
	id  int
	ptr uintptr
	fn  func(Change)
}

// subscribe registers the callback and returns its removal func. A
// callback already subscribed is ignored with a warning; the removal
// func returned for it removes nothing.
func (h *hub) subscribe(fn func(Change)) func() {
	if fn == nil {
		slog.Warn("ignoring nil subscription callback")
		return func() {}
	}

	ptr := reflect.ValueOf(fn).Pointer()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		if s.ptr == ptr {
			slog.Warn("ignoring duplicate subscription", "callback", ptr)
			return func() {}
		}
	}

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, ptr: ptr, fn: fn})
	slog.Debug("subscriber added", "callback", ptr, "count", len(h.subs))

	return func() { h.remove(id) }
}

// remove drops the registration if still present. Idempotent. The
// filtered list is rebuilt rather than edited in place so an in-flight
// dispatch keeps its snapshot.
func (h *hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(h.subs)-1)
		next = append(next, h.subs[:i]...)
		next = append(next, h.subs[i+1:]...)
		h.subs = next
		slog.Debug("subscriber removed", "count", len(h.subs))
		return
	}
}

// dispatch invokes every current subscriber synchronously, in
// subscription order.
func (h *hub) dispatch(ch Change) {
	h.mu.Lock()
	subs := h.subs
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(ch)
	}
}
