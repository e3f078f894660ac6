package backend

import (
	"testing"

	"cueplay.click/internal/media"
)

func TestBusPublishRoutesByHandle(t *testing.T) {
	bus := NewBus()

	var got1, got2 []bool
	bus.Attach(media.Handle(1), func(playing bool) { got1 = append(got1, playing) })
	bus.Attach(media.Handle(2), func(playing bool) { got2 = append(got2, playing) })

	bus.Publish(1, true)
	bus.Publish(2, false)
	bus.Publish(1, false)

	if len(got1) != 2 || got1[0] != true || got1[1] != false {
		t.Errorf("handle 1 events = %v, expected [true false]", got1)
	}
	if len(got2) != 1 || got2[0] != false {
		t.Errorf("handle 2 events = %v, expected [false]", got2)
	}
}

func TestBusDropsUnattachedHandles(t *testing.T) {
	bus := NewBus()

	// Must not panic.
	bus.Publish(42, true)

	called := false
	bus.Attach(1, func(bool) { called = true })
	bus.Publish(99, true)

	if called {
		t.Error("relay invoked for a different handle")
	}
}

func TestBusDuplicateAttachIgnored(t *testing.T) {
	bus := NewBus()

	var first, second int
	bus.Attach(1, func(bool) { first++ })
	bus.Attach(1, func(bool) { second++ })

	bus.Publish(1, true)

	if first != 1 {
		t.Errorf("first relay invocations = %d, expected 1", first)
	}
	if second != 0 {
		t.Errorf("second relay invocations = %d, expected 0 (duplicate ignored)", second)
	}
}

func TestBusDetach(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.Attach(1, func(bool) { count++ })
	bus.Publish(1, true)

	bus.Detach(1)
	bus.Publish(1, false)

	if count != 1 {
		t.Errorf("relay invocations = %d, expected 1 after detach", count)
	}
	if bus.Attached(1) {
		t.Error("handle still attached after detach")
	}

	// Idempotent.
	bus.Detach(1)
	bus.Detach(77)
}

func TestBusNilRelayIgnored(t *testing.T) {
	bus := NewBus()
	bus.Attach(1, nil)

	if bus.Attached(1) {
		t.Error("nil relay should not attach")
	}
}

func TestBusReattachAfterDetach(t *testing.T) {
	bus := NewBus()

	var gotOld, gotNew int
	bus.Attach(1, func(bool) { gotOld++ })
	bus.Detach(1)
	bus.Attach(1, func(bool) { gotNew++ })

	bus.Publish(1, true)

	if gotOld != 0 {
		t.Errorf("old relay invoked %d times after detach", gotOld)
	}
	if gotNew != 1 {
		t.Errorf("new relay invocations = %d, expected 1", gotNew)
	}
}
