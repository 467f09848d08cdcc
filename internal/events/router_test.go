package events

import (
	"testing"
	"time"
)

func TestRouterEmitAndSubscribe(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch := r.Subscribe()

	ev := &ViewActivateEvent{
		BaseEvent: NewEngineEvent(EventViewActivate),
		ViewID:    "promo",
		Position:  2,
	}
	r.Emit(ev)

	select {
	case got := <-ch:
		if got.Type() != EventViewActivate {
			t.Errorf("got type %s, want %s", got.Type(), EventViewActivate)
		}
		va, ok := got.(*ViewActivateEvent)
		if !ok {
			t.Fatalf("got %T, want *ViewActivateEvent", got)
		}
		if va.ViewID != "promo" || va.Position != 2 {
			t.Errorf("got %+v", va)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRouterMultipleSubscribers(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch1 := r.Subscribe()
	ch2 := r.Subscribe()

	r.Emit(&CycleStartEvent{BaseEvent: NewEngineEvent(EventCycleStart), Views: 3})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Type() != EventCycleStart {
				t.Errorf("subscriber %d: got type %s", i, got.Type())
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestRouterDropsWhenFull(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	ch := r.Subscribe()

	// Fill the buffer, then overflow. Emit must not block.
	r.Emit(&CycleStartEvent{BaseEvent: NewEngineEvent(EventCycleStart)})
	done := make(chan struct{})
	go func() {
		r.Emit(&CycleStopEvent{BaseEvent: NewEngineEvent(EventCycleStop)})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on full subscriber")
	}

	// Only the first event is delivered.
	got := <-ch
	if got.Type() != EventCycleStart {
		t.Errorf("got %s, want %s", got.Type(), EventCycleStart)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected second event: %v", ev.Type())
	default:
	}
}

func TestRouterUnsubscribe(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch := r.Subscribe()
	r.Unsubscribe(ch)

	// Channel should be closed.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Emit after unsubscribe must not panic.
	r.Emit(&CycleStopEvent{BaseEvent: NewEngineEvent(EventCycleStop)})
}

func TestRouterClose(t *testing.T) {
	r := NewRouter(10)
	ch := r.Subscribe()

	r.Close()
	r.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected closed subscriber channel")
	}

	// Post-close operations are inert.
	r.Emit(&CycleStopEvent{BaseEvent: NewEngineEvent(EventCycleStop)})
	ch2 := r.Subscribe()
	if _, ok := <-ch2; ok {
		t.Error("expected closed channel from post-close Subscribe")
	}
}
