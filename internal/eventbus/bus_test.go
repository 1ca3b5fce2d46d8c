package eventbus

import (
	"testing"
	"time"

	"pkt.systems/wheelhouse/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	event := schema.TabEvent{
		Type:      schema.TabEventCreated,
		Tab:       schema.TabSnapshot{ID: "tab1", Profile: "work"},
		ActiveTab: "tab1",
	}
	bus.OnTabEvent(event)

	select {
	case got := <-ch:
		if got.Type != schema.TabEventCreated {
			t.Fatalf("expected created event, got %v", got.Type)
		}
		if got.Tab.ID != event.Tab.ID || got.ActiveTab != event.ActiveTab {
			t.Fatalf("unexpected payload: %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	bus.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated})
	select {
	case got := <-ch:
		t.Fatalf("event delivered after unsubscribe: %+v", got)
	default:
	}
}

func TestPublishRacingUnsubscribe(t *testing.T) {
	bus := New(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			bus.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated})
		}
	}()
	for i := 0; i < 200; i++ {
		_, cancel := bus.Subscribe()
		cancel()
	}
	<-done
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe()
	defer cancel()

	var sendCh chan schema.TabEvent
	bus.mu.Lock()
	for ch := range bus.subs {
		sendCh = ch
		break
	}
	bus.mu.Unlock()
	if sendCh == nil {
		t.Fatalf("expected subscriber channel")
	}
	sendCh <- schema.TabEvent{Type: schema.TabEventUpdated}
	done := make(chan struct{})
	go func() {
		bus.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
