package httpapi

import (
	"testing"

	"pkt.systems/wheelhouse/schema"
)

func TestHubPublishAndReplay(t *testing.T) {
	hub := NewHub(4, nil)
	ch, unsub, seq := hub.Subscribe()
	defer unsub()
	if seq != 0 {
		t.Fatalf("initial seq = %d", seq)
	}
	hub.OnTabEvent(schema.TabEvent{
		Type: schema.TabEventCreated,
		Tab:  schema.TabSnapshot{ID: "a"},
	})
	event := <-ch
	if event.Seq != 1 || event.TabEvent != string(schema.TabEventCreated) || event.Tab.ID != "a" {
		t.Fatalf("event = %+v", event)
	}
	replay := hub.Replay(0)
	if len(replay) != 1 {
		t.Fatalf("replay = %d events", len(replay))
	}
	if got := hub.Replay(1); len(got) != 0 {
		t.Fatalf("replay after current seq = %d events", len(got))
	}
}

func TestHubHistoryBounded(t *testing.T) {
	hub := NewHub(2, nil)
	for i := 0; i < 5; i++ {
		hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated, Tab: schema.TabSnapshot{ID: "a"}})
	}
	replay := hub.Replay(0)
	if len(replay) != 2 {
		t.Fatalf("history = %d events, want 2", len(replay))
	}
	if replay[0].Seq != 4 || replay[1].Seq != 5 {
		t.Fatalf("seqs = %d, %d", replay[0].Seq, replay[1].Seq)
	}
}

func TestHubPublishRacingUnsubscribe(t *testing.T) {
	hub := NewHub(8, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated, Tab: schema.TabSnapshot{ID: "a"}})
		}
	}()
	for i := 0; i < 200; i++ {
		_, unsub, _ := hub.Subscribe()
		unsub()
	}
	<-done
}

func TestHubPublishDoesNotBlockWhenFull(t *testing.T) {
	hub := NewHub(8, nil)
	_, unsub, _ := hub.Subscribe()
	defer unsub()
	for i := 0; i < 300; i++ {
		hub.OnTabEvent(schema.TabEvent{Type: schema.TabEventUpdated, Tab: schema.TabSnapshot{ID: "a"}})
	}
}
