package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64              `json:"seq"`
	Type      string              `json:"type"`
	TabEvent  string              `json:"tab_event,omitempty"`
	Tab       *schema.TabSnapshot `json:"tab,omitempty"`
	ActiveTab schema.TabID        `json:"active_tab,omitempty"`
	Order     []schema.TabID      `json:"order,omitempty"`
	Snapshot  *SnapshotPayload    `json:"snapshot,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Tabs      []schema.TabSnapshot `json:"tabs"`
	ActiveTab schema.TabID         `json:"active_tab"`
	Order     []schema.TabID       `json:"order"`
	Stats     schema.LoadStats     `json:"stats"`
}

// Hub broadcasts tab lifecycle events to SSE subscribers and keeps a
// bounded replay history so reconnecting clients can catch up.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 64
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         logger,
	}
}

// OnTabEvent implements core.EventSink.
func (h *Hub) OnTabEvent(event schema.TabEvent) {
	h.log.Trace("hub tab event", "type", event.Type, "tab", event.Tab.ID, "active", event.ActiveTab)
	tab := event.Tab
	h.publish(StreamEvent{
		Type:      "tab",
		TabEvent:  string(event.Type),
		Tab:       &tab,
		ActiveTab: event.ActiveTab,
		Order:     event.Order,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber and returns its channel, an
// unsubscribe func, and the current sequence number.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	seq := h.seq
	h.log.Info("hub subscribe", "subs", len(h.subs))
	unsub := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		// The channel stays open: a publish that snapshotted the
		// subscriber set just before removal may still send, and closing
		// here would panic that send.
		h.log.Info("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub, seq
}

// Replay returns history events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	subs := make([]chan StreamEvent, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
