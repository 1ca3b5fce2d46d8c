package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/schema"
)

// Bus fanouts tab events to subscribers. Delivery is best-effort: a slow
// subscriber loses events rather than stalling the engine.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan schema.TabEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan schema.TabEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan schema.TabEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.TabEvent, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		// The channel stays open: a publish that snapshotted the
		// subscriber set just before removal may still send, and closing
		// here would panic that send.
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnTabEvent publishes a tab event. Implements core.EventSink.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan schema.TabEvent, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
