package core

import "pkt.systems/wheelhouse/schema"

// EventSink receives tab lifecycle events from the core service. Delivery
// is best-effort and never gates an engine operation.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
}
