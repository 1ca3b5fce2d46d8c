package schema

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created with a live surface.
	TabEventCreated TabEventType = "created"
	// TabEventRegistered indicates a tab was registered without a surface.
	TabEventRegistered TabEventType = "registered"
	// TabEventLoaded indicates a tab acquired a surface.
	TabEventLoaded TabEventType = "loaded"
	// TabEventSuspended indicates a tab's surface was reclaimed.
	TabEventSuspended TabEventType = "suspended"
	// TabEventActivated indicates a tab became the foreground tab.
	TabEventActivated TabEventType = "activated"
	// TabEventClosed indicates a tab was closed and removed.
	TabEventClosed TabEventType = "closed"
	// TabEventReordered indicates the display order changed.
	TabEventReordered TabEventType = "reordered"
	// TabEventUpdated indicates navigation state (url/title/favicon/audio)
	// changed while the tab was loaded.
	TabEventUpdated TabEventType = "updated"
)

// TabEvent represents a change to a tab or the tab list. Delivery is
// best-effort and never gates the operation that produced it.
type TabEvent struct {
	Type      TabEventType
	Tab       TabSnapshot
	ActiveTab TabID
	Order     []TabID
}
