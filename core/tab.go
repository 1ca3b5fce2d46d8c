package core

import (
	"time"

	"pkt.systems/wheelhouse/schema"
)

// tab tracks the state of a single tracked browsing session. The registry
// exclusively owns every tab record and its surface handle.
type tab struct {
	ID           schema.TabID
	Profile      schema.ProfileID
	URL          string
	Title        string
	FaviconURL   string
	State        schema.TabState
	Pinned       bool
	Audible      bool
	MediaPlaying bool
	LastActiveAt time.Time
	surface      SurfaceHandle
	// epoch increments on every surface acquisition; callbacks carry the
	// epoch they were registered under so stale ones can be dropped.
	epoch uint64
	// loading marks an acquisition in flight between the epoch
	// reservation and its commit.
	loading bool
}

// Snapshot returns a transport-friendly view of the tab.
func (t *tab) Snapshot(active bool) schema.TabSnapshot {
	return schema.TabSnapshot{
		ID:           t.ID,
		Profile:      t.Profile,
		URL:          t.URL,
		Title:        t.Title,
		FaviconURL:   t.FaviconURL,
		State:        t.State,
		Pinned:       t.Pinned,
		Audible:      t.Audible,
		MediaPlaying: t.MediaPlaying,
		LastActiveAt: t.LastActiveAt,
		Active:       active,
	}
}
