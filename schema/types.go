package schema

// TabID identifies a tab for its whole lifetime, including across restarts.
type TabID string

// ProfileID identifies an isolated browsing partition (cookies, storage).
type ProfileID string

// TabState describes whether a tab currently holds a rendering surface.
type TabState string

const (
	// TabStateRegistered indicates metadata only, no surface held.
	TabStateRegistered TabState = "registered"
	// TabStateLoaded indicates a live surface is held.
	TabStateLoaded TabState = "loaded"
	// TabStateSuspended indicates the surface was reclaimed, metadata kept.
	TabStateSuspended TabState = "suspended"
)

// LoadStrategy selects which tabs are materialized during session restore.
type LoadStrategy string

const (
	// LoadAll loads every restored tab immediately.
	LoadAll LoadStrategy = "all"
	// LoadActiveProfile loads only tabs of the restored foreground profile.
	LoadActiveProfile LoadStrategy = "active-profile"
	// LoadLastActive loads only the restored foreground tab.
	LoadLastActive LoadStrategy = "last-active"
)

// WindowGeometry captures the shell window placement for restore.
type WindowGeometry struct {
	X         int  `json:"x"`
	Y         int  `json:"y"`
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	Maximized bool `json:"maximized"`
}

// IsZero reports whether no geometry has been recorded.
func (g WindowGeometry) IsZero() bool {
	return g == WindowGeometry{}
}
