package schema

import "time"

// TabSnapshot is a read-only view of tab state for transports and policies.
type TabSnapshot struct {
	ID           TabID     `json:"id"`
	Profile      ProfileID `json:"profile"`
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	FaviconURL   string    `json:"favicon_url,omitempty"`
	State        TabState  `json:"state"`
	Pinned       bool      `json:"pinned,omitempty"`
	Audible      bool      `json:"audible,omitempty"`
	MediaPlaying bool      `json:"media_playing,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
	Active       bool      `json:"active,omitempty"`
}

// LoadStats summarizes surface usage across the registry.
type LoadStats struct {
	TotalTabs      int       `json:"total_tabs"`
	LoadedTabs     int       `json:"loaded_tabs"`
	SuspendedTabs  int       `json:"suspended_tabs"`
	RegisteredTabs int       `json:"registered_tabs"`
	ActiveTab      TabID     `json:"active_tab,omitempty"`
	ActiveProfile  ProfileID `json:"active_profile,omitempty"`
}
