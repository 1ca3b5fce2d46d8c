package schema

// Tab lifecycle.

// CreateTabRequest describes a request to create a tab with a live surface.
// TabID may be supplied during restoration; when empty a fresh id is
// allocated. InsertAfter places the tab immediately after an existing tab in
// the display order; when empty the tab is appended.
type CreateTabRequest struct {
	TabID       TabID
	Profile     ProfileID
	URL         string
	InsertAfter TabID
}

// CreateTabResponse reports the created tab.
type CreateTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// RegisterTabRequest describes lazy registration of tab metadata without a
// surface. Used exclusively by session restoration.
type RegisterTabRequest struct {
	TabID   TabID
	Profile ProfileID
	URL     string
	Title   string
}

// RegisterTabResponse reports the registered tab. Existing reports whether
// the id was already present, in which case the request was a no-op.
type RegisterTabResponse struct {
	Tab      TabSnapshot `json:"tab"`
	Existing bool        `json:"existing,omitempty"`
}

// LoadTabRequest describes a request to acquire a surface for a tab.
type LoadTabRequest struct {
	TabID TabID
}

// LoadTabResponse reports the loaded tab.
type LoadTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// UnloadTabRequest describes a request to release a tab's surface while
// keeping its identity and navigation state.
type UnloadTabRequest struct {
	TabID TabID
}

// UnloadTabResponse reports the suspended tab.
type UnloadTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// SwitchTabRequest describes a request to bring a tab to the foreground,
// loading it first if needed.
type SwitchTabRequest struct {
	TabID TabID
}

// SwitchTabResponse reports the foregrounded tab.
type SwitchTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// CloseTabRequest describes a request to close a tab. The engine always
// honors it; preventing closure of the last tab is caller policy.
type CloseTabRequest struct {
	TabID TabID
}

// CloseTabResponse reports the closed tab snapshot.
type CloseTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// ReorderTabsRequest replaces the display order. Ids unknown to the registry
// are dropped silently.
type ReorderTabsRequest struct {
	Order []TabID
}

// ReorderTabsResponse reports the effective order after filtering.
type ReorderTabsResponse struct {
	Order []TabID `json:"order"`
}

// Queries.

// ListTabsRequest describes a request to list tabs in display order.
// Profile, when set, filters to tabs of that profile.
type ListTabsRequest struct {
	Profile ProfileID
}

// ListTabsResponse reports tabs and the foreground context.
type ListTabsResponse struct {
	Tabs      []TabSnapshot `json:"tabs"`
	ActiveTab TabID         `json:"active_tab,omitempty"`
	Order     []TabID       `json:"order"`
}

// Tab attributes.

// SetPinnedRequest toggles manual eviction exclusion for a tab.
type SetPinnedRequest struct {
	TabID  TabID
	Pinned bool
}

// SetPinnedResponse reports the updated tab.
type SetPinnedResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// Window and session.

// SetWindowRequest records shell window geometry for persistence.
type SetWindowRequest struct {
	Window WindowGeometry
}

// RestoreSessionRequest drives startup restoration with a loading strategy.
// Strategy may be empty, in which case the configured default applies.
type RestoreSessionRequest struct {
	Strategy LoadStrategy
}

// RestoreSessionResponse reports restoration results. Restored counts the
// tabs re-registered from the snapshot; zero means no snapshot existed and
// the caller is expected to create a default tab.
type RestoreSessionResponse struct {
	Restored  int            `json:"restored"`
	Tabs      []TabSnapshot  `json:"tabs"`
	ActiveTab TabID          `json:"active_tab,omitempty"`
	Window    WindowGeometry `json:"window"`
}
