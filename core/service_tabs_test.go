package core

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/wheelhouse/schema"
)

func TestCreateTabLoadsSurface(t *testing.T) {
	svc, provider, _ := newTestService(t)
	tab := mustCreate(t, svc, "a", "default", "https://example.com")
	if tab.State != schema.TabStateLoaded {
		t.Fatalf("state = %s, want %s", tab.State, schema.TabStateLoaded)
	}
	if tab.Active {
		t.Fatalf("freshly created tab must not take foreground")
	}
	created, _ := provider.counts()
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	handle := provider.surface("a")
	if len(handle.loads) != 1 || handle.loads[0] != "https://example.com" {
		t.Fatalf("loads = %v", handle.loads)
	}
}

func TestCreateTabDuplicateID(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://example.com")
	_, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{TabID: "a"})
	if !errors.Is(err, schema.ErrTabExists) {
		t.Fatalf("err = %v, want ErrTabExists", err)
	}
}

func TestCreateTabDefaultsURLAndProfile(t *testing.T) {
	svc, _, _ := newTestService(t)
	tab := mustCreate(t, svc, "a", "", "")
	if tab.Profile != "default" {
		t.Fatalf("profile = %s", tab.Profile)
	}
	if tab.URL != schema.DefaultNewTabURL {
		t.Fatalf("url = %s", tab.URL)
	}
}

func TestCreateTabSurfaceFailure(t *testing.T) {
	svc, provider, _ := newTestService(t)
	provider.createErr = errors.New("boom")
	_, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{TabID: "a"})
	if !errors.Is(err, schema.ErrSurfaceFailed) {
		t.Fatalf("err = %v, want ErrSurfaceFailed", err)
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if len(list.Tabs) != 0 {
		t.Fatalf("failed create must not register the tab, got %d tabs", len(list.Tabs))
	}
}

func TestLoadTabFailureKeepsPriorState(t *testing.T) {
	svc, provider, _ := newTestService(t)
	if _, err := svc.RegisterTab(context.Background(), schema.RegisterTabRequest{
		TabID: "a", Profile: "default", URL: "https://a.example",
	}); err != nil {
		t.Fatalf("RegisterTab: %v", err)
	}
	provider.loadErr = errors.New("net down")
	if _, err := svc.LoadTab(context.Background(), schema.LoadTabRequest{TabID: "a"}); !errors.Is(err, schema.ErrSurfaceFailed) {
		t.Fatalf("err = %v, want ErrSurfaceFailed", err)
	}
	if got := tabByID(t, svc, "a").State; got != schema.TabStateRegistered {
		t.Fatalf("a state = %s, want registered after failed load", got)
	}
	provider.loadErr = nil
	if _, err := svc.LoadTab(context.Background(), schema.LoadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("LoadTab retry: %v", err)
	}
	if got := tabByID(t, svc, "a").State; got != schema.TabStateLoaded {
		t.Fatalf("a state = %s after retry", got)
	}
}

func TestCreateTabInsertAfter(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	if _, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{
		TabID:       "c",
		InsertAfter: "a",
	}); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	want := []schema.TabID{"a", "c", "b"}
	for i, id := range want {
		if list.Order[i] != id {
			t.Fatalf("order = %v, want %v", list.Order, want)
		}
	}
}

func TestRegisterTabIsMetadataOnly(t *testing.T) {
	svc, provider, _ := newTestService(t)
	resp, err := svc.RegisterTab(context.Background(), schema.RegisterTabRequest{
		TabID:   "a",
		Profile: "default",
		URL:     "https://example.com",
		Title:   "Example",
	})
	if err != nil {
		t.Fatalf("RegisterTab: %v", err)
	}
	if resp.Existing {
		t.Fatalf("first register reported existing")
	}
	if resp.Tab.State != schema.TabStateRegistered {
		t.Fatalf("state = %s", resp.Tab.State)
	}
	created, _ := provider.counts()
	if created != 0 {
		t.Fatalf("register must not create a surface, created = %d", created)
	}
}

func TestRegisterTabIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := schema.RegisterTabRequest{TabID: "a", Profile: "default", URL: "https://example.com"}
	if _, err := svc.RegisterTab(context.Background(), req); err != nil {
		t.Fatalf("RegisterTab: %v", err)
	}
	resp, err := svc.RegisterTab(context.Background(), req)
	if err != nil {
		t.Fatalf("RegisterTab repeat: %v", err)
	}
	if !resp.Existing {
		t.Fatalf("repeat register must report existing")
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if len(list.Tabs) != 1 {
		t.Fatalf("tabs = %d, want 1", len(list.Tabs))
	}
}

func TestLoadTabIdempotent(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://example.com")
	if _, err := svc.LoadTab(context.Background(), schema.LoadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("LoadTab: %v", err)
	}
	created, _ := provider.counts()
	if created != 1 {
		t.Fatalf("repeat load must not create another surface, created = %d", created)
	}
}

func TestLoadTabNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.LoadTab(context.Background(), schema.LoadTabRequest{TabID: "nope"})
	if !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("err = %v, want ErrTabNotFound", err)
	}
}

func TestUnloadTabReclaimsSurface(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://example.com")
	resp, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "a"})
	if err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	if resp.Tab.State != schema.TabStateSuspended {
		t.Fatalf("state = %s", resp.Tab.State)
	}
	if resp.Tab.URL != "https://example.com" {
		t.Fatalf("suspend must retain navigation state, url = %s", resp.Tab.URL)
	}
	_, destroyed := provider.counts()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
	// Repeat unload is a no-op.
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("UnloadTab repeat: %v", err)
	}
	_, destroyed = provider.counts()
	if destroyed != 1 {
		t.Fatalf("repeat unload destroyed again, destroyed = %d", destroyed)
	}
}

func TestSwitchTabForegroundExclusivity(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	mustSwitch(t, svc, "a")
	mustSwitch(t, svc, "b")
	if n := provider.attachedCount(); n != 1 {
		t.Fatalf("attached surfaces = %d, want 1", n)
	}
	if provider.surface("a").isAttached() {
		t.Fatalf("previous foreground still attached")
	}
	if !provider.surface("b").isAttached() {
		t.Fatalf("new foreground not attached")
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if list.ActiveTab != "b" {
		t.Fatalf("active = %s, want b", list.ActiveTab)
	}
}

func TestSwitchTabLoadsSuspendedTab(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	mustSwitch(t, svc, "a")
	tab := tabByID(t, svc, "a")
	if tab.State != schema.TabStateLoaded || !tab.Active {
		t.Fatalf("tab = %+v", tab)
	}
	created, _ := provider.counts()
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
}

func TestSwitchTabAttachFailureKeepsPreviousForeground(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustSwitch(t, svc, "a")
	if _, err := svc.RegisterTab(context.Background(), schema.RegisterTabRequest{
		TabID: "b", Profile: "default", URL: "https://b.example",
	}); err != nil {
		t.Fatalf("RegisterTab: %v", err)
	}
	provider.attachErr = errors.New("display gone")
	_, err := svc.SwitchTab(context.Background(), schema.SwitchTabRequest{TabID: "b"})
	if !errors.Is(err, schema.ErrSurfaceFailed) {
		t.Fatalf("err = %v, want ErrSurfaceFailed", err)
	}
	provider.attachErr = nil
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if list.ActiveTab != "a" {
		t.Fatalf("active = %s, want a", list.ActiveTab)
	}
	b := tabByID(t, svc, "b")
	if b.State != schema.TabStateRegistered {
		t.Fatalf("b state = %s, want registered after failed first load", b.State)
	}
}

func TestSwitchTabAttachFailureOnSuspendedTab(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	mustSwitch(t, svc, "a")
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "b"}); err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	provider.attachErr = errors.New("display gone")
	if _, err := svc.SwitchTab(context.Background(), schema.SwitchTabRequest{TabID: "b"}); !errors.Is(err, schema.ErrSurfaceFailed) {
		t.Fatalf("err = %v, want ErrSurfaceFailed", err)
	}
	if got := tabByID(t, svc, "b").State; got != schema.TabStateSuspended {
		t.Fatalf("b state = %s, want suspended after failed reload", got)
	}
}

func TestCloseTabFocusesNeighbor(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	mustCreate(t, svc, "c", "default", "https://c.example")
	mustSwitch(t, svc, "b")
	if _, err := svc.CloseTab(context.Background(), schema.CloseTabRequest{TabID: "b"}); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if list.ActiveTab != "c" {
		t.Fatalf("active = %s, want c", list.ActiveTab)
	}
	if len(list.Order) != 2 || list.Order[0] != "a" || list.Order[1] != "c" {
		t.Fatalf("order = %v", list.Order)
	}
}

func TestCloseLastTabClearsActive(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustSwitch(t, svc, "a")
	if _, err := svc.CloseTab(context.Background(), schema.CloseTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if list.ActiveTab != "" || len(list.Tabs) != 0 {
		t.Fatalf("list = %+v", list)
	}
	_, destroyed := provider.counts()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}

func TestCloseBackgroundTabKeepsForeground(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	mustSwitch(t, svc, "a")
	if _, err := svc.CloseTab(context.Background(), schema.CloseTabRequest{TabID: "b"}); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	list, _ := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if list.ActiveTab != "a" {
		t.Fatalf("active = %s, want a", list.ActiveTab)
	}
}

func TestReorderTabsFiltersUnknownIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	mustCreate(t, svc, "b", "default", "https://b.example")
	resp, err := svc.ReorderTabs(context.Background(), schema.ReorderTabsRequest{
		Order: []schema.TabID{"b", "ghost", "a", "b"},
	})
	if err != nil {
		t.Fatalf("ReorderTabs: %v", err)
	}
	if len(resp.Order) != 2 || resp.Order[0] != "b" || resp.Order[1] != "a" {
		t.Fatalf("order = %v", resp.Order)
	}
}

func TestListTabsProfileFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "work", "https://a.example")
	mustCreate(t, svc, "b", "home", "https://b.example")
	list, err := svc.ListTabs(context.Background(), schema.ListTabsRequest{Profile: "work"})
	if err != nil {
		t.Fatalf("ListTabs: %v", err)
	}
	if len(list.Tabs) != 1 || list.Tabs[0].ID != "a" {
		t.Fatalf("tabs = %+v", list.Tabs)
	}
}

func TestSetPinned(t *testing.T) {
	svc, _, sink := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	resp, err := svc.SetPinned(context.Background(), schema.SetPinnedRequest{TabID: "a", Pinned: true})
	if err != nil {
		t.Fatalf("SetPinned: %v", err)
	}
	if !resp.Tab.Pinned {
		t.Fatalf("tab not pinned")
	}
	types := sink.types()
	if types[len(types)-1] != schema.TabEventUpdated {
		t.Fatalf("last event = %s", types[len(types)-1])
	}
}

func TestLoadStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustCreate(t, svc, "a", "work", "https://a.example")
	mustCreate(t, svc, "b", "work", "https://b.example")
	if _, err := svc.RegisterTab(context.Background(), schema.RegisterTabRequest{
		TabID: "c", Profile: "home", URL: "https://c.example",
	}); err != nil {
		t.Fatalf("RegisterTab: %v", err)
	}
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "b"}); err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	mustSwitch(t, svc, "a")
	stats, err := svc.LoadStats(context.Background())
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	want := schema.LoadStats{
		TotalTabs:      3,
		LoadedTabs:     1,
		SuspendedTabs:  1,
		RegisteredTabs: 1,
		ActiveTab:      "a",
		ActiveProfile:  "work",
	}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestSurfaceCallbackUpdatesNavigationState(t *testing.T) {
	svc, provider, sink := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	handle := provider.surface("a")
	handle.callbacks.OnTitleChanged("Example Domain")
	handle.callbacks.OnURLChanged("https://a.example/page")
	handle.callbacks.OnAudioStateChanged(true, true)
	tab := tabByID(t, svc, "a")
	if tab.Title != "Example Domain" || tab.URL != "https://a.example/page" || !tab.Audible || !tab.MediaPlaying {
		t.Fatalf("tab = %+v", tab)
	}
	types := sink.types()
	if types[len(types)-1] != schema.TabEventUpdated {
		t.Fatalf("last event = %s", types[len(types)-1])
	}
}

func TestStaleSurfaceCallbackDropped(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	stale := provider.surface("a")
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	mustSwitch(t, svc, "a")
	stale.callbacks.OnTitleChanged("from the dead surface")
	tab := tabByID(t, svc, "a")
	if tab.Title == "from the dead surface" {
		t.Fatalf("stale callback applied")
	}
}

func TestUnloadClearsAudioFlags(t *testing.T) {
	svc, provider, _ := newTestService(t)
	mustCreate(t, svc, "a", "default", "https://a.example")
	provider.surface("a").callbacks.OnAudioStateChanged(true, true)
	if _, err := svc.UnloadTab(context.Background(), schema.UnloadTabRequest{TabID: "a"}); err != nil {
		t.Fatalf("UnloadTab: %v", err)
	}
	tab := tabByID(t, svc, "a")
	if tab.Audible || tab.MediaPlaying {
		t.Fatalf("suspended tab still flagged audible")
	}
}
