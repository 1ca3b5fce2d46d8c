package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/internal/logx"
	"pkt.systems/wheelhouse/internal/persist"
	"pkt.systems/wheelhouse/schema"
)

// service implements the tab lifecycle engine.
type service struct {
	cfg      schema.ServiceConfig
	surfaces SurfaceProvider
	sink     EventSink
	settings Settings
	store    *persist.Store
	logger   pslog.Logger

	mu         sync.Mutex
	tabs       map[schema.TabID]*tab
	order      []schema.TabID
	active     schema.TabID
	lastActive map[schema.ProfileID]schema.TabID
	window     schema.WindowGeometry
	restoring  bool

	now func() time.Time
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	settings := deps.Settings
	if settings == nil {
		settings = StaticSettings{}
	}
	return &service{
		cfg:        cfg,
		surfaces:   deps.SurfaceProvider,
		sink:       deps.EventSink,
		settings:   settings,
		store:      store,
		logger:     logger,
		tabs:       make(map[schema.TabID]*tab),
		lastActive: make(map[schema.ProfileID]schema.TabID),
		now:        time.Now,
	}, nil
}

func (s *service) CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error) {
	if ctx == nil {
		return schema.CreateTabResponse{}, errors.New("missing context")
	}
	profile := req.Profile
	if profile == "" {
		profile = s.cfg.DefaultProfile
	}
	if err := schema.ValidateProfileID(profile); err != nil {
		return schema.CreateTabResponse{}, err
	}
	url := req.URL
	if url == "" {
		url = s.cfg.NewTabURL
	}
	url, err := schema.NormalizeURL(url)
	if err != nil {
		return schema.CreateTabResponse{}, err
	}
	tabID := req.TabID
	if tabID == "" {
		tabID = newTabID()
	}
	log := logx.WithTabProfile(ctx, tabID, profile)
	log.Info("registry tab create start", "url", url)

	s.mu.Lock()
	if _, exists := s.tabs[tabID]; exists {
		s.mu.Unlock()
		log.Warn("registry tab create failed", "err", schema.ErrTabExists)
		return schema.CreateTabResponse{}, schema.ErrTabExists
	}
	t := &tab{
		ID:           tabID,
		Profile:      profile,
		URL:          url,
		State:        schema.TabStateRegistered,
		LastActiveAt: s.now(),
	}
	// Reserve the id before releasing the lock; the tab joins the display
	// order only once its surface is live.
	s.tabs[tabID] = t
	epoch := s.beginLoadLocked(t)
	s.mu.Unlock()

	handle, err := s.acquireSurface(ctx, tabID, profile, url, epoch)

	s.mu.Lock()
	if err != nil {
		if cur := s.tabs[tabID]; cur == t {
			delete(s.tabs, tabID)
		}
		s.mu.Unlock()
		log.Warn("registry tab create failed", "err", err)
		return schema.CreateTabResponse{}, err
	}
	if _, ok := s.commitLoadLocked(tabID, epoch, handle); !ok {
		s.mu.Unlock()
		_ = handle.Close()
		log.Warn("registry tab create failed", "err", schema.ErrTabNotFound)
		return schema.CreateTabResponse{}, schema.ErrTabNotFound
	}
	s.insertOrderLocked(tabID, req.InsertAfter)
	event := schema.TabEvent{
		Type:      schema.TabEventCreated,
		Tab:       t.Snapshot(s.active == tabID),
		ActiveTab: s.active,
		Order:     s.orderCopyLocked(),
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Info("registry tab created")
	return schema.CreateTabResponse{Tab: event.Tab}, nil
}

func (s *service) RegisterTab(ctx context.Context, req schema.RegisterTabRequest) (schema.RegisterTabResponse, error) {
	if req.TabID == "" {
		return schema.RegisterTabResponse{}, schema.ErrInvalidRequest
	}
	if err := schema.ValidateProfileID(req.Profile); err != nil {
		return schema.RegisterTabResponse{}, err
	}
	url := req.URL
	if url == "" {
		url = s.cfg.NewTabURL
	}
	url, err := schema.NormalizeURL(url)
	if err != nil {
		return schema.RegisterTabResponse{}, err
	}
	log := logx.WithTabProfile(ctx, req.TabID, req.Profile)

	s.mu.Lock()
	if existing, ok := s.tabs[req.TabID]; ok {
		resp := schema.RegisterTabResponse{Tab: existing.Snapshot(s.active == req.TabID), Existing: true}
		s.mu.Unlock()
		log.Debug("registry tab register skipped", "reason", "exists")
		return resp, nil
	}
	t := &tab{
		ID:      req.TabID,
		Profile: req.Profile,
		URL:     url,
		Title:   req.Title,
		State:   schema.TabStateRegistered,
	}
	s.tabs[req.TabID] = t
	s.insertOrderLocked(req.TabID, "")
	event := schema.TabEvent{
		Type:      schema.TabEventRegistered,
		Tab:       t.Snapshot(false),
		ActiveTab: s.active,
		Order:     s.orderCopyLocked(),
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Debug("registry tab registered")
	return schema.RegisterTabResponse{Tab: event.Tab}, nil
}

func (s *service) LoadTab(ctx context.Context, req schema.LoadTabRequest) (schema.LoadTabResponse, error) {
	log := logx.WithTab(ctx, req.TabID)

	s.mu.Lock()
	t := s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab load failed", "err", schema.ErrTabNotFound)
		return schema.LoadTabResponse{}, schema.ErrTabNotFound
	}
	if t.State == schema.TabStateLoaded || t.loading {
		resp := schema.LoadTabResponse{Tab: t.Snapshot(s.active == t.ID)}
		s.mu.Unlock()
		log.Trace("registry tab load skipped", "reason", "already loaded")
		return resp, nil
	}
	prior := t.State
	profile, url := t.Profile, t.URL
	epoch := s.beginLoadLocked(t)
	s.mu.Unlock()

	handle, err := s.acquireSurface(ctx, req.TabID, profile, url, epoch)

	s.mu.Lock()
	if err != nil {
		s.abortLoadLocked(req.TabID, epoch, prior)
		s.mu.Unlock()
		log.Warn("registry tab load failed", "err", err)
		return schema.LoadTabResponse{}, err
	}
	loaded, ok := s.commitLoadLocked(req.TabID, epoch, handle)
	if !ok {
		s.mu.Unlock()
		_ = handle.Close()
		log.Warn("registry tab load failed", "err", schema.ErrTabNotFound)
		return schema.LoadTabResponse{}, schema.ErrTabNotFound
	}
	event := schema.TabEvent{
		Type:      schema.TabEventLoaded,
		Tab:       loaded.Snapshot(s.active == loaded.ID),
		ActiveTab: s.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Info("registry tab loaded")
	return schema.LoadTabResponse{Tab: event.Tab}, nil
}

func (s *service) UnloadTab(ctx context.Context, req schema.UnloadTabRequest) (schema.UnloadTabResponse, error) {
	log := logx.WithTab(ctx, req.TabID)

	s.mu.Lock()
	t := s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab unload failed", "err", schema.ErrTabNotFound)
		return schema.UnloadTabResponse{}, schema.ErrTabNotFound
	}
	if t.State != schema.TabStateLoaded {
		resp := schema.UnloadTabResponse{Tab: t.Snapshot(s.active == t.ID)}
		s.mu.Unlock()
		log.Trace("registry tab unload skipped", "reason", "no surface")
		return resp, nil
	}
	destroyErr := s.releaseSurfaceLocked(ctx, t)
	event := schema.TabEvent{
		Type:      schema.TabEventSuspended,
		Tab:       t.Snapshot(s.active == t.ID),
		ActiveTab: s.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	if destroyErr != nil {
		log.Warn("registry tab unloaded with destroy error", "err", destroyErr)
		return schema.UnloadTabResponse{Tab: event.Tab}, fmt.Errorf("destroy surface: %w", destroyErr)
	}
	log.Info("registry tab unloaded")
	return schema.UnloadTabResponse{Tab: event.Tab}, nil
}

func (s *service) SwitchTab(ctx context.Context, req schema.SwitchTabRequest) (schema.SwitchTabResponse, error) {
	log := logx.WithTab(ctx, req.TabID)

	s.mu.Lock()
	t := s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab switch failed", "err", schema.ErrTabNotFound)
		return schema.SwitchTabResponse{}, schema.ErrTabNotFound
	}
	wasLoaded := t.State == schema.TabStateLoaded
	prior := t.State
	profile, url := t.Profile, t.URL
	var epoch uint64
	if !wasLoaded {
		epoch = s.beginLoadLocked(t)
	}
	s.mu.Unlock()

	if !wasLoaded {
		handle, err := s.acquireSurface(ctx, req.TabID, profile, url, epoch)
		s.mu.Lock()
		if err != nil {
			s.abortLoadLocked(req.TabID, epoch, prior)
			s.mu.Unlock()
			log.Warn("registry tab switch failed", "err", err)
			return schema.SwitchTabResponse{}, err
		}
		if _, ok := s.commitLoadLocked(req.TabID, epoch, handle); !ok {
			s.mu.Unlock()
			_ = handle.Close()
			log.Warn("registry tab switch failed", "err", schema.ErrTabNotFound)
			return schema.SwitchTabResponse{}, schema.ErrTabNotFound
		}
		s.mu.Unlock()
	}

	// Attach runs without the lock; surface backends may deliver events on
	// the goroutine the attach waits on, and those events take the lock.
	s.mu.Lock()
	t = s.tabs[req.TabID]
	if t == nil || t.surface == nil {
		s.mu.Unlock()
		log.Warn("registry tab switch failed", "err", schema.ErrTabNotFound)
		return schema.SwitchTabResponse{}, schema.ErrTabNotFound
	}
	target := t.surface
	var prevHandle SurfaceHandle
	var prevID schema.TabID
	if prev := s.tabs[s.active]; prev != nil && prev.ID != t.ID {
		prevHandle = prev.surface
		prevID = prev.ID
	}
	s.mu.Unlock()

	if prevHandle != nil {
		if err := prevHandle.Detach(ctx); err != nil {
			log.Warn("registry previous tab detach failed", "prev", prevID, "err", err)
		}
	}
	if err := target.Attach(ctx); err != nil {
		// The previously foregrounded tab stays foreground. A surface
		// acquired solely for this switch is destroyed again and the tab
		// returns to the state it held before the switch.
		if !wasLoaded {
			s.mu.Lock()
			if cur := s.tabs[req.TabID]; cur != nil && cur.surface == target {
				if destroyErr := s.releaseSurfaceLocked(ctx, cur); destroyErr != nil {
					log.Warn("registry switch rollback destroy failed", "err", destroyErr)
				}
				cur.State = prior
			}
			s.mu.Unlock()
		}
		if prevHandle != nil {
			if reattachErr := prevHandle.Attach(ctx); reattachErr != nil {
				log.Warn("registry previous tab reattach failed", "prev", prevID, "err", reattachErr)
			}
		}
		log.Warn("registry tab switch failed", "err", err)
		return schema.SwitchTabResponse{}, fmt.Errorf("%w: attach: %v", schema.ErrSurfaceFailed, err)
	}

	s.mu.Lock()
	t = s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab switch failed", "err", schema.ErrTabNotFound)
		return schema.SwitchTabResponse{}, schema.ErrTabNotFound
	}
	s.active = t.ID
	t.LastActiveAt = s.now()
	s.lastActive[t.Profile] = t.ID
	event := schema.TabEvent{
		Type:      schema.TabEventActivated,
		Tab:       t.Snapshot(true),
		ActiveTab: s.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Info("registry tab activated")
	return schema.SwitchTabResponse{Tab: event.Tab}, nil
}

func (s *service) CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error) {
	log := logx.WithTab(ctx, req.TabID)

	s.mu.Lock()
	t := s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab close failed", "err", schema.ErrTabNotFound)
		return schema.CloseTabResponse{}, schema.ErrTabNotFound
	}
	if t.State == schema.TabStateLoaded {
		if err := s.releaseSurfaceLocked(ctx, t); err != nil {
			log.Warn("registry tab close destroy failed", "err", err)
		}
	}
	closedIndex := orderIndex(s.order, t.ID)
	delete(s.tabs, t.ID)
	s.order = removeTabID(s.order, t.ID)
	if s.lastActive[t.Profile] == t.ID {
		delete(s.lastActive, t.Profile)
	}
	var neighbor SurfaceHandle
	var neighborID schema.TabID
	if s.active == t.ID {
		s.active = ""
		neighbor, neighborID = s.focusNeighborLocked(closedIndex)
	}
	event := schema.TabEvent{
		Type:      schema.TabEventClosed,
		Tab:       t.Snapshot(false),
		ActiveTab: s.active,
		Order:     s.orderCopyLocked(),
	}
	s.mu.Unlock()
	if neighbor != nil {
		if err := neighbor.Attach(ctx); err != nil {
			log.Warn("registry neighbor attach failed", "tab", neighborID, "err", err)
		}
	}
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Info("registry tab closed")
	return schema.CloseTabResponse{Tab: event.Tab}, nil
}

func (s *service) ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	next := make([]schema.TabID, 0, len(req.Order))
	seen := make(map[schema.TabID]struct{}, len(req.Order))
	for _, id := range req.Order {
		if _, ok := s.tabs[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}
	s.order = next
	event := schema.TabEvent{
		Type:      schema.TabEventReordered,
		ActiveTab: s.active,
		Order:     s.orderCopyLocked(),
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Debug("registry tabs reordered", "count", len(event.Order))
	return schema.ReorderTabsResponse{Order: event.Order}, nil
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]schema.TabSnapshot, 0, len(s.order))
	for _, id := range s.order {
		t := s.tabs[id]
		if t == nil {
			continue
		}
		if req.Profile != "" && t.Profile != req.Profile {
			continue
		}
		tabs = append(tabs, t.Snapshot(id == s.active))
	}
	return schema.ListTabsResponse{
		Tabs:      tabs,
		ActiveTab: s.active,
		Order:     s.orderCopyLocked(),
	}, nil
}

func (s *service) SetPinned(ctx context.Context, req schema.SetPinnedRequest) (schema.SetPinnedResponse, error) {
	log := logx.WithTab(ctx, req.TabID)

	s.mu.Lock()
	t := s.tabs[req.TabID]
	if t == nil {
		s.mu.Unlock()
		log.Warn("registry tab pin failed", "err", schema.ErrTabNotFound)
		return schema.SetPinnedResponse{}, schema.ErrTabNotFound
	}
	t.Pinned = req.Pinned
	event := schema.TabEvent{
		Type:      schema.TabEventUpdated,
		Tab:       t.Snapshot(s.active == t.ID),
		ActiveTab: s.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
	s.persistSession(log)
	log.Info("registry tab pin updated", "pinned", req.Pinned)
	return schema.SetPinnedResponse{Tab: event.Tab}, nil
}

func (s *service) SetWindow(ctx context.Context, req schema.SetWindowRequest) error {
	log := logx.Ctx(ctx)
	s.mu.Lock()
	s.window = req.Window
	s.mu.Unlock()
	s.persistSession(log)
	log.Trace("registry window geometry updated")
	return nil
}

func (s *service) LoadStats(ctx context.Context) (schema.LoadStats, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := schema.LoadStats{ActiveTab: s.active}
	if t := s.tabs[s.active]; t != nil {
		stats.ActiveProfile = t.Profile
	}
	for _, t := range s.tabs {
		stats.TotalTabs++
		switch t.State {
		case schema.TabStateLoaded:
			stats.LoadedTabs++
		case schema.TabStateSuspended:
			stats.SuspendedTabs++
		case schema.TabStateRegistered:
			stats.RegisteredTabs++
		}
	}
	return stats, nil
}

// beginLoadLocked reserves the next surface epoch and marks the tab as
// having an acquisition in flight. A newer reservation supersedes any
// older one still running: the older commit fails its epoch check and the
// caller destroys the handle. Must hold s.mu.
func (s *service) beginLoadLocked(t *tab) uint64 {
	t.epoch++
	t.loading = true
	return t.epoch
}

// acquireSurface creates a surface and starts loading the tab's URL. It
// runs without the registry lock held: surface backends may deliver
// callbacks on the goroutine a load waits on, and those callbacks take
// the lock. The result is committed or discarded under the lock.
func (s *service) acquireSurface(ctx context.Context, id schema.TabID, profile schema.ProfileID, url string, epoch uint64) (SurfaceHandle, error) {
	if s.surfaces == nil {
		return nil, schema.ErrSurfaceUnavailable
	}
	handle, err := s.surfaces.CreateSurface(ctx, CreateSurfaceRequest{
		Tab:     id,
		Profile: profile,
		Callbacks: SurfaceCallbacks{
			OnTitleChanged: func(title string) {
				s.applySurfaceUpdate(id, epoch, func(t *tab) { t.Title = title })
			},
			OnURLChanged: func(url string) {
				s.applySurfaceUpdate(id, epoch, func(t *tab) { t.URL = url })
			},
			OnFaviconChanged: func(faviconURL string) {
				s.applySurfaceUpdate(id, epoch, func(t *tab) { t.FaviconURL = faviconURL })
			},
			OnAudioStateChanged: func(audible, mediaPlaying bool) {
				s.applySurfaceUpdate(id, epoch, func(t *tab) {
					t.Audible = audible
					t.MediaPlaying = mediaPlaying
				})
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create: %v", schema.ErrSurfaceFailed, err)
	}
	if err := handle.LoadURL(ctx, url); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("%w: load url: %v", schema.ErrSurfaceFailed, err)
	}
	return handle, nil
}

// commitLoadLocked installs an acquired handle if the tab still exists and
// no newer acquisition superseded this one. Returns false when the tab was
// closed or reloaded while acquiring; the caller must destroy the handle.
// Must hold s.mu.
func (s *service) commitLoadLocked(id schema.TabID, epoch uint64, handle SurfaceHandle) (*tab, bool) {
	t := s.tabs[id]
	if t == nil || t.epoch != epoch {
		return nil, false
	}
	t.loading = false
	t.surface = handle
	t.State = schema.TabStateLoaded
	t.LastActiveAt = s.now()
	return t, true
}

// abortLoadLocked rolls a failed acquisition back to the state the tab
// held before it. Must hold s.mu.
func (s *service) abortLoadLocked(id schema.TabID, epoch uint64, prior schema.TabState) {
	t := s.tabs[id]
	if t == nil || t.epoch != epoch {
		return
	}
	t.loading = false
	t.State = prior
}

// releaseSurfaceLocked detaches (when foreground) and destroys the tab's
// surface, transitioning it to suspended. Navigation state is retained.
// Must hold s.mu.
func (s *service) releaseSurfaceLocked(ctx context.Context, t *tab) error {
	handle := t.surface
	if handle == nil {
		t.State = schema.TabStateSuspended
		return nil
	}
	var detachErr error
	if s.active == t.ID {
		detachErr = handle.Detach(ctx)
	}
	closeErr := handle.Close()
	t.surface = nil
	t.epoch++
	t.State = schema.TabStateSuspended
	t.Audible = false
	t.MediaPlaying = false
	if closeErr != nil {
		return closeErr
	}
	return detachErr
}

// focusNeighborLocked moves foreground to the tab now occupying the closed
// tab's slot (or the last tab) and returns its surface handle for the
// caller to attach outside the lock. The neighbor gets a handle back only
// if it already holds a surface; it is never loaded just to take focus.
// Must hold s.mu.
func (s *service) focusNeighborLocked(closedIndex int) (SurfaceHandle, schema.TabID) {
	if len(s.order) == 0 {
		return nil, ""
	}
	idx := closedIndex
	if idx < 0 || idx >= len(s.order) {
		idx = len(s.order) - 1
	}
	next := s.tabs[s.order[idx]]
	if next == nil {
		return nil, ""
	}
	s.active = next.ID
	next.LastActiveAt = s.now()
	s.lastActive[next.Profile] = next.ID
	return next.surface, next.ID
}

// applySurfaceUpdate applies a navigation-state callback if it is still
// current. Callbacks arriving after the surface was destroyed or replaced
// carry a stale epoch and are dropped.
func (s *service) applySurfaceUpdate(id schema.TabID, epoch uint64, apply func(*tab)) {
	s.mu.Lock()
	t := s.tabs[id]
	if t == nil || t.State != schema.TabStateLoaded || t.epoch != epoch {
		s.mu.Unlock()
		return
	}
	apply(t)
	event := schema.TabEvent{
		Type:      schema.TabEventUpdated,
		Tab:       t.Snapshot(s.active == t.ID),
		ActiveTab: s.active,
	}
	s.mu.Unlock()
	s.emitTabEvent(event)
}

func (s *service) insertOrderLocked(id schema.TabID, after schema.TabID) {
	if after != "" {
		if idx := orderIndex(s.order, after); idx >= 0 {
			s.order = append(s.order, "")
			copy(s.order[idx+2:], s.order[idx+1:])
			s.order[idx+1] = id
			return
		}
	}
	s.order = append(s.order, id)
}

func (s *service) orderCopyLocked() []schema.TabID {
	return append([]schema.TabID(nil), s.order...)
}

func (s *service) emitTabEvent(event schema.TabEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabEvent(event)
}

func orderIndex(order []schema.TabID, id schema.TabID) int {
	for i, existing := range order {
		if existing == id {
			return i
		}
	}
	return -1
}

func removeTabID(order []schema.TabID, id schema.TabID) []schema.TabID {
	next := order[:0]
	for _, existing := range order {
		if existing == id {
			continue
		}
		next = append(next, existing)
	}
	return next
}
