package core

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/internal/logx"
	"pkt.systems/wheelhouse/internal/persist"
	"pkt.systems/wheelhouse/schema"
)

// restoreSleep delays the deferred foreground attach during restore so the
// surface had a moment to begin loading. Overridden in tests.
var restoreSleep = time.Sleep

func (s *service) SaveSession(ctx context.Context) error {
	log := logx.Ctx(ctx)
	return s.saveSession(log)
}

// persistSession writes the current session after a mutation. Failures are
// logged and swallowed so a disk error never fails the tab operation itself.
func (s *service) persistSession(log pslog.Logger) {
	if s.store == nil {
		return
	}
	if err := s.saveSession(log); err != nil {
		log.Warn("registry session persist failed", "err", err)
	}
}

func (s *service) saveSession(log pslog.Logger) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	if s.restoring {
		// The snapshot on disk is the one being replayed; rewriting it
		// mid-restore would truncate the session to whatever had been
		// re-registered so far.
		s.mu.Unlock()
		return nil
	}
	snapshot := s.sessionSnapshotLocked()
	s.mu.Unlock()
	if err := s.store.Save(snapshot); err != nil {
		return err
	}
	log.Trace("registry session saved", "tabs", len(snapshot.Tabs))
	return nil
}

// sessionSnapshotLocked builds the durable snapshot. Last-active entries
// pointing at closed tabs or tabs of another profile are repaired here:
// replaced with the profile's first tab in display order, or dropped when
// the profile has none left. Must hold s.mu.
func (s *service) sessionSnapshotLocked() persist.SessionSnapshot {
	snapshot := persist.SessionSnapshot{
		Order:     s.orderCopyLocked(),
		Tabs:      make([]persist.TabRecord, 0, len(s.order)),
		ActiveTab: s.active,
		Window:    s.window,
	}
	if t := s.tabs[s.active]; t != nil {
		snapshot.ActiveProfile = t.Profile
	}
	for _, id := range s.order {
		t := s.tabs[id]
		if t == nil {
			continue
		}
		snapshot.Tabs = append(snapshot.Tabs, persist.TabRecord{
			ID:      t.ID,
			Profile: t.Profile,
			URL:     t.URL,
			Title:   t.Title,
			Pinned:  t.Pinned,
		})
	}
	lastActive := make(map[schema.ProfileID]schema.TabID, len(s.lastActive))
	for profile, id := range s.lastActive {
		if t := s.tabs[id]; t != nil && t.Profile == profile {
			lastActive[profile] = id
			continue
		}
		if repaired, ok := s.firstTabOfProfileLocked(profile); ok {
			lastActive[profile] = repaired
		}
	}
	if len(lastActive) > 0 {
		snapshot.LastActiveByProfile = lastActive
	}
	return snapshot
}

func (s *service) firstTabOfProfileLocked(profile schema.ProfileID) (schema.TabID, bool) {
	for _, id := range s.order {
		if t := s.tabs[id]; t != nil && t.Profile == profile {
			return id, true
		}
	}
	return "", false
}

func (s *service) RestoreSession(ctx context.Context, req schema.RestoreSessionRequest) (schema.RestoreSessionResponse, error) {
	log := logx.Ctx(ctx)
	strategy, err := schema.NormalizeLoadStrategy(string(req.Strategy))
	if err != nil {
		return schema.RestoreSessionResponse{}, err
	}
	if s.store == nil {
		log.Debug("registry restore skipped", "reason", "no store")
		return schema.RestoreSessionResponse{}, nil
	}
	snapshot, ok, err := s.store.Load()
	if err != nil {
		return schema.RestoreSessionResponse{}, err
	}
	if !ok || len(snapshot.Tabs) == 0 {
		log.Info("registry restore empty")
		return schema.RestoreSessionResponse{}, nil
	}
	log.Info("registry restore start", "strategy", strategy, "tabs", len(snapshot.Tabs))

	s.mu.Lock()
	s.restoring = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.restoring = false
		s.mu.Unlock()
	}()

	// Window geometry first so the shell can size itself before any
	// surface draws.
	if !snapshot.Window.IsZero() {
		if err := s.SetWindow(ctx, schema.SetWindowRequest{Window: snapshot.Window}); err != nil {
			log.Warn("registry restore window failed", "err", err)
		}
	}

	// Register every tab as metadata only. Invalid records are skipped
	// rather than failing the whole restore.
	restored := 0
	for _, record := range snapshot.Tabs {
		resp, err := s.RegisterTab(ctx, schema.RegisterTabRequest{
			TabID:   record.ID,
			Profile: record.Profile,
			URL:     record.URL,
			Title:   record.Title,
		})
		if err != nil {
			log.Warn("registry restore tab skipped", "tab", record.ID, "err", err)
			continue
		}
		if !resp.Existing {
			restored++
		}
		if record.Pinned {
			if _, err := s.SetPinned(ctx, schema.SetPinnedRequest{TabID: record.ID, Pinned: true}); err != nil {
				log.Warn("registry restore pin failed", "tab", record.ID, "err", err)
			}
		}
	}
	if len(snapshot.Order) > 0 {
		if _, err := s.ReorderTabs(ctx, schema.ReorderTabsRequest{Order: snapshot.Order}); err != nil {
			log.Warn("registry restore reorder failed", "err", err)
		}
	}

	for _, id := range s.restoreLoadSet(snapshot, strategy) {
		if _, err := s.LoadTab(ctx, schema.LoadTabRequest{TabID: id}); err != nil {
			log.Warn("registry restore load failed", "tab", id, "err", err)
		}
	}

	active := s.restoreActiveTab(snapshot)
	if active != "" {
		restoreSleep(s.cfg.RestoreAttachDelay)
		if _, err := s.SwitchTab(ctx, schema.SwitchTabRequest{TabID: active}); err != nil {
			log.Warn("registry restore activate failed", "tab", active, "err", err)
		}
	}

	list, err := s.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		return schema.RestoreSessionResponse{}, err
	}

	// A single write once the registry reflects the whole snapshot.
	s.mu.Lock()
	s.restoring = false
	s.mu.Unlock()
	s.persistSession(log)

	log.Info("registry restore done", "restored", restored, "active", list.ActiveTab)
	return schema.RestoreSessionResponse{
		Restored:  restored,
		Tabs:      list.Tabs,
		ActiveTab: list.ActiveTab,
		Window:    snapshot.Window,
	}, nil
}

// restoreLoadSet picks which persisted tabs get surfaces, per strategy.
// Every strategy falls back down the chain (active tab, profile's last
// active, first tab in order) when a referenced tab is gone.
func (s *service) restoreLoadSet(snapshot persist.SessionSnapshot, strategy schema.LoadStrategy) []schema.TabID {
	switch strategy {
	case schema.LoadAll:
		ids := make([]schema.TabID, 0, len(snapshot.Tabs))
		for _, record := range snapshot.Tabs {
			ids = append(ids, record.ID)
		}
		return ids
	case schema.LoadActiveProfile:
		profile := snapshot.ActiveProfile
		if profile == "" {
			if t := s.recordByID(snapshot, snapshot.ActiveTab); t != nil {
				profile = t.Profile
			}
		}
		if profile == "" {
			if active := s.restoreActiveTab(snapshot); active != "" {
				return []schema.TabID{active}
			}
			return nil
		}
		var ids []schema.TabID
		for _, record := range snapshot.Tabs {
			if record.Profile == profile {
				ids = append(ids, record.ID)
			}
		}
		return ids
	default:
		if active := s.restoreActiveTab(snapshot); active != "" {
			return []schema.TabID{active}
		}
		return nil
	}
}

// restoreActiveTab resolves the tab to foreground after restore: the
// persisted active tab, then the active profile's last-active tab, then
// the first surviving tab in display order.
func (s *service) restoreActiveTab(snapshot persist.SessionSnapshot) schema.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[snapshot.ActiveTab]; ok {
		return snapshot.ActiveTab
	}
	if snapshot.ActiveProfile != "" {
		if id, ok := snapshot.LastActiveByProfile[snapshot.ActiveProfile]; ok {
			if _, exists := s.tabs[id]; exists {
				return id
			}
		}
	}
	for _, id := range s.order {
		if _, ok := s.tabs[id]; ok {
			return id
		}
	}
	return ""
}

func (s *service) recordByID(snapshot persist.SessionSnapshot, id schema.TabID) *persist.TabRecord {
	for i := range snapshot.Tabs {
		if snapshot.Tabs[i].ID == id {
			return &snapshot.Tabs[i]
		}
	}
	return nil
}
