package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/schema"
)

// HideCoordinator reclaims surfaces when the shell window is hidden or
// minimized. Hiding arms a one-shot delay; showing the window again before
// it fires cancels the suspend entirely. Suspend settings are read at arm
// time, so changes apply to the next hide.
type HideCoordinator struct {
	svc      Service
	settings Settings
	log      pslog.Logger

	mu    sync.Mutex
	timer *time.Timer
	// armed increments on every Hidden and Shown; a fire carrying an
	// older value was superseded and is discarded.
	armed     uint64
	suspended bool
}

// NewHideCoordinator constructs a suspend-on-hide coordinator.
func NewHideCoordinator(svc Service, settings Settings, logger pslog.Logger) *HideCoordinator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &HideCoordinator{svc: svc, settings: settings, log: logger}
}

// Hidden records that the window is no longer visible. When suspend on
// hide is enabled, a bulk suspend of loaded tabs fires after the
// configured delay unless Shown arrives first. A second Hidden while a
// timer is pending re-arms it.
func (h *HideCoordinator) Hidden(ctx context.Context) {
	suspend := h.settings.SuspendOnHide()
	if !suspend.Enabled {
		return
	}
	delay := suspend.Delay
	if delay <= 0 {
		delay = DefaultSuspendDelay
	}
	// The timer outlives the request that armed it.
	ctx = context.WithoutCancel(ctx)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed++
	armed := h.armed
	if h.timer != nil {
		h.timer.Stop()
	}
	h.log.Debug("hide suspend armed", "delay", delay)
	h.timer = time.AfterFunc(delay, func() {
		h.fire(ctx, suspend.KeepLastActive, armed)
	})
}

// Shown records that the window is visible again. A pending suspend is
// canceled; a suspend that already fired gets the foreground tab reloaded
// so the user sees content immediately.
func (h *HideCoordinator) Shown(ctx context.Context) {
	h.mu.Lock()
	h.armed++
	if h.timer != nil {
		if h.timer.Stop() {
			h.log.Debug("hide suspend canceled")
		}
		h.timer = nil
	}
	wasSuspended := h.suspended
	h.suspended = false
	h.mu.Unlock()
	if !wasSuspended {
		return
	}
	stats, err := h.svc.LoadStats(ctx)
	if err != nil {
		h.log.Warn("hide resume stats failed", "err", err)
		return
	}
	if stats.ActiveTab == "" {
		return
	}
	if _, err := h.svc.SwitchTab(ctx, schema.SwitchTabRequest{TabID: stats.ActiveTab}); err != nil {
		h.log.Warn("hide resume reload failed", "tab", stats.ActiveTab, "err", err)
		return
	}
	h.log.Info("hide resume reloaded foreground", "tab", stats.ActiveTab)
}

// fire performs the bulk suspend. Pinned and audible tabs are left alone,
// same as the idle sweep; keepForeground additionally spares the active
// tab so resume is instant. A fire whose arming was superseded by a later
// Hidden or Shown returns without touching the replacement timer.
func (h *HideCoordinator) fire(ctx context.Context, keepForeground bool, armed uint64) {
	h.mu.Lock()
	if armed != h.armed {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.mu.Unlock()
	list, err := h.svc.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		h.log.Warn("hide suspend list failed", "err", err)
		return
	}
	suspendedAny := false
	for _, t := range list.Tabs {
		if t.State != schema.TabStateLoaded {
			continue
		}
		if t.Pinned || t.Audible || t.MediaPlaying {
			continue
		}
		if keepForeground && t.Active {
			continue
		}
		if _, err := h.svc.UnloadTab(ctx, schema.UnloadTabRequest{TabID: t.ID}); err != nil {
			h.log.Warn("hide suspend unload failed", "tab", t.ID, "err", err)
			continue
		}
		suspendedAny = true
	}
	h.mu.Lock()
	h.suspended = h.suspended || suspendedAny
	h.mu.Unlock()
	if suspendedAny {
		h.log.Info("hide suspend completed")
	}
}
