package core

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/internal/logx"
	"pkt.systems/wheelhouse/schema"
)

// Sweeper periodically reclaims surfaces from idle background tabs.
// Settings are read fresh on every sweep, so threshold or enablement
// changes apply without restarting the sweeper.
type Sweeper struct {
	svc      Service
	settings Settings
	log      pslog.Logger

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs an idle-tab sweeper.
func NewSweeper(svc Service, settings Settings, logger pslog.Logger) *Sweeper {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Sweeper{
		svc:      svc,
		settings: settings,
		log:      logger,
		now:      time.Now,
	}
}

// Start runs the sweep loop until the context is canceled or Stop is
// called. The loop runs even while eviction is disabled; each tick checks
// the current setting so enabling it later needs no restart.
func (w *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop halts the sweep loop and waits for it to exit.
func (w *Sweeper) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *Sweeper) run(ctx context.Context) {
	defer close(w.done)
	interval := w.settings.Eviction().SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.log.Info("eviction sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("eviction sweeper stopped")
			return
		case <-ticker.C:
			if n, err := w.SweepOnce(ctx); err != nil {
				w.log.Warn("eviction sweep failed", "err", err)
			} else if n > 0 {
				w.log.Info("eviction sweep evicted", "tabs", n)
			}
		}
	}
}

// SweepOnce evicts every loaded tab that is idle past the threshold and not
// excluded. Per-tab unload errors are logged and do not stop the sweep.
// Returns the number of tabs evicted.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	eviction := w.settings.Eviction()
	if !eviction.Enabled {
		return 0, nil
	}
	threshold := eviction.IdleThreshold
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	list, err := w.svc.ListTabs(ctx, schema.ListTabsRequest{})
	if err != nil {
		return 0, err
	}
	var activeProfile schema.ProfileID
	if eviction.ExcludeActiveProfile {
		stats, err := w.svc.LoadStats(ctx)
		if err != nil {
			return 0, err
		}
		activeProfile = stats.ActiveProfile
	}
	now := w.now()
	evicted := 0
	for _, t := range list.Tabs {
		if t.State != schema.TabStateLoaded {
			continue
		}
		if evictionExempt(t, activeProfile) {
			continue
		}
		if now.Sub(t.LastActiveAt) < threshold {
			continue
		}
		log := logx.WithTab(ctx, t.ID)
		if _, err := w.svc.UnloadTab(ctx, schema.UnloadTabRequest{TabID: t.ID}); err != nil {
			log.Warn("eviction unload failed", "err", err)
			continue
		}
		log.Info("eviction tab evicted", "idle", now.Sub(t.LastActiveAt).Truncate(time.Second))
		evicted++
	}
	return evicted, nil
}

// evictionExempt reports whether a loaded tab must never be reclaimed by
// an automatic sweep: the foreground tab, pinned tabs, tabs playing audio
// or media, and tabs of an exempted profile.
func evictionExempt(t schema.TabSnapshot, exemptProfile schema.ProfileID) bool {
	if t.Active {
		return true
	}
	if t.Pinned {
		return true
	}
	if t.Audible || t.MediaPlaying {
		return true
	}
	if exemptProfile != "" && t.Profile == exemptProfile {
		return true
	}
	return false
}
