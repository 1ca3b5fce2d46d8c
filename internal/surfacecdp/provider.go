// Package surfacecdp backs tab surfaces with Chrome targets driven over
// the DevTools protocol. Each profile gets its own browser process with an
// isolated user-data partition; each surface is one tab in that browser.
package surfacecdp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/schema"
)

// Config configures the Chrome surface backend.
type Config struct {
	// ExecPath overrides the browser binary. Empty means chromedp's
	// lookup order.
	ExecPath string
	Headless bool
	// PartitionDir is the root under which each profile gets its own
	// user-data directory.
	PartitionDir string
}

// Provider implements core.SurfaceProvider on top of chromedp.
type Provider struct {
	cfg Config
	log pslog.Logger

	mu       sync.Mutex
	browsers map[schema.ProfileID]*profileBrowser
	closed   bool
}

// profileBrowser is one browser process bound to a profile partition. The
// browser context stays alive as long as the provider; tab contexts come
// and go with surfaces.
type profileBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewProvider constructs a Chrome surface provider.
func NewProvider(cfg Config, logger pslog.Logger) *Provider {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Provider{
		cfg:      cfg,
		log:      logger,
		browsers: make(map[schema.ProfileID]*profileBrowser),
	}
}

// CreateSurface implements core.SurfaceProvider. The first surface of a
// profile launches that profile's browser process.
func (p *Provider) CreateSurface(ctx context.Context, req core.CreateSurfaceRequest) (core.SurfaceHandle, error) {
	browser, err := p.browserFor(req.Profile)
	if err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(browser.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab for %s: %w", req.Tab, err)
	}
	s := &surface{
		tab:    req.Tab,
		ctx:    tabCtx,
		cancel: tabCancel,
		log:    p.log.With("tab", req.Tab, "profile", req.Profile),
	}
	s.listen(req.Callbacks)
	p.log.Debug("surface created", "tab", req.Tab, "profile", req.Profile)
	return s, nil
}

func (p *Provider) browserFor(profile schema.ProfileID) (*profileBrowser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, schema.ErrSurfaceUnavailable
	}
	if browser, ok := p.browsers[profile]; ok {
		return browser, nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(filepath.Join(p.cfg.PartitionDir, string(profile))),
		chromedp.Flag("headless", p.cfg.Headless),
	)
	if p.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: launch browser for profile %s: %v", schema.ErrSurfaceUnavailable, profile, err)
	}
	browser := &profileBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	p.browsers[profile] = browser
	p.log.Info("profile browser launched", "profile", profile, "headless", p.cfg.Headless)
	return browser, nil
}

// Close tears down every profile browser. Surfaces created from them
// become unusable.
func (p *Provider) Close() error {
	p.mu.Lock()
	browsers := p.browsers
	p.browsers = make(map[schema.ProfileID]*profileBrowser)
	p.closed = true
	p.mu.Unlock()
	for profile, browser := range browsers {
		browser.browserCancel()
		browser.allocCancel()
		p.log.Debug("profile browser closed", "profile", profile)
	}
	return nil
}
