package surfacecdp

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/schema"
)

// surface is one Chrome tab. It satisfies core.SurfaceHandle.
type surface struct {
	tab    schema.TabID
	ctx    context.Context
	cancel context.CancelFunc
	log    pslog.Logger
}

// listen bridges DevTools events into the registry callbacks. Audio state
// is not observable over the protocol for ordinary targets, so those
// callbacks never fire from this backend; the shell reports audio state
// out of band.
func (s *surface) listen(callbacks core.SurfaceCallbacks) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *target.EventTargetInfoChanged:
			if callbacks.OnTitleChanged != nil && e.TargetInfo != nil {
				callbacks.OnTitleChanged(e.TargetInfo.Title)
			}
		case *page.EventFrameNavigated:
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			if callbacks.OnURLChanged != nil {
				callbacks.OnURLChanged(e.Frame.URL)
			}
		}
	})
}

func (s *surface) LoadURL(ctx context.Context, url string) error {
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		s.log.Warn("surface navigate failed", "url", url, "err", err)
		return err
	}
	s.log.Debug("surface navigated", "url", url)
	return nil
}

func (s *surface) Attach(ctx context.Context) error {
	if err := chromedp.Run(s.ctx, page.BringToFront()); err != nil {
		s.log.Warn("surface attach failed", "err", err)
		return err
	}
	s.log.Trace("surface attached")
	return nil
}

// Detach is a no-op for this backend. Chrome has no protocol-level way to
// push a tab to the background; foregrounding the next tab displaces it.
func (s *surface) Detach(ctx context.Context) error {
	s.log.Trace("surface detached")
	return nil
}

func (s *surface) Close() error {
	s.cancel()
	s.log.Debug("surface closed")
	return nil
}
