package core

import (
	"context"

	"pkt.systems/wheelhouse/schema"
)

// SurfaceProvider creates heavyweight rendering surfaces bound to an
// isolated profile partition. The registry is the only component that
// creates or destroys surfaces.
type SurfaceProvider interface {
	CreateSurface(ctx context.Context, req CreateSurfaceRequest) (SurfaceHandle, error)
}

// CreateSurfaceRequest describes a surface acquisition for one tab.
// Callbacks are registered once, at creation time, for the lifetime of the
// returned handle.
type CreateSurfaceRequest struct {
	Tab       schema.TabID
	Profile   schema.ProfileID
	Callbacks SurfaceCallbacks
}

// SurfaceCallbacks bridges asynchronous navigation state from the surface
// back into the registry. All callbacks are optional and best-effort; the
// registry tolerates callbacks arriving after the surface was destroyed.
type SurfaceCallbacks struct {
	OnTitleChanged      func(title string)
	OnURLChanged        func(url string)
	OnFaviconChanged    func(faviconURL string)
	OnAudioStateChanged func(audible, mediaPlaying bool)
}

// SurfaceHandle exposes lifecycle controls for one live surface. At most
// one handle is attached to the display at a time.
type SurfaceHandle interface {
	LoadURL(ctx context.Context, url string) error
	Attach(ctx context.Context) error
	Detach(ctx context.Context) error
	Close() error
}
