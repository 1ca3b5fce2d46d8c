package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service.
type ServiceDeps struct {
	SurfaceProvider SurfaceProvider
	EventSink       EventSink
	Settings        Settings
	Logger          pslog.Logger
}
