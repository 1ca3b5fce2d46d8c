package core

import (
	"context"

	"pkt.systems/wheelhouse/schema"
)

// Service is the transport-agnostic API for the tab lifecycle engine. All
// operations are safe under concurrent invocation; mutations are serialized
// by a single registry lock so the eviction sweep, the hide timer, and
// user-driven calls observe one consistent ordering.
type Service interface {
	CreateTab(ctx context.Context, req schema.CreateTabRequest) (schema.CreateTabResponse, error)
	RegisterTab(ctx context.Context, req schema.RegisterTabRequest) (schema.RegisterTabResponse, error)
	LoadTab(ctx context.Context, req schema.LoadTabRequest) (schema.LoadTabResponse, error)
	UnloadTab(ctx context.Context, req schema.UnloadTabRequest) (schema.UnloadTabResponse, error)
	SwitchTab(ctx context.Context, req schema.SwitchTabRequest) (schema.SwitchTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	ReorderTabs(ctx context.Context, req schema.ReorderTabsRequest) (schema.ReorderTabsResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	SetPinned(ctx context.Context, req schema.SetPinnedRequest) (schema.SetPinnedResponse, error)
	SetWindow(ctx context.Context, req schema.SetWindowRequest) error
	LoadStats(ctx context.Context) (schema.LoadStats, error)
	SaveSession(ctx context.Context) error
	RestoreSession(ctx context.Context, req schema.RestoreSessionRequest) (schema.RestoreSessionResponse, error)
}
