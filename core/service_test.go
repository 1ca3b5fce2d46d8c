package core

import (
	"context"
	"sync"
	"testing"

	"pkt.systems/wheelhouse/schema"
)

type fakeSurface struct {
	provider  *fakeProvider
	tab       schema.TabID
	callbacks SurfaceCallbacks

	mu       sync.Mutex
	loads    []string
	attached bool
	closed   bool
}

func (f *fakeSurface) LoadURL(ctx context.Context, url string) error {
	if err := f.provider.loadErr; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	return nil
}

func (f *fakeSurface) Attach(ctx context.Context) error {
	if err := f.provider.attachErr; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = true
	return nil
}

func (f *fakeSurface) Detach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = false
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	f.closed = true
	f.attached = false
	f.mu.Unlock()
	f.provider.mu.Lock()
	f.provider.destroyed++
	f.provider.mu.Unlock()
	return nil
}

func (f *fakeSurface) isAttached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

type fakeProvider struct {
	mu        sync.Mutex
	created   int
	destroyed int
	byTab     map[schema.TabID]*fakeSurface

	createErr error
	loadErr   error
	attachErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{byTab: make(map[schema.TabID]*fakeSurface)}
}

func (p *fakeProvider) CreateSurface(ctx context.Context, req CreateSurfaceRequest) (SurfaceHandle, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	handle := &fakeSurface{provider: p, tab: req.Tab, callbacks: req.Callbacks}
	p.mu.Lock()
	p.created++
	p.byTab[req.Tab] = handle
	p.mu.Unlock()
	return handle, nil
}

func (p *fakeProvider) surface(tab schema.TabID) *fakeSurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byTab[tab]
}

func (p *fakeProvider) counts() (created, destroyed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created, p.destroyed
}

func (p *fakeProvider) attachedCount() int {
	p.mu.Lock()
	handles := make([]*fakeSurface, 0, len(p.byTab))
	for _, h := range p.byTab {
		handles = append(handles, h)
	}
	p.mu.Unlock()
	n := 0
	for _, h := range handles {
		if h.isAttached() {
			n++
		}
	}
	return n
}

type eventRecorder struct {
	mu     sync.Mutex
	events []schema.TabEvent
}

func (r *eventRecorder) OnTabEvent(event schema.TabEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []schema.TabEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]schema.TabEventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func newTestService(t *testing.T) (Service, *fakeProvider, *eventRecorder) {
	t.Helper()
	provider := newFakeProvider()
	sink := &eventRecorder{}
	svc, err := NewService(schema.ServiceConfig{StateDir: t.TempDir()}, ServiceDeps{
		SurfaceProvider: provider,
		EventSink:       sink,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, provider, sink
}

func mustCreate(t *testing.T, svc Service, id schema.TabID, profile schema.ProfileID, url string) schema.TabSnapshot {
	t.Helper()
	resp, err := svc.CreateTab(context.Background(), schema.CreateTabRequest{
		TabID:   id,
		Profile: profile,
		URL:     url,
	})
	if err != nil {
		t.Fatalf("CreateTab %s: %v", id, err)
	}
	return resp.Tab
}

func mustSwitch(t *testing.T, svc Service, id schema.TabID) {
	t.Helper()
	if _, err := svc.SwitchTab(context.Background(), schema.SwitchTabRequest{TabID: id}); err != nil {
		t.Fatalf("SwitchTab %s: %v", id, err)
	}
}

func tabByID(t *testing.T, svc Service, id schema.TabID) schema.TabSnapshot {
	t.Helper()
	list, err := svc.ListTabs(context.Background(), schema.ListTabsRequest{})
	if err != nil {
		t.Fatalf("ListTabs: %v", err)
	}
	for _, tab := range list.Tabs {
		if tab.ID == id {
			return tab
		}
	}
	t.Fatalf("tab %s not found", id)
	return schema.TabSnapshot{}
}
