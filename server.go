package wheelhouse

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/httpapi"
	"pkt.systems/wheelhouse/internal/eventbus"
	"pkt.systems/wheelhouse/schema"
)

// Server composes the tab engine with its background policies and the
// HTTP control API.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Service() core.Service
	Visibility() *core.HideCoordinator
	Events() *eventbus.Bus
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service    schema.ServiceConfig
	HTTP       httpapi.Config
	HubHistory int
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP    bool
	enableSweeper bool
	enableBus     bool
}

// WithHTTP enables the HTTP control API.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSweeper enables the periodic idle-tab eviction sweep.
func WithSweeper() ServerOption {
	return func(o *serverOptions) { o.enableSweeper = true }
}

// WithEventBus enables the in-process event bus for embedding callers.
func WithEventBus() ServerOption {
	return func(o *serverOptions) { o.enableBus = true }
}

// New constructs a composable wheelhouse server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	serviceDeps := deps.ServiceDeps
	logger := serviceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	var hub *httpapi.Hub
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HubHistory, logger)
	}
	var bus *eventbus.Bus
	if options.enableBus {
		bus = eventbus.New(logger)
	}

	sinks := make([]core.EventSink, 0, 3)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if bus != nil {
		sinks = append(sinks, bus)
	}
	switch len(sinks) {
	case 0:
	case 1:
		serviceDeps.EventSink = sinks[0]
	default:
		serviceDeps.EventSink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	settings := serviceDeps.Settings
	if settings == nil {
		settings = core.StaticSettings{}
	}

	var sweeper *core.Sweeper
	if options.enableSweeper {
		sweeper = core.NewSweeper(service, settings, logger)
	}
	visibility := core.NewHideCoordinator(service, settings, logger)

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, service, visibility, hub)
	}

	return &compositeServer{
		cfg:        cfg,
		options:    options,
		service:    service,
		sweeper:    sweeper,
		visibility: visibility,
		bus:        bus,
		httpSrv:    httpSrv,
	}, nil
}

type compositeServer struct {
	cfg        ServerConfig
	options    serverOptions
	service    core.Service
	sweeper    *core.Sweeper
	visibility *core.HideCoordinator
	bus        *eventbus.Bus
	httpSrv    *httpapi.Server
	logger     pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Service() core.Service { return s.service }

func (s *compositeServer) Visibility() *core.HideCoordinator { return s.visibility }

func (s *compositeServer) Events() *eventbus.Bus { return s.bus }

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"sweeper", s.options.enableSweeper,
		"http_addr", s.cfg.HTTP.Addr,
		"state_dir", s.cfg.Service.StateDir,
	)
	if s.sweeper != nil {
		s.sweeper.Start(s.ctx)
	}
	if s.httpSrv != nil {
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if err := s.service.SaveSession(context.Background()); err != nil {
		log.Warn("server session save failed", "err", err)
	} else {
		log.Info("server session saved")
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
