package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/wheelhouse"
	"pkt.systems/wheelhouse/core"
	"pkt.systems/wheelhouse/httpapi"
	"pkt.systems/wheelhouse/internal/appconfig"
	"pkt.systems/wheelhouse/internal/surfacecdp"
	"pkt.systems/wheelhouse/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var headless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tab engine and its control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if headless {
				cfg.Surface.Headless = true
			}

			provider := surfacecdp.NewProvider(surfacecdp.Config{
				ExecPath:     cfg.Surface.ExecPath,
				Headless:     cfg.Surface.Headless,
				PartitionDir: cfg.Surface.PartitionDir,
			}, logger)
			defer func() { _ = provider.Close() }()

			settings := appconfig.NewLiveSettings(cfg)
			serverCfg := wheelhouse.ServerConfig{
				Service: cfg.ServiceConfig(),
				HTTP: httpapi.Config{
					Addr:             cfg.HTTP.Addr,
					ReplayEvents:     cfg.HTTP.ReplayEvents,
					DisableAccessLog: cfg.Logging.DisableAccessLog,
				},
				HubHistory: cfg.HTTP.ReplayEvents,
			}
			serverDeps := wheelhouse.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					SurfaceProvider: provider,
					Settings:        settings,
					Logger:          logger,
				},
			}
			server, err := wheelhouse.New(serverCfg, serverDeps, wheelhouse.WithHTTP(), wheelhouse.WithSweeper())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go reloadOnHUP(ctx, cfgPath, settings, logger)
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)

			if err := restoreOrCreateDefault(ctx, server.Service(), cfg); err != nil {
				logger.Warn("session restore failed", "err", err)
			}

			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&headless, "headless", false, "run browser surfaces headless")
	return cmd
}

// reloadOnHUP re-reads the config on SIGHUP and swaps it into the live
// settings. Eviction and suspend changes apply on the next sweep or hide;
// surface and listener settings need a restart.
func reloadOnHUP(ctx context.Context, cfgPath string, settings *appconfig.LiveSettings, logger pslog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				logger.Warn("config reload failed", "err", err)
				continue
			}
			settings.Update(cfg)
			logger.Info("config reloaded")
		}
	}
}

// restoreOrCreateDefault replays the persisted session at startup. When no
// snapshot exists the shell still needs one tab to show, so a default tab
// is created and foregrounded.
func restoreOrCreateDefault(ctx context.Context, svc core.Service, cfg appconfig.Config) error {
	log := pslog.Ctx(ctx)
	resp, err := svc.RestoreSession(ctx, schema.RestoreSessionRequest{
		Strategy: schema.LoadStrategy(cfg.Restore.Strategy),
	})
	if err != nil {
		return err
	}
	if resp.Restored > 0 {
		log.Info("session restored", "tabs", resp.Restored, "active", resp.ActiveTab)
		return nil
	}
	created, err := svc.CreateTab(ctx, schema.CreateTabRequest{})
	if err != nil {
		return err
	}
	if _, err := svc.SwitchTab(ctx, schema.SwitchTabRequest{TabID: created.Tab.ID}); err != nil {
		return err
	}
	log.Info("default tab created", "tab", created.Tab.ID)
	return nil
}
