package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkeye/Tutor/internal/adapters/hotkey"
	router "github.com/dkeye/Tutor/internal/adapters/http"
	"github.com/dkeye/Tutor/internal/adapters/rtc"
	"github.com/dkeye/Tutor/internal/adapters/view"
	"github.com/dkeye/Tutor/internal/app/orch"
	"github.com/dkeye/Tutor/internal/config"
	"github.com/dkeye/Tutor/internal/loop"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Join the configured channel and serve the local view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	rc, err := cfg.RoleConfig()
	if err != nil {
		return err
	}

	var o *orch.Orchestrator
	l := loop.New(cfg.TickRate, loop.DefaultMailboxSize, func(now time.Time) { o.Tick(now) })

	factory := rtc.NewFactory(rtc.Options{
		SignalURL:  cfg.Transport.SignalURL,
		ICEServers: cfg.Transport.ICEServers,
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
	}, l)
	hub := view.NewHub(view.SimplePolicy{})
	o = orch.New(rc, factory, hub)

	views := view.NewController(hub, o, o.Input, l, view.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		l.Run(ctx)
	}()

	err = l.Post(func() {
		if err := o.Initialize(cfg.Transport.AppID, cfg.Transport.Token, cfg.Transport.Channel); err != nil {
			log.Error().Err(err).Msg("session initialize failed")
			return
		}
		if err := o.JoinPrimary(); err != nil {
			log.Error().Err(err).Msg("primary join failed")
		}
	})
	if err != nil {
		return err
	}

	if cfg.Hotkey.Enabled {
		reader, err := hotkey.NewReader(cfg.Hotkey.Device, cfg.Hotkey.Trigger, l, o.OnTrigger)
		if err != nil {
			return err
		}
		go func() {
			if err := reader.Run(ctx); err != nil {
				log.Error().Err(err).Msg("hotkey reader stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router.SetupRouter(ctx, cfg, o, l, views),
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("role", cfg.Role).Msg("Tutor started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	<-loopDone
	o.Shutdown()
	log.Info().Msg("Tutor exited gracefully")
	return nil
}
