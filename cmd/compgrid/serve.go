package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"compgrid/internal/logger"
	"compgrid/internal/scheduler"
	"compgrid/internal/server"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run configured jobs on schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched := scheduler.NewScheduler(ctx, a.runner, a.cfg.Jobs, loc, a.log)
			if a.telegram != nil {
				sched.Alerter = a.telegram
			}
			if err := sched.RegisterAll(); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			api := server.NewWebAPI(logger.Component(a.log, "http"), server.Config{
				Addr: a.cfg.HTTP.Addr,
				Dependencies: server.Dependencies{
					Jobs:     sched,
					Config:   a.cfg.Jobs,
					Builder:  a.runner,
					Recorder: a.recorder,
				},
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return api.Start(gctx) })
			if a.telegram != nil {
				g.Go(func() error {
					a.telegram.StartPolling(gctx, sched.HandleCommand)
					return nil
				})
				a.log.Info().Msg("telegram polling started")
			}

			a.log.Info().Str("addr", a.cfg.HTTP.Addr).Int("jobs", len(a.cfg.Jobs)).Msg("compgrid is running")
			err = g.Wait()
			a.log.Info().Msg("compgrid stopped")
			return err
		},
	}
}
