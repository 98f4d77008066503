package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/focusguard/internal/bridge"
	httptransport "github.com/example/focusguard/internal/http"
	"github.com/example/focusguard/internal/metrics"
	"github.com/example/focusguard/internal/reconcile"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation loop, the HTTP API and the agent bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	logger := c.logger
	m := metrics.New()

	svc, err := c.openServices(ctx, m)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	hub := bridge.NewHub(bridge.HubConfig{Quotes: svc.quotes, Logger: logger})
	hub.SetHandler(reconcile.NewEventRouter(svc.locks, svc.insights, logger))
	m.WatchAgent(hub.Connected)

	loop := reconcile.New(svc.locks, hub, reconcile.Config{
		Interval:    c.cfg.ReconcileInterval,
		CallTimeout: c.cfg.BridgeTimeout,
		Concurrency: c.cfg.BridgeConcurrency,
		Logger:      logger,
		Observer:    m,
	})
	svc.schedules.OnChange(loop.Trigger)
	svc.locks.OnChange(loop.Trigger)
	hub.OnConnect(loop.Reset)
	hub.OnPermissionsGranted(loop.Trigger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:      httptransport.NewScheduleHandler(svc.schedules, logger),
		Locks:          httptransport.NewLockHandler(svc.locks, time.Now, logger),
		Insights:       httptransport.NewInsightsHandler(svc.insights, logger),
		Quotes:         httptransport.NewQuoteHandler(svc.quotes, logger),
		Bridge:         hub,
		Metrics:        m.Handler(),
		AgentConnected: hub.Connected,
		Observer:       m,
		RateLimitRPS:   c.cfg.RateLimitRPS,
		RateLimitBurst: c.cfg.RateLimitBurst,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              c.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("focusguard listening", "addr", server.Addr, "database", c.cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
		return nil
	})

	return g.Wait()
}
