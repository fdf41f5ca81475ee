// Command opscd serves the pass geometry and footprint engines over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Danselem/dara-opsc/internal/api"
	"github.com/Danselem/dara-opsc/internal/config"
	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/health"
	"github.com/Danselem/dara-opsc/internal/passes"
	"github.com/Danselem/dara-opsc/internal/propagation"
)

func main() {
	configPath := flag.String("config", "", "config file (default $OPSC_CONFIG)")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	prop := propagation.NewSGP4(logger)
	pool := propagation.NewWorkerPool(cfg.Workers, logger)
	ready := &health.Readiness{}

	srv := api.NewServer(api.Options{
		Addr:         cfg.HTTP.Addr,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		TrustProxy:   cfg.HTTP.TrustProxy,
		Auth:         cfg.Auth,
		Observer:     cfg.Observer,
	},
		passes.NewEngine(prop, pool, logger),
		footprint.NewEngine(prop, logger),
		ready, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		logger.Error("server listen error", "addr", cfg.HTTP.Addr, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("starting server",
			"addr", ln.Addr().String(),
			"auth_enabled", cfg.Auth.Enabled,
			"workers", pool.Workers(),
			"observer_lat", cfg.Observer.LatDeg,
			"observer_lon", cfg.Observer.LonDeg,
		)
		ready.SetReady(true)
		if err := srv.HTTPServer().Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	ready.SetReady(false)
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
