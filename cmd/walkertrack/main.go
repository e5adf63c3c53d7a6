package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/walkertrack/internal/api"
	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/links"
	"github.com/star/walkertrack/internal/metrics"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/stream"
	"github.com/star/walkertrack/internal/tracking"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("WALKER_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	constCfg, err := loadConstellationConfig(logger)
	if err != nil {
		logger.Error("invalid constellation configuration", "error", err)
		os.Exit(1)
	}

	propCfg := loadPropConfig(logger)
	prop, err := propagation.NewPropagator(constCfg, propCfg, logger)
	if err != nil {
		logger.Error("invalid constellation configuration", "error", err)
		os.Exit(1)
	}
	metrics.SetPropagationWorkers(propCfg.Workers)
	tracker := tracking.NewTracker(prop, logger)

	stationCfg := loadStationConfig(logger)
	store := station.NewStore()
	var src *station.Source
	if stationCfg.Location == "" {
		store.Set(station.Builtin())
		logger.Info("no station source configured, using built-in stations", "stations", len(store.Get().Stations))
	} else {
		src = station.NewSource(stationCfg.Location, station.NewCache(stationCfg.CacheDir, stationCfg.MaxFiles), logger)
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := store.Reload(loadCtx, src)
		cancel()
		if err != nil {
			logger.Error("failed to load stations", "source", stationCfg.Location, "error", err)
			os.Exit(1)
		}
	}

	cacheCfg, err := loadCacheConfig(logger, propCfg)
	if err != nil {
		logger.Error("invalid cache configuration", "error", err)
		os.Exit(1)
	}
	snapCache := cache.NewSnapshotCache(cacheCfg, tracker, store, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(snapCache, store, streamCfg, logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Tracker:     tracker,
		Cache:       snapCache,
		Stations:    store,
		Source:      src,
		Stream:      streamHandler,
		Links:       links.NewConfig(constCfg),
		PassWorkers: propCfg.Workers,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cache background worker.
	go snapCache.Start(ctx)

	// Periodically re-read the station source; the cache rebuilds on change.
	if src != nil && stationCfg.Refresh > 0 {
		go func() {
			ticker := time.NewTicker(stationCfg.Refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := store.Reload(ctx, src); err != nil {
						logger.Warn("station refresh failed, keeping current registry",
							"source", src.Location(),
							"error", err,
						)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"satellites", constCfg.TotalSatellites,
			"stations", len(store.Get().Stations),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
