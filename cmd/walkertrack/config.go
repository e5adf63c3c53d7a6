package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/star/walkertrack/internal/auth"
	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/stream"
	"github.com/star/walkertrack/internal/tracking"
)

// stationConfig locates the ground station document.
type stationConfig struct {
	Location string        // file path or http(s) URL; empty for the built-in list
	CacheDir string        // on-disk copies of remote documents
	MaxFiles int           // cached copies to keep
	Refresh  time.Duration // reload interval, zero to disable
}

// envInt reads a positive integer, warning and keeping def on a bad value.
func envInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

// envSeconds reads a positive number of seconds.
func envSeconds(logger *slog.Logger, key string, def time.Duration) time.Duration {
	return time.Duration(envInt(logger, key, int(def/time.Second))) * time.Second
}

// envFloat reads a float, warning and keeping def on a bad value.
func envFloat(logger *slog.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return f
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("WALKER_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("WALKER_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("WALKER_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("WALKER_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadConstellationConfig reads the Walker pattern. Unlike the tuning knobs
// below, a bad value here is fatal.
func loadConstellationConfig(logger *slog.Logger) (constellation.Config, error) {
	cfg := constellation.DefaultConfig()

	ints := []struct {
		key string
		dst *int
	}{
		{"WALKER_PLANES", &cfg.Planes},
		{"WALKER_SATELLITES_PER_PLANE", &cfg.SatellitesPerPlane},
		{"WALKER_PHASING", &cfg.Phasing},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, errors.New(e.key + " must be an integer")
			}
			*e.dst = n
		}
	}
	cfg.TotalSatellites = cfg.Planes * cfg.SatellitesPerPlane
	if v := os.Getenv("WALKER_TOTAL_SATELLITES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.New("WALKER_TOTAL_SATELLITES must be an integer")
		}
		cfg.TotalSatellites = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"WALKER_ALTITUDE_KM", &cfg.AltitudeKm},
		{"WALKER_INCLINATION_DEG", &cfg.InclinationDeg},
	}
	for _, e := range floats {
		if v := os.Getenv(e.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return cfg, errors.New(e.key + " must be a number")
			}
			*e.dst = f
		}
	}

	if v := os.Getenv("WALKER_EPOCH"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return cfg, errors.New("WALKER_EPOCH must be an RFC 3339 timestamp")
		}
		cfg.Epoch = t.UTC()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logger.Info("constellation config",
		"total_satellites", cfg.TotalSatellites,
		"planes", cfg.Planes,
		"phasing", cfg.Phasing,
		"altitude_km", cfg.AltitudeKm,
		"inclination_deg", cfg.InclinationDeg,
		"epoch", cfg.Epoch.Format(time.RFC3339),
	)

	return cfg, nil
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: envInt(logger, "WALKER_PROP_WORKERS", runtime.NumCPU()),
		Step:    envSeconds(logger, "WALKER_KEYFRAME_STEP", 5*time.Second),
		Horizon: envSeconds(logger, "WALKER_KEYFRAME_HORIZON", 600*time.Second),
	}

	logger.Info("propagation config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

// loadCacheConfig reads the cache window and the elevation masks every cached
// snapshot is computed with.
func loadCacheConfig(logger *slog.Logger, propCfg propagation.PropConfig) (cache.Config, error) {
	cfg := cache.Config{
		Step:    envSeconds(logger, "WALKER_CACHE_STEP", propCfg.Step),
		Horizon: envSeconds(logger, "WALKER_CACHE_HORIZON", propCfg.Horizon),
		Buffer:  envSeconds(logger, "WALKER_CACHE_BUFFER", 60*time.Second),
		Policy: tracking.Policy{
			VisibilityMaskDeg: envFloat(logger, "WALKER_VISIBILITY_MASK", 10),
			SlewMaskDeg:       envFloat(logger, "WALKER_SLEW_MASK", 5),
		},
	}
	if err := cfg.Policy.Validate(); err != nil {
		return cfg, err
	}

	logger.Info("cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
		"visibility_mask_deg", cfg.Policy.VisibilityMaskDeg,
		"slew_mask_deg", cfg.Policy.SlewMaskDeg,
	)

	return cfg, nil
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "WALKER_STREAM_MAX_CONCURRENT", 10),
		BandwidthLimit:     envInt(logger, "WALKER_STREAM_BANDWIDTH_LIMIT", 1048576),
		KeepaliveInterval:  envSeconds(logger, "WALKER_STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
	}

	if v := os.Getenv("WALKER_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid WALKER_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	for _, o := range strings.Split(os.Getenv("WALKER_WS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
		"ws_origins", cfg.AllowedOrigins,
	)

	return cfg
}

func loadStationConfig(logger *slog.Logger) stationConfig {
	cfg := stationConfig{
		Location: os.Getenv("WALKER_STATIONS"),
		CacheDir: "/tmp/walkertrack/stations",
		MaxFiles: envInt(logger, "WALKER_STATIONS_CACHE_FILES", 5),
	}

	if v := os.Getenv("WALKER_STATIONS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("WALKER_STATIONS_REFRESH"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			logger.Warn("invalid WALKER_STATIONS_REFRESH value, refresh disabled", "value", v)
		} else {
			cfg.Refresh = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("station config",
		"source", cfg.Location,
		"cache_dir", cfg.CacheDir,
		"refresh_seconds", cfg.Refresh.Seconds(),
	)

	return cfg
}
