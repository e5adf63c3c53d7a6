package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/propagation"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestLoadConstellationConfig(t *testing.T) {
	t.Setenv("WALKER_PLANES", "6")
	t.Setenv("WALKER_SATELLITES_PER_PLANE", "4")
	t.Setenv("WALKER_PHASING", "2")
	t.Setenv("WALKER_ALTITUDE_KM", "1200")
	t.Setenv("WALKER_EPOCH", "2026-01-01T00:00:00Z")

	cfg, err := loadConstellationConfig(testLogger)
	if err != nil {
		t.Fatalf("loadConstellationConfig: %v", err)
	}
	if cfg.TotalSatellites != 24 || cfg.Planes != 6 || cfg.Phasing != 2 || cfg.AltitudeKm != 1200 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.InclinationDeg != 55 {
		t.Errorf("inclination = %v, want the default", cfg.InclinationDeg)
	}
	if !cfg.Epoch.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("epoch = %v", cfg.Epoch)
	}
}

func TestLoadConstellationConfigRejects(t *testing.T) {
	tests := []struct {
		name       string
		key, value string
		wantConfig bool
	}{
		{"total mismatch", "WALKER_TOTAL_SATELLITES", "13", true},
		{"zero planes", "WALKER_PLANES", "0", true},
		{"negative altitude", "WALKER_ALTITUDE_KM", "-5", true},
		{"infinite altitude", "WALKER_ALTITUDE_KM", "+Inf", true},
		{"NaN inclination", "WALKER_INCLINATION_DEG", "NaN", true},
		{"not an integer", "WALKER_PLANES", "three", false},
		{"bad epoch", "WALKER_EPOCH", "J2000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := loadConstellationConfig(testLogger)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, constellation.ErrConfiguration); got != tt.wantConfig {
				t.Errorf("errors.Is(ErrConfiguration) = %v, want %v (%v)", got, tt.wantConfig, err)
			}
		})
	}
}

func TestLoadCacheConfig(t *testing.T) {
	prop := propagation.PropConfig{Workers: 1, Step: 5 * time.Second, Horizon: time.Minute}

	t.Setenv("WALKER_CACHE_STEP", "bogus")
	t.Setenv("WALKER_VISIBILITY_MASK", "15")
	cfg, err := loadCacheConfig(testLogger, prop)
	if err != nil {
		t.Fatalf("loadCacheConfig: %v", err)
	}
	if cfg.Step != 5*time.Second || cfg.Horizon != time.Minute {
		t.Errorf("window = %v/%v, want the propagation defaults", cfg.Step, cfg.Horizon)
	}
	if cfg.Policy.VisibilityMaskDeg != 15 || cfg.Policy.SlewMaskDeg != 5 {
		t.Errorf("policy = %+v", cfg.Policy)
	}

	t.Setenv("WALKER_SLEW_MASK", "120")
	if _, err := loadCacheConfig(testLogger, prop); err == nil {
		t.Error("expected an error for a slew mask above 90")
	}
}

func TestLoadAuthConfig(t *testing.T) {
	t.Setenv("WALKER_AUTH_ENABLED", "true")
	if _, err := loadAuthConfig(testLogger); err == nil {
		t.Error("expected an error when the token is missing")
	}
	t.Setenv("WALKER_AUTH_TOKEN", "s3cret")
	cfg, err := loadAuthConfig(testLogger)
	if err != nil || !cfg.Enabled || cfg.Token != "s3cret" {
		t.Errorf("cfg = %+v, err = %v", cfg, err)
	}
}

func TestLoadStreamConfig(t *testing.T) {
	t.Setenv("WALKER_STREAM_MAX_CONCURRENT", "3")
	t.Setenv("WALKER_TRUST_PROXY", "yes")
	t.Setenv("WALKER_WS_ORIGINS", " https://ops.example.com, ,http://localhost:5173")

	cfg := loadStreamConfig(testLogger)
	if cfg.MaxConcurrentPerIP != 3 {
		t.Errorf("MaxConcurrentPerIP = %d, want 3", cfg.MaxConcurrentPerIP)
	}
	if cfg.TrustProxy {
		t.Error("invalid WALKER_TRUST_PROXY should fall back to false")
	}
	want := []string{"https://ops.example.com", "http://localhost:5173"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %q, want %q", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}
