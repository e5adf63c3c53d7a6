package main

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/tracking"
)

func TestRender(t *testing.T) {
	cfg := constellation.DefaultConfig()
	snap, err := tracking.Compute(cfg, station.DefaultStations(), cfg.Epoch, tracking.Policy{VisibilityMaskDeg: 10, SlewMaskDeg: 5})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var buf bytes.Buffer
	render(&buf, cfg, snap)
	out := buf.String()

	for _, want := range []string{"Walker 55°:12/3/1", "Equator", "SAT-01", "SAT-12", "RANGE km", "earth rotation not modelled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestGMST(t *testing.T) {
	// GMST at J2000.0 is about 280.46°.
	if got := gmstDeg(constellation.DefaultEpoch); got < 280.4 || got > 280.5 {
		t.Errorf("gmst at J2000 = %.4f°", got)
	}
}

func TestEarthRotation(t *testing.T) {
	epoch := constellation.DefaultEpoch
	tests := []struct {
		name   string
		at     time.Time
		want   float64
		within float64
	}{
		{"at epoch", epoch, 0, 1e-9},
		{"six hours", epoch.Add(6 * time.Hour), 90.25, 0.05},
		{"one sidereal day", epoch.Add(86164 * time.Second), 0, 0.05},
		{"six hours before", epoch.Add(-6 * time.Hour), 269.75, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := earthRotationDeg(epoch, tt.at)
			diff := math.Abs(got - tt.want)
			if diff > 180 {
				diff = 360 - diff
			}
			if diff > tt.within {
				t.Errorf("earthRotationDeg = %.4f°, want %.2f°", got, tt.want)
			}
		})
	}
}
