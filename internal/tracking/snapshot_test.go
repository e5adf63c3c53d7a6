package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var (
	equator  = transform.GroundStation{Name: "Equator", LatDeg: 0, LonDeg: 0, AltKm: 0}
	stations = []transform.GroundStation{
		equator,
		{Name: "Svalbard", LatDeg: 78.2232, LonDeg: 15.6267, AltKm: 0.5},
		{Name: "Canberra", LatDeg: -35.4014, LonDeg: 148.9817, AltKm: 0.69},
		{Name: "Goldstone", LatDeg: 35.4267, LonDeg: -116.89, AltKm: 1.0},
	}
	policy = Policy{VisibilityMaskDeg: 10, SlewMaskDeg: 5}
)

func testConfig() constellation.Config {
	return constellation.Config{
		TotalSatellites:    12,
		Planes:             3,
		SatellitesPerPlane: 4,
		AltitudeKm:         15000,
		InclinationDeg:     55,
		Phasing:            1,
		Epoch:              constellation.DefaultEpoch,
	}
}

func TestComputeEndToEnd(t *testing.T) {
	cfg := testConfig()
	snap, err := Compute(cfg, []transform.GroundStation{equator}, cfg.Epoch, policy)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(snap.Stations) != 1 {
		t.Fatalf("got %d station keys, want 1", len(snap.Stations))
	}
	entries, ok := snap.Stations["Equator"]
	if !ok {
		t.Fatal(`missing station key "Equator"`)
	}
	if len(entries) != 12 {
		t.Fatalf("got %d entries, want 12", len(entries))
	}
	for i, e := range entries {
		if e.SatelliteID != i+1 {
			t.Errorf("entry %d has satellite id %d", i, e.SatelliteID)
		}
		if e.Err != nil {
			t.Errorf("entry %d: unexpected error %v", i, e.Err)
		}
		la := e.Angles
		for _, v := range []float64{la.AzimuthDeg, la.ElevationDeg, la.RangeKm} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("entry %d: non-finite angles %+v", i, la)
			}
		}
		if la.AzimuthDeg < 0 || la.AzimuthDeg >= 360 || la.ElevationDeg < -90 || la.ElevationDeg > 90 {
			t.Errorf("entry %d: angles out of range %+v", i, la)
		}
		if e.Visible != (la.ElevationDeg > policy.VisibilityMaskDeg) {
			t.Errorf("entry %d: visible=%v with elevation %.3f", i, e.Visible, la.ElevationDeg)
		}
		if la.Slew.SlewRequired != (la.ElevationDeg > policy.SlewMaskDeg) {
			t.Errorf("entry %d: slew=%v with elevation %.3f", i, la.Slew.SlewRequired, la.ElevationDeg)
		}
	}
	if len(snap.Satellites) != 12 {
		t.Errorf("got %d satellite positions, want 12", len(snap.Satellites))
	}

	// The first satellite of plane 0 starts on the ascending node at RAAN 0,
	// i.e. straight above the equator station.
	if e := entries[0]; math.Abs(e.Angles.ElevationDeg-90) > 1e-6 || math.Abs(e.Angles.RangeKm-15000) > 1 {
		t.Errorf("SAT-01 should be overhead: %+v", e.Angles)
	}
}

func TestComputeDeterministic(t *testing.T) {
	cfg := testConfig()
	ts := cfg.Epoch.Add(37*time.Minute + 250*time.Millisecond)

	a, err := Compute(cfg, stations, ts, policy)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, _ := Compute(cfg, stations, ts, policy)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Error("two identical snapshot calls produced different JSON")
	}
}

func TestTrackerMatchesCompute(t *testing.T) {
	cfg := testConfig()
	for _, workers := range []int{1, 3, 8} {
		prop, err := propagation.NewPropagator(cfg, propagation.PropConfig{Workers: workers}, testLogger())
		if err != nil {
			t.Fatalf("NewPropagator: %v", err)
		}
		tr := NewTracker(prop, testLogger())

		for _, offset := range []time.Duration{0, time.Hour, -90 * time.Minute, 73 * time.Hour} {
			ts := cfg.Epoch.Add(offset)
			want, err := Compute(cfg, stations, ts, policy)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			got, err := tr.Snapshot(context.Background(), stations, ts, policy)
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("workers=%d offset=%v: parallel snapshot differs from sequential", workers, offset)
			}
		}
	}
}

func TestMasksAreIndependent(t *testing.T) {
	cfg := testConfig()
	ts := cfg.Epoch.Add(2 * time.Hour)
	strict := Policy{VisibilityMaskDeg: 89, SlewMaskDeg: -89}
	snap, err := Compute(cfg, stations, ts, strict)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for name, entries := range snap.Stations {
		for _, e := range entries {
			if e.Angles.ElevationDeg > -89 && !e.Angles.Slew.SlewRequired {
				t.Errorf("%s/%s: slew mask ignored", name, e.Name)
			}
			if e.Angles.ElevationDeg <= 89 && e.Visible {
				t.Errorf("%s/%s: visibility mask ignored", name, e.Name)
			}
		}
	}
}

func TestComputeConfigurationErrorsAbort(t *testing.T) {
	cfg := testConfig()
	bad := cfg
	bad.Planes = 0

	tests := []struct {
		name     string
		cfg      constellation.Config
		stations []transform.GroundStation
		policy   Policy
	}{
		{"invalid constellation", bad, stations, policy},
		{"duplicate station", cfg, []transform.GroundStation{equator, equator}, policy},
		{"unnamed station", cfg, []transform.GroundStation{{LatDeg: 1}}, policy},
		{"latitude out of range", cfg, []transform.GroundStation{{Name: "x", LatDeg: 91}}, policy},
		{"NaN visibility mask", cfg, stations, Policy{VisibilityMaskDeg: math.NaN(), SlewMaskDeg: 5}},
		{"slew mask out of range", cfg, stations, Policy{VisibilityMaskDeg: 10, SlewMaskDeg: 120}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Compute(tt.cfg, tt.stations, cfg.Epoch, tt.policy)
			if !errors.Is(err, constellation.ErrConfiguration) {
				t.Errorf("error = %v, want ErrConfiguration", err)
			}
			if snap != nil {
				t.Error("partial snapshot returned alongside configuration error")
			}
		})
	}
}

func TestComputeNoStations(t *testing.T) {
	cfg := testConfig()
	snap, err := Compute(cfg, nil, cfg.Epoch, policy)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(snap.Stations) != 0 || len(snap.Satellites) != 12 {
		t.Errorf("got %d stations / %d satellites", len(snap.Stations), len(snap.Satellites))
	}
}

func TestFailedSatellitesAreReportedNotReplaced(t *testing.T) {
	cat, err := propagation.NewCatalogue(testConfig())
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}
	positions, _ := cat.PositionsAt(0)

	// Pretend satellite 3 failed its geodetic conversion.
	numErr := &transform.NumericalError{Op: "ecef to geodetic", Reason: "test"}
	var kept []propagation.SatellitePosition
	for _, p := range positions {
		if p.ID != 3 {
			kept = append(kept, p)
		}
	}
	failures := []propagation.SatelliteFailure{{ID: 3, Name: "SAT-03", Err: numErr}}

	entries := stationEntries(transform.NewObserver(equator), kept, failures, policy)
	if len(entries) != 12 {
		t.Fatalf("got %d entries, want 12", len(entries))
	}
	e := entries[2]
	if e.SatelliteID != 3 || !errors.Is(e.Err, transform.ErrNumerical) {
		t.Fatalf("entry 3 = %+v, want numerical failure", e)
	}
	if e.Visible || e.Angles != (transform.LookAngles{}) {
		t.Errorf("failed entry carries substituted values: %+v", e)
	}
	if e.Error == "" {
		t.Error("failed entry has no error text")
	}

	snap := &Snapshot{Stations: map[string][]Entry{"Equator": entries}}
	if err := snap.Err(); !errors.Is(err, transform.ErrNumerical) {
		t.Errorf("Snapshot.Err() = %v, want ErrNumerical", err)
	}
	dropped := snap.DropFailed()
	if len(dropped.Stations["Equator"]) != 11 {
		t.Errorf("DropFailed kept %d entries, want 11", len(dropped.Stations["Equator"]))
	}
	if dropped.Err() != nil {
		t.Errorf("DropFailed snapshot still has errors: %v", dropped.Err())
	}
	if len(snap.Stations["Equator"]) != 12 {
		t.Error("DropFailed mutated the original snapshot")
	}
	if c := snap.Counts()["Equator"]; c.Failed != 1 || c.Visible+c.Hidden != 11 {
		t.Errorf("Counts = %+v", c)
	}
}

func TestTrackerCancelled(t *testing.T) {
	prop, err := propagation.NewPropagator(testConfig(), propagation.PropConfig{Workers: 2}, testLogger())
	if err != nil {
		t.Fatalf("NewPropagator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTracker(prop, testLogger()).Snapshot(ctx, stations, constellation.DefaultEpoch, policy); !errors.Is(err, context.Canceled) {
		t.Errorf("Snapshot error = %v, want context.Canceled", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-02-06T04:00:00Z", time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC), false},
		{"2026-02-06T06:00:00+02:00", time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC), false},
		{"0", cfg.Epoch, false},
		{"90.5", cfg.Epoch.Add(90500 * time.Millisecond), false},
		{"-60", cfg.Epoch.Add(-time.Minute), false},
		{"yesterday", time.Time{}, true},
		{"NaN", time.Time{}, true},
		{"12abc", time.Time{}, true},
		{"9e9", cfg.Epoch.Add(9e9 * time.Second), false},
		{"1e10", time.Time{}, true},
		{"-1e12", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in, cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
