package constellation

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		field   string
	}{
		{"default", func(*Config) {}, false, ""},
		{"zero planes", func(c *Config) { c.Planes = 0 }, true, "planes"},
		{"negative slots", func(c *Config) { c.SatellitesPerPlane = -1 }, true, "satellites_per_plane"},
		{"zero altitude", func(c *Config) { c.AltitudeKm = 0 }, true, "altitude_km"},
		{"NaN altitude", func(c *Config) { c.AltitudeKm = math.NaN() }, true, "altitude_km"},
		{"infinite altitude", func(c *Config) { c.AltitudeKm = math.Inf(1) }, true, "altitude_km"},
		{"NaN inclination", func(c *Config) { c.InclinationDeg = math.NaN() }, true, "inclination_deg"},
		{"infinite inclination", func(c *Config) { c.InclinationDeg = math.Inf(-1) }, true, "inclination_deg"},
		{"total mismatch", func(c *Config) { c.TotalSatellites = 13 }, true, "total_satellites"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("error %v: want ConfigurationError on field %q", err, tt.field)
			}
		})
	}
}

func TestGenerateFormulas(t *testing.T) {
	cfg := DefaultConfig()
	el, err := Generate(2, 3, cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if el.SemiMajorAxisKm != EarthRadiusKm+15000 {
		t.Errorf("SemiMajorAxisKm = %v", el.SemiMajorAxisKm)
	}
	if el.RAANDeg != 240 {
		t.Errorf("RAANDeg = %v, want 240", el.RAANDeg)
	}
	// 3*90 + 2*1*30 = 330.
	if math.Abs(el.MeanAnomalyDeg-330) > 1e-9 {
		t.Errorf("MeanAnomalyDeg = %v, want 330", el.MeanAnomalyDeg)
	}
	if el.Eccentricity != 0 || el.ArgPeriapsisDeg != 0 || el.InclinationDeg != 55 {
		t.Errorf("unexpected shape elements: %+v", el)
	}
}

func TestGenerateWrapsMeanAnomaly(t *testing.T) {
	cfg := Config{TotalSatellites: 4, Planes: 2, SatellitesPerPlane: 2, AltitudeKm: 500, InclinationDeg: 90, Phasing: 3}
	// slot 1, plane 1: 180 + 1*3*90 = 450 -> 90.
	el, err := Generate(1, 1, cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if math.Abs(el.MeanAnomalyDeg-90) > 1e-9 {
		t.Errorf("MeanAnomalyDeg = %v, want 90", el.MeanAnomalyDeg)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a, _ := Generate(1, 2, cfg)
	b, _ := Generate(1, 2, cfg)
	if a != b {
		t.Errorf("Generate not deterministic: %+v vs %+v", a, b)
	}
}

func TestGenerateInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name        string
		plane, slot int
		cfg         Config
	}{
		{"bad config", 0, 0, Config{Planes: 0, SatellitesPerPlane: 4, AltitudeKm: 100}},
		{"plane too large", 3, 0, cfg},
		{"negative plane", -1, 0, cfg},
		{"slot too large", 0, 4, cfg},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.plane, tt.slot, tt.cfg)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Generate(%d,%d) error = %v, want ErrConfiguration", tt.plane, tt.slot, err)
			}
		})
	}
}

func TestDistinctCoverage(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{TotalSatellites: 24, Planes: 6, SatellitesPerPlane: 4, AltitudeKm: 1200, InclinationDeg: 53, Phasing: 5},
		{TotalSatellites: 6, Planes: 1, SatellitesPerPlane: 6, AltitudeKm: 800, InclinationDeg: 98, Phasing: 0},
	}
	for _, cfg := range configs {
		type pair struct{ raan, m float64 }
		seen := make(map[pair]bool)
		for plane := 0; plane < cfg.Planes; plane++ {
			for slot := 0; slot < cfg.SatellitesPerPlane; slot++ {
				el, err := Generate(plane, slot, cfg)
				if err != nil {
					t.Fatalf("Generate(%d,%d): %v", plane, slot, err)
				}
				if el.RAANDeg < 0 || el.RAANDeg >= 360 || el.MeanAnomalyDeg < 0 || el.MeanAnomalyDeg >= 360 {
					t.Errorf("angles out of range: %+v", el)
				}
				p := pair{el.RAANDeg, el.MeanAnomalyDeg}
				if seen[p] {
					t.Errorf("%d/%d/%d: duplicate (raan, M) = %v", cfg.TotalSatellites, cfg.Planes, cfg.Phasing, p)
				}
				seen[p] = true
			}
		}
		if len(seen) != cfg.TotalSatellites {
			t.Errorf("got %d distinct pairs, want %d", len(seen), cfg.TotalSatellites)
		}
	}
}

func TestSatellitesCatalogue(t *testing.T) {
	sats, err := Satellites(DefaultConfig())
	if err != nil {
		t.Fatalf("Satellites: %v", err)
	}
	if len(sats) != 12 {
		t.Fatalf("got %d satellites, want 12", len(sats))
	}
	for i, s := range sats {
		if s.ID != i+1 {
			t.Errorf("sats[%d].ID = %d", i, s.ID)
		}
	}
	if sats[0].Name != "SAT-01" || sats[11].Name != "SAT-12" {
		t.Errorf("names = %q..%q", sats[0].Name, sats[11].Name)
	}
	if sats[5].Plane != 1 || sats[5].Slot != 1 {
		t.Errorf("sats[5] = %+v, want plane 1 slot 1", sats[5])
	}

	big := Config{TotalSatellites: 120, Planes: 10, SatellitesPerPlane: 12, AltitudeKm: 550, InclinationDeg: 53}
	sats, _ = Satellites(big)
	if sats[0].Name != "SAT-001" {
		t.Errorf("name width for 120 satellites = %q, want SAT-001", sats[0].Name)
	}
}

func TestElapsedSeconds(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ElapsedSeconds(DefaultEpoch.Add(90 * time.Second)); got != 90 {
		t.Errorf("ElapsedSeconds = %v, want 90", got)
	}
	cfg.Epoch = time.Time{}
	if got := cfg.ElapsedSeconds(DefaultEpoch.Add(-time.Minute)); got != -60 {
		t.Errorf("zero epoch ElapsedSeconds = %v, want -60", got)
	}
	if got := cfg.ElapsedSeconds(DefaultEpoch.Add(1500 * time.Millisecond)); got != 1.5 {
		t.Errorf("ElapsedSeconds = %v, want 1.5", got)
	}

	// Beyond the range of time.Duration.
	for _, years := range []int{500, -500} {
		got := cfg.ElapsedSeconds(DefaultEpoch.AddDate(years, 0, 0))
		lo, hi := float64(years)*365*86400, float64(years)*366*86400
		if years < 0 {
			lo, hi = hi, lo
		}
		if got < lo || got > hi {
			t.Errorf("ElapsedSeconds(%+d years) = %v, want within [%v, %v]", years, got, lo, hi)
		}
	}
}
