package transform

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestWGS84Constants(t *testing.T) {
	if math.Abs(WGS84E2-0.00669437999014) > 1e-14 {
		t.Errorf("WGS84E2 = %.14f, want 0.00669437999014", WGS84E2)
	}
}

func TestGeodeticToECEF_Altitude(t *testing.T) {
	p0 := GeodeticToECEF(Geodetic{})
	p100 := GeodeticToECEF(Geodetic{AltKm: 0.1})
	if d := p100.Norm() - p0.Norm(); math.Abs(d-0.1) > 1e-9 {
		t.Errorf("altitude difference = %.9f km, want 0.1", d)
	}
}

// TestGeodeticRoundTrip converts 1000 random positions with |lat| <= 85° to
// ECEF and back; every component must agree within one metre.
func TestGeodeticRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(20260206))
	const metre = 1e-3 // km

	for i := 0; i < 1000; i++ {
		in := Geodetic{
			LatDeg: rng.Float64()*170 - 85,
			LonDeg: 180 - rng.Float64()*360,
			AltKm:  rng.Float64()*40000 - 1,
		}
		if in.LonDeg <= -180 {
			in.LonDeg = 180
		}

		out, err := ECEFToGeodetic(GeodeticToECEF(in))
		if err != nil {
			t.Fatalf("point %d %+v: %v", i, in, err)
		}

		// Convert angular error to a surface distance at the point's radius.
		radius := WGS84A + in.AltKm
		dLat := math.Abs(out.LatDeg-in.LatDeg) * deg2rad * radius
		dLonDeg := math.Abs(out.LonDeg - in.LonDeg)
		if dLonDeg > 180 {
			dLonDeg = 360 - dLonDeg
		}
		dLon := dLonDeg * deg2rad * radius * math.Cos(in.LatDeg*deg2rad)
		dAlt := math.Abs(out.AltKm - in.AltKm)

		if dLat > metre || dLon > metre || dAlt > metre {
			t.Errorf("point %d: %+v -> %+v (dlat=%.3e km dlon=%.3e km dalt=%.3e km)", i, in, out, dLat, dLon, dAlt)
		}
	}
}

func TestECEFToGeodetic_LongitudeRange(t *testing.T) {
	tests := []struct {
		p    ECEF
		want float64
	}{
		{ECEF{X: -7000, Y: 0}, 180},
		{ECEF{X: -7000, Y: math.Copysign(0, -1)}, 180},
		{ECEF{X: 0, Y: -7000}, -90},
		{ECEF{X: 7000, Y: 0}, 0},
	}
	for _, tt := range tests {
		g, err := ECEFToGeodetic(tt.p)
		if err != nil {
			t.Fatalf("ECEFToGeodetic(%+v): %v", tt.p, err)
		}
		if math.Abs(g.LonDeg-tt.want) > 1e-12 || g.LonDeg <= -180 || g.LonDeg > 180 {
			t.Errorf("ECEFToGeodetic(%+v).LonDeg = %v, want %v", tt.p, g.LonDeg, tt.want)
		}
	}
}

func TestECEFToGeodetic_Pole(t *testing.T) {
	g, err := ECEFToGeodetic(ECEF{Z: 6356.752314245 + 100})
	if err != nil {
		t.Fatalf("ECEFToGeodetic: %v", err)
	}
	if math.Abs(g.LatDeg-90) > 1e-9 {
		t.Errorf("LatDeg = %v, want 90", g.LatDeg)
	}
	if math.Abs(g.AltKm-100) > 1e-6 {
		t.Errorf("AltKm = %v, want 100", g.AltKm)
	}
}

func TestECEFToGeodetic_Errors(t *testing.T) {
	tests := []struct {
		name string
		p    ECEF
	}{
		{"NaN", ECEF{X: math.NaN(), Y: 1, Z: 1}},
		{"Inf", ECEF{X: 1, Y: math.Inf(-1), Z: 1}},
		{"centre", ECEF{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ECEFToGeodetic(tt.p)
			if !errors.Is(err, ErrNumerical) {
				t.Fatalf("error = %v, want ErrNumerical", err)
			}
			var ne *NumericalError
			if !errors.As(err, &ne) {
				t.Errorf("error %T is not *NumericalError", err)
			}
		})
	}
}

// TestECEFToGeodeticMatchesGoSatellite cross-checks the conversion against
// go-satellite's ECIToLLA. With a zero sidereal angle the inertial input is the
// Earth-fixed position, so both must agree.
func TestECEFToGeodeticMatchesGoSatellite(t *testing.T) {
	points := []ECEF{
		{X: 21378.137, Y: 0, Z: 0},
		{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
		{X: -4400.594, Y: 1932.870, Z: 4760.712},
		{X: 12000, Y: -9000, Z: -14000},
	}
	for _, p := range points {
		ours, err := ECEFToGeodetic(p)
		if err != nil {
			t.Fatalf("ECEFToGeodetic(%+v): %v", p, err)
		}
		alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: p.X, Y: p.Y, Z: p.Z}, 0)

		if d := math.Abs(ours.LatDeg - ll.Latitude*rad2deg); d > 1e-6 {
			t.Errorf("%+v: lat = %.9f, go-satellite = %.9f", p, ours.LatDeg, ll.Latitude*rad2deg)
		}
		if d := math.Abs(ours.LonDeg - ll.Longitude*rad2deg); d > 1e-9 {
			t.Errorf("%+v: lon = %.9f, go-satellite = %.9f", p, ours.LonDeg, ll.Longitude*rad2deg)
		}
		if d := math.Abs(ours.AltKm - alt); d > 1e-3 {
			t.Errorf("%+v: alt = %.6f km, go-satellite = %.6f km", p, ours.AltKm, alt)
		}
	}
}
