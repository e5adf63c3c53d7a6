package constellation

import (
	"fmt"
	"math"

	"github.com/star/walkertrack/internal/orbit"
)

// Satellite identifies one member of the constellation.
// IDs are 1-based in plane-major order.
type Satellite struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Plane int    `json:"plane"`
	Slot  int    `json:"slot"`
}

// Generate maps a (plane, slot) position to its orbital elements at the epoch.
//
//	a    = EarthRadiusKm + AltitudeKm
//	RAAN = plane·360/P mod 360
//	M    = slot·360/S + plane·F·360/T mod 360
//
// Orbits are circular with zero argument of periapsis.
func Generate(plane, slot int, cfg Config) (orbit.Elements, error) {
	if err := cfg.Validate(); err != nil {
		return orbit.Elements{}, err
	}
	if plane < 0 || plane >= cfg.Planes {
		return orbit.Elements{}, &ConfigurationError{Field: "plane", Reason: fmt.Sprintf("%d out of range [0,%d)", plane, cfg.Planes)}
	}
	if slot < 0 || slot >= cfg.SatellitesPerPlane {
		return orbit.Elements{}, &ConfigurationError{Field: "slot", Reason: fmt.Sprintf("%d out of range [0,%d)", slot, cfg.SatellitesPerPlane)}
	}

	p := float64(plane)
	raan := p * 360.0 / float64(cfg.Planes)
	m := float64(slot)*360.0/float64(cfg.SatellitesPerPlane) +
		p*float64(cfg.Phasing)*360.0/float64(cfg.TotalSatellites)

	return orbit.Elements{
		SemiMajorAxisKm: EarthRadiusKm + cfg.AltitudeKm,
		Eccentricity:    0,
		InclinationDeg:  cfg.InclinationDeg,
		RAANDeg:         orbit.NormalizeDeg(raan),
		ArgPeriapsisDeg: 0,
		MeanAnomalyDeg:  orbit.NormalizeDeg(m),
	}, nil
}

// Satellites lists every satellite of a valid config in ID order.
func Satellites(cfg Config) ([]Satellite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width := int(math.Log10(float64(cfg.TotalSatellites))) + 1
	if width < 2 {
		width = 2
	}
	sats := make([]Satellite, 0, cfg.TotalSatellites)
	for plane := 0; plane < cfg.Planes; plane++ {
		for slot := 0; slot < cfg.SatellitesPerPlane; slot++ {
			id := plane*cfg.SatellitesPerPlane + slot + 1
			sats = append(sats, Satellite{
				ID:    id,
				Name:  fmt.Sprintf("SAT-%0*d", width, id),
				Plane: plane,
				Slot:  slot,
			})
		}
	}
	return sats, nil
}

// ElementsFor generates the epoch elements of sat.
func ElementsFor(sat Satellite, cfg Config) (orbit.Elements, error) {
	return Generate(sat.Plane, sat.Slot, cfg)
}
