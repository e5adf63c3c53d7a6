// Package orbit holds classical orbital elements and the two-body propagator
// used for circular Walker-Delta orbits.
package orbit

import "math"

// MuEarth is Earth's standard gravitational parameter in km³/s².
const MuEarth = 398600.4418

// Elements are the classical orbital elements of one satellite.
// All angles are degrees normalized to [0, 360).
type Elements struct {
	SemiMajorAxisKm float64 `json:"semi_major_axis_km"`
	Eccentricity    float64 `json:"eccentricity"`
	InclinationDeg  float64 `json:"inclination_deg"`
	RAANDeg         float64 `json:"raan_deg"`
	ArgPeriapsisDeg float64 `json:"arg_periapsis_deg"`
	MeanAnomalyDeg  float64 `json:"mean_anomaly_deg"`
}

// NormalizeDeg wraps an angle in degrees into [0, 360).
func NormalizeDeg(deg float64) float64 {
	wrapped := math.Mod(deg, 360.0)
	if wrapped < 0 {
		wrapped += 360.0
	}
	// math.Mod(-1e-17, 360) + 360 rounds to exactly 360.
	if wrapped >= 360.0 {
		wrapped = 0
	}
	return wrapped
}
