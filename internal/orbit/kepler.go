package orbit

import "math"

// Period returns the orbital period in seconds from Kepler's third law.
func Period(e Elements) float64 {
	a := e.SemiMajorAxisKm
	return 2 * math.Pi * math.Sqrt(a*a*a/MuEarth)
}

// MeanMotionDegPerSec returns the mean motion in degrees per second.
func MeanMotionDegPerSec(e Elements) float64 {
	return 360.0 / Period(e)
}

// Propagate advances the elements by elapsedSeconds (negative looks back) and
// returns a new value. Only the mean anomaly changes.
//
// Mean anomaly is treated as equal to true anomaly downstream. That holds only
// for circular orbits (eccentricity 0); eccentric orbits would need a Kepler
// equation solve (M = E - e·sinE) which this package does not provide.
func Propagate(e Elements, elapsedSeconds float64) Elements {
	if elapsedSeconds == 0 {
		return e
	}
	out := e
	out.MeanAnomalyDeg = NormalizeDeg(e.MeanAnomalyDeg + MeanMotionDegPerSec(e)*elapsedSeconds)
	return out
}
