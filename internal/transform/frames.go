package transform

import (
	"math"

	"github.com/star/walkertrack/internal/orbit"
)

// Matrix3 is a row-major 3×3 matrix.
type Matrix3 [3][3]float64

// Apply returns m·v.
func (m Matrix3) Apply(v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// PerifocalToECEFMatrix returns R3(-Ω)·R1(-i)·R3(-ω) for RAAN Ω, inclination i
// and argument of periapsis ω (degrees). Expanded element by element:
//
//	m11 =  cosΩ cosω - sinΩ sinω cos i
//	m12 = -cosΩ sinω - sinΩ cosω cos i
//	m13 =  sinΩ sin i
//	m21 =  sinΩ cosω + cosΩ sinω cos i
//	m22 = -sinΩ sinω + cosΩ cosω cos i
//	m23 = -cosΩ sin i
//	m31 =  sinω sin i
//	m32 =  cosω sin i
//	m33 =  cos i
func PerifocalToECEFMatrix(raanDeg, inclinationDeg, argPeriapsisDeg float64) Matrix3 {
	sO, cO := math.Sincos(raanDeg * deg2rad)
	si, ci := math.Sincos(inclinationDeg * deg2rad)
	sw, cw := math.Sincos(argPeriapsisDeg * deg2rad)

	return Matrix3{
		{cO*cw - sO*sw*ci, -cO*sw - sO*cw*ci, sO * si},
		{sO*cw + cO*sw*ci, -sO*sw + cO*cw*ci, -cO * si},
		{sw * si, cw * si, ci},
	}
}

// ElementsToECEF places a satellite from its elements. The perifocal position
// (r cosθ, r sinθ, 0) uses r = a and θ = mean anomaly, which is the circular
// orbit simplification; it is wrong for eccentric orbits.
//
// The frame is Earth-fixed by construction: no sidereal rotation is applied.
func ElementsToECEF(e orbit.Elements) ECEF {
	r := e.SemiMajorAxisKm
	sinT, cosT := math.Sincos(e.MeanAnomalyDeg * deg2rad)
	m := PerifocalToECEFMatrix(e.RAANDeg, e.InclinationDeg, e.ArgPeriapsisDeg)
	v := m.Apply([3]float64{r * cosT, r * sinT, 0})
	return ECEF{X: v[0], Y: v[1], Z: v[2]}
}

// ElementsToGeodetic is ElementsToECEF followed by ECEFToGeodetic.
func ElementsToGeodetic(e orbit.Elements) (ECEF, Geodetic, error) {
	p := ElementsToECEF(e)
	g, err := ECEFToGeodetic(p)
	return p, g, err
}
