// Package transform converts between orbital elements, Earth-fixed Cartesian
// coordinates (ECEF) and geodetic coordinates, and computes topocentric look
// angles from ground stations.
//
// All distances are kilometres and all angles exposed to callers are degrees.
// The Earth model is the WGS-84 ellipsoid.
package transform

import (
	"errors"
	"fmt"
	"math"
)

// WGS-84 ellipsoid parameters.
const (
	WGS84A  = 6378.137                 // semi-major axis (km)
	WGS84F  = 1.0 / 298.257223563      // flattening
	WGS84E2 = 2*WGS84F - WGS84F*WGS84F // first eccentricity squared
)

// geodeticIterations is the fixed iteration count of ECEFToGeodetic.
const geodeticIterations = 5

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// ErrNumerical is the sentinel wrapped by every NumericalError.
var ErrNumerical = errors.New("numerical failure")

// NumericalError reports a conversion that could not produce finite results.
// It is scoped to a single position; callers decide whether to drop or abort.
type NumericalError struct {
	Op     string
	Reason string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNumerical, e.Reason)
}

func (e *NumericalError) Unwrap() error {
	return ErrNumerical
}

// ECEF is an Earth-centred, Earth-fixed position in kilometres.
type ECEF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the distance from the Earth's centre.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Sub returns p - q.
func (p ECEF) Sub(q ECEF) ECEF {
	return ECEF{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Dot returns the dot product p·q.
func (p ECEF) Dot(q ECEF) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

func (p ECEF) finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Geodetic is a position on or above the WGS-84 ellipsoid.
// Latitude is in [-90, 90], longitude in (-180, 180].
type Geodetic struct {
	LatDeg float64 `json:"lat"`
	LonDeg float64 `json:"lon"`
	AltKm  float64 `json:"alt_km"`
}

// primeVerticalRadius is N(φ) = a / sqrt(1 - e² sin²φ).
func primeVerticalRadius(sinLat float64) float64 {
	return WGS84A / math.Sqrt(1-WGS84E2*sinLat*sinLat)
}

// GeodeticToECEF converts a geodetic position to ECEF (direct, non-iterative).
func GeodeticToECEF(g Geodetic) ECEF {
	lat := g.LatDeg * deg2rad
	lon := g.LonDeg * deg2rad

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := primeVerticalRadius(sinLat)

	return ECEF{
		X: (n + g.AltKm) * cosLat * cosLon,
		Y: (n + g.AltKm) * cosLat * sinLon,
		Z: (n*(1-WGS84E2) + g.AltKm) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF to geodetic coordinates with a fixed number of
// fixed-point iterations:
//
//	N   = a / sqrt(1 - e² sin²φ)
//	h   = p / cos φ - N
//	φ'  = atan2(z, p (1 - e² N / (N + h)))
//
// where p = sqrt(x² + y²). There is no convergence test; five iterations are
// ample for |φ| < 89°. Closer to the poles cos φ approaches zero and the
// height is taken from the polar form h = |z|/|sin φ| - N(1 - e²) instead.
//
// Non-finite input, a position at the Earth's centre or a non-finite result
// yields a *NumericalError.
func ECEFToGeodetic(p ECEF) (Geodetic, error) {
	if !p.finite() {
		return Geodetic{}, &NumericalError{Op: "ecef to geodetic", Reason: fmt.Sprintf("non-finite input (%v, %v, %v)", p.X, p.Y, p.Z)}
	}
	if p.X == 0 && p.Y == 0 && p.Z == 0 {
		return Geodetic{}, &NumericalError{Op: "ecef to geodetic", Reason: "degenerate position at the Earth's centre"}
	}

	lon := math.Atan2(p.Y, p.X)
	if lon <= -math.Pi {
		lon = math.Pi
	}
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-WGS84E2))
	for i := 0; i < geodeticIterations; i++ {
		n := primeVerticalRadius(math.Sin(lat))
		h := heightAbove(rho, p.Z, lat, n)
		lat = math.Atan2(p.Z, rho*(1-WGS84E2*n/(n+h)))
	}

	n := primeVerticalRadius(math.Sin(lat))
	alt := heightAbove(rho, p.Z, lat, n)

	g := Geodetic{
		LatDeg: lat * rad2deg,
		LonDeg: math.Min(lon*rad2deg, 180),
		AltKm:  alt,
	}
	if !isFinite(g.LatDeg) || !isFinite(g.LonDeg) || !isFinite(g.AltKm) {
		return Geodetic{}, &NumericalError{Op: "ecef to geodetic", Reason: fmt.Sprintf("non-finite result %+v", g)}
	}
	return g, nil
}

func heightAbove(rho, z, lat, n float64) float64 {
	sinLat, cosLat := math.Sincos(lat)
	if math.Abs(cosLat) > 1e-10 {
		return rho/cosLat - n
	}
	return math.Abs(z)/math.Abs(sinLat) - n*(1-WGS84E2)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
