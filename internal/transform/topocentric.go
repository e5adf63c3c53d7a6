package transform

import (
	"fmt"
	"math"
)

// GroundStation is a named observer on the WGS-84 ellipsoid. Owned by the caller.
type GroundStation struct {
	Name   string  `json:"name" yaml:"name"`
	LatDeg float64 `json:"lat" yaml:"latitude"`
	LonDeg float64 `json:"lon" yaml:"longitude"`
	AltKm  float64 `json:"alt_km" yaml:"altitude_km"`
}

// Slew describes antenna steering toward a target.
type Slew struct {
	AzimuthRateDegPerSec   float64 `json:"azimuth_rate_deg_per_sec"`
	ElevationRateDegPerSec float64 `json:"elevation_rate_deg_per_sec"`
	SlewRequired           bool    `json:"slew_required"`
}

// LookAngles holds azimuth, elevation and range from a station to a target.
type LookAngles struct {
	AzimuthDeg     float64 `json:"azimuth"`   // 0 = North, clockwise, [0, 360)
	ElevationDeg   float64 `json:"elevation"` // 0 = horizon, 90 = zenith
	RangeKm        float64 `json:"range_km"`
	DeclinationDeg float64 `json:"declination"` // 90 - elevation
	Slew           Slew    `json:"slew"`
}

// Observer is a ground station with its ECEF position and ENU rotation terms
// precomputed so they can be reused across many satellite lookups.
type Observer struct {
	Station GroundStation
	ECEF    ECEF

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// NewObserver precomputes the station's ECEF position and trigonometry.
func NewObserver(s GroundStation) Observer {
	sinLat, cosLat := math.Sincos(s.LatDeg * deg2rad)
	sinLon, cosLon := math.Sincos(s.LonDeg * deg2rad)
	return Observer{
		Station: s,
		ECEF:    GeodeticToECEF(Geodetic{LatDeg: s.LatDeg, LonDeg: s.LonDeg, AltKm: s.AltKm}),
		sinLat:  sinLat,
		cosLat:  cosLat,
		sinLon:  sinLon,
		cosLon:  cosLon,
	}
}

// ENU rotates an ECEF difference vector into the observer's local
// East-North-Up frame:
//
//	e = -sinλ dx + cosλ dy
//	n = -sinφ cosλ dx - sinφ sinλ dy + cosφ dz
//	u =  cosφ cosλ dx + cosφ sinλ dy + sinφ dz
func (o Observer) ENU(d ECEF) (east, north, up float64) {
	east = -o.sinLon*d.X + o.cosLon*d.Y
	north = -o.sinLat*o.cosLon*d.X - o.sinLat*o.sinLon*d.Y + o.cosLat*d.Z
	up = o.cosLat*o.cosLon*d.X + o.cosLat*o.sinLon*d.Y + o.sinLat*d.Z
	return east, north, up
}

// LookAt computes look angles to a satellite at the given geodetic position.
// slewMaskDeg is the elevation above which the antenna should be steered; it
// has no default.
//
// Angular rates are reported as zero.
// TODO: derive slew rates by finite-differencing look angles over a small Δt
// (or projecting the ECEF velocity into ENU) once the tracker carries velocity.
func (o Observer) LookAt(sat Geodetic, slewMaskDeg float64) (LookAngles, error) {
	d := GeodeticToECEF(sat).Sub(o.ECEF)
	rng := d.Norm()
	if !isFinite(rng) {
		return LookAngles{}, &NumericalError{Op: "look angles", Reason: fmt.Sprintf("non-finite range to %+v", sat)}
	}
	if rng == 0 {
		return LookAngles{}, &NumericalError{Op: "look angles", Reason: "satellite coincides with station"}
	}

	east, north, up := o.ENU(d)

	az := math.Atan2(east, north) * rad2deg
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az = 0
	}

	s := up / rng
	s = math.Max(-1, math.Min(1, s))
	el := math.Asin(s) * rad2deg

	return LookAngles{
		AzimuthDeg:     az,
		ElevationDeg:   el,
		RangeKm:        rng,
		DeclinationDeg: 90 - el,
		Slew: Slew{
			SlewRequired: el > slewMaskDeg,
		},
	}, nil
}

// ComputeLookAngles computes look angles from a station to a satellite.
func ComputeLookAngles(station GroundStation, sat Geodetic, slewMaskDeg float64) (LookAngles, error) {
	return NewObserver(station).LookAt(sat, slewMaskDeg)
}
