// Package constellation describes a Walker-Delta constellation and maps each
// (plane, slot) position to deterministic orbital elements.
package constellation

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthRadiusKm is the WGS-84 equatorial radius. Altitudes are measured from it.
const EarthRadiusKm = 6378.137

// DefaultEpoch is the engine epoch (J2000.0). Elements generated from a
// Config describe the constellation at this instant.
var DefaultEpoch = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// ErrConfiguration is the sentinel wrapped by every ConfigurationError.
var ErrConfiguration = errors.New("invalid constellation configuration")

// ConfigurationError reports an invalid Config or an out-of-range satellite
// position. It is a programmer error and is never worth retrying.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// Config is a Walker-Delta pattern i:T/P/F plus the shell altitude.
type Config struct {
	TotalSatellites    int       `json:"total_satellites"`
	Planes             int       `json:"planes"`
	SatellitesPerPlane int       `json:"satellites_per_plane"`
	AltitudeKm         float64   `json:"altitude_km"`
	InclinationDeg     float64   `json:"inclination_deg"`
	Phasing            int       `json:"phasing"`
	Epoch              time.Time `json:"epoch"`
}

// DefaultConfig returns the 12/3/1 MEO pattern at 55° inclination.
func DefaultConfig() Config {
	return Config{
		TotalSatellites:    12,
		Planes:             3,
		SatellitesPerPlane: 4,
		AltitudeKm:         15000,
		InclinationDeg:     55,
		Phasing:            1,
		Epoch:              DefaultEpoch,
	}
}

// Validate checks the structural invariants of the pattern.
func (c Config) Validate() error {
	switch {
	case c.Planes <= 0:
		return &ConfigurationError{Field: "planes", Reason: fmt.Sprintf("must be >= 1, got %d", c.Planes)}
	case c.SatellitesPerPlane <= 0:
		return &ConfigurationError{Field: "satellites_per_plane", Reason: fmt.Sprintf("must be >= 1, got %d", c.SatellitesPerPlane)}
	case !(c.AltitudeKm > 0) || math.IsInf(c.AltitudeKm, 0):
		return &ConfigurationError{Field: "altitude_km", Reason: fmt.Sprintf("must be finite and > 0, got %v", c.AltitudeKm)}
	case math.IsNaN(c.InclinationDeg) || math.IsInf(c.InclinationDeg, 0):
		return &ConfigurationError{Field: "inclination_deg", Reason: fmt.Sprintf("must be finite, got %v", c.InclinationDeg)}
	case c.TotalSatellites != c.Planes*c.SatellitesPerPlane:
		return &ConfigurationError{
			Field:  "total_satellites",
			Reason: fmt.Sprintf("must equal planes*satellites_per_plane (%d), got %d", c.Planes*c.SatellitesPerPlane, c.TotalSatellites),
		}
	}
	return nil
}

// ElapsedSeconds converts an absolute timestamp into seconds since the
// configured epoch. A zero Epoch means DefaultEpoch.
func (c Config) ElapsedSeconds(t time.Time) float64 {
	epoch := c.Epoch
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	// Time.Sub saturates past ~292 years; whole seconds and nanoseconds do not.
	return float64(t.Unix()-epoch.Unix()) + float64(t.Nanosecond()-epoch.Nanosecond())/1e9
}
