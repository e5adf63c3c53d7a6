package propagation

import (
	"time"

	"github.com/star/walkertrack/internal/orbit"
	"github.com/star/walkertrack/internal/transform"
)

// Keyframe holds the positions of all satellites at a single point in time.
// Satellites and Failures are ordered by satellite ID.
type Keyframe struct {
	Timestamp  time.Time
	Satellites []SatellitePosition
	Failures   []SatelliteFailure
}

// SatellitePosition holds a single satellite's state at a keyframe time.
type SatellitePosition struct {
	ID       int
	Name     string
	Plane    int
	Slot     int
	Elements orbit.Elements     // propagated elements
	ECEF     transform.ECEF     // km
	Geodetic transform.Geodetic // deg, deg, km
}

// SatelliteFailure records a satellite whose position could not be computed.
// There is deliberately no fallback position.
type SatelliteFailure struct {
	ID   int
	Name string
	Err  error
}

// PropConfig holds propagation configuration loaded from environment variables.
type PropConfig struct {
	Workers int           // Worker pool size (default: runtime.NumCPU())
	Step    time.Duration // Keyframe interval (default: 5s)
	Horizon time.Duration // Propagation horizon (default: 600s)
}
