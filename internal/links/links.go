// Package links derives inter-satellite link candidates from a keyframe.
//
// Satellites in the same orbital plane or in adjacent planes may be linked.
// A candidate is active when the straight segment between the two satellites
// stays above the grazing altitude.
package links

import (
	"math"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/transform"
)

// SpeedOfLightKmPerSec is c in vacuum.
const SpeedOfLightKmPerSec = 299792.458

// DefaultGrazingAltitudeKm keeps optical links out of the dense atmosphere.
const DefaultGrazingAltitudeKm = 80

// Config controls link selection.
type Config struct {
	Planes            int     // number of orbital planes in the constellation
	GrazingAltitudeKm float64 // minimum altitude of the link segment
}

// NewConfig returns the link configuration for a constellation with the
// default grazing altitude.
func NewConfig(cfg constellation.Config) Config {
	return Config{Planes: cfg.Planes, GrazingAltitudeKm: DefaultGrazingAltitudeKm}
}

// Link is one candidate between two satellites, SourceID < TargetID.
type Link struct {
	SourceID  int     `json:"source_id"`
	Source    string  `json:"source"`
	TargetID  int     `json:"target_id"`
	Target    string  `json:"target"`
	SamePlane bool    `json:"same_plane"`
	RangeKm   float64 `json:"range_km"`
	LatencyMs float64 `json:"latency_ms"` // one-way light time
	Active    bool    `json:"active"`
}

// Build returns every link candidate between the satellites of kf, ordered by
// (SourceID, TargetID). Satellites that failed propagation are absent from the
// keyframe and therefore take part in no link.
func Build(kf *propagation.Keyframe, cfg Config) []Link {
	sats := kf.Satellites
	clearance := constellation.EarthRadiusKm + cfg.GrazingAltitudeKm

	var out []Link
	for i := range sats {
		for j := i + 1; j < len(sats); j++ {
			a, b := sats[i], sats[j]
			if !Adjacent(a.Plane, b.Plane, cfg.Planes) {
				continue
			}
			rng := b.ECEF.Sub(a.ECEF).Norm()
			out = append(out, Link{
				SourceID:  a.ID,
				Source:    a.Name,
				TargetID:  b.ID,
				Target:    b.Name,
				SamePlane: a.Plane == b.Plane,
				RangeKm:   rng,
				LatencyMs: rng / SpeedOfLightKmPerSec * 1000,
				Active:    LineOfSight(a.ECEF, b.ECEF, clearance),
			})
		}
	}
	return out
}

// ActiveOnly filters links down to the active ones.
func ActiveOnly(links []Link) []Link {
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}

// Adjacent reports whether planes p and q are the same or neighbours. With
// more than two planes the last plane neighbours the first.
func Adjacent(p, q, planes int) bool {
	d := p - q
	if d < 0 {
		d = -d
	}
	if d <= 1 {
		return true
	}
	return planes > 2 && d == planes-1
}

// LineOfSight reports whether the segment p1→p2 stays strictly outside the
// sphere of the given radius centred on the Earth's centre.
func LineOfSight(p1, p2 transform.ECEF, radiusKm float64) bool {
	r2 := radiusKm * radiusKm
	d := p2.Sub(p1)
	dd := d.Dot(d)
	if dd == 0 {
		return p1.Dot(p1) > r2
	}

	// Closest point of the segment to the origin.
	t := math.Max(0, math.Min(1, -p1.Dot(d)/dd))
	closest := transform.ECEF{X: p1.X + t*d.X, Y: p1.Y + t*d.Y, Z: p1.Z + t*d.Z}
	return closest.Dot(closest) > r2
}
