package propagation

import (
	"fmt"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/orbit"
	"github.com/star/walkertrack/internal/transform"
)

// PositionAt runs one satellite through propagate → ECEF → geodetic.
// epochElements are the satellite's elements at the constellation epoch.
func PositionAt(sat constellation.Satellite, epochElements orbit.Elements, elapsedSeconds float64) (SatellitePosition, error) {
	el := orbit.Propagate(epochElements, elapsedSeconds)
	ecef, geo, err := transform.ElementsToGeodetic(el)
	if err != nil {
		return SatellitePosition{}, fmt.Errorf("satellite %s: %w", sat.Name, err)
	}
	return SatellitePosition{
		ID:       sat.ID,
		Name:     sat.Name,
		Plane:    sat.Plane,
		Slot:     sat.Slot,
		Elements: el,
		ECEF:     ecef,
		Geodetic: geo,
	}, nil
}

// Catalogue is a validated constellation with its epoch elements generated once.
type Catalogue struct {
	Config     constellation.Config
	Satellites []constellation.Satellite
	Elements   []orbit.Elements // indexed like Satellites
}

// NewCatalogue validates cfg and generates the elements of every satellite.
// Any configuration error aborts.
func NewCatalogue(cfg constellation.Config) (*Catalogue, error) {
	sats, err := constellation.Satellites(cfg)
	if err != nil {
		return nil, err
	}
	els := make([]orbit.Elements, len(sats))
	for i, s := range sats {
		el, err := constellation.ElementsFor(s, cfg)
		if err != nil {
			return nil, err
		}
		els[i] = el
	}
	return &Catalogue{Config: cfg, Satellites: sats, Elements: els}, nil
}

// PositionsAt computes every satellite position sequentially. It is the
// reference the worker pool must reproduce exactly.
func (c *Catalogue) PositionsAt(elapsedSeconds float64) ([]SatellitePosition, []SatelliteFailure) {
	positions := make([]SatellitePosition, 0, len(c.Satellites))
	var failures []SatelliteFailure
	for i, s := range c.Satellites {
		pos, err := PositionAt(s, c.Elements[i], elapsedSeconds)
		if err != nil {
			failures = append(failures, SatelliteFailure{ID: s.ID, Name: s.Name, Err: err})
			continue
		}
		positions = append(positions, pos)
	}
	return positions, failures
}
