package passes

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/orbit"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AltitudeKm float64   `json:"altitude_km"`
	Elevation  float64   `json:"elevation"` // degrees above the station's horizon
}

// PassEvent describes a single satellite pass over a ground station.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	SatelliteID int         `json:"satellite_id"`
	Name        string      `json:"name"`
	Passes      []PassEvent `json:"passes"`
	Error       string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Station         transform.GroundStation
	Catalogue       *propagation.Catalogue
	Start           time.Time
	HorizonHours    float64
	MinElevationDeg float64
	MaxPasses       int
	Workers         int // goroutine bound; runtime.NumCPU() when zero
}

const (
	coarseStepSec      = 30 // seconds between coarse scan steps
	fineStepSec        = 1  // seconds between fine scan steps
	groundTrackStepSec = 10 // seconds between ground track samples
	minPassDur         = 10 * time.Second
)

// Predict computes the passes of every catalogue satellite over the station.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
// Results are in catalogue order.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	sats := req.Catalogue.Satellites
	results := make([]SatellitePasses, len(sats))

	workers := req.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	sem := make(chan struct{}, workers)
	obs := transform.NewObserver(req.Station)
	var wg sync.WaitGroup

	for i, sat := range sats {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res := SatellitePasses{SatelliteID: sat.ID, Name: sat.Name}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				res.Error = "cancelled"
				results[i] = res
				return
			}

			tr := tracker{
				obs:     obs,
				sat:     sat,
				epochEl: req.Catalogue.Elements[i],
				cfg:     req.Catalogue.Config,
			}
			passes, err := tr.predict(ctx, req)
			res.Passes = passes
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
		}()
	}

	wg.Wait()
	return results
}

// tracker evaluates one satellite as seen from one station.
type tracker struct {
	obs     transform.Observer
	sat     constellation.Satellite
	epochEl orbit.Elements
	cfg     constellation.Config
}

// sample is the station's view of the satellite at one instant.
type sample struct {
	angles transform.LookAngles
	geo    transform.Geodetic
}

func (tr tracker) at(t time.Time) (sample, error) {
	pos, err := propagation.PositionAt(tr.sat, tr.epochEl, tr.cfg.ElapsedSeconds(t))
	if err != nil {
		return sample{}, err
	}
	la, err := tr.obs.LookAt(pos.Geodetic, 0)
	if err != nil {
		return sample{}, err
	}
	return sample{angles: la, geo: pos.Geodetic}, nil
}

// predict finds all passes for a single satellite. The first numerical error
// ends the scan; passes found before it are kept.
func (tr tracker) predict(ctx context.Context, req Request) ([]PassEvent, error) {
	end := req.Start.Add(time.Duration(req.HorizonHours * float64(time.Hour)))
	var passes []PassEvent

	// Coarse scan: step through the window looking for the mask to be cleared.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes, nil
		}

		s, err := tr.at(t)
		if err != nil {
			return passes, err
		}

		if s.angles.ElevationDeg < req.MinElevationDeg {
			t = t.Add(coarseStepSec * time.Second)
			continue
		}

		// Candidate window: fine scan to find the full pass.
		pass, windowEnd, err := tr.refine(ctx, t, req.Start, end, req.MinElevationDeg)
		if err != nil {
			return passes, err
		}
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStepSec * time.Second)
	}

	return passes, nil
}

// refine does a fine-grained scan around a coarse hit. It backs up one coarse
// step to find the rise, then scans forward to the set. It returns the pass
// and the time the scan stopped.
func (tr tracker) refine(ctx context.Context, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*PassEvent, time.Time, error) {
	searchStart := coarseHit.Add(-coarseStepSec * time.Second)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		pass     PassEvent
		wasAbove bool
		rose     bool
		set      bool
		last     sample
	)

	t := searchStart
	for t.Before(windowEnd) {
		if ctx.Err() != nil {
			break
		}

		s, err := tr.at(t)
		if err != nil {
			return nil, t, err
		}
		el := s.angles.ElevationDeg
		above := el >= minElev

		if above && !wasAbove && !rose {
			rose = true
			pass.StartTime = t
			pass.StartAzimuth = s.angles.AzimuthDeg
			pass.MaxElevation = el
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = s.angles.AzimuthDeg
		}

		if above && rose {
			if el > pass.MaxElevation {
				pass.MaxElevation = el
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = s.angles.AzimuthDeg
			}
			if int(t.Sub(pass.StartTime).Seconds())%groundTrackStepSec == 0 {
				pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{
					Time:       t,
					Latitude:   s.geo.LatDeg,
					Longitude:  s.geo.LonDeg,
					AltitudeKm: s.geo.AltKm,
					Elevation:  el,
				})
			}
		}

		if !above && wasAbove && rose {
			pass.EndTime = t
			pass.EndAzimuth = s.angles.AzimuthDeg
			set = true
			break
		}

		wasAbove = above
		last = s
		t = t.Add(fineStepSec * time.Second)
	}

	if !rose {
		return nil, t, nil
	}

	// Still above the mask when the window closed: end the pass on the last sample.
	if !set {
		pass.EndTime = t.Add(-fineStepSec * time.Second)
		pass.EndAzimuth = last.angles.AzimuthDeg
	}

	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	return &pass, t, nil
}
