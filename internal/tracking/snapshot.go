// Package tracking computes tracking snapshots: look angles from every ground
// station to every satellite of the constellation at one timestamp.
package tracking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/transform"
)

// Policy holds the two independent elevation thresholds. Neither has a default.
type Policy struct {
	VisibilityMaskDeg float64 `json:"visibility_mask_deg"` // above: counted as trackable
	SlewMaskDeg       float64 `json:"slew_mask_deg"`       // above: antenna should be steered
}

// Validate checks that both masks are elevations.
func (p Policy) Validate() error {
	if math.IsNaN(p.VisibilityMaskDeg) || p.VisibilityMaskDeg < -90 || p.VisibilityMaskDeg > 90 {
		return &constellation.ConfigurationError{Field: "visibility_mask_deg", Reason: fmt.Sprintf("must be within [-90,90], got %v", p.VisibilityMaskDeg)}
	}
	if math.IsNaN(p.SlewMaskDeg) || p.SlewMaskDeg < -90 || p.SlewMaskDeg > 90 {
		return &constellation.ConfigurationError{Field: "slew_mask_deg", Reason: fmt.Sprintf("must be within [-90,90], got %v", p.SlewMaskDeg)}
	}
	return nil
}

// Entry is one station/satellite pair. When Err is set the angles are zero
// and must not be used.
type Entry struct {
	SatelliteID int                  `json:"satellite_id"`
	Name        string               `json:"name"`
	Angles      transform.LookAngles `json:"angles"`
	Visible     bool                 `json:"visible"`
	Err         error                `json:"-"`
	Error       string               `json:"error,omitempty"`
}

// Snapshot is the tracking state at one timestamp. Each station's entries are
// ordered by satellite ID.
type Snapshot struct {
	Timestamp  time.Time                       `json:"timestamp"`
	Policy     Policy                          `json:"policy"`
	Stations   map[string][]Entry              `json:"stations"`
	Satellites []propagation.SatellitePosition `json:"-"`
}

// Err joins every per-pair error, or returns nil when all pairs succeeded.
func (s *Snapshot) Err() error {
	var errs []error
	for _, name := range s.StationNames() {
		for _, e := range s.Stations[name] {
			if e.Err != nil {
				errs = append(errs, fmt.Errorf("station %s: %w", name, e.Err))
			}
		}
	}
	return errors.Join(errs...)
}

// DropFailed returns a copy without the entries that carry an error.
func (s *Snapshot) DropFailed() *Snapshot {
	out := &Snapshot{
		Timestamp:  s.Timestamp,
		Policy:     s.Policy,
		Stations:   make(map[string][]Entry, len(s.Stations)),
		Satellites: s.Satellites,
	}
	for name, entries := range s.Stations {
		kept := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.Err == nil {
				kept = append(kept, e)
			}
		}
		out.Stations[name] = kept
	}
	return out
}

// StationNames returns the station names in sorted order.
func (s *Snapshot) StationNames() []string {
	names := make([]string, 0, len(s.Stations))
	for name := range s.Stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counts tallies visible, hidden and failed pairs per station.
func (s *Snapshot) Counts() map[string]Count {
	out := make(map[string]Count, len(s.Stations))
	for name, entries := range s.Stations {
		var c Count
		for _, e := range entries {
			switch {
			case e.Err != nil:
				c.Failed++
			case e.Visible:
				c.Visible++
			default:
				c.Hidden++
			}
		}
		out[name] = c
	}
	return out
}

// Count is a per-station tally.
type Count struct {
	Visible int `json:"visible"`
	Hidden  int `json:"hidden"`
	Failed  int `json:"failed"`
}

// ValidateStations rejects empty or duplicate names and out-of-range
// coordinates. Station names key the snapshot, so they must be unique.
func ValidateStations(stations []transform.GroundStation) error {
	seen := make(map[string]bool, len(stations))
	for i, st := range stations {
		field := fmt.Sprintf("stations[%d]", i)
		switch {
		case st.Name == "":
			return &constellation.ConfigurationError{Field: field, Reason: "name is empty"}
		case seen[st.Name]:
			return &constellation.ConfigurationError{Field: field, Reason: fmt.Sprintf("duplicate name %q", st.Name)}
		case math.IsNaN(st.LatDeg) || st.LatDeg < -90 || st.LatDeg > 90:
			return &constellation.ConfigurationError{Field: field, Reason: fmt.Sprintf("latitude %v outside [-90,90]", st.LatDeg)}
		case math.IsNaN(st.LonDeg) || st.LonDeg < -180 || st.LonDeg > 180:
			return &constellation.ConfigurationError{Field: field, Reason: fmt.Sprintf("longitude %v outside [-180,180]", st.LonDeg)}
		case math.IsNaN(st.AltKm) || math.IsInf(st.AltKm, 0):
			return &constellation.ConfigurationError{Field: field, Reason: "altitude is not finite"}
		}
		seen[st.Name] = true
	}
	return nil
}

// Compute computes a snapshot sequentially. It is the reference
// implementation: Tracker must produce identical output.
//
// A configuration error (constellation, stations or policy) aborts with no
// snapshot. Per-satellite numerical errors are recorded on the affected
// entries.
func Compute(cfg constellation.Config, stations []transform.GroundStation, timestamp time.Time, policy Policy) (*Snapshot, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateStations(stations); err != nil {
		return nil, err
	}
	cat, err := propagation.NewCatalogue(cfg)
	if err != nil {
		return nil, err
	}

	positions, failures := cat.PositionsAt(cfg.ElapsedSeconds(timestamp))

	snap := newSnapshot(timestamp, policy, positions, len(stations))
	for _, st := range stations {
		snap.Stations[st.Name] = stationEntries(transform.NewObserver(st), positions, failures, policy)
	}
	return snap, nil
}

func newSnapshot(ts time.Time, policy Policy, positions []propagation.SatellitePosition, stations int) *Snapshot {
	return &Snapshot{
		Timestamp:  ts,
		Policy:     policy,
		Stations:   make(map[string][]Entry, stations),
		Satellites: positions,
	}
}

// stationEntries merges positions and failures (both sorted by ID) into one
// ID-ordered list of entries for a single observer.
func stationEntries(obs transform.Observer, positions []propagation.SatellitePosition, failures []propagation.SatelliteFailure, policy Policy) []Entry {
	entries := make([]Entry, 0, len(positions)+len(failures))
	i, j := 0, 0
	for i < len(positions) || j < len(failures) {
		if j >= len(failures) || (i < len(positions) && positions[i].ID < failures[j].ID) {
			entries = append(entries, lookEntry(obs, positions[i], policy))
			i++
			continue
		}
		f := failures[j]
		entries = append(entries, failedEntry(f.ID, f.Name, f.Err))
		j++
	}
	return entries
}

func lookEntry(obs transform.Observer, pos propagation.SatellitePosition, policy Policy) Entry {
	la, err := obs.LookAt(pos.Geodetic, policy.SlewMaskDeg)
	if err != nil {
		return failedEntry(pos.ID, pos.Name, fmt.Errorf("satellite %s: %w", pos.Name, err))
	}
	return Entry{
		SatelliteID: pos.ID,
		Name:        pos.Name,
		Angles:      la,
		Visible:     la.ElevationDeg > policy.VisibilityMaskDeg,
	}
}

func failedEntry(id int, name string, err error) Entry {
	return Entry{SatelliteID: id, Name: name, Err: err, Error: err.Error()}
}

// maxOffsetSeconds is the largest epoch offset a time.Duration can hold.
const maxOffsetSeconds = float64(math.MaxInt64) / 1e9

// ParseTimestamp accepts either an RFC 3339 timestamp or a number of seconds
// since the constellation epoch.
func ParseTimestamp(s string, cfg constellation.Config) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("timestamp %q is neither RFC 3339 nor seconds since epoch", s)
	}
	if math.Abs(secs) > maxOffsetSeconds {
		return time.Time{}, fmt.Errorf("timestamp %q is more than %.4g s from the epoch", s, maxOffsetSeconds)
	}
	epoch := cfg.Epoch
	if epoch.IsZero() {
		epoch = constellation.DefaultEpoch
	}
	return epoch.Add(time.Duration(secs * float64(time.Second))).UTC(), nil
}
