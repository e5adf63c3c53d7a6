package stream

import (
	"time"

	"github.com/star/walkertrack/internal/tracking"
)

// Stream message payload types.

type metadataMessage struct {
	Type             string          `json:"type"`
	StationSource    string          `json:"station_source"`
	StationsLoadedAt string          `json:"stations_loaded_at"`
	Stations         []string        `json:"stations"`
	Policy           tracking.Policy `json:"policy"`
	StepSeconds      int             `json:"step_seconds"`
}

type snapshotMessage struct {
	Type     string                    `json:"type"`
	T        string                    `json:"t"`
	Stations map[string][]entryPayload `json:"stations"`
}

// entryPayload is the compact wire form of a tracking.Entry.
type entryPayload struct {
	ID    int     `json:"id"`
	Az    float64 `json:"az"`
	El    float64 `json:"el"`
	Range float64 `json:"range_km"`
	Vis   bool    `json:"vis"`
	Slew  bool    `json:"slew"`
	Err   string  `json:"err,omitempty"`
}

// streamParams are the per-connection query options.
type streamParams struct {
	step       time.Duration
	station    string // empty streams every station
	dropFailed bool
}

// buildSnapshotMessage formats a snapshot into the stream payload, keeping
// only the requested station when p.station is set.
func buildSnapshotMessage(s *tracking.Snapshot, p streamParams) snapshotMessage {
	if p.dropFailed {
		s = s.DropFailed()
	}

	stations := make(map[string][]entryPayload, len(s.Stations))
	for name, entries := range s.Stations {
		if p.station != "" && name != p.station {
			continue
		}
		out := make([]entryPayload, len(entries))
		for i, e := range entries {
			out[i] = entryPayload{
				ID:    e.SatelliteID,
				Az:    e.Angles.AzimuthDeg,
				El:    e.Angles.ElevationDeg,
				Range: e.Angles.RangeKm,
				Vis:   e.Visible,
				Slew:  e.Angles.Slew.SlewRequired,
				Err:   e.Error,
			}
		}
		stations[name] = out
	}

	return snapshotMessage{
		Type:     "snapshot",
		T:        s.Timestamp.UTC().Format(time.RFC3339),
		Stations: stations,
	}
}
