package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/passes"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/tracking"
	"github.com/star/walkertrack/internal/transform"
)

const (
	defaultPassHours = 24
	maxPassHours     = 72
	defaultMaxPasses = 10
	maxMaxPasses     = 100
)

// snapshotResponse is the body of the snapshot endpoints.
type snapshotResponse struct {
	*tracking.Snapshot
	Counts map[string]tracking.Count `json:"counts"`
	Cached bool                      `json:"cached"`
}

func newSnapshotResponse(s *tracking.Snapshot, cached bool) snapshotResponse {
	return snapshotResponse{Snapshot: s, Counts: s.Counts(), Cached: cached}
}

// onlyStation narrows a snapshot to one station's entries.
func onlyStation(s *tracking.Snapshot, name string) *tracking.Snapshot {
	out := *s
	out.Stations = map[string][]tracking.Entry{name: s.Stations[name]}
	return &out
}

// snapshotHandler serves a tracking snapshot. Without t and with the cache's
// own masks it answers from the cache when it can; anything else is computed
// on demand.
func snapshotHandler(logger *slog.Logger, tracker *tracking.Tracker, snapCache *cache.SnapshotCache, store *station.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := store.Get()
		if reg == nil {
			writeError(w, http.StatusServiceUnavailable, "no stations loaded")
			return
		}

		q := r.URL.Query()
		defaults := snapCache.Config().Policy
		var policy tracking.Policy
		var err error
		if policy.VisibilityMaskDeg, err = queryFloat(r, "visibility_mask", defaults.VisibilityMaskDeg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if policy.SlewMaskDeg, err = queryFloat(r, "slew_mask", defaults.SlewMaskDeg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dropFailed, err := queryBool(r, "drop_failed")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		stations := reg.Stations
		name := q.Get("station")
		if name != "" {
			st, ok := reg.Lookup(name)
			if !ok {
				writeError(w, http.StatusNotFound, fmt.Sprintf("unknown station %q", name))
				return
			}
			stations = []transform.GroundStation{st}
		}

		var (
			snap   *tracking.Snapshot
			cached bool
		)
		if q.Get("t") == "" && policy == defaults {
			snap = snapCache.Get(time.Now())
			cached = snap != nil
		}
		if snap == nil {
			t, err := queryTime(r, tracker.Propagator().Catalogue().Config)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			snap, err = tracker.Snapshot(r.Context(), stations, t, policy)
			if err != nil {
				status := computeStatus(err)
				if status == http.StatusInternalServerError {
					logger.Warn("snapshot failed", "component", "api", "error", err)
				}
				writeError(w, status, err.Error())
				return
			}
		} else if name != "" {
			snap = onlyStation(snap, name)
		}

		if dropFailed {
			snap = snap.DropFailed()
		}
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap, cached))
	}
}

// passesHandler predicts passes over one station. The window is capped at
// maxPassHours to bound the CPU a single request can take.
func passesHandler(logger *slog.Logger, cat *propagation.Catalogue, store *station.Store, defaults tracking.Policy, workers int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("station")
		if name == "" {
			writeError(w, http.StatusBadRequest, "station is required")
			return
		}
		reg := store.Get()
		if reg == nil {
			writeError(w, http.StatusServiceUnavailable, "no stations loaded")
			return
		}
		st, ok := reg.Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown station %q", name))
			return
		}

		hours, err := queryFloat(r, "hours", defaultPassHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if hours > maxPassHours {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":     fmt.Sprintf("hours %v exceeds the maximum", hours),
				"max_hours": maxPassHours,
			})
			return
		}
		if !(hours > 0) {
			writeError(w, http.StatusBadRequest, "hours must be positive")
			return
		}

		minEl, err := queryFloat(r, "min_elevation", defaults.VisibilityMaskDeg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if minEl < -90 || minEl > 90 {
			writeError(w, http.StatusBadRequest, "min_elevation must be within [-90,90]")
			return
		}

		maxPasses := defaultMaxPasses
		if v := r.URL.Query().Get("max_passes"); v != "" {
			maxPasses, err = strconv.Atoi(v)
			if err != nil || maxPasses < 1 || maxPasses > maxMaxPasses {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("max_passes must be an integer in [1,%d]", maxMaxPasses))
				return
			}
		}

		start, err := queryTime(r, cat.Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		began := time.Now()
		results := passes.Predict(r.Context(), passes.Request{
			Station:         st,
			Catalogue:       cat,
			Start:           start,
			HorizonHours:    hours,
			MinElevationDeg: minEl,
			MaxPasses:       maxPasses,
			Workers:         workers,
		})
		logger.Debug("passes predicted",
			"component", "api",
			"station", st.Name,
			"hours", hours,
			"duration_ms", time.Since(began).Milliseconds(),
		)

		writeJSON(w, http.StatusOK, map[string]any{
			"station":       st,
			"start":         start,
			"hours":         hours,
			"min_elevation": minEl,
			"satellites":    results,
		})
	}
}
