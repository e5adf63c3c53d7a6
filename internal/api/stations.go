package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/star/walkertrack/internal/cache"
	"github.com/star/walkertrack/internal/station"
)

func stationsHandler(store *station.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := store.Get()
		if reg == nil {
			writeError(w, http.StatusServiceUnavailable, "no stations loaded")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"source":      reg.Source,
			"loaded_at":   reg.LoadedAt,
			"age_seconds": store.AgeSeconds(),
			"stations":    reg.Stations,
		})
	}
}

// reloadHandler re-reads the station source. The snapshot cache notices the
// new registry on its next tick and rebuilds.
func reloadHandler(logger *slog.Logger, store *station.Store, src *station.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			writeError(w, http.StatusConflict, "no station source configured")
			return
		}

		reg, err := store.Reload(r.Context(), src)
		if err != nil {
			logger.Warn("station reload failed",
				"component", "api",
				"source", src.Location(),
				"error", err,
			)
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		logger.Info("stations reloaded",
			"component", "api",
			"source", reg.Source,
			"stations", len(reg.Stations),
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"source":    reg.Source,
			"loaded_at": reg.LoadedAt,
			"stations":  len(reg.Stations),
		})
	}
}

func cacheLatestHandler(snapCache *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapCache.GetLatest()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "snapshot cache is not warm")
			return
		}
		writeJSON(w, http.StatusOK, newSnapshotResponse(snap, true))
	}
}

type cacheStatsResponse struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
	Warm            bool      `json:"warm"`
	StepSeconds     float64   `json:"step_seconds"`
	HorizonSeconds  float64   `json:"horizon_seconds"`
}

func cacheStatsHandler(snapCache *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := snapCache.Stats()
		cfg := snapCache.Config()
		writeJSON(w, http.StatusOK, cacheStatsResponse{
			Entries:         s.Entries,
			SizeBytes:       s.SizeBytes,
			OldestTimestamp: s.OldestTimestamp,
			NewestTimestamp: s.NewestTimestamp,
			Hits:            s.Hits,
			Misses:          s.Misses,
			Evictions:       s.Evictions,
			InGracePeriod:   s.InGracePeriod,
			Warm:            s.Warm,
			StepSeconds:     cfg.Step.Seconds(),
			HorizonSeconds:  cfg.Horizon.Seconds(),
		})
	}
}
