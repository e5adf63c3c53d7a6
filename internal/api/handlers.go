package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/links"
	"github.com/star/walkertrack/internal/orbit"
	"github.com/star/walkertrack/internal/propagation"
	"github.com/star/walkertrack/internal/tracking"
	"github.com/star/walkertrack/internal/transform"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// computeStatus maps an engine error to a response code. Configuration errors
// are the caller's fault; anything else is ours.
func computeStatus(err error) int {
	if errors.Is(err, constellation.ErrConfiguration) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// queryTime reads the t parameter, defaulting to now.
func queryTime(r *http.Request, cfg constellation.Config) (time.Time, error) {
	v := r.URL.Query().Get("t")
	if v == "" {
		return time.Now().UTC(), nil
	}
	return tracking.ParseTimestamp(v, cfg)
}

// queryFloat reads a float parameter, returning def when absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return f, nil
}

// queryBool reads a boolean parameter, returning false when absent.
func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, v)
	}
	return b, nil
}

type satellitePayload struct {
	ID       int                 `json:"id"`
	Name     string              `json:"name"`
	Plane    int                 `json:"plane"`
	Slot     int                 `json:"slot"`
	Elements orbit.Elements      `json:"elements"`
	ECEF     *transform.ECEF     `json:"ecef,omitempty"`
	Geodetic *transform.Geodetic `json:"geodetic,omitempty"`
}

type failurePayload struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

func constellationHandler(cat *propagation.Catalogue) http.HandlerFunc {
	sats := make([]satellitePayload, len(cat.Satellites))
	for i, s := range cat.Satellites {
		sats[i] = satellitePayload{ID: s.ID, Name: s.Name, Plane: s.Plane, Slot: s.Slot, Elements: cat.Elements[i]}
	}
	var period float64
	if len(cat.Elements) > 0 {
		period = orbit.Period(cat.Elements[0])
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"config":         cat.Config,
			"period_seconds": period,
			"satellites":     sats,
		})
	}
}

func positionsHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := queryTime(r, prop.Catalogue().Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		kf, err := prop.PropagateToTime(r.Context(), t)
		if err != nil {
			logger.Warn("propagation failed", "component", "api", "error", err)
			writeError(w, http.StatusInternalServerError, "propagation failed")
			return
		}

		sats := make([]satellitePayload, len(kf.Satellites))
		for i, p := range kf.Satellites {
			sats[i] = satellitePayload{
				ID: p.ID, Name: p.Name, Plane: p.Plane, Slot: p.Slot,
				Elements: p.Elements,
				ECEF:     &p.ECEF,
				Geodetic: &p.Geodetic,
			}
		}
		failures := make([]failurePayload, len(kf.Failures))
		for i, f := range kf.Failures {
			failures[i] = failurePayload{ID: f.ID, Name: f.Name, Error: f.Err.Error()}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp":  kf.Timestamp,
			"satellites": sats,
			"failures":   failures,
		})
	}
}

func linksHandler(logger *slog.Logger, prop *propagation.Propagator, cfg links.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := queryTime(r, prop.Catalogue().Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		activeOnly, err := queryBool(r, "active")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		kf, err := prop.PropagateToTime(r.Context(), t)
		if err != nil {
			logger.Warn("propagation failed", "component", "api", "error", err)
			writeError(w, http.StatusInternalServerError, "propagation failed")
			return
		}

		all := links.Build(kf, cfg)
		active := links.ActiveOnly(all)
		out := all
		if out == nil {
			out = []links.Link{}
		}
		if activeOnly {
			out = active
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": kf.Timestamp,
			"total":     len(all),
			"active":    len(active),
			"links":     out,
		})
	}
}

type trackPoint struct {
	ID       int                `json:"id"`
	Geodetic transform.Geodetic `json:"geodetic"`
}

type keyframePayload struct {
	Timestamp  time.Time        `json:"timestamp"`
	Satellites []trackPoint     `json:"satellites"`
	Failures   []failurePayload `json:"failures,omitempty"`
}

// keyframesHandler serves the sub-satellite points over the configured
// keyframe horizon, starting at t.
func keyframesHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := queryTime(r, prop.Catalogue().Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		kfs, err := prop.GenerateKeyframes(r.Context(), start)
		if err != nil {
			logger.Warn("keyframe generation failed", "component", "api", "error", err)
			writeError(w, http.StatusInternalServerError, "keyframe generation failed")
			return
		}

		out := make([]keyframePayload, len(kfs))
		for i, kf := range kfs {
			p := keyframePayload{Timestamp: kf.Timestamp, Satellites: make([]trackPoint, len(kf.Satellites))}
			for j, s := range kf.Satellites {
				p.Satellites[j] = trackPoint{ID: s.ID, Geodetic: s.Geodetic}
			}
			for _, f := range kf.Failures {
				p.Failures = append(p.Failures, failurePayload{ID: f.ID, Name: f.Name, Error: f.Err.Error()})
			}
			out[i] = p
		}

		cfg := prop.Config()
		writeJSON(w, http.StatusOK, map[string]any{
			"step_seconds":    cfg.Step.Seconds(),
			"horizon_seconds": cfg.Horizon.Seconds(),
			"keyframes":       out,
		})
	}
}
