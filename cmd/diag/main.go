// Command diag prints one tracking snapshot of the default constellation as a
// table per ground station.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/walkertrack/internal/constellation"
	"github.com/star/walkertrack/internal/station"
	"github.com/star/walkertrack/internal/tracking"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Background(lipgloss.Color("235"))
	rowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const (
	colorVisHigh   = "#7CFC00" // above 45°
	colorVisMedium = "#FFD700" // above the visibility mask
	colorVisLow    = "#FF6347" // above the horizon
	colorVisNone   = "#444444" // below the horizon
)

func main() {
	stationsPath := flag.String("stations", "", "station YAML file (built-in stations when empty)")
	at := flag.String("t", "", "RFC 3339 timestamp or seconds since the epoch (default now)")
	visibility := flag.Float64("visibility", 10, "visibility mask in degrees")
	slew := flag.Float64("slew", 5, "slew mask in degrees")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := constellation.DefaultConfig()

	reg := station.Builtin()
	if *stationsPath != "" {
		var err error
		reg, err = station.NewSource(*stationsPath, nil, logger).Load(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("ERROR loading stations: "+err.Error()))
			os.Exit(1)
		}
	}

	ts := time.Now().UTC()
	if *at != "" {
		var err error
		ts, err = tracking.ParseTimestamp(*at, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("ERROR: "+err.Error()))
			os.Exit(1)
		}
	}

	policy := tracking.Policy{VisibilityMaskDeg: *visibility, SlewMaskDeg: *slew}
	snap, err := tracking.Compute(cfg, reg.Stations, ts, policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("ERROR: "+err.Error()))
		os.Exit(1)
	}

	render(os.Stdout, cfg, snap)
}

// gmstDeg is the Greenwich sidereal angle at t.
func gmstDeg(t time.Time) float64 {
	t = t.UTC()
	rad := satellite.GSTimeFromDate(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return rad * 180 / math.Pi
}

// earthRotationDeg is how far the Earth has turned between epoch and t, in
// [0,360). Station longitudes are fixed in the engine frame, so this is the
// longitude drift a rotating frame would have applied.
func earthRotationDeg(epoch, t time.Time) float64 {
	d := math.Mod(gmstDeg(t)-gmstDeg(epoch), 360)
	if d < 0 {
		d += 360
	}
	return d
}

func render(w io.Writer, cfg constellation.Config, snap *tracking.Snapshot) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Walker %.0f°:%d/%d/%d at %.0f km",
		cfg.InclinationDeg, cfg.TotalSatellites, cfg.Planes, cfg.Phasing, cfg.AltitudeKm)))
	epoch := cfg.Epoch
	if epoch.IsZero() {
		epoch = constellation.DefaultEpoch
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("t = %s  (%+.0f s from epoch)",
		snap.Timestamp.Format(time.RFC3339), cfg.ElapsedSeconds(snap.Timestamp))))
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("earth rotation not modelled: %.2f° since epoch",
		earthRotationDeg(epoch, snap.Timestamp))))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("visibility mask %.1f°  slew mask %.1f°",
		snap.Policy.VisibilityMaskDeg, snap.Policy.SlewMaskDeg)))

	counts := snap.Counts()
	for _, name := range snap.StationNames() {
		c := counts[name]
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(name)+dimStyle.Render(fmt.Sprintf("  %d visible, %d hidden, %d failed", c.Visible, c.Hidden, c.Failed)))
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-8s %8s %8s %10s %4s %5s", "SAT", "AZ", "EL", "RANGE km", "VIS", "SLEW")))

		for _, e := range snap.Stations[name] {
			if e.Err != nil {
				fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%-8s %s", e.Name, e.Error)))
				continue
			}
			a := e.Angles
			el := colorByElevation(a.ElevationDeg, snap.Policy.VisibilityMaskDeg).Render(fmt.Sprintf("%8.2f", a.ElevationDeg))
			fmt.Fprintln(w, strings.Join([]string{
				rowStyle.Render(fmt.Sprintf("%-8s %8.2f", e.Name, a.AzimuthDeg)),
				el,
				rowStyle.Render(fmt.Sprintf("%10.1f %4s %5s", a.RangeKm, yesNo(e.Visible), yesNo(a.Slew.SlewRequired))),
			}, " "))
		}
	}
}

func colorByElevation(el, mask float64) lipgloss.Style {
	color := colorVisNone
	switch {
	case el > 45:
		color = colorVisHigh
	case el > mask:
		color = colorVisMedium
	case el > 0:
		color = colorVisLow
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
