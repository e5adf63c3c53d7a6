// Package station loads and holds the ground station registry.
package station

import (
	"time"

	"github.com/star/walkertrack/internal/transform"
)

// BuiltinSource names the registry used when no station file is configured.
const BuiltinSource = "builtin"

// Registry is one loaded set of ground stations.
type Registry struct {
	Source   string
	LoadedAt time.Time
	Stations []transform.GroundStation
}

// DefaultStations returns the built-in station list.
func DefaultStations() []transform.GroundStation {
	return []transform.GroundStation{{Name: "Equator", LatDeg: 0, LonDeg: 0, AltKm: 0}}
}

// Builtin returns a registry holding DefaultStations.
func Builtin() *Registry {
	return &Registry{Source: BuiltinSource, LoadedAt: time.Now().UTC(), Stations: DefaultStations()}
}

// Lookup finds a station by name.
func (r *Registry) Lookup(name string) (transform.GroundStation, bool) {
	for _, st := range r.Stations {
		if st.Name == name {
			return st, true
		}
	}
	return transform.GroundStation{}, false
}
