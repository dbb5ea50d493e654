// Package stations holds the affiliate station registry. Each station entry
// carries the connection details needed to query its newsroom system.
package stations

import (
	"fmt"
	"sort"
)

// Station describes one affiliate station's newsroom endpoints.
type Station struct {
	// ServerAddress is the proxy video server prefix used as the search
	// query term, e.g. "http://WESH-CONT1.companynet.org:10456/proxy/".
	ServerAddress string `json:"server_address" validate:"required"`
	// Database is the newsroom database name for this station.
	Database string `json:"database" validate:"required"`
	// Basepath is the newsroom location searched for this station's scripts.
	Basepath string `json:"basepath" validate:"required"`
}

// Registry provides lookups over the configured station table.
type Registry struct {
	stations map[string]Station
}

// NewRegistry builds a registry from a station table, typically loaded from
// configuration.
func NewRegistry(stations map[string]Station) *Registry {
	if stations == nil {
		stations = make(map[string]Station)
	}
	return &Registry{stations: stations}
}

// Get returns the configuration for a station.
func (r *Registry) Get(name string) (Station, error) {
	station, ok := r.stations[name]
	if !ok {
		return Station{}, fmt.Errorf("station not found: %s", name)
	}
	return station, nil
}

// ServerAddress returns the proxy video server prefix for a station.
func (r *Registry) ServerAddress(name string) (string, error) {
	station, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return station.ServerAddress, nil
}

// Names returns all known station names in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.stations))
	for name := range r.stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamesExcluding returns all known station names except the given one, in a
// stable order. Used by the force-share path, which distributes to every
// station but the origin.
func (r *Registry) NamesExcluding(exclude string) []string {
	names := make([]string, 0, len(r.stations))
	for name := range r.stations {
		if name == exclude {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured stations.
func (r *Registry) Len() int {
	return len(r.stations)
}
