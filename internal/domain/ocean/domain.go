package ocean

import (
	"encoding/json"
	"fmt"
)

// Domain identifies one external environmental-data family.
type Domain string

const (
	ProfilingFloat Domain = "profiling_float"
	TidalCurrent   Domain = "tidal_current"
	SatelliteColor Domain = "satellite_color"
	OceanForecast  Domain = "ocean_forecast"
)

// Domains lists every domain in canonical order. Prompt sections, metadata
// and cache sweeps iterate in this order.
var Domains = []Domain{ProfilingFloat, TidalCurrent, SatelliteColor, OceanForecast}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case ProfilingFloat, TidalCurrent, SatelliteColor, OceanForecast:
		return true
	}
	return false
}

// Title is the human readable name used in prompts.
func (d Domain) Title() string {
	switch d {
	case ProfilingFloat:
		return "Argo profiling floats"
	case TidalCurrent:
		return "Tides and currents"
	case SatelliteColor:
		return "Satellite ocean colour"
	case OceanForecast:
		return "Marine forecast"
	default:
		return string(d)
	}
}

// ParseDomain converts a wire string into a Domain.
func ParseDomain(raw string) (Domain, error) {
	d := Domain(raw)
	if !d.Valid() {
		return "", fmt.Errorf("unknown ocean domain %q", raw)
	}
	return d, nil
}

// DomainSet is an unordered set of domains. The zero value is an empty,
// read-only set; use NewDomainSet before calling Add.
type DomainSet map[Domain]struct{}

// NewDomainSet builds a set from the given domains.
func NewDomainSet(domains ...Domain) DomainSet {
	set := make(DomainSet, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

// Add inserts d into the set.
func (s DomainSet) Add(d Domain) {
	s[d] = struct{}{}
}

// Has reports membership.
func (s DomainSet) Has(d Domain) bool {
	_, ok := s[d]
	return ok
}

// Len returns the number of members.
func (s DomainSet) Len() int {
	return len(s)
}

// List returns members in canonical order.
func (s DomainSet) List() []Domain {
	out := make([]Domain, 0, len(s))
	for _, d := range Domains {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// MarshalJSON encodes the set as an ordered array.
func (s DomainSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes an array of domain names.
func (s *DomainSet) UnmarshalJSON(data []byte) error {
	var raw []Domain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewDomainSet(raw...)
	return nil
}
