package ocean

import "time"

// SourceInfo records where a domain's dataset came from.
type SourceInfo struct {
	Label          string    `json:"label"`
	CacheHit       bool      `json:"cacheHit"`
	FetchedAt      time.Time `json:"fetchedAt,omitempty"`
	DegradedReason string    `json:"degradedReason,omitempty"`
}

// AggregatedDataset is the merged, best-effort view over every requested
// domain. Each requested domain is present in PerDomain, either with live
// data (Succeeded) or with its fallback sample (Degraded).
type AggregatedDataset struct {
	Region    Region                `json:"region"`
	PerDomain map[Domain]Dataset    `json:"perDomain"`
	Succeeded DomainSet             `json:"succeededDomains"`
	Degraded  DomainSet             `json:"degradedDomains"`
	Sources   map[Domain]SourceInfo `json:"sources"`
}

// NewAggregatedDataset returns an empty aggregate for region.
func NewAggregatedDataset(region Region) AggregatedDataset {
	return AggregatedDataset{
		Region:    region,
		PerDomain: make(map[Domain]Dataset),
		Succeeded: NewDomainSet(),
		Degraded:  NewDomainSet(),
		Sources:   make(map[Domain]SourceInfo),
	}
}

// Empty reports whether no domain was requested.
func (a AggregatedDataset) Empty() bool {
	return len(a.PerDomain) == 0
}

// MarkSucceeded records live data for a domain.
func (a AggregatedDataset) MarkSucceeded(ds Dataset, info SourceInfo) {
	a.PerDomain[ds.Domain] = ds
	a.Succeeded.Add(ds.Domain)
	delete(a.Degraded, ds.Domain)
	a.Sources[ds.Domain] = info
}

// MarkDegraded records a fallback substitution for a domain.
func (a AggregatedDataset) MarkDegraded(ds Dataset, label, reason string) {
	a.PerDomain[ds.Domain] = ds
	a.Degraded.Add(ds.Domain)
	delete(a.Succeeded, ds.Domain)
	a.Sources[ds.Domain] = SourceInfo{Label: label, DegradedReason: reason}
}
