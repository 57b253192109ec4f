package aggregation

import (
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

// CacheConfig controls entry lifetimes.
type CacheConfig struct {
	// TTL holds per-domain lifetimes; fast-moving domains expire sooner.
	TTL        map[ocean.Domain]time.Duration
	DefaultTTL time.Duration
	// StoreTimeout bounds writes made after the requesting caller left.
	StoreTimeout time.Duration
}

// DefaultCacheConfig mirrors the shipped configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: map[ocean.Domain]time.Duration{
			ocean.TidalCurrent:   15 * time.Minute,
			ocean.OceanForecast:  time.Hour,
			ocean.ProfilingFloat: 6 * time.Hour,
			ocean.SatelliteColor: 24 * time.Hour,
		},
		DefaultTTL:   time.Hour,
		StoreTimeout: 2 * time.Second,
	}
}

// OrchestratorConfig bounds the fan-out.
type OrchestratorConfig struct {
	// FetchDeadline caps the whole fan-in.
	FetchDeadline time.Duration
	// AdapterTimeout caps each upstream call.
	AdapterTimeout time.Duration
}
