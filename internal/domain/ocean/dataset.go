package ocean

import (
	"errors"
	"fmt"
	"time"
)

// FloatProfile is the latest profile reported by one Argo float.
type FloatProfile struct {
	PlatformID  string    `json:"platformId"`
	Time        time.Time `json:"time"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Pressure    float64   `json:"pressureDbar"`
	Temperature float64   `json:"temperatureC"`
	Salinity    float64   `json:"salinityPsu"`
}

// ProfilingFloatData summarizes float observations inside a region.
type ProfilingFloatData struct {
	Floats          []FloatProfile `json:"floats"`
	Observations    int            `json:"observations"`
	MeanTemperature float64        `json:"meanTemperatureC"`
	MeanSalinity    float64        `json:"meanSalinityPsu"`
}

// TideReading is one water level sample.
type TideReading struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"levelM"`
}

// TidalData is a water level series for one station.
type TidalData struct {
	StationID string        `json:"stationId"`
	Datum     string        `json:"datum"`
	Readings  []TideReading `json:"readings"`
	High      TideReading   `json:"high"`
	Low       TideReading   `json:"low"`
}

// SatelliteColorData summarizes a chlorophyll-a composite over a region.
type SatelliteColorData struct {
	Product         string    `json:"product"`
	CompositeTime   time.Time `json:"compositeTime"`
	Samples         int       `json:"samples"`
	MeanChlorophyll float64   `json:"meanChlorophyllMgM3"`
	MinChlorophyll  float64   `json:"minChlorophyllMgM3"`
	MaxChlorophyll  float64   `json:"maxChlorophyllMgM3"`
}

// ForecastHour is one hourly marine forecast step.
type ForecastHour struct {
	Time                  time.Time `json:"time"`
	WaveHeight            float64   `json:"waveHeightM"`
	SeaSurfaceTemperature float64   `json:"seaSurfaceTemperatureC"`
	CurrentVelocity       float64   `json:"currentVelocityKmh"`
}

// ForecastData is a marine forecast at a single point.
type ForecastData struct {
	Latitude      float64        `json:"latitude"`
	Longitude     float64        `json:"longitude"`
	Hours         []ForecastHour `json:"hours"`
	MaxWaveHeight float64        `json:"maxWaveHeightM"`
	MeanSST       float64        `json:"meanSeaSurfaceTemperatureC"`
}

// Dataset is the tagged result of one domain fetch. Exactly the payload
// matching Domain is set.
type Dataset struct {
	Domain         Domain              `json:"domain"`
	SourceURL      string              `json:"sourceUrl,omitempty"`
	ProfilingFloat *ProfilingFloatData `json:"profilingFloat,omitempty"`
	TidalCurrent   *TidalData          `json:"tidalCurrent,omitempty"`
	SatelliteColor *SatelliteColorData `json:"satelliteColor,omitempty"`
	OceanForecast  *ForecastData       `json:"oceanForecast,omitempty"`
}

// ErrEmptyDataset reports a payload with no usable observations.
var ErrEmptyDataset = errors.New("dataset has no observations")

// Validate checks the all-or-nothing shape: a known domain, exactly one
// payload matching it, and at least one observation.
func (d Dataset) Validate() error {
	if !d.Domain.Valid() {
		return fmt.Errorf("dataset domain %q invalid", d.Domain)
	}
	set := 0
	for _, present := range []bool{d.ProfilingFloat != nil, d.TidalCurrent != nil, d.SatelliteColor != nil, d.OceanForecast != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("dataset for %s carries %d payloads", d.Domain, set)
	}
	switch d.Domain {
	case ProfilingFloat:
		if d.ProfilingFloat == nil {
			return fmt.Errorf("dataset for %s missing payload", d.Domain)
		}
		if len(d.ProfilingFloat.Floats) == 0 {
			return ErrEmptyDataset
		}
	case TidalCurrent:
		if d.TidalCurrent == nil {
			return fmt.Errorf("dataset for %s missing payload", d.Domain)
		}
		if len(d.TidalCurrent.Readings) == 0 {
			return ErrEmptyDataset
		}
	case SatelliteColor:
		if d.SatelliteColor == nil {
			return fmt.Errorf("dataset for %s missing payload", d.Domain)
		}
		if d.SatelliteColor.Samples == 0 {
			return ErrEmptyDataset
		}
	case OceanForecast:
		if d.OceanForecast == nil {
			return fmt.Errorf("dataset for %s missing payload", d.Domain)
		}
		if len(d.OceanForecast.Hours) == 0 {
			return ErrEmptyDataset
		}
	}
	return nil
}
