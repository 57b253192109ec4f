package ocean

import (
	"math"
	"time"
)

// FallbackLabel is the source label recorded for substituted datasets.
const FallbackLabel = "static fallback sample"

// FallbackDataset returns the representative sample for a domain. The values
// are fixed; timestamps are anchored to the request window so the sample
// reads sensibly next to live data.
func FallbackDataset(req DataRequest) Dataset {
	anchor := req.Window.End.UTC().Truncate(time.Hour)
	if anchor.IsZero() {
		anchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	lat, lon := req.Region.BoundingBox.Center()
	switch req.Domain {
	case ProfilingFloat:
		return Dataset{Domain: ProfilingFloat, ProfilingFloat: fallbackFloats(anchor, lat, lon)}
	case TidalCurrent:
		return Dataset{Domain: TidalCurrent, TidalCurrent: fallbackTides(anchor, req.Region.StationID)}
	case SatelliteColor:
		return Dataset{Domain: SatelliteColor, SatelliteColor: &SatelliteColorData{
			Product:         "chlorophyll-a monthly composite",
			CompositeTime:   anchor.Truncate(24 * time.Hour),
			Samples:         1,
			MeanChlorophyll: 0.32,
			MinChlorophyll:  0.08,
			MaxChlorophyll:  2.1,
		}}
	case OceanForecast:
		return Dataset{Domain: OceanForecast, OceanForecast: fallbackForecast(anchor, lat, lon)}
	default:
		return Dataset{Domain: req.Domain}
	}
}

func fallbackFloats(anchor time.Time, lat, lon float64) *ProfilingFloatData {
	floats := []FloatProfile{
		{PlatformID: "2902000", Time: anchor.Add(-24 * time.Hour), Latitude: lat + 0.5, Longitude: lon - 0.5, Pressure: 5, Temperature: 28.6, Salinity: 35.8},
		{PlatformID: "2902001", Time: anchor.Add(-48 * time.Hour), Latitude: lat - 0.5, Longitude: lon + 0.5, Pressure: 5, Temperature: 28.2, Salinity: 35.4},
	}
	return &ProfilingFloatData{
		Floats:          floats,
		Observations:    len(floats),
		MeanTemperature: 28.4,
		MeanSalinity:    35.6,
	}
}

func fallbackTides(anchor time.Time, station string) *TidalData {
	// Semidiurnal cycle, 12.42h period, 1.1m amplitude around mean sea level.
	readings := make([]TideReading, 0, 25)
	start := anchor.Add(-24 * time.Hour)
	for i := 0; i <= 24; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		level := 1.1 * math.Sin(2*math.Pi*float64(i)/12.42)
		readings = append(readings, TideReading{Time: ts, Level: math.Round(level*1000) / 1000})
	}
	high, low := Extremes(readings)
	return &TidalData{StationID: station, Datum: "MSL", Readings: readings, High: high, Low: low}
}

func fallbackForecast(anchor time.Time, lat, lon float64) *ForecastData {
	hours := make([]ForecastHour, 0, 24)
	for i := 0; i < 24; i++ {
		hours = append(hours, ForecastHour{
			Time:                  anchor.Add(time.Duration(i) * time.Hour),
			WaveHeight:            1.4,
			SeaSurfaceTemperature: 28.5,
			CurrentVelocity:       1.8,
		})
	}
	return &ForecastData{Latitude: lat, Longitude: lon, Hours: hours, MaxWaveHeight: 1.4, MeanSST: 28.5}
}

// Extremes returns the highest and lowest readings of a series.
func Extremes(readings []TideReading) (high, low TideReading) {
	for i, r := range readings {
		if i == 0 || r.Level > high.Level {
			high = r
		}
		if i == 0 || r.Level < low.Level {
			low = r
		}
	}
	return high, low
}
