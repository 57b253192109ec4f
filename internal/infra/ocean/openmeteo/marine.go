package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
)

const (
	defaultBaseURL = "https://marine-api.open-meteo.com/v1/marine"
	hourlyFields   = "wave_height,sea_surface_temperature,ocean_current_velocity"
	hourLayout     = "2006-01-02T15:04"
	dateLayout     = "2006-01-02"
)

// MarineAdapter fetches an hourly marine forecast for the centre of a
// region from the Open-Meteo marine API.
type MarineAdapter struct {
	client *source.Client
}

// NewMarineAdapter constructs the forecast adapter.
func NewMarineAdapter(cfg source.Config) *MarineAdapter {
	return &MarineAdapter{client: source.NewClient(ocean.OceanForecast, cfg, defaultBaseURL)}
}

func (a *MarineAdapter) Domain() ocean.Domain { return ocean.OceanForecast }

func (a *MarineAdapter) Label() string { return "Open-Meteo Marine" }

// Fallback implements ocean.SourceAdapter.
func (a *MarineAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hourly    struct {
		Time                  []string   `json:"time"`
		WaveHeight            []*float64 `json:"wave_height"`
		SeaSurfaceTemperature []*float64 `json:"sea_surface_temperature"`
		OceanCurrentVelocity  []*float64 `json:"ocean_current_velocity"`
	} `json:"hourly"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Fetch implements ocean.SourceAdapter.
func (a *MarineAdapter) Fetch(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
	endpoint := a.endpoint(req)
	var raw response
	body, err := a.client.GetJSON(ctx, endpoint, &raw)
	if err != nil {
		// Rejected requests come back as 400 with {"error":true,"reason":...}.
		var envelope response
		if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && envelope.Error {
			return ocean.Dataset{}, ocean.NewUnavailable(ocean.OceanForecast, "provider error", errors.New(envelope.Reason))
		}
		return ocean.Dataset{}, err
	}
	if raw.Error {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.OceanForecast, "provider error", errors.New(raw.Reason))
	}

	data := &ocean.ForecastData{Latitude: raw.Latitude, Longitude: raw.Longitude}
	var sumSST float64
	sstCount := 0
	for i, stamp := range raw.Hourly.Time {
		ts, err := time.ParseInLocation(hourLayout, stamp, time.UTC)
		if err != nil {
			continue
		}
		if ts.Before(req.Window.Start) || ts.After(req.Window.End) {
			continue
		}
		wave, okWave := at(raw.Hourly.WaveHeight, i)
		sst, okSST := at(raw.Hourly.SeaSurfaceTemperature, i)
		current, okCurrent := at(raw.Hourly.OceanCurrentVelocity, i)
		if !okWave && !okSST && !okCurrent {
			continue
		}
		data.Hours = append(data.Hours, ocean.ForecastHour{
			Time:                  ts,
			WaveHeight:            wave,
			SeaSurfaceTemperature: sst,
			CurrentVelocity:       current,
		})
		if okWave && wave > data.MaxWaveHeight {
			data.MaxWaveHeight = wave
		}
		if okSST {
			sumSST += sst
			sstCount++
		}
	}
	if sstCount > 0 {
		data.MeanSST = math.Round(sumSST/float64(sstCount)*100) / 100
	}

	ds := ocean.Dataset{Domain: ocean.OceanForecast, SourceURL: endpoint, OceanForecast: data}
	if err := ds.Validate(); err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.OceanForecast, "no forecast hours for point", err)
	}
	return ds, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

func (a *MarineAdapter) endpoint(req ocean.DataRequest) string {
	lat, lon := req.Region.BoundingBox.Center()
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("hourly", hourlyFields)
	params.Set("start_date", req.Window.Start.UTC().Format(dateLayout))
	params.Set("end_date", req.Window.End.UTC().Format(dateLayout))
	params.Set("timezone", "GMT")
	return fmt.Sprintf("%s?%s", a.client.BaseURL(), params.Encode())
}

var _ ocean.SourceAdapter = (*MarineAdapter)(nil)
