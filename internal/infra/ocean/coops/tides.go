package coops

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
)

const (
	defaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"
	datum          = "MLLW"
	// The datagetter rejects water level ranges longer than this.
	maxRange    = 30 * 24 * time.Hour
	application = "ocean_insight"
	timeLayout  = "20060102 15:04"
	rowLayout   = "2006-01-02 15:04"
)

// ErrNoStation is returned for regions without a tide gauge.
var ErrNoStation = errors.New("region has no tide station")

// TideAdapter fetches observed water levels from NOAA CO-OPS.
type TideAdapter struct {
	client *source.Client
}

// NewTideAdapter constructs the tidal adapter.
func NewTideAdapter(cfg source.Config) *TideAdapter {
	return &TideAdapter{client: source.NewClient(ocean.TidalCurrent, cfg, defaultBaseURL)}
}

func (a *TideAdapter) Domain() ocean.Domain { return ocean.TidalCurrent }

func (a *TideAdapter) Label() string { return "NOAA CO-OPS Tides & Currents" }

// Fallback implements ocean.SourceAdapter.
func (a *TideAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

type response struct {
	Data []struct {
		Time  string `json:"t"`
		Value string `json:"v"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch implements ocean.SourceAdapter.
func (a *TideAdapter) Fetch(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
	if !req.Region.HasStation() {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.TidalCurrent, "no tide station for region", ErrNoStation)
	}
	endpoint := a.endpoint(req)
	var raw response
	body, err := a.client.GetJSON(ctx, endpoint, &raw)
	if err != nil {
		return ocean.Dataset{}, err
	}
	if raw.Error != nil {
		msg := strings.TrimSpace(raw.Error.Message)
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.TidalCurrent, "provider error", errors.New(msg))
	}

	readings := make([]ocean.TideReading, 0, len(raw.Data))
	for _, row := range raw.Data {
		if strings.TrimSpace(row.Value) == "" {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(row.Value), 64)
		if err != nil {
			continue
		}
		ts, err := time.ParseInLocation(rowLayout, row.Time, time.UTC)
		if err != nil {
			continue
		}
		readings = append(readings, ocean.TideReading{Time: ts, Level: level})
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Time.Before(readings[j].Time) })

	high, low := ocean.Extremes(readings)
	ds := ocean.Dataset{
		Domain:    ocean.TidalCurrent,
		SourceURL: endpoint,
		TidalCurrent: &ocean.TidalData{
			StationID: req.Region.StationID,
			Datum:     datum,
			Readings:  readings,
			High:      high,
			Low:       low,
		},
	}
	if err := ds.Validate(); err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.TidalCurrent, "no water level readings", err)
	}
	return ds, nil
}

func (a *TideAdapter) endpoint(req ocean.DataRequest) string {
	start, end := req.Window.Start.UTC(), req.Window.End.UTC()
	if end.Sub(start) > maxRange {
		start = end.Add(-maxRange)
	}
	params := url.Values{}
	params.Set("product", "water_level")
	params.Set("begin_date", start.Format(timeLayout))
	params.Set("end_date", end.Format(timeLayout))
	params.Set("station", req.Region.StationID)
	params.Set("datum", datum)
	params.Set("time_zone", "gmt")
	params.Set("units", "metric")
	params.Set("format", "json")
	params.Set("application", application)
	return fmt.Sprintf("%s?%s", a.client.BaseURL(), params.Encode())
}

var _ ocean.SourceAdapter = (*TideAdapter)(nil)
