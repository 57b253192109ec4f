package erddap

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
)

const (
	defaultColorBaseURL = "https://coastwatch.pfeg.noaa.gov/erddap"
	colorDataset        = "erdMH1chla8day"
	colorProduct        = "MODIS Aqua chlorophyll-a 8-day composite"
	// MODIS level-3 cells are roughly 1/24 degree.
	colorCellDegrees = 1.0 / 24
	// Caps the sampled grid at about this many cells per axis.
	colorCellsPerAxis = 40
)

// ChlorophyllAdapter summarizes a satellite chlorophyll-a composite from an
// ERDDAP griddap endpoint.
type ChlorophyllAdapter struct {
	client *source.Client
}

// NewChlorophyllAdapter constructs the satellite ocean colour adapter.
func NewChlorophyllAdapter(cfg source.Config) *ChlorophyllAdapter {
	return &ChlorophyllAdapter{client: source.NewClient(ocean.SatelliteColor, cfg, defaultColorBaseURL)}
}

func (a *ChlorophyllAdapter) Domain() ocean.Domain { return ocean.SatelliteColor }

func (a *ChlorophyllAdapter) Label() string { return "NOAA CoastWatch ERDDAP" }

// Fallback implements ocean.SourceAdapter.
func (a *ChlorophyllAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

// Fetch implements ocean.SourceAdapter.
func (a *ChlorophyllAdapter) Fetch(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
	endpoint := a.endpoint(req)
	var raw table
	if _, err := a.client.GetJSON(ctx, endpoint, &raw); err != nil {
		return ocean.Dataset{}, err
	}
	data, err := summarizeChlorophyll(raw)
	if err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.SatelliteColor, "unusable chlorophyll grid", err)
	}
	ds := ocean.Dataset{Domain: ocean.SatelliteColor, SourceURL: endpoint, SatelliteColor: data}
	if err := ds.Validate(); err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.SatelliteColor, "no cloud-free pixels in region", err)
	}
	return ds, nil
}

func (a *ChlorophyllAdapter) endpoint(req ocean.DataRequest) string {
	box := req.Region.BoundingBox
	latStride := stride(box.North - box.South)
	lonStride := stride(box.East - box.West)
	query := fmt.Sprintf("chlorophyll[(%s):1:(%s)][(%g):%d:(%g)][(%g):%d:(%g)]",
		isoTime(req.Window.Start), isoTime(req.Window.End),
		box.North, latStride, box.South,
		box.West, lonStride, box.East)
	return fmt.Sprintf("%s/griddap/%s.json?%s", a.client.BaseURL(), colorDataset, url.QueryEscape(query))
}

func stride(span float64) int {
	cells := math.Abs(span) / colorCellDegrees
	s := int(math.Ceil(cells / colorCellsPerAxis))
	if s < 1 {
		return 1
	}
	return s
}

// summarizeChlorophyll reduces the grid to the most recent composite's
// statistics. Cloud-masked cells arrive as null and are skipped.
func summarizeChlorophyll(raw table) (*ocean.SatelliteColorData, error) {
	cols, err := raw.columns("time", "chlorophyll")
	if err != nil {
		return nil, err
	}
	data := &ocean.SatelliteColorData{Product: colorProduct}
	var sum float64
	for _, row := range raw.Table.Rows {
		value, ok := floatCell(row, cols[1])
		if !ok || value < 0 {
			continue
		}
		if ts, ok := timeCell(row, cols[0]); ok && ts.After(data.CompositeTime) {
			data.CompositeTime = ts
		}
		if data.Samples == 0 || value < data.MinChlorophyll {
			data.MinChlorophyll = value
		}
		if data.Samples == 0 || value > data.MaxChlorophyll {
			data.MaxChlorophyll = value
		}
		sum += value
		data.Samples++
	}
	if data.Samples > 0 {
		data.MeanChlorophyll = round(sum/float64(data.Samples), 3)
		data.MinChlorophyll = round(data.MinChlorophyll, 3)
		data.MaxChlorophyll = round(data.MaxChlorophyll, 3)
	}
	return data, nil
}

var _ ocean.SourceAdapter = (*ChlorophyllAdapter)(nil)
