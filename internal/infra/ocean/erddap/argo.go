package erddap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
)

const (
	defaultArgoBaseURL = "https://erddap.ifremer.fr/erddap"
	argoDataset        = "ArgoFloats"
	// Near-surface samples only; deeper levels are not summarized.
	argoMaxPressure = "10"
)

// ArgoAdapter fetches near-surface Argo float profiles from an ERDDAP
// tabledap endpoint.
type ArgoAdapter struct {
	client *source.Client
}

// NewArgoAdapter constructs the profiling-float adapter.
func NewArgoAdapter(cfg source.Config) *ArgoAdapter {
	return &ArgoAdapter{client: source.NewClient(ocean.ProfilingFloat, cfg, defaultArgoBaseURL)}
}

func (a *ArgoAdapter) Domain() ocean.Domain { return ocean.ProfilingFloat }

func (a *ArgoAdapter) Label() string { return "Argo GDAC via ERDDAP" }

// Fallback implements ocean.SourceAdapter.
func (a *ArgoAdapter) Fallback(req ocean.DataRequest) ocean.Dataset {
	return ocean.FallbackDataset(req)
}

// Fetch implements ocean.SourceAdapter.
func (a *ArgoAdapter) Fetch(ctx context.Context, req ocean.DataRequest) (ocean.Dataset, error) {
	endpoint := a.endpoint(req)
	var raw table
	if _, err := a.client.GetJSON(ctx, endpoint, &raw); err != nil {
		return ocean.Dataset{}, err
	}
	data, err := summarizeFloats(raw)
	if err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.ProfilingFloat, "unusable float table", err)
	}
	ds := ocean.Dataset{Domain: ocean.ProfilingFloat, SourceURL: endpoint, ProfilingFloat: data}
	if err := ds.Validate(); err != nil {
		return ocean.Dataset{}, ocean.NewUnavailable(ocean.ProfilingFloat, "no float profiles in region", err)
	}
	return ds, nil
}

func (a *ArgoAdapter) endpoint(req ocean.DataRequest) string {
	box := req.Region.BoundingBox
	var b strings.Builder
	fmt.Fprintf(&b, "%s/tabledap/%s.json?platform_number,time,latitude,longitude,pres,temp,psal", a.client.BaseURL(), argoDataset)
	b.WriteString(constraint("time", ">=", isoTime(req.Window.Start)))
	b.WriteString(constraint("time", "<=", isoTime(req.Window.End)))
	b.WriteString(constraint("latitude", ">=", fmt.Sprint(box.South)))
	b.WriteString(constraint("latitude", "<=", fmt.Sprint(box.North)))
	b.WriteString(constraint("longitude", ">=", fmt.Sprint(box.West)))
	b.WriteString(constraint("longitude", "<=", fmt.Sprint(box.East)))
	b.WriteString(constraint("pres", "<=", argoMaxPressure))
	return b.String()
}

// summarizeFloats keeps the latest near-surface sample of each float and
// averages temperature and salinity over those samples.
func summarizeFloats(raw table) (*ocean.ProfilingFloatData, error) {
	cols, err := raw.columns("platform_number", "time", "latitude", "longitude", "pres", "temp", "psal")
	if err != nil {
		return nil, err
	}
	latest := make(map[string]ocean.FloatProfile)
	observations := 0
	for _, row := range raw.Table.Rows {
		id := stringCell(row, cols[0])
		ts, okTime := timeCell(row, cols[1])
		temp, okTemp := floatCell(row, cols[5])
		if id == "" || !okTime || !okTemp {
			continue
		}
		observations++
		lat, _ := floatCell(row, cols[2])
		lon, _ := floatCell(row, cols[3])
		pres, _ := floatCell(row, cols[4])
		sal, _ := floatCell(row, cols[6])
		profile := ocean.FloatProfile{PlatformID: id, Time: ts, Latitude: lat, Longitude: lon, Pressure: pres, Temperature: temp, Salinity: sal}
		if prev, ok := latest[id]; !ok || ts.After(prev.Time) || (ts.Equal(prev.Time) && pres < prev.Pressure) {
			latest[id] = profile
		}
	}

	floats := make([]ocean.FloatProfile, 0, len(latest))
	var sumTemp, sumSal float64
	salCount := 0
	for _, p := range latest {
		floats = append(floats, p)
		sumTemp += p.Temperature
		if p.Salinity > 0 {
			sumSal += p.Salinity
			salCount++
		}
	}
	sort.Slice(floats, func(i, j int) bool {
		if floats[i].Time.Equal(floats[j].Time) {
			return floats[i].PlatformID < floats[j].PlatformID
		}
		return floats[i].Time.After(floats[j].Time)
	})

	data := &ocean.ProfilingFloatData{Floats: floats, Observations: observations}
	if len(floats) > 0 {
		data.MeanTemperature = round(sumTemp/float64(len(floats)), 2)
	}
	if salCount > 0 {
		data.MeanSalinity = round(sumSal/float64(salCount), 2)
	}
	return data, nil
}

var _ ocean.SourceAdapter = (*ArgoAdapter)(nil)
