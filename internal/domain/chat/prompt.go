package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

const (
	liveMarker     = "[LIVE]"
	fallbackMarker = "[FALLBACK: representative sample values, hedge accordingly]"
	noDataNote     = "No external data was fetched for this question."
	maxListedItems = 5
	timeLayout     = "2006-01-02 15:04 UTC"
)

// Assembler renders the generator prompt. Output depends only on its
// inputs.
type Assembler struct {
	cfg     Config
	counter TokenCounter
}

// NewAssembler builds an Assembler. A nil counter falls back to a
// character based estimate.
func NewAssembler(cfg Config, counter TokenCounter) *Assembler {
	if counter == nil {
		counter = approxCounter{}
	}
	return &Assembler{cfg: cfg.withDefaults(), counter: counter}
}

// Build concatenates the instruction block, the dataset view, the trailing
// conversation and the literal question.
func (a *Assembler) Build(question string, data ocean.AggregatedDataset, history []Turn, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.cfg.Prompt))
	b.WriteString("\n\n## Ocean data\n")
	if data.Empty() {
		b.WriteString(noDataNote)
		b.WriteString("\n")
	} else {
		writeDataset(&b, data, now)
	}

	if turns := a.History(history); len(turns) > 0 {
		b.WriteString("\n## Conversation so far\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "%s: %s\n", speaker(turn.Role), strings.TrimSpace(turn.Content))
		}
	}

	b.WriteString("\n## Question\n")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// History bounds turns to the configured count and token budget, keeping
// the most recent ones in chronological order.
func (a *Assembler) History(turns []Turn) []Turn {
	if len(turns) > a.cfg.MaxHistoryTurns {
		turns = turns[len(turns)-a.cfg.MaxHistoryTurns:]
	}
	if a.cfg.MaxHistoryTokens <= 0 {
		return turns
	}
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		tokens := turns[i].TokenCount
		if tokens <= 0 {
			tokens = a.counter.Count(turns[i].Content)
		}
		if total+tokens > a.cfg.MaxHistoryTokens {
			break
		}
		total += tokens
		start = i
	}
	return turns[start:]
}

// Count exposes the assembler's token estimate.
func (a *Assembler) Count(text string) int {
	return a.counter.Count(text)
}

func speaker(role Role) string {
	if role == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

func writeDataset(b *strings.Builder, data ocean.AggregatedDataset, now time.Time) {
	region := data.Region
	box := region.BoundingBox
	fmt.Fprintf(b, "Region: %s (N %.2f, S %.2f, E %.2f, W %.2f)", regionName(region), box.North, box.South, box.East, box.West)
	if region.HasStation() {
		fmt.Fprintf(b, ", tide station %s", region.StationID)
	}
	fmt.Fprintf(b, "\nAssembled: %s\n", now.UTC().Format(timeLayout))

	for _, domain := range ocean.Domains {
		ds, ok := data.PerDomain[domain]
		if !ok {
			continue
		}
		info := data.Sources[domain]
		marker := liveMarker
		if data.Degraded.Has(domain) {
			marker = fallbackMarker
		}
		fmt.Fprintf(b, "\n### %s %s\n", domain.Title(), marker)
		if info.Label != "" {
			fmt.Fprintf(b, "Source: %s\n", info.Label)
		}
		if info.DegradedReason != "" {
			fmt.Fprintf(b, "Live fetch failed: %s\n", info.DegradedReason)
		}
		switch domain {
		case ocean.ProfilingFloat:
			writeFloats(b, ds.ProfilingFloat)
		case ocean.TidalCurrent:
			writeTides(b, ds.TidalCurrent)
		case ocean.SatelliteColor:
			writeColor(b, ds.SatelliteColor)
		case ocean.OceanForecast:
			writeForecast(b, ds.OceanForecast)
		}
	}
}

func regionName(r ocean.Region) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

func writeFloats(b *strings.Builder, d *ocean.ProfilingFloatData) {
	if d == nil {
		return
	}
	fmt.Fprintf(b, "%d floats, %d near-surface observations. Mean temperature %.2f °C, mean salinity %.2f PSU.\n",
		len(d.Floats), d.Observations, d.MeanTemperature, d.MeanSalinity)
	for i, f := range d.Floats {
		if i == maxListedItems {
			fmt.Fprintf(b, "- %d more floats omitted\n", len(d.Floats)-maxListedItems)
			break
		}
		fmt.Fprintf(b, "- float %s at %.2f, %.2f on %s: %.2f °C, %.2f PSU at %.0f dbar\n",
			f.PlatformID, f.Latitude, f.Longitude, f.Time.UTC().Format(timeLayout), f.Temperature, f.Salinity, f.Pressure)
	}
}

func writeTides(b *strings.Builder, d *ocean.TidalData) {
	if d == nil || len(d.Readings) == 0 {
		return
	}
	first, last := d.Readings[0], d.Readings[len(d.Readings)-1]
	fmt.Fprintf(b, "Station %s, datum %s, %d readings from %s to %s.\n",
		d.StationID, d.Datum, len(d.Readings), first.Time.UTC().Format(timeLayout), last.Time.UTC().Format(timeLayout))
	fmt.Fprintf(b, "High water %.3f m at %s. Low water %.3f m at %s. Latest %.3f m at %s.\n",
		d.High.Level, d.High.Time.UTC().Format(timeLayout),
		d.Low.Level, d.Low.Time.UTC().Format(timeLayout),
		last.Level, last.Time.UTC().Format(timeLayout))
}

func writeColor(b *strings.Builder, d *ocean.SatelliteColorData) {
	if d == nil {
		return
	}
	fmt.Fprintf(b, "%s ending %s: chlorophyll-a mean %.3f mg/m³ (min %.3f, max %.3f) over %d pixels.\n",
		d.Product, d.CompositeTime.UTC().Format(timeLayout), d.MeanChlorophyll, d.MinChlorophyll, d.MaxChlorophyll, d.Samples)
}

func writeForecast(b *strings.Builder, d *ocean.ForecastData) {
	if d == nil || len(d.Hours) == 0 {
		return
	}
	first, last := d.Hours[0], d.Hours[len(d.Hours)-1]
	fmt.Fprintf(b, "Point %.2f, %.2f, %d hourly steps from %s to %s. Max wave height %.2f m, mean sea surface temperature %.2f °C.\n",
		d.Latitude, d.Longitude, len(d.Hours), first.Time.UTC().Format(timeLayout), last.Time.UTC().Format(timeLayout), d.MaxWaveHeight, d.MeanSST)
	step := len(d.Hours) / maxListedItems
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(d.Hours); i += step {
		h := d.Hours[i]
		fmt.Fprintf(b, "- %s: waves %.2f m, SST %.2f °C, current %.2f km/h\n",
			h.Time.UTC().Format(timeLayout), h.WaveHeight, h.SeaSurfaceTemperature, h.CurrentVelocity)
	}
}

// approxCounter assumes four characters per token.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
