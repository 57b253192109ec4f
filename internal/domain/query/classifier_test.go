package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

var fixedNow = time.Date(2024, 5, 10, 14, 37, 12, 0, time.UTC)

func TestClassifyDomains(t *testing.T) {
	classifier := NewClassifier()
	cases := []struct {
		name string
		text string
		want []ocean.Domain
	}{
		{"temperature near mumbai", "What is the current sea surface temperature near Mumbai?", []ocean.Domain{ocean.ProfilingFloat}},
		{"tides", "When is high tide in Seattle?", []ocean.Domain{ocean.TidalCurrent}},
		{"plural currents", "How strong are the currents near Goa?", []ocean.Domain{ocean.TidalCurrent}},
		{"chlorophyll", "Show chlorophyll from satellite data", []ocean.Domain{ocean.SatelliteColor}},
		{"waves", "Will the waves be big tomorrow?", []ocean.Domain{ocean.OceanForecast}},
		{"multi", "Compare salinity, tides and the wave forecast off Chennai", []ocean.Domain{ocean.ProfilingFloat, ocean.TidalCurrent, ocean.OceanForecast}},
		{"generic", "Tell me about the Arabian Sea", []ocean.Domain{ocean.ProfilingFloat}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.Classify(tc.text, ModeAnalysis, fixedNow)
			require.Equal(t, tc.want, got.Domains.List())
			require.False(t, got.Ambiguous)
			require.Len(t, got.Windows, len(tc.want))
		})
	}
}

func TestClassifyGenericFallback(t *testing.T) {
	got := NewClassifier().Classify("anything interesting happening in the ocean?", ModeAnalysis, fixedNow)
	require.True(t, got.Generic)
	require.Equal(t, []ocean.Domain{ocean.ProfilingFloat}, got.Domains.List())
}

func TestClassifyAmbiguous(t *testing.T) {
	got := NewClassifier().Classify("hello", ModeAnalysis, fixedNow)
	require.True(t, got.Ambiguous)
	require.Zero(t, got.Domains.Len())
	require.Empty(t, got.Windows)
	require.Empty(t, got.Requests(DefaultRegion))
}

func TestClassifyWindows(t *testing.T) {
	got := NewClassifier().Classify("tides and temperature and forecast", ModeAnalysis, fixedNow)

	tides := got.Windows[ocean.TidalCurrent]
	require.Equal(t, time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC), tides.End)
	require.False(t, tides.End.Before(fixedNow))
	require.Equal(t, 7*24*time.Hour, tides.Duration())

	floats := got.Windows[ocean.ProfilingFloat]
	require.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), floats.End, "today's observations are inside the window")
	require.Equal(t, 30*24*time.Hour, floats.Duration())

	forecast := got.Windows[ocean.OceanForecast]
	require.Equal(t, time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC), forecast.Start)
	require.Equal(t, 3*24*time.Hour, forecast.Duration())
}

func TestClassifyWindowsStableWithinGranularity(t *testing.T) {
	classifier := NewClassifier()
	a := classifier.Classify("tides in Miami", ModeAnalysis, fixedNow)
	b := classifier.Classify("tides in Miami", ModeAnalysis, fixedNow.Add(15*time.Minute))
	region := NewResolver().Resolve("Miami")
	require.Equal(t, a.Requests(region)[0].Key(), b.Requests(region)[0].Key())
}

func TestClassifyExplicitPhrases(t *testing.T) {
	classifier := NewClassifier()
	cases := map[string]time.Duration{
		"salinity today":                  24 * time.Hour,
		"salinity yesterday":              48 * time.Hour,
		"salinity over the past week":     7 * 24 * time.Hour,
		"salinity this month":             30 * 24 * time.Hour,
		"salinity for the last 10 days":   10 * 24 * time.Hour,
		"salinity for the last 2 months":  60 * 24 * time.Hour,
		"salinity for the last 12 months": 90 * 24 * time.Hour,
	}
	for text, want := range cases {
		t.Run(text, func(t *testing.T) {
			got := classifier.Classify(text, ModeAnalysis, fixedNow)
			require.Equal(t, want, got.Windows[ocean.ProfilingFloat].Duration())
		})
	}
}

func TestClassifyResearchModeExtendsWindows(t *testing.T) {
	got := NewClassifier().Classify("tide and chlorophyll and wave trends", ModeResearch, fixedNow)
	require.Equal(t, ModeResearch, got.Mode)
	require.Equal(t, 21*24*time.Hour, got.Windows[ocean.TidalCurrent].Duration())
	require.Equal(t, 90*24*time.Hour, got.Windows[ocean.SatelliteColor].Duration())
	require.Equal(t, 9*24*time.Hour, got.Windows[ocean.OceanForecast].Duration())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAnalysis, mode)

	mode, err = ParseMode(" Research ")
	require.NoError(t, err)
	require.Equal(t, ModeResearch, mode)

	_, err = ParseMode("poetry")
	require.Error(t, err)
}

func TestCustomRuleTable(t *testing.T) {
	classifier := NewClassifierWithRules([]Rule{
		{Domain: ocean.SatelliteColor, Name: "kelp", Predicate: matchAny(`\bkelp\b`)},
	})
	got := classifier.Classify("Kelp forests", ModeAnalysis, fixedNow)
	require.Equal(t, []ocean.Domain{ocean.SatelliteColor}, got.Domains.List())
	require.Equal(t, []string{"kelp"}, got.Rules)
}
