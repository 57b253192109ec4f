package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/infra/ocean/source"
)

func forecastRequest() ocean.DataRequest {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return ocean.DataRequest{
		Domain: ocean.OceanForecast,
		Region: ocean.Region{
			ID:          "mumbai",
			Name:        "Mumbai",
			BoundingBox: ocean.BoundingBox{North: 19.3, South: 18.7, East: 73.0, West: 72.6},
		},
		Window: ocean.TimeWindow{Start: start, End: start.Add(2 * time.Hour)},
	}
}

func TestMarineAdapterParsesHourlySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "19.0000", q.Get("latitude"))
		require.Equal(t, "72.8000", q.Get("longitude"))
		require.Equal(t, "2024-06-01", q.Get("start_date"))
		require.Equal(t, "wave_height,sea_surface_temperature,ocean_current_velocity", q.Get("hourly"))
		_, _ = w.Write([]byte(`{"latitude":19.0,"longitude":72.79,"hourly":{
			"time":["2024-06-01T00:00","2024-06-01T01:00","2024-06-01T02:00","2024-06-01T03:00"],
			"wave_height":[1.2,2.4,null,3.0],
			"sea_surface_temperature":[29.0,29.4,null,30.0],
			"ocean_current_velocity":[1.1,1.3,null,1.0]}}`))
	}))
	defer srv.Close()

	ds, err := NewMarineAdapter(source.Config{BaseURL: srv.URL}).Fetch(context.Background(), forecastRequest())
	require.NoError(t, err)

	data := ds.OceanForecast
	require.Len(t, data.Hours, 2)
	require.InDelta(t, 2.4, data.MaxWaveHeight, 1e-9)
	require.InDelta(t, 29.2, data.MeanSST, 1e-9)
	require.InDelta(t, 72.79, data.Longitude, 1e-9)
}

func TestMarineAdapterProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`))
	}))
	defer srv.Close()

	_, err := NewMarineAdapter(source.Config{BaseURL: srv.URL}).Fetch(context.Background(), forecastRequest())
	fe, ok := ocean.AsFetchError(err)
	require.True(t, ok)
	require.Equal(t, ocean.FetchUnavailable, fe.Kind)
	require.Equal(t, "provider error", fe.Reason)
	require.ErrorContains(t, err, "Latitude must be in range")
}

func TestMarineAdapterAllNullIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hourly":{"time":["2024-06-01T00:00"],"wave_height":[null]}}`))
	}))
	defer srv.Close()

	_, err := NewMarineAdapter(source.Config{BaseURL: srv.URL}).Fetch(context.Background(), forecastRequest())
	require.ErrorIs(t, err, ocean.ErrEmptyDataset)
}
