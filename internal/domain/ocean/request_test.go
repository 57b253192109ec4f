package ocean

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mumbai = Region{
	ID:          "mumbai",
	Name:        "Mumbai",
	BoundingBox: BoundingBox{North: 19.3, South: 18.8, East: 73.0, West: 72.6},
}

func TestDataRequestKeyStable(t *testing.T) {
	end := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	a := DataRequest{Domain: TidalCurrent, Region: mumbai, Window: TimeWindow{Start: end.Add(-7 * 24 * time.Hour), End: end}}

	// Same values built field by field in another order and another zone.
	var b DataRequest
	b.Window.End = end.In(time.FixedZone("IST", 5*3600+1800))
	b.Window.Start = end.Add(-7 * 24 * time.Hour)
	b.Region = mumbai
	b.Domain = TidalCurrent

	require.Equal(t, a.Key(), b.Key())
	require.Len(t, a.Key(), 64)
}

func TestDataRequestKeyDiffers(t *testing.T) {
	end := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	base := DataRequest{Domain: TidalCurrent, Region: mumbai, Window: TimeWindow{Start: end.Add(-time.Hour), End: end}}

	otherRegion := mumbai
	otherRegion.BoundingBox.North = 19.4
	withStation := mumbai
	withStation.StationID = "9414290"

	cases := map[string]DataRequest{
		"domain":  {Domain: ProfilingFloat, Region: mumbai, Window: base.Window},
		"bbox":    {Domain: TidalCurrent, Region: otherRegion, Window: base.Window},
		"station": {Domain: TidalCurrent, Region: withStation, Window: base.Window},
		"start":   {Domain: TidalCurrent, Region: mumbai, Window: TimeWindow{Start: end.Add(-2 * time.Hour), End: end}},
		"end":     {Domain: TidalCurrent, Region: mumbai, Window: TimeWindow{Start: base.Window.Start, End: end.Add(time.Second)}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, base.Key(), req.Key())
		})
	}
}

func TestFetchErrorKinds(t *testing.T) {
	timeout := NewTimeout(ProfilingFloat, nil)
	require.Equal(t, FetchTimeout, KindOf(timeout))
	require.Contains(t, timeout.Error(), "timeout")

	wrapped := NewUnavailable(TidalCurrent, "status 503", nil)
	fe, ok := AsFetchError(wrapped)
	require.True(t, ok)
	require.Equal(t, "status 503", fe.Reason)
	require.Equal(t, FetchUnavailable, KindOf(assert.AnError))
}
