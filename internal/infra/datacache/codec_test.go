package datacache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

func TestEntryCodecPreservesDataset(t *testing.T) {
	req := ocean.DataRequest{
		Domain: ocean.TidalCurrent,
		Region: ocean.Region{ID: "seattle", StationID: "9447130"},
		Window: ocean.TimeWindow{Start: base.Add(-24 * time.Hour), End: base},
	}
	original := aggregation.CacheEntry{
		Key:         req.Key(),
		Dataset:     ocean.FallbackDataset(req),
		SourceLabel: "NOAA CO-OPS",
		FetchedAt:   base.Add(123456789 * time.Nanosecond),
		ExpiresAt:   base.Add(15 * time.Minute),
		AccessCount: 4,
	}

	payload, err := encodeEntry(original)
	require.NoError(t, err)

	decoded, err := decodeEntry(payload)
	require.NoError(t, err)
	require.Zero(t, decoded.AccessCount)
	decoded.AccessCount = original.AccessCount
	require.Equal(t, original, decoded)
}

func TestDecodeEntryRejectsGarbage(t *testing.T) {
	_, err := decodeEntry([]byte("not zstd"))
	require.Error(t, err)
}
