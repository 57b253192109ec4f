package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.CacheLookup("tidal_current", LookupHit)
	r.CacheLookup("tidal_current", LookupHit)
	r.CacheLookup("tidal_current", LookupMiss)
	r.CacheEvicted(3)
	r.CacheEvicted(0)
	r.FetchCompleted("profiling_float", "timeout", 2*time.Second)
	r.Degraded("profiling_float")
	r.StreamTerminated("done")
	r.TokensUsed("gpt-4o-mini", TokenUsage{PromptTokens: 120, TotalTokens: 150})
	r.TokensUsed("gpt-4o-mini", TokenUsage{})

	require.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("tidal_current", LookupHit)))
	require.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("tidal_current", LookupMiss)))
	require.Equal(t, 3.0, testutil.ToFloat64(r.cacheEvictions))
	require.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("profiling_float", "timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.degraded.WithLabelValues("profiling_float")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.streamEnds.WithLabelValues("done")))
	require.Equal(t, 120.0, testutil.ToFloat64(r.tokens.WithLabelValues("gpt-4o-mini", "prompt")))
	require.Equal(t, 30.0, testutil.ToFloat64(r.tokens.WithLabelValues("gpt-4o-mini", "completion")))
}

func TestTokenUsageCompletion(t *testing.T) {
	require.Equal(t, 7, TokenUsage{PromptTokens: 3, CompletionTokens: 7, TotalTokens: 10}.Completion())
	require.Equal(t, 5, TokenUsage{PromptTokens: 3, TotalTokens: 8}.Completion())
	require.Equal(t, 0, TokenUsage{PromptTokens: 3}.Completion())
	require.True(t, TokenUsage{}.IsZero())
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.CacheLookup("x", LookupHit)
		r.CacheEvicted(1)
		r.SharedFetch("x")
		r.FetchCompleted("x", "success", time.Millisecond)
		r.Degraded("x")
		r.StreamTerminated("error")
		r.TokensUsed("x", TokenUsage{PromptTokens: 1})
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRecorder()
	r.SharedFetch("satellite_color")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ocean_insight_cache_shared_fetches_total")
}
