package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocean_insight"

// Cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Recorder owns the Prometheus collectors for the aggregation pipeline.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	cacheLookups   *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	sharedFetches  *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	degraded       *prometheus.CounterVec
	streamEnds     *prometheus.CounterVec
	tokens         *prometheus.CounterVec
}

// NewRecorder builds a recorder backed by a private registry that also
// exposes Go runtime and process metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Aggregation cache lookups by domain and result.",
		}, []string{"domain", "result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed from the aggregation cache.",
		}),
		sharedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "shared_fetches_total",
			Help:      "Callers that waited on another caller's in-flight upstream fetch.",
		}, []string{"domain"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Upstream source adapter calls by domain and outcome.",
		}, []string{"domain", "outcome"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream source adapter latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"domain"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "degraded_domains_total",
			Help:      "Domains served from the static fallback dataset.",
		}, []string{"domain"}),
		streamEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "terminal_events_total",
			Help:      "Response streams by terminal event kind.",
		}, []string{"kind"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "tokens_total",
			Help:      "Language model tokens reported by the provider, by model and kind.",
		}, []string{"model", "kind"}),
	}
	r.registry.MustRegister(
		r.cacheLookups,
		r.cacheEvictions,
		r.sharedFetches,
		r.fetches,
		r.fetchLatency,
		r.degraded,
		r.streamEnds,
		r.tokens,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// CacheLookup counts a cache read.
func (r *Recorder) CacheLookup(domain, result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(domain, result).Inc()
}

// CacheEvicted counts removed cache entries.
func (r *Recorder) CacheEvicted(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.cacheEvictions.Add(float64(n))
}

// SharedFetch counts a caller that joined an in-flight fetch.
func (r *Recorder) SharedFetch(domain string) {
	if r == nil {
		return
	}
	r.sharedFetches.WithLabelValues(domain).Inc()
}

// FetchCompleted records one upstream adapter call.
func (r *Recorder) FetchCompleted(domain, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(domain, outcome).Inc()
	r.fetchLatency.WithLabelValues(domain).Observe(elapsed.Seconds())
}

// Degraded counts a fallback substitution.
func (r *Recorder) Degraded(domain string) {
	if r == nil {
		return
	}
	r.degraded.WithLabelValues(domain).Inc()
}

// StreamTerminated counts a finished response stream.
func (r *Recorder) StreamTerminated(kind string) {
	if r == nil {
		return
	}
	r.streamEnds.WithLabelValues(kind).Inc()
}

// TokensUsed adds provider-reported token usage for model.
func (r *Recorder) TokensUsed(model string, usage TokenUsage) {
	if r == nil || usage.IsZero() {
		return
	}
	r.tokens.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
	r.tokens.WithLabelValues(model, "completion").Add(float64(usage.Completion()))
}
