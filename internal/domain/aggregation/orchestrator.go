package aggregation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/pkg/metrics"
)

// Plan lists the domains to fetch for one query.
type Plan struct {
	Region  ocean.Region
	Domains ocean.DomainSet
	Windows map[ocean.Domain]ocean.TimeWindow
}

// Requests expands the plan in canonical domain order.
func (p Plan) Requests() []ocean.DataRequest {
	out := make([]ocean.DataRequest, 0, p.Domains.Len())
	for _, d := range p.Domains.List() {
		out = append(out, ocean.DataRequest{Domain: d, Region: p.Region, Window: p.Windows[d]})
	}
	return out
}

// Fetcher produces an aggregated dataset for a plan.
type Fetcher interface {
	Fetch(ctx context.Context, plan Plan) ocean.AggregatedDataset
}

// Orchestrator fans a plan out to source adapters through the cache and
// merges whatever arrives before the deadline.
type Orchestrator struct {
	cfg      OrchestratorConfig
	cache    *Cache
	adapters map[ocean.Domain]ocean.SourceAdapter
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewOrchestrator registers one adapter per domain; later adapters for the
// same domain replace earlier ones.
func NewOrchestrator(cfg OrchestratorConfig, cache *Cache, adapters []ocean.SourceAdapter, recorder *metrics.Recorder, logger *slog.Logger) *Orchestrator {
	if cfg.FetchDeadline <= 0 {
		cfg.FetchDeadline = 8 * time.Second
	}
	if cfg.AdapterTimeout <= 0 || cfg.AdapterTimeout > cfg.FetchDeadline {
		cfg.AdapterTimeout = cfg.FetchDeadline
	}
	registry := make(map[ocean.Domain]ocean.SourceAdapter, len(adapters))
	for _, a := range adapters {
		registry[a.Domain()] = a
	}
	return &Orchestrator{
		cfg:      cfg,
		cache:    cache,
		adapters: registry,
		metrics:  recorder,
		logger:   logger.With("component", "aggregation.orchestrator"),
	}
}

type taskResult struct {
	domain  ocean.Domain
	entry   CacheEntry
	outcome Outcome
	err     error
}

// Fetch never fails. Every requested domain is present in the result,
// either live or as its fallback sample; unrequested domains are absent.
func (o *Orchestrator) Fetch(ctx context.Context, plan Plan) ocean.AggregatedDataset {
	agg := ocean.NewAggregatedDataset(plan.Region)
	requests := plan.Requests()
	if len(requests) == 0 {
		return agg
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.FetchDeadline)
	defer cancel()

	results := make(chan taskResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	pending := 0
	for _, req := range requests {
		adapter, ok := o.adapters[req.Domain]
		if !ok {
			continue
		}
		pending++
		g.Go(func() error {
			results <- o.run(gctx, req, adapter)
			return nil
		})
	}

	collected := make(map[ocean.Domain]taskResult, pending)
wait:
	for len(collected) < pending {
		select {
		case res := <-results:
			collected[res.domain] = res
		case <-ctx.Done():
			break wait
		}
	}
	if len(collected) == pending {
		_ = g.Wait()
	}

	for _, req := range requests {
		adapter, registered := o.adapters[req.Domain]
		res, finished := collected[req.Domain]
		switch {
		case !registered:
			o.degrade(agg, ocean.FallbackDataset(req), ocean.FallbackLabel, "no source registered")
		case !finished:
			o.degrade(agg, adapter.Fallback(req), adapter.Label(), "fetch deadline exceeded")
		case res.err != nil:
			o.degrade(agg, adapter.Fallback(req), adapter.Label(), failureReason(res.err))
		default:
			agg.MarkSucceeded(res.entry.Dataset, ocean.SourceInfo{
				Label:     res.entry.SourceLabel,
				CacheHit:  res.outcome.CacheHit,
				FetchedAt: res.entry.FetchedAt,
			})
		}
	}
	o.logger.Info("ocean data aggregated",
		"region", plan.Region.ID,
		"succeeded", agg.Succeeded.List(),
		"degraded", agg.Degraded.List(),
	)
	return agg
}

func (o *Orchestrator) run(ctx context.Context, req ocean.DataRequest, adapter ocean.SourceAdapter) taskResult {
	entry, outcome, err := o.cache.GetOrFetch(ctx, req, adapter.Label(), func(lctx context.Context) (ocean.Dataset, error) {
		fctx, cancel := context.WithTimeout(lctx, o.cfg.AdapterTimeout)
		defer cancel()
		start := time.Now()
		ds, err := adapter.Fetch(fctx, req)
		if err != nil && fctx.Err() != nil && !errors.Is(err, context.Canceled) {
			if _, ok := ocean.AsFetchError(err); !ok {
				err = ocean.NewTimeout(req.Domain, err)
			}
		}
		outcome := "success"
		if err != nil {
			outcome = string(ocean.KindOf(err))
		}
		o.metrics.FetchCompleted(string(req.Domain), outcome, time.Since(start))
		return ds, err
	})
	if err != nil {
		o.logger.Warn("domain fetch failed", "domain", req.Domain, "key", req.Key(), "error", err)
	}
	return taskResult{domain: req.Domain, entry: entry, outcome: outcome, err: err}
}

func (o *Orchestrator) degrade(agg ocean.AggregatedDataset, ds ocean.Dataset, label, reason string) {
	agg.MarkDegraded(ds, label, reason)
	o.metrics.Degraded(string(ds.Domain))
}

func failureReason(err error) string {
	if fe, ok := ocean.AsFetchError(err); ok {
		return string(fe.Kind) + ": " + fe.Reason
	}
	return err.Error()
}

var _ Fetcher = (*Orchestrator)(nil)
