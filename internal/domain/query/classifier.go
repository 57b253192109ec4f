package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

// Mode selects how deep the answer should go.
type Mode string

const (
	ModeAnalysis Mode = "analysis"
	ModeResearch Mode = "research"
)

// ParseMode maps the request context hint to a Mode. Empty means analysis.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAnalysis:
		return ModeAnalysis, nil
	case ModeResearch:
		return ModeResearch, nil
	default:
		return "", fmt.Errorf("unknown context %q, expected analysis or research", raw)
	}
}

// Classification is the classifier verdict for one query.
type Classification struct {
	Domains ocean.DomainSet                   `json:"domains"`
	Windows map[ocean.Domain]ocean.TimeWindow `json:"windows"`
	Mode    Mode                              `json:"mode"`
	// Rules lists the names of rules that matched, in rule order.
	Rules []string `json:"rules,omitempty"`
	// Generic is set when only general ocean vocabulary matched and the
	// default domain was chosen.
	Generic bool `json:"generic"`
	// Ambiguous is set when nothing matched; the caller answers from
	// conversation context alone.
	Ambiguous bool `json:"ambiguous"`
}

// Requests expands the classification into one DataRequest per domain, in
// canonical domain order.
func (c Classification) Requests(region ocean.Region) []ocean.DataRequest {
	out := make([]ocean.DataRequest, 0, c.Domains.Len())
	for _, d := range c.Domains.List() {
		out = append(out, ocean.DataRequest{Domain: d, Region: region, Window: c.Windows[d]})
	}
	return out
}

// Classifier decides which domains a query needs.
type Classifier struct {
	rules    []Rule
	fallback ocean.Domain
}

// NewClassifier builds a classifier over DefaultRules.
func NewClassifier() *Classifier {
	return NewClassifierWithRules(DefaultRules())
}

// NewClassifierWithRules builds a classifier over a custom rule table.
func NewClassifierWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules, fallback: ocean.ProfilingFloat}
}

// Classify evaluates every rule against text and computes a time window
// ending (or, for forecasts, starting) at now.
func (c *Classifier) Classify(text string, mode Mode, now time.Time) Classification {
	if mode == "" {
		mode = ModeAnalysis
	}
	lowered := strings.ToLower(text)
	result := Classification{
		Domains: ocean.NewDomainSet(),
		Windows: make(map[ocean.Domain]ocean.TimeWindow),
		Mode:    mode,
	}
	for _, rule := range c.rules {
		if rule.Predicate(lowered) {
			result.Domains.Add(rule.Domain)
			result.Rules = append(result.Rules, rule.Name)
		}
	}
	if result.Domains.Len() == 0 {
		if !genericOcean(lowered) {
			result.Ambiguous = true
			return result
		}
		result.Generic = true
		result.Domains.Add(c.fallback)
	}

	explicit, hasExplicit := explicitLookback(lowered)
	for _, d := range result.Domains.List() {
		result.Windows[d] = window(d, now, mode, explicit, hasExplicit)
	}
	return result
}

func window(d ocean.Domain, now time.Time, mode Mode, explicit time.Duration, hasExplicit bool) ocean.TimeWindow {
	policy, ok := windowPolicies[d]
	if !ok {
		policy = windowPolicy{lookback: 7 * day, granularity: day}
	}
	span := policy.lookback
	switch {
	case policy.horizon:
		if mode == ModeResearch {
			span *= researchMultiple
		}
		if span > maxHorizon {
			span = maxHorizon
		}
		start := now.UTC().Truncate(policy.granularity)
		return ocean.TimeWindow{Start: start, End: start.Add(span)}
	case hasExplicit:
		span = explicit
	case mode == ModeResearch:
		span *= researchMultiple
	}
	if span > maxLookback {
		span = maxLookback
	}
	if span < policy.granularity {
		span = policy.granularity
	}
	// The window closes at the next boundary so the current partial period
	// is included.
	end := now.UTC().Truncate(policy.granularity).Add(policy.granularity)
	return ocean.TimeWindow{Start: end.Add(-span), End: end}
}
