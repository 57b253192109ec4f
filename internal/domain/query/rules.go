package query

import (
	"regexp"
	"strconv"
	"time"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

// Predicate reports whether lower-cased query text satisfies a rule.
type Predicate func(text string) bool

// Rule ties a named predicate to the domain it selects.
type Rule struct {
	Domain    ocean.Domain
	Name      string
	Predicate Predicate
}

func matchAny(patterns ...string) Predicate {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return func(text string) bool {
		for _, re := range compiled {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is evaluated in order; every rule is tested, so one query
// can select several domains.
func DefaultRules() []Rule {
	return []Rule{
		{Domain: ocean.ProfilingFloat, Name: "argo", Predicate: matchAny(`\bargo\b`, `\bfloats?\b`, `\bprofil(e|es|ing)\b`, `\bctd\b`)},
		{Domain: ocean.ProfilingFloat, Name: "water-column", Predicate: matchAny(`\btemperatures?\b`, `\bsalinity\b`, `\bsalty?\b`, `\bthermocline\b`, `\bmixed layer\b`, `\bheat content\b`, `\bsst\b`)},
		// A bare "current" usually means "now"; only the plural or a
		// qualified form selects currents.
		{Domain: ocean.TidalCurrent, Name: "tides", Predicate: matchAny(`\btides?\b`, `\btidal\b`, `\b(high|low) water\b`, `\b(water|sea) levels?\b`, `\bstorm surge\b`)},
		{Domain: ocean.TidalCurrent, Name: "currents", Predicate: matchAny(`\bcurrents\b`, `\b(ocean|sea|surface|rip|tidal|coastal|longshore) current\b`)},
		{Domain: ocean.SatelliteColor, Name: "ocean-colour", Predicate: matchAny(`\bchlorophyll\b`, `\bocean colou?r\b`, `\bphytoplankton\b`, `\b(algal|algae) blooms?\b`, `\balgae\b`, `\bturbidity\b`, `\bproductivity\b`)},
		{Domain: ocean.SatelliteColor, Name: "satellite", Predicate: matchAny(`\bsatellites?\b`, `\bmodis\b`, `\bviirs\b`, `\bremote sensing\b`)},
		{Domain: ocean.OceanForecast, Name: "forecast", Predicate: matchAny(`\bforecasts?\b`, `\boutlook\b`, `\bpredict(ion|ed)?\b`, `\btomorrow\b`, `\bnext (few )?(days?|week|hours)\b`)},
		{Domain: ocean.OceanForecast, Name: "sea-state", Predicate: matchAny(`\bwaves?\b`, `\bswells?\b`, `\bsea state\b`, `\bwinds?\b`, `\bcyclones?\b`, `\bstorms?\b`, `\brough seas?\b`)},
	}
}

// genericOcean matches ocean vocabulary that names no specific domain.
var genericOcean = matchAny(
	`\b(ocean|oceans|oceanic|oceanography)\b`,
	`\b(sea|seas|marine|maritime|coast|coastal|offshore)\b`,
	`\b(bay|gulf|reef|reefs|beach|estuary|upwelling|monsoon)\b`,
	`\b(fish|fishing|fisheries|plankton)\b`,
)

// windowPolicy is the default lookback and cache-friendly granularity of a
// domain's time window.
type windowPolicy struct {
	lookback    time.Duration
	granularity time.Duration
	// horizon marks forward-looking domains whose window starts at call
	// time and extends lookback into the future.
	horizon bool
}

const (
	day         = 24 * time.Hour
	maxLookback = 90 * day
	// Forecast providers publish up to 16 days ahead.
	maxHorizon       = 16 * day
	researchMultiple = 3
)

var windowPolicies = map[ocean.Domain]windowPolicy{
	ocean.ProfilingFloat: {lookback: 30 * day, granularity: day},
	ocean.TidalCurrent:   {lookback: 7 * day, granularity: time.Hour},
	ocean.SatelliteColor: {lookback: 30 * day, granularity: day},
	ocean.OceanForecast:  {lookback: 3 * day, granularity: time.Hour, horizon: true},
}

var (
	lastN     = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d{1,3})\s+(day|days|week|weeks|month|months)\b`)
	lastWeek  = regexp.MustCompile(`\b(?:last|past|this)\s+week\b`)
	lastMonth = regexp.MustCompile(`\b(?:last|past|this)\s+month\b`)
	yesterday = regexp.MustCompile(`\byesterday\b`)
	today     = regexp.MustCompile(`\b(?:today|tonight|right now)\b`)
)

// explicitLookback extracts a lookback from a relative time phrase.
func explicitLookback(text string) (time.Duration, bool) {
	if m := lastN.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, false
		}
		unit := day
		switch m[2] {
		case "week", "weeks":
			unit = 7 * day
		case "month", "months":
			unit = 30 * day
		}
		return time.Duration(n) * unit, true
	}
	switch {
	case lastMonth.MatchString(text):
		return 30 * day, true
	case lastWeek.MatchString(text):
		return 7 * day, true
	case yesterday.MatchString(text):
		return 2 * day, true
	case today.MatchString(text):
		return day, true
	}
	return 0, false
}
