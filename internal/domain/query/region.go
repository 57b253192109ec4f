package query

import (
	"regexp"
	"strings"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

// DefaultRegion is returned when the text names no known place.
var DefaultRegion = ocean.Region{
	ID:          "indian-ocean",
	Name:        "Indian Ocean",
	BoundingBox: ocean.BoundingBox{North: 30, South: -40, East: 120, West: 20},
}

type place struct {
	region  ocean.Region
	aliases []string
}

// places is ordered: a longer alias must precede any shorter alias it
// contains, and specific places precede the seas around them.
var places = []place{
	{region: ocean.Region{ID: "mumbai", Name: "Mumbai", BoundingBox: ocean.BoundingBox{North: 19.3, South: 18.8, East: 73.0, West: 72.6}}, aliases: []string{"navi mumbai", "mumbai", "bombay"}},
	{region: ocean.Region{ID: "chennai", Name: "Chennai", BoundingBox: ocean.BoundingBox{North: 13.3, South: 12.8, East: 80.5, West: 80.2}}, aliases: []string{"chennai", "madras"}},
	{region: ocean.Region{ID: "kochi", Name: "Kochi", BoundingBox: ocean.BoundingBox{North: 10.1, South: 9.8, East: 76.4, West: 76.1}}, aliases: []string{"kochi", "cochin"}},
	{region: ocean.Region{ID: "goa", Name: "Goa", BoundingBox: ocean.BoundingBox{North: 15.8, South: 14.9, East: 74.2, West: 73.6}}, aliases: []string{"goa"}},
	{region: ocean.Region{ID: "visakhapatnam", Name: "Visakhapatnam", BoundingBox: ocean.BoundingBox{North: 17.9, South: 17.5, East: 83.5, West: 83.2}}, aliases: []string{"visakhapatnam", "vizag"}},
	{region: ocean.Region{ID: "kolkata", Name: "Kolkata", BoundingBox: ocean.BoundingBox{North: 22.0, South: 21.4, East: 88.4, West: 87.8}}, aliases: []string{"kolkata", "calcutta"}},
	{region: ocean.Region{ID: "san-francisco", Name: "San Francisco", BoundingBox: ocean.BoundingBox{North: 38.0, South: 37.6, East: -122.3, West: -122.7}, StationID: "9414290"}, aliases: []string{"san francisco bay", "san francisco"}},
	{region: ocean.Region{ID: "new-york", Name: "New York", BoundingBox: ocean.BoundingBox{North: 40.8, South: 40.5, East: -73.9, West: -74.2}, StationID: "8518750"}, aliases: []string{"new york harbor", "new york", "nyc"}},
	{region: ocean.Region{ID: "honolulu", Name: "Honolulu", BoundingBox: ocean.BoundingBox{North: 21.4, South: 21.2, East: -157.7, West: -158.0}, StationID: "1612340"}, aliases: []string{"honolulu", "oahu"}},
	{region: ocean.Region{ID: "seattle", Name: "Seattle", BoundingBox: ocean.BoundingBox{North: 47.8, South: 47.4, East: -122.2, West: -122.6}, StationID: "9447130"}, aliases: []string{"puget sound", "seattle"}},
	{region: ocean.Region{ID: "miami", Name: "Miami", BoundingBox: ocean.BoundingBox{North: 25.9, South: 25.6, East: -80.0, West: -80.3}, StationID: "8723214"}, aliases: []string{"biscayne bay", "miami"}},
	{region: ocean.Region{ID: "gulf-of-mannar", Name: "Gulf of Mannar", BoundingBox: ocean.BoundingBox{North: 9.5, South: 8.0, East: 79.5, West: 78.0}}, aliases: []string{"gulf of mannar", "mannar"}},
	{region: ocean.Region{ID: "lakshadweep-sea", Name: "Lakshadweep Sea", BoundingBox: ocean.BoundingBox{North: 14, South: 8, East: 76, West: 71}}, aliases: []string{"lakshadweep sea", "laccadive sea", "lakshadweep"}},
	{region: ocean.Region{ID: "andaman-sea", Name: "Andaman Sea", BoundingBox: ocean.BoundingBox{North: 16, South: 5, East: 99, West: 92}}, aliases: []string{"andaman sea", "andaman"}},
	{region: ocean.Region{ID: "sri-lanka", Name: "Sri Lanka", BoundingBox: ocean.BoundingBox{North: 10, South: 5.8, East: 82, West: 79.5}}, aliases: []string{"sri lanka", "colombo"}},
	{region: ocean.Region{ID: "maldives", Name: "Maldives", BoundingBox: ocean.BoundingBox{North: 7.2, South: -0.8, East: 74, West: 72.5}}, aliases: []string{"maldives", "male atoll"}},
	{region: ocean.Region{ID: "arabian-sea", Name: "Arabian Sea", BoundingBox: ocean.BoundingBox{North: 25, South: 5, East: 77, West: 50}}, aliases: []string{"arabian sea"}},
	{region: ocean.Region{ID: "bay-of-bengal", Name: "Bay of Bengal", BoundingBox: ocean.BoundingBox{North: 23, South: 5, East: 95, West: 80}}, aliases: []string{"bay of bengal", "bengal"}},
}

// shortAlias is the length at or below which an alias must not be glued
// to other letters, so "goa" does not match "goal".
const shortAlias = 3

// Resolver maps free text to a known region.
type Resolver struct {
	entries []resolverEntry
}

type resolverEntry struct {
	region  ocean.Region
	matches []func(string) bool
}

// NewResolver compiles the built-in place table.
func NewResolver() *Resolver {
	entries := make([]resolverEntry, 0, len(places))
	for _, p := range places {
		entry := resolverEntry{region: p.region}
		for _, alias := range p.aliases {
			entry.matches = append(entry.matches, aliasMatcher(alias))
		}
		entries = append(entries, entry)
	}
	return &Resolver{entries: entries}
}

// Resolve returns the first table entry whose alias appears in text, or
// DefaultRegion. Matching is a case-insensitive substring match over text
// with whitespace runs folded to one space.
func (r *Resolver) Resolve(text string) ocean.Region {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	for _, entry := range r.entries {
		for _, match := range entry.matches {
			if match(normalized) {
				return entry.region
			}
		}
	}
	return DefaultRegion
}

// Regions lists every known region in table order.
func (r *Resolver) Regions() []ocean.Region {
	out := make([]ocean.Region, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.region)
	}
	return out
}

func aliasMatcher(alias string) func(string) bool {
	alias = strings.Join(strings.Fields(strings.ToLower(alias)), " ")
	if len(alias) > shortAlias {
		return func(text string) bool { return strings.Contains(text, alias) }
	}
	pattern := regexp.MustCompile(`(?:^|[^a-z])` + regexp.QuoteMeta(alias) + `(?:[^a-z]|$)`)
	return pattern.MatchString
}
