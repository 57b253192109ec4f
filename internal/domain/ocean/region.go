package ocean

// BoundingBox is a geographic rectangle in decimal degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Center returns the midpoint latitude and longitude.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// Region is a named area of interest resolved from query text.
type Region struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	BoundingBox BoundingBox `json:"boundingBox"`
	StationID   string      `json:"stationId,omitempty"`
}

// HasStation reports whether the region maps to a tide gauge.
func (r Region) HasStation() bool {
	return r.StationID != ""
}
