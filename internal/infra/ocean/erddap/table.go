package erddap

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// table is the ERDDAP .json response body shared by tabledap and griddap.
type table struct {
	Table struct {
		ColumnNames []string            `json:"columnNames"`
		ColumnTypes []string            `json:"columnTypes"`
		ColumnUnits []string            `json:"columnUnits"`
		Rows        [][]json.RawMessage `json:"rows"`
	} `json:"table"`
}

// columns resolves the indexes of the named columns.
func (t table) columns(names ...string) ([]int, error) {
	index := make(map[string]int, len(t.Table.ColumnNames))
	for i, name := range t.Table.ColumnNames {
		index[name] = i
	}
	out := make([]int, len(names))
	for i, name := range names {
		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("column %q missing", name)
		}
		out[i] = idx
	}
	return out, nil
}

func cell(row []json.RawMessage, idx int) json.RawMessage {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func floatCell(row []json.RawMessage, idx int) (float64, bool) {
	raw := cell(row, idx)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		// Some servers quote numbers.
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringCell(row []json.RawMessage, idx int) string {
	raw := cell(row, idx)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func timeCell(row []json.RawMessage, idx int) (time.Time, bool) {
	s := stringCell(row, idx)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// constraint renders an ERDDAP tabledap constraint such as time>=... with
// the operator percent-encoded.
func constraint(name, op, value string) string {
	return "&" + name + url.QueryEscape(op) + value
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
