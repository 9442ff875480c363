package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Header attribute names the engine itself interprets.
const (
	AttrSeriesNumber      = "SeriesNumber"
	AttrSeriesDescription = "SeriesDescription"
	AttrSeriesDate        = "SeriesDate"
	AttrSeriesInstanceUID = "SeriesInstanceUID"
	AttrPatientID         = "PatientID"
)

// DataSeries is one observed group of records sharing a series identifier.
// It is read-only to the matchers.
type DataSeries struct {
	Attributes map[string]any `json:"attributes"`
	NumFiles   int            `json:"num_files"  validate:"min=0"`
	Path       string         `json:"path,omitempty"`
	Ordinal    int            `json:"ordinal"`
	Label      string         `json:"label"      validate:"required"`
}

// NewDataSeries builds an observed series from decoded header attributes.
// The ordinal comes from SeriesNumber and the label combines it with the
// series description.
func NewDataSeries(attrs map[string]any, numFiles int, path string) DataSeries {
	ordinal, _ := AsInt(attrs[AttrSeriesNumber])
	desc, _ := attrs[AttrSeriesDescription].(string)
	return DataSeries{
		Attributes: attrs,
		NumFiles:   numFiles,
		Path:       path,
		Ordinal:    ordinal,
		Label:      fmt.Sprintf("%d:%s", ordinal, desc),
	}
}

// Attribute returns the observed value of a header field, or nil if absent.
func (d DataSeries) Attribute(name string) any {
	if d.Attributes == nil {
		return nil
	}
	return d.Attributes[name]
}

// String describes the series for logs.
func (d DataSeries) String() string {
	return fmt.Sprintf("%s with %d file(s)", d.Label, d.NumFiles)
}

// Date parses the SeriesDate attribute. Decoded numbers such as 20220315
// are read as the integer's digits. A missing attribute returns
// ErrNoSeriesDate.
func (d DataSeries) Date() (time.Time, error) {
	raw := d.Attribute(AttrSeriesDate)
	if raw == nil {
		return time.Time{}, fmt.Errorf("series %s: %w", d.Label, ErrNoSeriesDate)
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	default:
		n, ok := AsInt(v)
		if !ok {
			return time.Time{}, fmt.Errorf("series %s has invalid %s %v", d.Label, AttrSeriesDate, v)
		}
		s = strconv.Itoa(n)
	}
	date, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("series %s has invalid %s %q: %w", d.Label, AttrSeriesDate, s, err)
	}
	return date, nil
}

// Validate checks the observed series.
func (d DataSeries) Validate() error {
	return validate.Struct(d)
}

// AsInt coerces JSON-decoded numerics and numeric strings to int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
