// Package dataset discovers observed series from decoded header records.
//
// Records are produced by an upstream header reader as one JSON object per
// image file. The loader groups them by SeriesInstanceUID into
// domain.DataSeries values ordered by SeriesNumber. A JSON manifest of
// already grouped series is accepted as well.
package dataset

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Record is one decoded image header.
type Record struct {
	Path       string
	Attributes map[string]any
}

// ManifestEntry is one pre-grouped series in a manifest file.
type ManifestEntry struct {
	Attributes map[string]any `json:"attributes" validate:"required"`
	NumFiles   int            `json:"num_files"  validate:"min=0"`
	Path       string         `json:"path,omitempty"`
}

// Loader reads observed series from the filesystem.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader that warns about unusable records on logger.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default().With("component", "dataset")
	}
	return &Loader{logger: logger}
}

// Load reads path as a directory of header records or, for a regular file,
// as a manifest. It returns domain.ErrNoSeries when nothing usable is found.
func (l *Loader) Load(path string) ([]domain.DataSeries, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat data path: %w", err)
	}

	var series []domain.DataSeries
	if info.IsDir() {
		records, err := l.ReadRecords(path)
		if err != nil {
			return nil, err
		}
		series = Group(records)
	} else {
		series, err = ReadManifest(path)
		if err != nil {
			return nil, err
		}
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoSeries, path)
	}
	l.logger.Info("discovered data series", "path", path, "series", len(series))
	return series, nil
}

// ReadRecords walks dir for .json header records. Files that cannot be
// decoded, or that lack a SeriesInstanceUID, are skipped with a warning.
func (l *Loader) ReadRecords(dir string) ([]Record, error) {
	var records []Record
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read record %s: %w", path, err)
		}
		var attrs map[string]any
		if err := json.Unmarshal(data, &attrs); err != nil {
			l.logger.Warn("skipping undecodable record", "path", path, "error", err)
			return nil
		}
		if uid, _ := attrs[domain.AttrSeriesInstanceUID].(string); uid == "" {
			l.logger.Warn("skipping record without series identifier", "path", path)
			return nil
		}
		records = append(records, Record{Path: path, Attributes: attrs})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk records: %w", err)
	}
	return records, nil
}

// Group collects records sharing a SeriesInstanceUID into one observed
// series. The first record of a group supplies its attributes and the
// groups are ordered by SeriesNumber, ties keeping discovery order.
func Group(records []Record) []domain.DataSeries {
	type group struct {
		first Record
		count int
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range records {
		uid, _ := r.Attributes[domain.AttrSeriesInstanceUID].(string)
		g, ok := groups[uid]
		if !ok {
			g = &group{first: r}
			groups[uid] = g
			order = append(order, uid)
		}
		g.count++
	}

	series := make([]domain.DataSeries, 0, len(order))
	for _, uid := range order {
		g := groups[uid]
		series = append(series, domain.NewDataSeries(g.first.Attributes, g.count, filepath.Dir(g.first.Path)))
	}
	sortByOrdinal(series)
	return series
}

// ReadManifest reads a JSON array of pre-grouped series.
func ReadManifest(path string) ([]domain.DataSeries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}

	series := make([]domain.DataSeries, 0, len(entries))
	for i, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		series = append(series, domain.NewDataSeries(e.Attributes, e.NumFiles, e.Path))
	}
	sortByOrdinal(series)
	return series, nil
}

func sortByOrdinal(series []domain.DataSeries) {
	slices.SortStableFunc(series, func(a, b domain.DataSeries) int { return a.Ordinal - b.Ordinal })
}

// PatientID returns the subject identifier recorded on the first series.
func PatientID(series []domain.DataSeries) string {
	if len(series) == 0 {
		return ""
	}
	if id, ok := series[0].Attribute(domain.AttrPatientID).(string); ok {
		return id
	}
	return ""
}
