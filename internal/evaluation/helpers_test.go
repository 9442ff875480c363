package evaluation

import (
	"io"
	"log/slog"

	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/template"
)

const siteTemplate = `{
  "GENERAL": {"check_ordering": true},
  "anat": {"series": {"T1w": {"num_files": 176, "fields": {
    "SeriesDescription": {"exactly": "T1w"},
    "EchoTime": {"in_range": [2, 3]}
  }}}},
  "func": {"series": {"bold": {"fields": {
    "SeriesDescription": {"exactly": "bold"},
    "RepetitionTime": {"exactly": 800}
  }}}}
}`

const brokenTemplate = `{"anat": {"series": {"T1w": {"fields": {"EchoTime": {"in_range": 5}}}}}}`

func source(name, data string) template.Source {
	return template.Source{Name: name, Format: template.FormatJSON, Data: []byte(data)}
}

func subjectSeries() []domain.DataSeries {
	return []domain.DataSeries{
		domain.NewDataSeries(map[string]any{
			domain.AttrSeriesNumber:      float64(1),
			domain.AttrSeriesDescription: "T1w",
			domain.AttrPatientID:         "SUB01",
			"EchoTime":                   2.26,
		}, 176, ""),
		domain.NewDataSeries(map[string]any{
			domain.AttrSeriesNumber:      float64(2),
			domain.AttrSeriesDescription: "bold",
			domain.AttrPatientID:         "SUB01",
			"RepetitionTime":             800.0,
		}, 300, ""),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
