package matching

import (
	"io"
	"log/slog"

	"github.com/protocolqc/protocolqc/internal/domain"
)

func quietEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func describedSeries(name, description string) *domain.SeriesTemplate {
	return &domain.SeriesTemplate{
		Name:          name,
		MinMatchScore: 0.5,
		Fields: []domain.FieldSpec{
			{Name: domain.AttrSeriesDescription, Kind: domain.CompareExactly, Reference: description},
			{Name: "ImageType", Kind: domain.CompareExactly, Reference: []any{"ORIGINAL", "PRIMARY"}},
		},
	}
}

func observed(number int, description string, files int) domain.DataSeries {
	return domain.NewDataSeries(map[string]any{
		domain.AttrSeriesNumber:      float64(number),
		domain.AttrSeriesDescription: description,
		domain.AttrSeriesDate:        "20220315",
		"ImageType":                  []any{"ORIGINAL", "PRIMARY"},
	}, files, "")
}

// studyProtocol has an anatomical scan, a two-series field map, and a
// functional scan that must directly follow the field map.
func studyProtocol() *domain.ProtocolTemplate {
	return &domain.ProtocolTemplate{
		Name:          "study",
		CheckOrdering: true,
		Acquisitions: []*domain.AcquisitionTemplate{
			{Name: "anat", Series: []*domain.SeriesTemplate{describedSeries("anat:T1w", "T1w")}},
			{Name: "fmap", Series: []*domain.SeriesTemplate{
				describedSeries("fmap:AP", "fmap_AP"),
				describedSeries("fmap:PA", "fmap_PA"),
			}},
			{
				Name:    "bold",
				Series:  []*domain.SeriesTemplate{describedSeries("bold:run", "bold")},
				Pairing: &domain.Pairing{Position: domain.PairBefore, With: []string{"fmap"}},
			},
		},
	}
}

func studySeries() []domain.DataSeries {
	return []domain.DataSeries{
		observed(1, "T1w", 176),
		observed(2, "fmap_AP", 60),
		observed(3, "fmap_PA", 60),
		observed(4, "bold", 300),
	}
}
