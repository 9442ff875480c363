package matching

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolqc/protocolqc/internal/domain"
)

func TestEngine_Evaluate_FullMatch(t *testing.T) {
	p := studyProtocol()

	require.NoError(t, quietEngine().Evaluate(p, studySeries()))

	assert.Equal(t, domain.StateEvaluated, p.State)
	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.False(t, p.MissingSeries)
	assert.False(t, p.Incomplete)
	assert.Equal(t, domain.OrderingCorrect, p.Ordering)
	assert.True(t, p.Pairing.Checked)
	assert.True(t, p.Pairing.Correct)
	assert.Equal(t, "paired_correctly", p.Pairing.Tag())
	assert.Zero(t, p.ExtraSeries)
	assert.Empty(t, p.ExtraLabels)
	for _, a := range p.Acquisitions {
		assert.Equal(t, domain.StatusMatch, a.Status, a.Name)
	}
}

func TestEngine_Evaluate_MissingAcquisition(t *testing.T) {
	p := studyProtocol()
	series := studySeries()[:3]

	require.NoError(t, quietEngine().Evaluate(p, series))

	bold, ok := p.Acquisition("bold")
	require.True(t, ok)
	assert.Equal(t, domain.StatusNoMatch, bold.Status)
	assert.InDelta(t, 2.0/3.0, p.Score, 1e-9)
	assert.True(t, p.MissingSeries)
	assert.False(t, p.Pairing.Checked, "pairing requires a full match")
	assert.Equal(t, "unchecked", p.Pairing.Tag())
}

func TestEngine_Evaluate_OptionalAcquisition(t *testing.T) {
	p := studyProtocol()
	bold, _ := p.Acquisition("bold")
	bold.Optional = true

	t.Run("missing", func(t *testing.T) {
		require.NoError(t, quietEngine().Evaluate(p, studySeries()[:3]))
		assert.Equal(t, domain.StatusOptionalMissing, bold.Status)
		assert.InDelta(t, 1.0, p.Score, 1e-9)
		assert.Equal(t, domain.OptionalNoneFound, p.OptionalScans)
	})

	t.Run("found", func(t *testing.T) {
		require.NoError(t, quietEngine().Evaluate(p, studySeries()))
		assert.Equal(t, domain.StatusOptional, bold.Status)
		assert.InDelta(t, 1.0, p.Score, 1e-9)
		assert.Equal(t, domain.OptionalFound, p.OptionalScans)
	})
}

func TestEngine_Evaluate_Incomplete(t *testing.T) {
	p := studyProtocol()
	anat, _ := p.Acquisition("anat")
	anat.Series[0].FileCount = domain.ExactFileCount(192)

	require.NoError(t, quietEngine().Evaluate(p, studySeries()))

	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.True(t, anat.Incomplete)
	assert.True(t, p.Incomplete)
}

func TestEngine_Evaluate_DuplicatesExpected(t *testing.T) {
	p := studyProtocol()
	bold, _ := p.Acquisition("bold")
	bold.Duplicates = domain.DuplicatePolicy{Allowed: true, Expected: 3}
	series := append(studySeries(), observed(5, "bold", 300), observed(6, "bold", 300))

	require.NoError(t, quietEngine().Evaluate(p, series))

	assert.Equal(t, domain.StatusMatchDuplicates, bold.Series[0].Status)
	assert.Equal(t, 2, bold.Series[0].Duplicates)
	assert.Equal(t, domain.StatusDuplicatesExpected, bold.Status)
	assert.Equal(t, 2, bold.Duplicated)
	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.True(t, p.DuplicatesExpected)
	assert.False(t, p.DuplicatesUnexpected)
	assert.True(t, p.Pairing.Correct)
}

func TestEngine_Evaluate_UnexpectedDuplicates(t *testing.T) {
	p := studyProtocol()
	series := append(studySeries(), observed(5, "T1w", 176))

	require.NoError(t, quietEngine().Evaluate(p, series))

	anat, _ := p.Acquisition("anat")
	assert.Equal(t, domain.StatusMatchDuplicates, anat.Series[0].Status)
	assert.Equal(t, 1, anat.Series[0].Duplicates)
	assert.Equal(t, domain.StatusDuplicatesUnexpected, anat.Status)
	assert.True(t, p.DuplicatesUnexpected)
	assert.False(t, p.Pairing.Checked)
}

func TestEngine_Evaluate_Ordering(t *testing.T) {
	p := studyProtocol()
	series := []domain.DataSeries{
		observed(5, "T1w", 176),
		observed(2, "fmap_AP", 60),
		observed(3, "fmap_PA", 60),
		observed(4, "bold", 300),
	}

	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.Equal(t, domain.OrderingIncorrect, p.Ordering)

	anat, _ := p.Acquisition("anat")
	anat.IgnoreOrdering = true
	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.Equal(t, domain.OrderingCorrect, p.Ordering)

	p.CheckOrdering = false
	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.Equal(t, domain.OrderingUnchecked, p.Ordering)
}

func TestEngine_Evaluate_Pairing(t *testing.T) {
	tests := []struct {
		name     string
		position domain.PairPosition
		series   []domain.DataSeries
		want     bool
	}{
		{
			name:     "before",
			position: domain.PairBefore,
			series:   studySeries(),
			want:     true,
		},
		{
			name:     "gap between partner and acquisition",
			position: domain.PairBefore,
			series: []domain.DataSeries{
				observed(1, "T1w", 176),
				observed(2, "fmap_AP", 60),
				observed(3, "fmap_PA", 60),
				observed(4, "localizer", 3),
				observed(5, "bold", 300),
			},
			want: false,
		},
		{
			name:     "after",
			position: domain.PairAfter,
			series: []domain.DataSeries{
				observed(1, "T1w", 176),
				observed(2, "bold", 300),
				observed(3, "fmap_AP", 60),
				observed(4, "fmap_PA", 60),
			},
			want: true,
		},
		{
			name:     "after required but partner before",
			position: domain.PairAfter,
			series:   studySeries(),
			want:     false,
		},
		{
			name:     "both accepts before",
			position: domain.PairBoth,
			series:   studySeries(),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := studyProtocol()
			p.CheckOrdering = false
			bold, _ := p.Acquisition("bold")
			bold.Pairing.Position = tt.position

			require.NoError(t, quietEngine().Evaluate(p, tt.series))

			require.InDelta(t, 1.0, p.Score, 1e-9)
			assert.True(t, p.Pairing.Checked)
			assert.Equal(t, tt.want, p.Pairing.Correct)
		})
	}
}

func TestEngine_Evaluate_PairingWithSecondPartner(t *testing.T) {
	p := studyProtocol()
	p.CheckOrdering = false
	p.Acquisitions = append(p.Acquisitions, &domain.AcquisitionTemplate{
		Name:   "sbref",
		Series: []*domain.SeriesTemplate{describedSeries("sbref:run", "sbref")},
	})
	bold, _ := p.Acquisition("bold")
	bold.Pairing.With = []string{"sbref", "fmap"}

	series := []domain.DataSeries{
		observed(1, "T1w", 176),
		observed(2, "fmap_AP", 60),
		observed(3, "fmap_PA", 60),
		observed(4, "sbref", 1),
		observed(7, "bold", 300),
	}
	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.True(t, p.Pairing.Checked)
	assert.False(t, p.Pairing.Correct)

	// Directly after the first partner.
	series[4] = observed(5, "bold", 300)
	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.True(t, p.Pairing.Correct)

	// The second partner is expected one of its own blocks further away.
	series[4] = observed(6, "bold", 300)
	require.NoError(t, quietEngine().Evaluate(p, series))
	assert.True(t, p.Pairing.Correct)
}

func TestEngine_Evaluate_Extras(t *testing.T) {
	p := studyProtocol()
	series := append(studySeries(), observed(9, "scout", 3), observed(0, "localizer", 3))

	require.NoError(t, quietEngine().Evaluate(p, series))

	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.Equal(t, 2, p.ExtraSeries)
	assert.Equal(t, []string{"0:localizer", "9:scout"}, p.ExtraLabels)
}

func TestEngine_Evaluate_PartialMatchClaimsSeries(t *testing.T) {
	p := studyProtocol()
	series := studySeries()
	series[0].Attributes["ImageType"] = []any{"ORIGINAL", "PRIMARY", "NORM"}

	require.NoError(t, quietEngine().Evaluate(p, series))

	anat, _ := p.Acquisition("anat")
	assert.Equal(t, domain.StatusPartial, anat.Series[0].Status)
	assert.Equal(t, domain.StatusNoMatch, anat.Status)
	assert.Zero(t, p.ExtraSeries)
}

func TestEngine_Evaluate_DateRestriction(t *testing.T) {
	tests := []struct {
		name  string
		dates domain.DateRestriction
		want  domain.EvaluationState
	}{
		{
			name:  "inside",
			dates: domain.DateRestriction{Start: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
			want:  domain.StateEvaluated,
		},
		{
			name:  "before start",
			dates: domain.DateRestriction{Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
			want:  domain.StateSkipped,
		},
		{
			name:  "after end",
			dates: domain.DateRestriction{End: time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)},
			want:  domain.StateSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := studyProtocol()
			p.Dates = tt.dates

			require.NoError(t, quietEngine().Evaluate(p, studySeries()))
			assert.Equal(t, tt.want, p.State)
		})
	}

}

func TestEngine_Evaluate_SeriesDateShapes(t *testing.T) {
	// studySeries is acquired 2022-03-15; the first series is rewritten.
	tests := []struct {
		name string
		date any
		drop bool
		want domain.EvaluationState
	}{
		{name: "json number before start", date: float64(20100101), want: domain.StateSkipped},
		{name: "json number inside", date: float64(20220315), want: domain.StateEvaluated},
		{name: "missing date is ignored", drop: true, want: domain.StateEvaluated},
		{name: "malformed date skips", date: "15/03/2022", want: domain.StateSkipped},
		{name: "non numeric value skips", date: []any{"20220315"}, want: domain.StateSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := studyProtocol()
			p.Dates = domain.DateRestriction{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
			series := studySeries()
			if tt.drop {
				delete(series[0].Attributes, domain.AttrSeriesDate)
			} else {
				series[0].Attributes[domain.AttrSeriesDate] = tt.date
			}

			require.NoError(t, quietEngine().Evaluate(p, series))
			assert.Equal(t, tt.want, p.State)
		})
	}

	t.Run("no dates at all", func(t *testing.T) {
		p := studyProtocol()
		p.Dates = domain.DateRestriction{Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
		series := studySeries()
		for i := range series {
			delete(series[i].Attributes, domain.AttrSeriesDate)
		}

		require.NoError(t, quietEngine().Evaluate(p, series))
		assert.Equal(t, domain.StateEvaluated, p.State)
	})
}

func TestEngine_Evaluate_AllOptional(t *testing.T) {
	p := &domain.ProtocolTemplate{
		Name: "optional",
		Acquisitions: []*domain.AcquisitionTemplate{
			{Name: "anat", Optional: true, Series: []*domain.SeriesTemplate{describedSeries("anat:T1w", "T1w")}},
			{Name: "dwi", Optional: true, Series: []*domain.SeriesTemplate{describedSeries("dwi:run", "dwi")}},
		},
		AllowExtras: true,
	}

	require.NoError(t, quietEngine().Evaluate(p, studySeries()))

	assert.Equal(t, domain.StateEvaluated, p.State)
	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.False(t, p.MissingSeries)
	assert.Equal(t, domain.OptionalFound, p.OptionalScans)
}

func TestEngine_Evaluate_AcquisitionWithoutSeries(t *testing.T) {
	p := studyProtocol()
	p.Acquisitions = append(p.Acquisitions, &domain.AcquisitionTemplate{Name: "empty"})

	require.NoError(t, quietEngine().Evaluate(p, studySeries()))

	empty, _ := p.Acquisition("empty")
	assert.Equal(t, domain.StatusNoMatch, empty.Status)
	assert.False(t, math.IsNaN(p.Score))
	assert.InDelta(t, 0.75, p.Score, 1e-9)
	assert.True(t, p.MissingSeries)
}

func TestEngine_Evaluate_MalformedTemplate(t *testing.T) {
	p := studyProtocol()
	bold, _ := p.Acquisition("bold")
	bold.Series[0].Fields = append(bold.Series[0].Fields,
		domain.FieldSpec{Name: "EchoTime", Kind: domain.CompareInRange, Reference: "short"})

	err := quietEngine().Evaluate(p, studySeries())

	var te *domain.TemplateError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "study", te.Protocol)
	assert.Equal(t, "bold", te.Acquisition)
	assert.Equal(t, "bold:run", te.Series)
	assert.Equal(t, "EchoTime", te.Field)
	assert.Equal(t, domain.StateFailed, p.State)
	assert.NotEmpty(t, p.Error)
	assert.False(t, p.Evaluated())
}

func TestEngine_Evaluate_Deterministic(t *testing.T) {
	p := studyProtocol()
	series := append(studySeries(), observed(7, "bold", 300), observed(8, "extra", 1))
	e := quietEngine()

	require.NoError(t, e.Evaluate(p, series))
	first := snapshot(p)
	require.NoError(t, e.Evaluate(p, series))

	assert.Equal(t, first, snapshot(p))
}

type evaluation struct {
	Score      float64
	Ordering   domain.OrderingStatus
	Pairing    domain.PairingReport
	Extras     []string
	Statuses   []domain.MatchStatus
	Attempts   []int
	Duplicates bool
}

func snapshot(p *domain.ProtocolTemplate) evaluation {
	e := evaluation{
		Score:      p.Score,
		Ordering:   p.Ordering,
		Pairing:    p.Pairing,
		Extras:     p.ExtraLabels,
		Duplicates: p.DuplicatesUnexpected,
	}
	for _, a := range p.Acquisitions {
		e.Statuses = append(e.Statuses, a.Status)
	}
	for _, s := range p.Series() {
		e.Attempts = append(e.Attempts, len(s.Attempts))
	}
	return e
}
