package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDuplicatePolicy(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		allowed  *bool
		expected int
		want     DuplicatePolicy
		wantErr  bool
	}{
		{name: "unset", want: DuplicatePolicy{}},
		{name: "allowed only", allowed: &yes, want: DuplicatePolicy{Allowed: true}},
		{name: "explicitly disallowed", allowed: &no, want: DuplicatePolicy{}},
		{name: "expected implies allowed", expected: 3, want: DuplicatePolicy{Allowed: true, Expected: 3}},
		{name: "expected and allowed", allowed: &yes, expected: 2, want: DuplicatePolicy{Allowed: true, Expected: 2}},
		{name: "expected but disallowed", allowed: &no, expected: 2, wantErr: true},
		{name: "negative expected", expected: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDuplicatePolicy(tt.allowed, tt.expected)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTemplate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileCount_Satisfied(t *testing.T) {
	assert.True(t, AnyFileCount().Satisfied(0))
	assert.True(t, ExactFileCount(176).Satisfied(176))
	assert.False(t, ExactFileCount(176).Satisfied(175))
	assert.True(t, FileCountRange(10, 20).Satisfied(10))
	assert.True(t, FileCountRange(10, 20).Satisfied(20))
	assert.False(t, FileCountRange(10, 20).Satisfied(21))

	assert.Equal(t, "any", AnyFileCount().String())
	assert.Equal(t, "176", ExactFileCount(176).String())
	assert.Equal(t, "[10, 20]", FileCountRange(10, 20).String())
}

func TestFileCount_Validate(t *testing.T) {
	require.NoError(t, FileCountRange(1, 1).Validate())
	assert.ErrorIs(t, FileCountRange(5, 1).Validate(), ErrInvalidTemplate)
	assert.ErrorIs(t, FileCount{Constrained: true, Min: -1, Max: 1}.Validate(), ErrInvalidTemplate)
}

func TestNewDataSeries(t *testing.T) {
	ds := NewDataSeries(map[string]any{
		AttrSeriesNumber:      float64(7),
		AttrSeriesDescription: "t1_mprage",
		AttrSeriesDate:        "20240131",
	}, 176, "/data/7")

	assert.Equal(t, 7, ds.Ordinal)
	assert.Equal(t, "7:t1_mprage", ds.Label)
	assert.Equal(t, "7:t1_mprage with 176 file(s)", ds.String())
	assert.Nil(t, ds.Attribute("EchoTime"))

	date, err := ds.Date()
	require.NoError(t, err)
	assert.Equal(t, 2024, date.Year())

	_, err = NewDataSeries(map[string]any{AttrSeriesDate: "31/01/2024"}, 1, "").Date()
	assert.Error(t, err)
}

func TestDataSeries_Date(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    time.Time
		wantErr error
	}{
		{name: "string", raw: "20100101", want: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "json number", raw: float64(20100101), want: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "integer", raw: 20221231, want: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "missing", raw: nil, wantErr: ErrNoSeriesDate},
		{name: "malformed string", raw: "2010-01-01"},
		{name: "not a date", raw: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := map[string]any{AttrSeriesNumber: float64(1)}
			if tt.raw != nil {
				attrs[AttrSeriesDate] = tt.raw
			}
			date, err := NewDataSeries(attrs, 1, "").Date()

			if tt.want.IsZero() {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NotErrorIs(t, err, ErrNoSeriesDate)
				}
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(date), "got %s", date)
		})
	}
}
