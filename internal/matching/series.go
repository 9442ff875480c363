package matching

import (
	"strings"

	"github.com/protocolqc/protocolqc/internal/compare"
	"github.com/protocolqc/protocolqc/internal/domain"
)

// FieldResult is the outcome of comparing one field of a series template.
type FieldResult struct {
	Field    domain.FieldSpec
	Observed any
	Tally    domain.Tally
}

// ScoreSeries compares every field of s with ds. The score is the fraction
// of atomic comparisons that matched across all fields, so a list-valued
// field weighs as much as its number of elements.
func ScoreSeries(s *domain.SeriesTemplate, ds domain.DataSeries) (domain.SeriesMatch, []FieldResult, error) {
	results := make([]FieldResult, 0, len(s.Fields))
	var total domain.Tally
	for _, f := range s.Fields {
		observed := ds.Attribute(f.Name)
		t, err := compare.Field(f, observed)
		if err != nil {
			return domain.SeriesMatch{}, nil, domain.Locate(err, domain.TemplateError{Series: s.Name})
		}
		total = total.Combine(t)
		results = append(results, FieldResult{Field: f, Observed: observed, Tally: t})
	}

	return domain.SeriesMatch{
		Label:    ds.Label,
		Score:    total.Fraction(),
		Complete: s.FileCount.Satisfied(ds.NumFiles),
		Ordinal:  ds.Ordinal,
	}, results, nil
}

// SimilarLabel is a prefilter that rules out observed series whose
// description cannot match the template's SeriesDescription field. Series
// without a description, and templates without a string description
// reference, always pass.
func SimilarLabel(s *domain.SeriesTemplate, ds domain.DataSeries) (bool, error) {
	f, ok := s.Field(domain.AttrSeriesDescription)
	if !ok {
		return true, nil
	}
	observed, _ := ds.Attribute(domain.AttrSeriesDescription).(string)
	if observed == "" {
		return true, nil
	}
	reference, ok := f.Reference.(string)
	if !ok {
		return true, nil
	}

	switch f.Kind {
	case domain.CompareRegex:
		matched, err := compare.Search(reference, observed)
		if err != nil {
			return false, domain.Locate(err, domain.TemplateError{Series: s.Name, Field: f.Name, Comparison: f.Kind})
		}
		return matched, nil
	case domain.CompareExactly, domain.CompareExactlyIfPresent:
		return strings.Contains(observed, reference), nil
	default:
		return true, nil
	}
}

// ClassifySeries sets the status of s from its accumulated attempts. Full
// matches take precedence over partial ones; partial matches must score
// strictly above the template's minimum match score.
func ClassifySeries(s *domain.SeriesTemplate) {
	var exact, partial []domain.SeriesMatch
	for _, m := range s.Attempts {
		switch {
		case m.IsExact():
			exact = append(exact, m)
		case s.MinMatchScore < m.Score && m.Score < 1:
			partial = append(partial, m)
		}
	}

	s.Duplicates = 0
	switch {
	case len(exact) == 1:
		s.Status, s.Matches = domain.StatusMatch, exact
	case len(exact) > 1:
		s.Status, s.Matches = domain.StatusMatchDuplicates, exact
		s.Duplicates = len(exact) - 1
	case len(partial) == 1:
		s.Status, s.Matches = domain.StatusPartial, partial
	case len(partial) > 1:
		s.Status, s.Matches = domain.StatusPartialDuplicates, partial
	default:
		s.Status, s.Matches = domain.StatusNoMatch, nil
	}

	s.Incomplete = false
	for _, m := range s.Matches {
		if !m.Complete {
			s.Incomplete = true
			break
		}
	}
}
