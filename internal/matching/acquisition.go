package matching

import (
	"slices"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// seriesTally buckets the series statuses of one acquisition.
type seriesTally struct {
	total      int
	unique     int
	duplicated int
	unmatched  int
	dupCounts  []int
}

func (c seriesTally) allUnique() bool {
	return c.unique == c.total && c.duplicated == 0 && c.unmatched == 0
}

// acquisitionRule is one row of the acquisition decision table.
type acquisitionRule struct {
	name    string
	applies func(a *domain.AcquisitionTemplate, c seriesTally) bool
	apply   func(a *domain.AcquisitionTemplate, c seriesTally)
}

// acquisitionRules is evaluated top to bottom and the first applicable rule
// wins. Conditions overlap, so the order is significant.
var acquisitionRules = []acquisitionRule{
	{
		name: "no series",
		applies: func(_ *domain.AcquisitionTemplate, c seriesTally) bool {
			return c.total == 0
		},
		apply: func(a *domain.AcquisitionTemplate, _ seriesTally) {
			a.Status = optional(a, domain.StatusNoMatch, domain.StatusOptionalMissing)
		},
	},
	{
		name: "all unique",
		applies: func(a *domain.AcquisitionTemplate, c seriesTally) bool {
			return c.allUnique() && a.Duplicates.Expected == 0
		},
		apply: func(a *domain.AcquisitionTemplate, c seriesTally) {
			a.Status = optional(a, domain.StatusMatch, domain.StatusOptional)
			a.Score = float64(c.unique) / float64(c.total)
		},
	},
	{
		name: "all unique but duplicates expected",
		applies: func(a *domain.AcquisitionTemplate, c seriesTally) bool {
			return c.allUnique() && a.Duplicates.Expected > 0
		},
		apply: func(a *domain.AcquisitionTemplate, c seriesTally) {
			a.Status = domain.StatusDuplicatesUnexpected
			a.Score = float64(c.unique) / float64(c.total) / float64(a.Duplicates.Expected)
		},
	},
	{
		name: "partial",
		applies: func(_ *domain.AcquisitionTemplate, c seriesTally) bool {
			return c.unmatched > 0 && c.unmatched < c.total && c.unique != 0 && c.duplicated == 0
		},
		apply: func(a *domain.AcquisitionTemplate, c seriesTally) {
			a.Status = optional(a, domain.StatusPartial, domain.StatusOptionalPartial)
			a.Score = float64(c.unique) / float64(c.total)
		},
	},
	{
		name: "duplicated",
		applies: func(_ *domain.AcquisitionTemplate, c seriesTally) bool {
			return c.duplicated > 0
		},
		apply: classifyDuplicates,
	},
	{
		name:    "unmatched",
		applies: func(*domain.AcquisitionTemplate, seriesTally) bool { return true },
		apply: func(a *domain.AcquisitionTemplate, _ seriesTally) {
			a.Status = optional(a, domain.StatusNoMatch, domain.StatusOptionalMissing)
		},
	},
}

func optional(a *domain.AcquisitionTemplate, required, opt domain.MatchStatus) domain.MatchStatus {
	if a.Optional {
		return opt
	}
	return required
}

// classifyDuplicates resolves acquisitions with at least one duplicated
// series. Only when every series is duplicated the same number of times is
// the duplicate policy consulted.
func classifyDuplicates(a *domain.AcquisitionTemplate, c seriesTally) {
	if a.Duplicates.Expected > 0 {
		a.Score = float64(slices.Min(c.dupCounts)+1) / float64(a.Duplicates.Expected)
	} else {
		a.Score = 0
	}

	uniform := true
	for _, n := range c.dupCounts[1:] {
		if n != c.dupCounts[0] {
			uniform = false
			break
		}
	}
	if !uniform || c.duplicated != c.total || c.unique != 0 || c.unmatched != 0 {
		a.Status = optional(a, domain.StatusDuplicatesWithPartialDuplicates, domain.StatusOptionalDuplicatesPartialDuplicates)
		return
	}

	a.Duplicated = c.dupCounts[0]
	a.Score = 1
	switch {
	case !a.Duplicates.Allowed:
		a.Status = domain.StatusDuplicatesUnexpected
	case a.Duplicates.Expected > 0 && a.Duplicated == a.Duplicates.Expected-1:
		a.Status = domain.StatusDuplicatesExpected
	case a.Duplicates.Expected > 0:
		a.Status = domain.StatusDuplicatesUnexpected
	default:
		a.Status = domain.StatusDuplicatesAllowed
	}
}

// ClassifyAcquisition sets the status, score and completeness of a from the
// already classified statuses of its series.
func ClassifyAcquisition(a *domain.AcquisitionTemplate) string {
	c := seriesTally{total: len(a.Series)}
	a.Incomplete = false
	a.Duplicated = 0
	a.Score = 0
	for _, s := range a.Series {
		switch s.Status {
		case domain.StatusMatch:
			c.unique++
		case domain.StatusMatchDuplicates:
			c.duplicated++
			c.dupCounts = append(c.dupCounts, s.Duplicates)
		case domain.StatusNoMatch, domain.StatusPartial, domain.StatusPartialDuplicates:
			c.unmatched++
		}
		if s.Incomplete {
			a.Incomplete = true
		}
	}

	for _, rule := range acquisitionRules {
		if rule.applies(a, c) {
			rule.apply(a, c)
			return rule.name
		}
	}
	return ""
}
