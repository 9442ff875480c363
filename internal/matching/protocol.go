package matching

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Engine evaluates protocol templates. It holds no per-evaluation state and
// is safe for concurrent use on distinct templates.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine that reports progress on logger.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default().With("component", "matching")
	}
	return &Engine{logger: logger}
}

// WithLogger returns a copy of the engine logging to logger. Protocol
// evaluations use it to route messages to a per-template log.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate resets p and matches it against series. A malformed template
// discovered while matching leaves p in the failed state and returns the
// error. Observed data outside the protocol's date restriction leaves p
// skipped and returns nil.
func (e *Engine) Evaluate(p *domain.ProtocolTemplate, series []domain.DataSeries) error {
	p.Reset()
	log := e.logger.With("protocol", p.Name)

	if skip := e.checkDates(log, p, series); skip {
		p.State = domain.StateSkipped
		return nil
	}

	if err := e.matchSeries(log, p, series); err != nil {
		err = domain.Locate(err, domain.TemplateError{Protocol: p.Name})
		p.State = domain.StateFailed
		p.Error = err.Error()
		log.Error("template evaluation failed", "error", err)
		return err
	}
	e.matchAcquisitions(log, p)

	scoreProtocol(p)
	e.checkOrdering(log, p)
	e.checkPairing(log, p)
	e.findExtras(log, p, series)

	p.State = domain.StateEvaluated
	log.Info("protocol evaluated",
		"score", p.Score,
		"missing_series", p.MissingSeries,
		"incomplete", p.Incomplete,
		"duplicates_unexpected", p.DuplicatesUnexpected,
		"ordering", string(p.Ordering),
		"pairing", p.Pairing.Tag(),
		"extra_series", p.ExtraSeries,
	)
	return nil
}

// checkDates reports whether any observed acquisition date falls outside the
// protocol's date restriction. Series without a date are ignored; a date
// that cannot be read cannot be shown to be allowed and skips the protocol.
func (e *Engine) checkDates(log *slog.Logger, p *domain.ProtocolTemplate, series []domain.DataSeries) bool {
	if !p.Dates.IsSet() {
		return false
	}

	unique := make(map[time.Time]struct{})
	for _, ds := range series {
		date, err := ds.Date()
		if errors.Is(err, domain.ErrNoSeriesDate) {
			log.Warn("ignoring series without a date", "series", ds.Label)
			continue
		}
		if err != nil {
			log.Warn("unreadable series date, skipping template", "series", ds.Label, "error", err)
			return true
		}
		unique[date] = struct{}{}
	}
	dates := make([]time.Time, 0, len(unique))
	for d := range unique {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	log.Info("checking acquisition dates", "dates", len(dates))

	for _, d := range dates {
		if !p.Dates.Allows(d) {
			log.Warn("acquisition date outside template date restriction, skipping template",
				"date", d.Format(domain.DateLayout),
				"start", formatBound(p.Dates.Start),
				"end", formatBound(p.Dates.End),
			)
			return true
		}
	}
	return false
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(time.DateOnly)
}

func (e *Engine) matchSeries(log *slog.Logger, p *domain.ProtocolTemplate, series []domain.DataSeries) error {
	for _, a := range p.Acquisitions {
		for _, s := range a.Series {
			if err := e.compareSeries(log, s, series); err != nil {
				return domain.Locate(err, domain.TemplateError{Acquisition: a.Name})
			}
			ClassifySeries(s)
			for _, m := range s.Matches {
				log.Info("series match",
					"acquisition", a.Name,
					"series", s.Name,
					"status", s.Status.Label(),
					"observed", m.Label,
					"score", fmt.Sprintf("%.2f", m.Score),
					"complete", m.Complete,
				)
			}
			if len(s.Matches) == 0 {
				log.Info("series match", "acquisition", a.Name, "series", s.Name, "status", s.Status.Label())
			}
		}
	}
	return nil
}

// compareSeries scores s against every observed series that passes the
// label prefilter and records the attempts.
func (e *Engine) compareSeries(log *slog.Logger, s *domain.SeriesTemplate, series []domain.DataSeries) error {
	for _, ds := range series {
		similar, err := SimilarLabel(s, ds)
		if err != nil {
			return err
		}
		if !similar {
			continue
		}

		match, results, err := ScoreSeries(s, ds)
		if err != nil {
			return err
		}
		s.Attempts = append(s.Attempts, match)

		if match.IsExact() && !match.Complete {
			log.Error("series has unexpected number of files",
				"series", s.Name,
				"observed", ds.Label,
				"files", ds.NumFiles,
				"expected", s.FileCount.String(),
			)
		}
		if match.IsExact() || match.Score <= s.MinMatchScore {
			continue
		}
		for _, r := range results {
			if r.Tally.Complete() {
				continue
			}
			log.Debug("field mismatch",
				"series", s.Name,
				"observed", ds.Label,
				"field", r.Field.Name,
				"comparison", r.Field.Kind.String(),
				"reference", r.Field.Reference,
				"value", r.Observed,
				"matched", fmt.Sprintf("%d of %d", r.Tally.Matches, r.Tally.Comparisons),
			)
		}
	}
	return nil
}

func (e *Engine) matchAcquisitions(log *slog.Logger, p *domain.ProtocolTemplate) {
	for _, a := range p.Acquisitions {
		rule := ClassifyAcquisition(a)
		log.Info("acquisition match",
			"acquisition", a.Name,
			"status", a.Status.Label(),
			"score", fmt.Sprintf("%.2f", a.Score),
			"duplicates", a.Duplicated,
			"complete", !a.Incomplete,
		)
		log.Debug("acquisition rule applied", "acquisition", a.Name, "rule", rule)
	}
}

// scoreProtocol aggregates acquisition statuses into the protocol score and
// flags. Optional acquisitions and acquisitions with partial duplicates are
// excluded from the denominator. A protocol whose acquisitions are all
// optional has nothing required to miss and scores 1.
func scoreProtocol(p *domain.ProtocolTemplate) {
	total := len(p.Acquisitions)
	matched := 0
	required := 0
	for _, a := range p.Acquisitions {
		if !a.Optional {
			required++
		}
		if a.Incomplete {
			p.Incomplete = true
		}
		if a.Optional && p.OptionalScans == domain.OptionalNoneSpecified {
			p.OptionalScans = domain.OptionalNoneFound
		}

		switch a.Status {
		case domain.StatusMatch:
			matched++
		case domain.StatusDuplicatesUnexpected:
			matched++
			p.DuplicatesUnexpected = true
		case domain.StatusDuplicatesAllowed:
			matched++
			p.DuplicatesAllowed = true
		case domain.StatusDuplicatesExpected:
			matched++
			p.DuplicatesExpected = true
		case domain.StatusDuplicatesWithPartialDuplicates:
			p.DuplicatesUnexpected = true
			total--
		case domain.StatusNoMatch:
			p.MissingSeries = true
		case domain.StatusOptional, domain.StatusOptionalPartial, domain.StatusOptionalDuplicatesPartialDuplicates:
			p.OptionalScans = domain.OptionalFound
			total--
		case domain.StatusOptionalMissing:
			total--
		}
	}

	switch {
	case total > 0:
		p.Score = float64(matched) / float64(total)
	case required == 0:
		p.Score = 1
	}
}

// checkOrdering verifies that fully matched acquisitions appear in template
// order, using the lowest ordinal among each acquisition's exact matches.
func (e *Engine) checkOrdering(log *slog.Logger, p *domain.ProtocolTemplate) {
	if !p.CheckOrdering {
		p.Ordering = domain.OrderingUnchecked
		log.Info("acquisition ordering not checked")
		return
	}

	type placed struct {
		name    string
		ordinal int
	}
	var order []placed
	for _, a := range p.Acquisitions {
		if a.IgnoreOrdering || a.Status != domain.StatusMatch {
			continue
		}
		lowest := math.MaxInt
		for _, s := range a.Series {
			if exact := s.ExactMatches(); len(exact) > 0 {
				lowest = min(lowest, exact[0].Ordinal)
			}
		}
		if lowest != math.MaxInt {
			order = append(order, placed{name: a.Name, ordinal: lowest})
		}
	}

	p.Ordering = domain.OrderingCorrect
	for i := 1; i < len(order); i++ {
		if order[i].ordinal < order[i-1].ordinal {
			p.Ordering = domain.OrderingIncorrect
			break
		}
	}
	if p.Ordering == domain.OrderingCorrect {
		log.Info("acquisition ordering correct")
		return
	}
	for _, o := range order {
		log.Error("acquisition out of order", "acquisition", o.name, "series_number", o.ordinal)
	}
}

// checkPairing verifies that every acquisition with a pairing constraint is
// adjacent to a block of its partners' series. The check only runs for
// complete protocol matches without unexpected duplicates.
func (e *Engine) checkPairing(log *slog.Logger, p *domain.ProtocolTemplate) {
	if !p.Pairing.Requested {
		return
	}
	if p.Score != 1 || p.DuplicatesUnexpected {
		log.Warn("skipping pairing check", "score", p.Score, "duplicates_unexpected", p.DuplicatesUnexpected)
		return
	}

	byName := make(map[string]*domain.AcquisitionTemplate, len(p.Acquisitions))
	for _, a := range p.Acquisitions {
		byName[a.Name] = a
	}

	for _, a := range p.Acquisitions {
		if a.Pairing == nil {
			continue
		}
		own := firstExactOrdinals(a)
		if len(own) == 0 {
			log.Info("paired acquisition not present", "acquisition", a.Name)
			continue
		}
		if !pairedCorrectly(a, own, byName) {
			p.Pairing.Correct = false
			log.Error("acquisition not paired with partner series",
				"acquisition", a.Name,
				"position", string(a.Pairing.Position),
				"with", a.Pairing.With,
			)
		}
	}
	p.Pairing.Checked = true
	if p.Pairing.Correct {
		log.Info("paired acquisitions correct")
	}
}

func firstExactOrdinals(a *domain.AcquisitionTemplate) []int {
	var out []int
	for _, s := range a.Series {
		if exact := s.ExactMatches(); len(exact) > 0 {
			out = append(out, exact[0].Ordinal)
		}
	}
	return out
}

// pairedCorrectly reports whether any partner block sits at the expected
// offset before or after the acquisition. The i-th partner is expected i
// blocks away, a block being as long as the partner's series count.
func pairedCorrectly(a *domain.AcquisitionTemplate, own []int, byName map[string]*domain.AcquisitionTemplate) bool {
	first, last := slices.Min(own), slices.Max(own)
	for i, name := range a.Pairing.With {
		partner, ok := byName[name]
		if !ok {
			continue
		}
		var ordinals []int
		for _, s := range partner.Series {
			for _, m := range s.ExactMatches() {
				ordinals = append(ordinals, m.Ordinal)
			}
		}
		offset := i * len(partner.Series)
		before := slices.Contains(ordinals, first-1-offset)
		after := slices.Contains(ordinals, last+1+offset)

		switch a.Pairing.Position {
		case domain.PairBefore:
			if before {
				return true
			}
		case domain.PairAfter:
			if after {
				return true
			}
		case domain.PairBoth:
			if before || after {
				return true
			}
		}
	}
	return false
}

// findExtras records observed series that no series template claimed.
func (e *Engine) findExtras(log *slog.Logger, p *domain.ProtocolTemplate, series []domain.DataSeries) {
	claimed := make(map[string]struct{})
	for _, s := range p.Series() {
		for _, m := range s.Matches {
			claimed[m.Label] = struct{}{}
		}
	}

	extras := make(map[string]struct{})
	for _, ds := range series {
		if _, ok := claimed[ds.Label]; !ok {
			extras[ds.Label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(extras))
	for l := range extras {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	p.ExtraLabels = labels
	p.ExtraSeries = len(labels)
	for _, l := range labels {
		log.Warn("extra series not matched by template", "series", l, "allowed", p.AllowExtras)
	}
}
