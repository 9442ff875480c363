// Package summary ranks evaluated protocol templates and derives the run's
// exit code.
package summary

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Exit codes of a run.
const (
	ExitUniqueMatch     = 0
	ExitMultipleMatches = 1
	ExitNoMatch         = 2
	ExitConfigError     = 3
)

// Issue labels reported alongside a protocol score.
const (
	IssueMissingData          = "MISSING DATA"
	IssueMissingSeries        = "missing series"
	IssueUnexpectedDuplicates = "unexpected duplicates"
	IssueOrdering             = "incorrect ordering"
	IssuePairing              = "pairing issue"
	IssueExtraSeries          = "extra series"
)

// Entry is one evaluated protocol with its derived issues.
type Entry struct {
	Protocol *domain.ProtocolTemplate
	Issues   []string
}

// HasIssue reports whether any issue was found.
func (e Entry) HasIssue() bool { return len(e.Issues) > 0 }

// Matched reports whether the protocol is a clean, complete match.
func (e Entry) Matched() bool { return e.Protocol.Score == 1 && !e.HasIssue() }

// Report is the outcome of a run across all templates.
type Report struct {
	Ranked   []Entry
	Hidden   int
	Skipped  []string
	Failed   []string
	Matched  []Entry
	ExitCode int
}

// Issues lists the problems of an evaluated protocol in a fixed order.
func Issues(p *domain.ProtocolTemplate) []string {
	var issues []string
	if p.Incomplete {
		issues = append(issues, IssueMissingData)
	}
	if p.MissingSeries {
		issues = append(issues, IssueMissingSeries)
	}
	if p.DuplicatesUnexpected {
		issues = append(issues, IssueUnexpectedDuplicates)
	}
	if p.Ordering == domain.OrderingIncorrect {
		issues = append(issues, IssueOrdering)
	}
	if p.Pairing.Checked && !p.Pairing.Correct {
		issues = append(issues, IssuePairing)
	}
	if p.ExtraSeries > 0 && !p.AllowExtras {
		issues = append(issues, IssueExtraSeries)
	}
	return issues
}

// HasIssue reports whether p is flagged as having issues. Protocols scoring
// below minMatchScore are not listed in the summary and are never flagged.
func HasIssue(p *domain.ProtocolTemplate, minMatchScore float64) bool {
	return p.Score >= minMatchScore && len(Issues(p)) > 0
}

// Rank orders evaluated protocols by descending score, preferring complete
// data, fewer extra series and no unexpected duplicates on ties.
func Rank(protocols []*domain.ProtocolTemplate) []Entry {
	entries := make([]Entry, 0, len(protocols))
	for _, p := range protocols {
		if p.Evaluated() {
			entries = append(entries, Entry{Protocol: p, Issues: Issues(p)})
		}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		pa, pb := a.Protocol, b.Protocol
		return cmp.Or(
			cmp.Compare(pb.Score, pa.Score),
			compareBool(pa.Incomplete, pb.Incomplete),
			cmp.Compare(pa.ExtraSeries, pb.ExtraSeries),
			compareBool(pa.DuplicatesUnexpected, pb.DuplicatesUnexpected),
		)
	})
	return entries
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// Build ranks protocols and derives the exit code. Protocols scoring below
// minMatchScore are counted but not listed.
func Build(protocols []*domain.ProtocolTemplate, minMatchScore float64) Report {
	var r Report
	for _, p := range protocols {
		switch p.State {
		case domain.StateSkipped:
			r.Skipped = append(r.Skipped, p.Name)
		case domain.StateFailed:
			r.Failed = append(r.Failed, p.Name)
		}
	}

	for _, e := range Rank(protocols) {
		if e.Matched() {
			r.Matched = append(r.Matched, e)
		}
		if e.Protocol.Score < minMatchScore {
			r.Hidden++
			continue
		}
		r.Ranked = append(r.Ranked, e)
	}

	switch {
	case len(r.Failed) > 0:
		r.ExitCode = ExitConfigError
	case len(r.Matched) == 1:
		r.ExitCode = ExitUniqueMatch
	case len(r.Matched) > 1:
		r.ExitCode = ExitMultipleMatches
	default:
		r.ExitCode = ExitNoMatch
	}
	return r
}

// Log writes the ranking table and the verdict.
func (r Report) Log(logger *slog.Logger) {
	logger.Info(fmt.Sprintf("%-40s %-6s %s", "Protocol", "Score", "Issues"))
	for _, e := range r.Ranked {
		issues := "none"
		if e.HasIssue() {
			issues = strings.Join(e.Issues, ", ")
		}
		logger.Info(fmt.Sprintf("%-40s %-6.2f %s", e.Protocol.Name, e.Protocol.Score, issues))
	}
	if r.Hidden > 0 {
		logger.Info(fmt.Sprintf("%d protocol(s) below the minimum match score not shown", r.Hidden))
	}
	for _, name := range r.Skipped {
		logger.Warn("protocol skipped by date restriction", "protocol", name)
	}
	for _, name := range r.Failed {
		logger.Error("protocol template is malformed", "protocol", name)
	}

	switch r.ExitCode {
	case ExitUniqueMatch:
		logger.Info("protocol match", "protocol", r.Matched[0].Protocol.Name)
	case ExitMultipleMatches:
		names := make([]string, 0, len(r.Matched))
		for _, e := range r.Matched {
			names = append(names, e.Protocol.Name)
		}
		logger.Warn("multiple protocols match", "protocols", names)
	case ExitNoMatch:
		logger.Warn("no protocol matched without issues")
	}
}
