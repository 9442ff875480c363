// Package tags writes the machine-readable tags artifact for the protocols
// that best match a subject's data.
package tags

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/protocolqc/protocolqc/internal/compare"
	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/summary"
	"github.com/protocolqc/protocolqc/internal/template"
)

// Version is the software version recorded in every tags file.
var Version = "dev"

const (
	generatedWith = "protocolqc"
	notFound      = "NOT FOUND"
	notApplicable = "NA"

	// Below this score no protocol is considered for "highest" tags.
	highestFloor = 0.4

	// Series matches must score above this to be listed.
	matchedFloor = 0.01
)

// Which selects the protocols tags are generated for.
type Which string

const (
	WhichNone    Which = "none"
	WhichHighest Which = "highest"
	WhichAll     Which = "all"
)

// Document is the tags artifact.
type Document struct {
	Software       Software        `json:"software"`
	SubjectDetails SubjectDetails  `json:"subject_details"`
	CustomTags     map[string]any  `json:"custom_tags,omitempty"`
	Protocol       ProtocolSection `json:"protocol"`
}

type Software struct {
	GeneratedWith string `json:"generated_with"`
	Version       string `json:"version"`
	Date          string `json:"date"`
}

type SubjectDetails struct {
	CustomLabel string `json:"custom_label,omitempty"`
	PatientID   string `json:"patientID"`
}

type ExtraSeries struct {
	Allowed     bool `json:"allowed"`
	ExtraSeries int  `json:"extra_series"`
}

type OptionalScans struct {
	Specified string `json:"specified"`
	Found     string `json:"found"`
}

type ProtocolSection struct {
	TemplateName       string                        `json:"template_name"`
	ProtocolMatchScore float64                       `json:"protocol_match_score"`
	HasIssue           bool                          `json:"has_issue"`
	CorrectOrdering    string                        `json:"correct_ordering"`
	MissingData        bool                          `json:"missing_data"`
	DuplicatesAllowed  bool                          `json:"duplicates_allowed"`
	ExtraSeries        ExtraSeries                   `json:"extra_series"`
	PairedFmaps        string                        `json:"paired_fmaps"`
	OptionalScans      OptionalScans                 `json:"optional_scans"`
	Acquisitions       map[string]AcquisitionSection `json:"acquisitions"`
}

type AcquisitionSection struct {
	DuplicatesAllowed  bool               `json:"duplicates_allowed"`
	DuplicatesExpected int                `json:"duplicates_expected"`
	DuplicatesFound    int                `json:"duplicates_found"`
	Acquisitions       []AcquisitionEntry `json:"acquisitions"`
}

type AcquisitionEntry struct {
	AcquisitionMatchScore float64                  `json:"acquisition_match_score"`
	Series                map[string]SeriesSection `json:"series"`
}

// SeriesSection reports the best matches of one series template.
// DataComplete is a bool, or "NA" when nothing matched.
type SeriesSection struct {
	SeriesMatchScore float64  `json:"series_match_score"`
	Matched          []string `json:"matched"`
	DataComplete     any      `json:"data_complete"`
}

// Generator builds and writes tags files.
type Generator struct {
	logger        *slog.Logger
	now           func() time.Time
	version       string
	minMatchScore float64
}

// NewGenerator creates a generator logging to logger. Issues are flagged
// for protocols scoring at least config.DefaultMinMatchScore.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default().With("component", "tags")
	}
	return &Generator{
		logger:        logger,
		now:           time.Now,
		version:       Version,
		minMatchScore: config.DefaultMinMatchScore,
	}
}

// WithMinMatchScore sets the score below which protocols are not flagged
// as having issues.
func (g *Generator) WithMinMatchScore(score float64) *Generator {
	g.minMatchScore = score
	return g
}

// Select returns the evaluated protocols that receive a tags file. With
// WhichHighest only protocols sharing the top score qualify, and only if
// that score exceeds the floor. When exactly one candidate is free of
// issues it is the only one selected; protocols below minMatchScore count
// as free of issues.
func Select(protocols []*domain.ProtocolTemplate, which Which, minMatchScore float64) []*domain.ProtocolTemplate {
	if which == WhichNone {
		return nil
	}

	var ranked []*domain.ProtocolTemplate
	for _, p := range protocols {
		if p.Evaluated() {
			ranked = append(ranked, p)
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	slices.SortStableFunc(ranked, func(a, b *domain.ProtocolTemplate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	required := 0.0
	if which == WhichHighest {
		if ranked[0].Score <= highestFloor {
			return nil
		}
		required = ranked[0].Score
	}

	var candidates, clean []*domain.ProtocolTemplate
	for _, p := range ranked {
		if p.Score < required {
			continue
		}
		candidates = append(candidates, p)
		if !summary.HasIssue(p, minMatchScore) {
			clean = append(clean, p)
		}
	}
	if len(clean) == 1 {
		return clean
	}
	return candidates
}

// Build assembles the tags document of p. Custom tags are resolved against
// subject, the first observed series.
func (g *Generator) Build(p *domain.ProtocolTemplate, subject domain.DataSeries, subLabel string) (Document, error) {
	doc := Document{
		Software: Software{
			GeneratedWith: generatedWith,
			Version:       g.version,
			Date:          g.now().Format(time.DateOnly),
		},
		SubjectDetails: SubjectDetails{CustomLabel: subLabel, PatientID: p.PatientID},
		Protocol:       protocolSection(p, g.minMatchScore),
	}

	custom, err := g.customTags(p, subject)
	if err != nil {
		return Document{}, err
	}
	doc.CustomTags = custom
	return doc, nil
}

func (g *Generator) customTags(p *domain.ProtocolTemplate, subject domain.DataSeries) (map[string]any, error) {
	if len(p.Tags) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(p.Tags))
	for _, tag := range p.Tags {
		switch tag.Type {
		case domain.TagConstant:
			out[tag.Name] = tag.Value
		case domain.TagFillWith:
			if v := subject.Attribute(tag.Value); v != nil {
				out[tag.Name] = v
			} else {
				out[tag.Name] = notFound
			}
		case domain.TagConditional:
			value, ok, err := firstCondition(tag, subject)
			if err != nil {
				return nil, domain.Locate(err, domain.TemplateError{Protocol: p.Name})
			}
			if !ok {
				g.logger.Warn("no condition matched for custom tag", "protocol", p.Name, "tag", tag.Name)
				continue
			}
			out[tag.Name] = value
		}
	}
	return out, nil
}

func firstCondition(tag domain.CustomTag, subject domain.DataSeries) (string, bool, error) {
	for _, c := range tag.Conditions {
		observed := subject.Attribute(c.Check.Name)
		if observed == nil || observed == "" {
			continue
		}
		t, err := compare.Field(c.Check, observed)
		if err != nil {
			return "", false, err
		}
		if t.Complete() {
			return c.Value, true, nil
		}
	}
	return "", false, nil
}

func protocolSection(p *domain.ProtocolTemplate, minMatchScore float64) ProtocolSection {
	s := ProtocolSection{
		TemplateName:       p.Name,
		ProtocolMatchScore: p.Score,
		HasIssue:           summary.HasIssue(p, minMatchScore),
		CorrectOrdering:    string(p.Ordering),
		MissingData:        p.Incomplete,
		DuplicatesAllowed:  p.DuplicatesAllowed,
		ExtraSeries:        ExtraSeries{Allowed: p.AllowExtras, ExtraSeries: p.ExtraSeries},
		PairedFmaps:        p.Pairing.Tag(),
		OptionalScans:      OptionalScans{Specified: p.OptionalScans.Specified(), Found: p.OptionalScans.Found()},
		Acquisitions:       make(map[string]AcquisitionSection, len(p.Acquisitions)),
	}

	for _, a := range p.Acquisitions {
		expected := 0
		if a.Duplicates.Expected > 0 {
			expected = a.Duplicates.Expected - 1
		}
		section := AcquisitionSection{
			DuplicatesAllowed:  a.Duplicates.Allowed,
			DuplicatesExpected: expected,
			DuplicatesFound:    a.Duplicated,
		}
		for range a.Duplicated + 1 {
			entry := AcquisitionEntry{
				AcquisitionMatchScore: a.Score,
				Series:                make(map[string]SeriesSection, len(a.Series)),
			}
			for _, st := range a.Series {
				entry.Series[shortName(st.Name)] = seriesSection(st)
			}
			section.Acquisitions = append(section.Acquisitions, entry)
		}
		s.Acquisitions[a.Name] = section
	}
	return s
}

func seriesSection(s *domain.SeriesTemplate) SeriesSection {
	var matched []string
	best := matchedFloor
	for _, m := range s.Matches {
		switch {
		case m.Score > best:
			matched = []string{m.Label}
			best = m.Score
		case m.Score == best:
			matched = append(matched, m.Label)
		}
	}
	if len(matched) == 0 {
		return SeriesSection{DataComplete: notApplicable}
	}
	return SeriesSection{SeriesMatchScore: best, Matched: matched, DataComplete: !s.Incomplete}
}

func shortName(series string) string {
	if _, after, ok := strings.Cut(series, ":"); ok {
		return after
	}
	return series
}

// FileName returns the tags file name for a protocol template.
func FileName(subLabel, patientID, templateName string) string {
	if subLabel != "" {
		return fmt.Sprintf("sub-%s_tags_%s.json", subLabel, template.Stem(templateName))
	}
	return fmt.Sprintf("patientID_%s_tags_%s.json", patientID, template.Stem(templateName))
}

// Artifact is a written tags file.
type Artifact struct {
	Protocol string
	Path     string
}

// Generate writes one tags file into dir for every selected protocol.
func (g *Generator) Generate(
	protocols []*domain.ProtocolTemplate,
	series []domain.DataSeries,
	which Which,
	subLabel string,
	dir string,
) ([]Artifact, error) {
	selected := Select(protocols, which, g.minMatchScore)
	if len(selected) == 0 {
		return nil, nil
	}
	var subject domain.DataSeries
	if len(series) > 0 {
		subject = series[0]
	}

	var written []Artifact
	for _, p := range selected {
		doc, err := g.Build(p, subject, subLabel)
		if err != nil {
			return written, err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshal tags for %s: %w", p.Name, err)
		}
		path := filepath.Join(dir, FileName(subLabel, p.PatientID, p.Name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write tags file: %w", err)
		}
		g.logger.Info("tags file written", "protocol", p.Name, "path", path)
		written = append(written, Artifact{Protocol: p.Name, Path: path})
	}
	return written, nil
}
