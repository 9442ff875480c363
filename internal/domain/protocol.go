package domain

import (
	"time"
)

// DateLayout is the layout of the SeriesDate header attribute.
const DateLayout = "20060102"

// DateRestriction limits the acquisition dates a protocol applies to.
// Zero bounds are unset.
type DateRestriction struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// IsSet reports whether either bound is configured.
func (d DateRestriction) IsSet() bool { return !d.Start.IsZero() || !d.End.IsZero() }

// Allows reports whether date satisfies the restriction. With both bounds the
// date must lie strictly between them; a single bound is inclusive.
func (d DateRestriction) Allows(date time.Time) bool {
	switch {
	case !d.Start.IsZero() && !d.End.IsZero():
		return date.After(d.Start) && date.Before(d.End)
	case !d.End.IsZero():
		return !date.After(d.End)
	case !d.Start.IsZero():
		return !date.Before(d.Start)
	default:
		return true
	}
}

// PairingReport summarizes the paired-acquisition check.
type PairingReport struct {
	Requested bool `json:"requested"`
	Checked   bool `json:"checked"`
	Correct   bool `json:"correct"`
}

// Tag returns the value written to the tags artifact.
func (p PairingReport) Tag() string {
	switch {
	case !p.Checked:
		return "unchecked"
	case !p.Correct:
		return "pairing_issue"
	default:
		return "paired_correctly"
	}
}

// ProtocolTemplate is the root of a template tree. One instance exists per
// template file being evaluated; it exclusively owns its acquisitions.
type ProtocolTemplate struct {
	Name          string                 `json:"name"           validate:"required"`
	Acquisitions  []*AcquisitionTemplate `json:"acquisitions"   validate:"required,min=1"`
	Dates         DateRestriction        `json:"dates"`
	AllowExtras   bool                   `json:"allow_extras"`
	CheckOrdering bool                   `json:"check_ordering"`
	Tags          []CustomTag            `json:"tags,omitempty" validate:"dive"`
	PatientID     string                 `json:"patient_id,omitempty"`

	State                EvaluationState `json:"state"`
	Error                string          `json:"error,omitempty"`
	Score                float64         `json:"score"`
	MissingSeries        bool            `json:"missing_series"`
	Incomplete           bool            `json:"incomplete"`
	DuplicatesAllowed    bool            `json:"duplicates_allowed"`
	DuplicatesExpected   bool            `json:"duplicates_expected"`
	DuplicatesUnexpected bool            `json:"duplicates_unexpected"`
	OptionalScans        OptionalScans   `json:"optional_scans"`
	Ordering             OrderingStatus  `json:"ordering"`
	Pairing              PairingReport   `json:"pairing"`
	ExtraSeries          int             `json:"extra_series"`
	ExtraLabels          []string        `json:"extra_labels,omitempty"`
}

// Series returns every series template in declaration order.
func (p *ProtocolTemplate) Series() []*SeriesTemplate {
	var out []*SeriesTemplate
	for _, a := range p.Acquisitions {
		out = append(out, a.Series...)
	}
	return out
}

// Acquisition returns the acquisition with the given name.
func (p *ProtocolTemplate) Acquisition(name string) (*AcquisitionTemplate, bool) {
	for _, a := range p.Acquisitions {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// HasPairing reports whether any acquisition declares a pairing constraint.
func (p *ProtocolTemplate) HasPairing() bool {
	for _, a := range p.Acquisitions {
		if a.Pairing != nil {
			return true
		}
	}
	return false
}

// Evaluated reports whether the protocol produced a meaningful score.
func (p *ProtocolTemplate) Evaluated() bool { return p.State == StateEvaluated }

// Reset clears all results so the tree can be evaluated again.
func (p *ProtocolTemplate) Reset() {
	p.State = StatePending
	p.Error = ""
	p.Score = 0
	p.MissingSeries = false
	p.Incomplete = false
	p.DuplicatesAllowed = false
	p.DuplicatesExpected = false
	p.DuplicatesUnexpected = false
	p.OptionalScans = OptionalNoneSpecified
	p.Ordering = OrderingUnchecked
	p.Pairing = PairingReport{Requested: p.HasPairing(), Correct: true}
	p.ExtraSeries = 0
	p.ExtraLabels = nil
	for _, a := range p.Acquisitions {
		a.Reset()
	}
}

// Validate checks the whole template tree, including pairing references
// between sibling acquisitions.
func (p *ProtocolTemplate) Validate() error {
	if err := validate.StructExcept(p, "Acquisitions"); err != nil {
		return &TemplateError{Protocol: p.Name, Reason: err.Error()}
	}
	if len(p.Acquisitions) == 0 {
		return &TemplateError{Protocol: p.Name, Reason: "template defines no acquisitions"}
	}
	if !p.Dates.Start.IsZero() && !p.Dates.End.IsZero() && p.Dates.End.Before(p.Dates.Start) {
		return &TemplateError{Protocol: p.Name, Reason: "date_restriction end precedes start"}
	}
	seen := make(map[string]struct{}, len(p.Acquisitions))
	for _, a := range p.Acquisitions {
		if a == nil {
			return &TemplateError{Protocol: p.Name, Reason: "nil acquisition template"}
		}
		if _, dup := seen[a.Name]; dup {
			return &TemplateError{Protocol: p.Name, Acquisition: a.Name, Reason: "duplicate acquisition name"}
		}
		seen[a.Name] = struct{}{}
		if err := a.Validate(); err != nil {
			return Locate(err, TemplateError{Protocol: p.Name})
		}
	}
	for _, a := range p.Acquisitions {
		if a.Pairing == nil {
			continue
		}
		for _, partner := range a.Pairing.With {
			if _, ok := seen[partner]; !ok {
				return &TemplateError{
					Protocol:    p.Name,
					Acquisition: a.Name,
					Reason:      "paired_fmaps names unknown acquisition " + partner,
				}
			}
			if partner == a.Name {
				return &TemplateError{Protocol: p.Name, Acquisition: a.Name, Reason: "acquisition cannot pair with itself"}
			}
		}
	}
	return nil
}
