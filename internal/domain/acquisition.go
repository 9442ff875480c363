package domain

// PairPosition is where a partner acquisition must sit relative to the
// acquisition that declares the pairing.
type PairPosition string

const (
	PairBefore PairPosition = "before"
	PairAfter  PairPosition = "after"
	PairBoth   PairPosition = "both"
)

// IsValid reports whether p is a known position.
func (p PairPosition) IsValid() bool {
	switch p {
	case PairBefore, PairAfter, PairBoth:
		return true
	default:
		return false
	}
}

// Pairing requires partner acquisitions, typically field maps, to be
// acquired immediately adjacent to the declaring acquisition.
type Pairing struct {
	Position PairPosition `json:"position" validate:"required,pairposition"`
	With     []string     `json:"with"     validate:"required,min=1,dive,required"`
}

// DuplicatePolicy controls how repeated full matches are classified.
// Expected counts total occurrences, so Expected == 3 means two duplicates.
type DuplicatePolicy struct {
	Allowed  bool `json:"allowed"`
	Expected int  `json:"expected" validate:"min=0"`
}

// NewDuplicatePolicy resolves the template's duplicates_allowed and
// duplicates_expected settings. allowed is nil when the setting is absent.
// An expected count implies allowed duplicates unless allowed is explicitly
// false, which is contradictory.
func NewDuplicatePolicy(allowed *bool, expected int) (DuplicatePolicy, error) {
	if expected < 0 {
		return DuplicatePolicy{}, NewTemplateError("duplicates_expected %d must not be negative", expected)
	}
	if expected == 0 {
		return DuplicatePolicy{Allowed: allowed != nil && *allowed}, nil
	}
	if allowed != nil && !*allowed {
		return DuplicatePolicy{}, NewTemplateError(
			"duplicates_expected is %d but duplicates_allowed is false", expected)
	}
	return DuplicatePolicy{Allowed: true, Expected: expected}, nil
}

// Validate checks the policy for contradictory settings.
func (p DuplicatePolicy) Validate() error {
	if p.Expected > 0 && !p.Allowed {
		return NewTemplateError("duplicates_expected is %d but duplicates_allowed is false", p.Expected)
	}
	return invalid(validate.Struct(p))
}

// AcquisitionTemplate groups the series templates that together make up one
// scan type.
type AcquisitionTemplate struct {
	Name           string            `json:"name"               validate:"required"`
	Series         []*SeriesTemplate `json:"series"             validate:"required,min=1,dive,required"`
	Duplicates     DuplicatePolicy   `json:"duplicates"`
	Optional       bool              `json:"optional"`
	IgnoreOrdering bool              `json:"ignore_ordering"`
	Pairing        *Pairing          `json:"pairing,omitempty"`

	Status     MatchStatus `json:"status"`
	Score      float64     `json:"score"`
	Duplicated int         `json:"duplicated"`
	Incomplete bool        `json:"incomplete"`
}

// Reset clears the acquisition's results and those of its series.
func (a *AcquisitionTemplate) Reset() {
	a.Status = StatusUnknown
	a.Score = 0
	a.Duplicated = 0
	a.Incomplete = false
	for _, s := range a.Series {
		s.Reset()
	}
}

// Validate checks the acquisition definition including its series.
func (a *AcquisitionTemplate) Validate() error {
	if err := a.Duplicates.Validate(); err != nil {
		return Locate(err, TemplateError{Acquisition: a.Name})
	}
	if err := validate.StructExcept(a, "Series"); err != nil {
		return &TemplateError{Acquisition: a.Name, Reason: err.Error()}
	}
	if len(a.Series) == 0 {
		return &TemplateError{Acquisition: a.Name, Reason: "acquisition defines no series"}
	}
	for _, s := range a.Series {
		if s == nil {
			return &TemplateError{Acquisition: a.Name, Reason: "nil series template"}
		}
		if err := s.Validate(); err != nil {
			return Locate(err, TemplateError{Acquisition: a.Name})
		}
	}
	return nil
}
