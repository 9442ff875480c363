package domain

// SeriesMatch is the outcome of comparing one series template with one
// observed series.
type SeriesMatch struct {
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Complete bool    `json:"complete"`
	Ordinal  int     `json:"ordinal"`
}

// IsExact reports whether every field comparison matched.
func (m SeriesMatch) IsExact() bool { return m.Score == 1 }

// SeriesTemplate is the finest-grained template node. The definition fields
// are set once by the template builder; the result fields are written by the
// series matcher and cleared by Reset.
type SeriesTemplate struct {
	Name          string      `json:"name"            validate:"required"`
	FileCount     FileCount   `json:"file_count"`
	MinMatchScore float64     `json:"min_match_score" validate:"gte=0,lte=1"`
	Fields        []FieldSpec `json:"fields"          validate:"required,min=1,dive"`

	Status     MatchStatus   `json:"status"`
	Attempts   []SeriesMatch `json:"attempts,omitempty"`
	Matches    []SeriesMatch `json:"matches,omitempty"`
	Duplicates int           `json:"duplicates"`
	Incomplete bool          `json:"incomplete"`
}

// Field returns the field spec with the given name.
func (s *SeriesTemplate) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ExactMatches returns the matches that scored 1.0.
func (s *SeriesTemplate) ExactMatches() []SeriesMatch {
	var out []SeriesMatch
	for _, m := range s.Matches {
		if m.IsExact() {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears all accumulated match results.
func (s *SeriesTemplate) Reset() {
	s.Status = StatusUnknown
	s.Attempts = nil
	s.Matches = nil
	s.Duplicates = 0
	s.Incomplete = false
}

// Validate checks the template definition.
func (s *SeriesTemplate) Validate() error {
	if err := validate.Struct(s); err != nil {
		return &TemplateError{Series: s.Name, Reason: err.Error()}
	}
	return nil
}
