package domain

// MatchStatus is the outcome of comparing a template against observed data.
// Series, acquisition and protocol templates share one status vocabulary; each
// level only ever assigns the subset that applies to it.
type MatchStatus string

// Series-level statuses.
const (
	// StatusUnknown is the status of a template that has not been evaluated.
	StatusUnknown MatchStatus = "UNKNOWN"

	// StatusMatch indicates exactly one fully matching observed group.
	StatusMatch MatchStatus = "MATCH"

	// StatusMatchDuplicates indicates more than one fully matching observed group.
	StatusMatchDuplicates MatchStatus = "MATCH_DUPLICATES"

	// StatusPartial indicates exactly one observed group scoring between the
	// minimum match score and 1.0.
	StatusPartial MatchStatus = "PARTIAL"

	// StatusPartialDuplicates indicates more than one partially matching group.
	StatusPartialDuplicates MatchStatus = "PARTIAL_DUPLICATES"

	// StatusNoMatch indicates neither a full nor a partial match.
	StatusNoMatch MatchStatus = "NOMATCH"
)

// Acquisition-level statuses.
const (
	StatusDuplicatesExpected                  MatchStatus = "DUPLICATES_EXPECTED"
	StatusDuplicatesAllowed                   MatchStatus = "DUPLICATES_ALLOWED"
	StatusDuplicatesUnexpected                MatchStatus = "DUPLICATES_UNEXPECTED"
	StatusDuplicatesWithPartialDuplicates     MatchStatus = "DUPLICATES_WITH_PARTIAL_DUPLICATES"
	StatusOptional                            MatchStatus = "OPTIONAL"
	StatusOptionalPartial                     MatchStatus = "OPTIONAL_PARTIAL"
	StatusOptionalMissing                     MatchStatus = "OPTIONAL_MISSING"
	StatusOptionalDuplicatesPartialDuplicates MatchStatus = "OPTIONAL_DUPLICATES_WITH_PARTIAL_DUPLICATES"
)

// String returns the string representation of the status.
func (s MatchStatus) String() string { return string(s) }

// IsOptional reports whether the status belongs to an optional acquisition.
func (s MatchStatus) IsOptional() bool {
	switch s {
	case StatusOptional, StatusOptionalPartial, StatusOptionalMissing, StatusOptionalDuplicatesPartialDuplicates:
		return true
	default:
		return false
	}
}

// Label returns the human-readable form used in the acquisition summary table.
func (s MatchStatus) Label() string {
	switch s {
	case StatusMatch:
		return "MATCH"
	case StatusMatchDuplicates:
		return "DUPLICATES"
	case StatusPartial:
		return "PARTIAL"
	case StatusPartialDuplicates:
		return "PART. DUPES"
	case StatusNoMatch:
		return "NOMATCH"
	case StatusDuplicatesExpected:
		return "DUPLICATES (EXPECTED)"
	case StatusDuplicatesAllowed:
		return "DUPLICATES (ALLOWED)"
	case StatusDuplicatesUnexpected:
		return "DUPLICATES (UNEXPECTED)"
	case StatusDuplicatesWithPartialDuplicates:
		return "DUPLICATES (with PARTIAL DUPES)"
	case StatusOptional:
		return "MATCH (OPTIONAL ACQUISITION)"
	case StatusOptionalPartial:
		return "PARTIAL (OPTIONAL ACQUISITION)"
	case StatusOptionalMissing:
		return "NOMATCH (OPTIONAL ACQUISITION)"
	case StatusOptionalDuplicatesPartialDuplicates:
		return "DUPLICATES with PARTIAL DUPES (OPTIONAL ACQUISITION)"
	default:
		return "UNKNOWN (ERROR)"
	}
}

// EvaluationState records how far a protocol evaluation progressed.
// A failed evaluation never carries a meaningful score.
type EvaluationState string

const (
	// StatePending is the state of a protocol that has not been evaluated.
	StatePending EvaluationState = "pending"

	// StateEvaluated indicates every matching phase ran to completion.
	StateEvaluated EvaluationState = "evaluated"

	// StateSkipped indicates the observed data fell outside the date restriction.
	StateSkipped EvaluationState = "skipped"

	// StateFailed indicates the template is malformed.
	StateFailed EvaluationState = "failed"
)

// OrderingStatus is the tri-state outcome of the acquisition ordering check.
type OrderingStatus string

const (
	OrderingUnchecked OrderingStatus = "unchecked"
	OrderingCorrect   OrderingStatus = "yes"
	OrderingIncorrect OrderingStatus = "no"
)

// OptionalScans records whether optional acquisitions were declared and found.
type OptionalScans int

const (
	// OptionalNoneSpecified means the protocol declares no optional acquisitions.
	OptionalNoneSpecified OptionalScans = iota

	// OptionalNoneFound means optional acquisitions were declared but none matched.
	OptionalNoneFound

	// OptionalFound means at least one optional acquisition matched.
	OptionalFound
)

// Specified returns the tag value describing declared optional acquisitions.
func (o OptionalScans) Specified() string {
	if o == OptionalNoneSpecified {
		return "none"
	}
	return "one_or_more"
}

// Found returns the tag value describing matched optional acquisitions.
func (o OptionalScans) Found() string {
	if o == OptionalFound {
		return "one_or_more"
	}
	return "none"
}
