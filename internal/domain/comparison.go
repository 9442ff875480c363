package domain

import "fmt"

// ComparisonKind identifies how a field's reference value is compared
// against an observed attribute value.
type ComparisonKind string

const (
	// CompareAbsent requires the observed attribute to be missing.
	CompareAbsent ComparisonKind = "absent"

	// CompareExactly requires equality, element-wise for lists.
	CompareExactly ComparisonKind = "exactly"

	// CompareExactlyIfPresent behaves like CompareExactly but matches when the
	// attribute is missing.
	CompareExactlyIfPresent ComparisonKind = "exactly_if_present"

	// CompareInRange requires numeric values within inclusive [low, high] bounds.
	CompareInRange ComparisonKind = "in_range"

	// CompareInSet requires membership in a reference list.
	CompareInSet ComparisonKind = "in_set"

	// CompareRegex requires a regular expression search to succeed.
	CompareRegex ComparisonKind = "regex"
)

// legacyExact is accepted in older template files in place of "exactly".
const legacyExact = "exact"

// IsValid reports whether k is a known comparison kind.
func (k ComparisonKind) IsValid() bool {
	switch k {
	case CompareAbsent, CompareExactly, CompareExactlyIfPresent,
		CompareInRange, CompareInSet, CompareRegex:
		return true
	default:
		return false
	}
}

// String returns the string representation of the comparison kind.
func (k ComparisonKind) String() string { return string(k) }

// ParseComparisonKind converts a template key into a ComparisonKind.
// The legacy "exact" spelling is normalized to CompareExactly.
func ParseComparisonKind(s string) (ComparisonKind, error) {
	if s == legacyExact {
		return CompareExactly, nil
	}
	k := ComparisonKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q is not a valid comparison type", ErrInvalidTemplate, s)
	}
	return k, nil
}
