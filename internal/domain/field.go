package domain

import "fmt"

// FieldSpec is a single header field requirement of a series template.
// Reference holds the decoded template value: nil, a scalar (string, float64,
// int, bool) or a []any list possibly nesting further lists.
type FieldSpec struct {
	Name      string         `json:"name"      validate:"required"`
	Kind      ComparisonKind `json:"kind"      validate:"required,comparison"`
	Reference any            `json:"reference"`
}

// String renders the spec the way it appears in logs.
func (f FieldSpec) String() string {
	return fmt.Sprintf("%s %s %v", f.Name, f.Kind, f.Reference)
}

// FileCount constrains the number of files an observed series must contain.
// The zero value is unconstrained.
type FileCount struct {
	Constrained bool `json:"constrained,omitempty"`
	Min         int  `json:"min,omitempty"         validate:"min=0"`
	Max         int  `json:"max,omitempty"         validate:"min=0,gtefield=Min"`
}

// AnyFileCount returns an unconstrained file count.
func AnyFileCount() FileCount { return FileCount{} }

// ExactFileCount requires exactly n files.
func ExactFileCount(n int) FileCount {
	return FileCount{Constrained: true, Min: n, Max: n}
}

// FileCountRange requires between minFiles and maxFiles files inclusive.
func FileCountRange(minFiles, maxFiles int) FileCount {
	return FileCount{Constrained: true, Min: minFiles, Max: maxFiles}
}

// IsRange reports whether the constraint spans more than one value.
func (c FileCount) IsRange() bool { return c.Constrained && c.Min != c.Max }

// Satisfied reports whether n files meet the constraint.
func (c FileCount) Satisfied(n int) bool {
	if !c.Constrained {
		return true
	}
	return n >= c.Min && n <= c.Max
}

// String renders the constraint for log output.
func (c FileCount) String() string {
	switch {
	case !c.Constrained:
		return "any"
	case c.IsRange():
		return fmt.Sprintf("[%d, %d]", c.Min, c.Max)
	default:
		return fmt.Sprintf("%d", c.Min)
	}
}

// Validate checks the constraint bounds.
func (c FileCount) Validate() error {
	return invalid(validate.Struct(c))
}
