// Package compare implements the field comparators used to score a series
// template against an observed series.
//
// Every comparator is a pure function of a template reference value and an
// observed attribute value. It returns a domain.Tally of atomic comparisons,
// so list-valued attributes earn partial credit, and an error only when the
// reference value itself is malformed. A missing attribute is never an
// error: it is an input like any other and usually scores as a mismatch.
package compare
