package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate indicates a malformed protocol template. It is never
// retried and never reported as a score.
var ErrInvalidTemplate = errors.New("malformed template")

// ErrNoTemplates indicates that template discovery found nothing to evaluate.
var ErrNoTemplates = errors.New("no protocol templates found")

// ErrNoSeries indicates that record discovery found no observed series.
var ErrNoSeries = errors.New("no data series found")

// ErrNoSeriesDate indicates an observed series without a SeriesDate.
var ErrNoSeriesDate = errors.New("no SeriesDate recorded")

// ErrInvalidOptions indicates that run options failed validation.
var ErrInvalidOptions = errors.New("invalid run options")

// TemplateError describes a configuration error together with the location
// in the template tree where it was detected. Location fields are optional;
// the comparator layer fills Comparison and Reason and the matchers add the
// series and field names as the error travels upward.
type TemplateError struct {
	Protocol    string
	Acquisition string
	Series      string
	Field       string
	Comparison  ComparisonKind
	Reason      string
}

// NewTemplateError creates a TemplateError carrying only a reason.
func NewTemplateError(format string, args ...any) *TemplateError {
	return &TemplateError{Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidTemplate.Error())
	writePart := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "; %s %q", label, value)
	}
	writePart("protocol", e.Protocol)
	writePart("acquisition", e.Acquisition)
	writePart("series", e.Series)
	writePart("field", e.Field)
	writePart("comparison", string(e.Comparison))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Unwrap allows errors.Is(err, ErrInvalidTemplate).
func (e *TemplateError) Unwrap() error { return ErrInvalidTemplate }

// Locate returns err annotated with the given location. Location fields that
// are already set on a TemplateError are kept. Errors that are not
// configuration errors are returned unchanged.
func Locate(err error, loc TemplateError) error {
	if err == nil {
		return nil
	}
	var te *TemplateError
	if !errors.As(err, &te) {
		if !errors.Is(err, ErrInvalidTemplate) {
			return err
		}
		te = &TemplateError{Reason: strings.TrimPrefix(err.Error(), ErrInvalidTemplate.Error()+": ")}
	}
	out := *te
	if out.Protocol == "" {
		out.Protocol = loc.Protocol
	}
	if out.Acquisition == "" {
		out.Acquisition = loc.Acquisition
	}
	if out.Series == "" {
		out.Series = loc.Series
	}
	if out.Field == "" {
		out.Field = loc.Field
	}
	if out.Comparison == "" {
		out.Comparison = loc.Comparison
	}
	return &out
}

// IsTemplateError reports whether err is a configuration error.
func IsTemplateError(err error) bool { return errors.Is(err, ErrInvalidTemplate) }
