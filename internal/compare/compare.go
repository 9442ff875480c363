package compare

import (
	"regexp"
	"sync"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Func compares a template reference value with an observed value.
type Func func(reference, observed any) (domain.Tally, error)

var comparators = map[domain.ComparisonKind]Func{
	domain.CompareAbsent:           Absent,
	domain.CompareExactly:          Exactly,
	domain.CompareExactlyIfPresent: ExactlyIfPresent,
	domain.CompareInRange:          InRange,
	domain.CompareInSet:            InSet,
	domain.CompareRegex:            Regex,
}

var checkers = map[domain.ComparisonKind]func(reference any) error{
	domain.CompareAbsent:           checkAbsent,
	domain.CompareExactly:          checkExactly,
	domain.CompareExactlyIfPresent: checkExactly,
	domain.CompareInRange:          checkRange,
	domain.CompareInSet:            checkSet,
	domain.CompareRegex:            checkRegex,
}

// Field compares observed against spec. Configuration errors are returned
// as *domain.TemplateError naming the field and comparison kind.
func Field(spec domain.FieldSpec, observed any) (domain.Tally, error) {
	fn, ok := comparators[spec.Kind]
	if !ok {
		return domain.Tally{}, &domain.TemplateError{
			Field:      spec.Name,
			Comparison: spec.Kind,
			Reason:     "not a valid comparison type",
		}
	}
	t, err := fn(spec.Reference, observed)
	if err != nil {
		return domain.Tally{}, domain.Locate(err, domain.TemplateError{Field: spec.Name, Comparison: spec.Kind})
	}
	return t, nil
}

// Check reports whether spec's reference value has a shape its comparison
// kind accepts, without needing an observed value.
func Check(spec domain.FieldSpec) error {
	check, ok := checkers[spec.Kind]
	if !ok {
		return &domain.TemplateError{Field: spec.Name, Comparison: spec.Kind, Reason: "not a valid comparison type"}
	}
	return domain.Locate(check(spec.Reference), domain.TemplateError{Field: spec.Name, Comparison: spec.Kind})
}

func configError(format string, args ...any) error {
	return domain.NewTemplateError(format, args...)
}

// Absent matches when the attribute is missing. The reference must be null.
func Absent(reference, observed any) (domain.Tally, error) {
	if err := checkAbsent(reference); err != nil {
		return domain.Tally{}, err
	}
	return domain.MatchIf(observed == nil), nil
}

func checkAbsent(reference any) error {
	if reference != nil {
		return configError("expected null reference, got %v", reference)
	}
	return nil
}

// Exactly requires equality. For a list reference, elements are compared by
// position; each reference element without an equal observed counterpart
// and each observed element without an equal reference counterpart counts
// as one failed comparison.
func Exactly(reference, observed any) (domain.Tally, error) {
	if err := checkExactly(reference); err != nil {
		return domain.Tally{}, err
	}

	ref, isList := asList(reference)
	if !isList {
		return domain.MatchIf(equal(reference, observed)), nil
	}

	if observed == nil {
		if len(ref) == 0 {
			return domain.Match(), nil
		}
		return domain.Mismatches(len(ref)), nil
	}
	obs, ok := asList(observed)
	if !ok {
		obs = []any{observed}
	}

	matches := 0
	for i := 0; i < len(ref) && i < len(obs); i++ {
		if equal(ref[i], obs[i]) {
			matches++
		}
	}
	total := matches + (len(ref) - matches) + (len(obs) - matches)
	if total == 0 {
		return domain.Match(), nil
	}
	return domain.Tally{Matches: matches, Comparisons: total}, nil
}

func checkExactly(reference any) error {
	if reference == nil {
		return nil
	}
	if _, isMap := reference.(map[string]any); isMap {
		return configError("reference must be a scalar or a list")
	}
	ref, ok := asList(reference)
	if !ok || len(ref) == 0 {
		return nil
	}
	first := isString(ref[0])
	for _, item := range ref[1:] {
		if isString(item) != first {
			return configError("mixture of string and non-string data in reference %v", reference)
		}
	}
	return nil
}

// ExactlyIfPresent matches a missing attribute and otherwise behaves like
// Exactly.
func ExactlyIfPresent(reference, observed any) (domain.Tally, error) {
	if err := checkExactly(reference); err != nil {
		return domain.Tally{}, err
	}
	if observed == nil {
		return domain.Match(), nil
	}
	return Exactly(reference, observed)
}

// InRange requires a numeric value within inclusive [low, high] bounds. A
// list of pairs compares a multi-valued attribute element-wise; elements
// present on only one side count as mismatches.
func InRange(reference, observed any) (domain.Tally, error) {
	if err := checkRange(reference); err != nil {
		return domain.Tally{}, err
	}
	return inRange(reference, observed), nil
}

// inRange assumes reference has passed checkRange.
func inRange(reference, observed any) domain.Tally {
	ref, _ := asList(reference)
	if _, nested := asList(ref[0]); nested {
		obs, ok := asList(observed)
		if !ok {
			return domain.Mismatches(len(ref))
		}
		var t domain.Tally
		for i := 0; i < len(ref) && i < len(obs); i++ {
			t = t.Combine(inRange(ref[i], obs[i]))
		}
		return t.Combine(domain.Mismatches(absDiff(len(ref), len(obs))))
	}

	low, _ := asFloat(ref[0])
	high, _ := asFloat(ref[1])
	if _, isList := asList(observed); isList {
		return domain.Mismatch()
	}
	v, ok := coerceFloat(observed)
	return domain.MatchIf(ok && low <= v && v <= high)
}

func checkRange(reference any) error {
	ref, ok := asList(reference)
	if !ok {
		return configError("reference values not provided as a list")
	}
	if len(ref) == 0 {
		return configError("reference list is empty")
	}
	if _, nested := asList(ref[0]); nested {
		for _, item := range ref {
			pair, ok := asList(item)
			if !ok {
				return configError("first element is a list but %v is not", item)
			}
			if len(pair) != 2 {
				return configError("every range must have exactly two bounds, got %v", item)
			}
			if err := checkPair(pair); err != nil {
				return err
			}
		}
		return nil
	}
	if len(ref) != 2 {
		return configError("reference must be a list with two values, got %v", reference)
	}
	return checkPair(ref)
}

func checkPair(pair []any) error {
	low, okLow := asFloat(pair[0])
	high, okHigh := asFloat(pair[1])
	if !okLow || !okHigh {
		return configError("range bounds %v are not numeric", pair)
	}
	if high < low {
		return configError("range bounds %v are in wrong order", pair)
	}
	return nil
}

// InSet requires the observed value to equal one of the reference values.
func InSet(reference, observed any) (domain.Tally, error) {
	if err := checkSet(reference); err != nil {
		return domain.Tally{}, err
	}
	ref, _ := asList(reference)
	for _, candidate := range ref {
		if equal(candidate, observed) {
			return domain.Match(), nil
		}
	}
	return domain.Mismatch(), nil
}

func checkSet(reference any) error {
	if _, ok := asList(reference); !ok {
		return configError("reference %v is not a list", reference)
	}
	return nil
}

// Regex requires the observed string to contain a match of the reference
// pattern. A list of patterns is applied element-wise to a list attribute.
func Regex(reference, observed any) (domain.Tally, error) {
	if err := checkRegex(reference); err != nil {
		return domain.Tally{}, err
	}

	patterns, isList := asList(reference)
	if !isList {
		return searchOne(reference.(string), observed), nil
	}
	obs, ok := asList(observed)
	if !ok {
		return domain.Mismatches(len(patterns)), nil
	}
	var t domain.Tally
	for i := 0; i < len(patterns) && i < len(obs); i++ {
		t = t.Combine(searchOne(patterns[i].(string), obs[i]))
	}
	return t.Combine(domain.Mismatches(absDiff(len(patterns), len(obs)))), nil
}

// searchOne assumes pattern compiles.
func searchOne(pattern string, observed any) domain.Tally {
	s, ok := observed.(string)
	if !ok {
		return domain.Mismatch()
	}
	re, _ := compile(pattern)
	return domain.MatchIf(re.MatchString(s))
}

func checkRegex(reference any) error {
	if s, ok := reference.(string); ok {
		_, err := compile(s)
		return err
	}
	patterns, ok := asList(reference)
	if !ok {
		return configError("reference must be a pattern or a list of patterns")
	}
	for _, p := range patterns {
		s, ok := p.(string)
		if !ok {
			return configError("all patterns must be strings, got %v", p)
		}
		if _, err := compile(s); err != nil {
			return err
		}
	}
	return nil
}

var patternCache sync.Map // string -> *regexp.Regexp

// compile returns a cached compiled pattern. Safe for concurrent use.
func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, configError("malformed regular expression %q: %v", pattern, err)
	}
	actual, _ := patternCache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// Search reports whether pattern matches s. It is used by the series label
// prefilter, which shares the comparator's pattern cache.
func Search(pattern, s string) (bool, error) {
	re, err := compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}
