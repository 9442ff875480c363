package template

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/protocolqc/protocolqc/internal/compare"
	"github.com/protocolqc/protocolqc/internal/domain"
)

// Section and setting names of the template file format.
const (
	sectionGeneral = "GENERAL"

	keyFields             = "fields"
	keySeries             = "series"
	keyShareFields        = "share_fields"
	keyNumFiles           = "num_files"
	keyDuplicatesAllowed  = "duplicates_allowed"
	keyDuplicatesExpected = "duplicates_expected"
	keyOptional           = "is_optional"
	keyIgnoreOrdering     = "ignore_ordering"
	keyPairedFmaps        = "paired_fmaps"
	keyDateRestriction    = "date_restriction"
	keyAllowExtras        = "allow_extras"
	keyCheckOrdering      = "check_ordering"
	keyTags               = "tags"

	dateFormat = "2006-01-02"

	// privateFieldPrefix marks vendor fields that need binary decoding.
	privateFieldPrefix = "PRIVATE-"
)

// Builder turns parsed template documents into protocol template trees.
type Builder struct {
	minMatchScore float64
	logger        *slog.Logger
}

// NewBuilder creates a Builder. Every series template receives
// minMatchScore as its partial-match threshold.
func NewBuilder(minMatchScore float64, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default().With("component", "template")
	}
	return &Builder{minMatchScore: minMatchScore, logger: logger}
}

// WithLogger returns a copy of b that logs to logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	cp := *b
	if logger != nil {
		cp.logger = logger
	}
	return &cp
}

// BuildSource parses and builds a template file.
func (b *Builder) BuildSource(src Source) (*domain.ProtocolTemplate, error) {
	doc, err := Parse(src.Data, src.Format)
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Protocol: src.Name})
	}
	return b.Build(src.Name, doc)
}

// Build constructs the template tree for one protocol. The returned tree is
// validated, every field reference is checked against its comparison kind,
// and all result fields are reset.
func (b *Builder) Build(name string, doc Mapping) (*domain.ProtocolTemplate, error) {
	b.logger.Info("building templates", "template", name)

	p := &domain.ProtocolTemplate{Name: name}
	general := Mapping{}
	if raw, ok := doc.Get(sectionGeneral); ok {
		m, err := asMapping(raw, sectionGeneral)
		if err != nil {
			return nil, domain.Locate(err, domain.TemplateError{Protocol: name})
		}
		general = m
	}
	if err := b.applyGeneral(p, general); err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Protocol: name})
	}
	protocolFields, err := fieldsOf(general)
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Protocol: name})
	}

	for _, entry := range doc {
		if entry.Key == sectionGeneral {
			continue
		}
		acq, err := b.buildAcquisition(entry.Key, entry.Value, protocolFields)
		if err != nil {
			return nil, domain.Locate(err, domain.TemplateError{Protocol: name, Acquisition: entry.Key})
		}
		p.Acquisitions = append(p.Acquisitions, acq)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, acq := range p.Acquisitions {
		for _, s := range acq.Series {
			for _, f := range s.Fields {
				if err := compare.Check(f); err != nil {
					return nil, domain.Locate(err, domain.TemplateError{
						Protocol: name, Acquisition: acq.Name, Series: s.Name,
					})
				}
			}
		}
	}
	for _, tag := range p.Tags {
		for _, cond := range tag.Conditions {
			if err := compare.Check(cond.Check); err != nil {
				return nil, domain.Locate(err, domain.TemplateError{Protocol: name})
			}
		}
	}

	p.Reset()
	return p, nil
}

func (b *Builder) applyGeneral(p *domain.ProtocolTemplate, general Mapping) error {
	var err error
	if p.Dates, err = dateRestriction(general); err != nil {
		return err
	}
	b.logger.Info("date restrictions extracted",
		"start", formatDate(p.Dates.Start), "end", formatDate(p.Dates.End))

	allowExtras, err := boolSetting(general, keyAllowExtras)
	if err != nil {
		return err
	}
	p.AllowExtras = allowExtras != nil && *allowExtras
	b.logger.Info("raise error if unmatched series are found", "enabled", !p.AllowExtras)

	checkOrdering, err := boolSetting(general, keyCheckOrdering)
	if err != nil {
		return err
	}
	p.CheckOrdering = checkOrdering != nil && *checkOrdering

	if raw, ok := general.Get(keyTags); ok && raw != nil {
		if p.Tags, err = customTags(raw); err != nil {
			return err
		}
		b.logger.Info("tags specifications found in template", "count", len(p.Tags))
	} else {
		b.logger.Info("no tags specifications found in template")
	}
	return nil
}

func (b *Builder) buildAcquisition(name string, raw any, protocolFields []domain.FieldSpec) (*domain.AcquisitionTemplate, error) {
	b.logger.Info("acquisition", "name", name)

	spec, err := asMapping(raw, "acquisition")
	if err != nil {
		return nil, err
	}

	allowed, err := boolSetting(spec, keyDuplicatesAllowed)
	if err != nil {
		return nil, err
	}
	expected, err := intSetting(spec, keyDuplicatesExpected)
	if err != nil {
		return nil, err
	}
	policy, err := domain.NewDuplicatePolicy(allowed, expected)
	if err != nil {
		return nil, err
	}

	acq := &domain.AcquisitionTemplate{Name: name, Duplicates: policy}
	if v, err := boolSetting(spec, keyOptional); err != nil {
		return nil, err
	} else if v != nil {
		acq.Optional = *v
	}
	if v, err := boolSetting(spec, keyIgnoreOrdering); err != nil {
		return nil, err
	} else if v != nil {
		acq.IgnoreOrdering = *v
	}
	if raw, ok := spec.Get(keyPairedFmaps); ok && raw != nil {
		if acq.Pairing, err = pairing(raw); err != nil {
			return nil, err
		}
	}

	acqFields, err := fieldsOf(spec)
	if err != nil {
		return nil, err
	}
	shareAcq, err := boolSetting(spec, keyShareFields)
	if err != nil {
		return nil, err
	}

	rawSeries, ok := spec.Get(keySeries)
	if !ok {
		return nil, domain.NewTemplateError("acquisition defines no %q section", keySeries)
	}
	seriesSpecs, err := asMapping(rawSeries, keySeries)
	if err != nil {
		return nil, err
	}
	for _, entry := range seriesSpecs {
		s, err := b.buildSeries(name, entry.Key, entry.Value, shareAcq, protocolFields, acqFields)
		if err != nil {
			return nil, err
		}
		acq.Series = append(acq.Series, s)
	}

	b.logger.Info("acquisition settings",
		"name", name,
		"duplicates_allowed", policy.Allowed,
		"duplicates_expected", policy.Expected,
		"optional", acq.Optional,
		"ignore_ordering", acq.IgnoreOrdering)
	return acq, nil
}

func (b *Builder) buildSeries(
	acqName, seriesName string,
	raw any,
	shareAcq *bool,
	protocolFields, acqFields []domain.FieldSpec,
) (*domain.SeriesTemplate, error) {
	fullName := acqName + ":" + seriesName
	b.logger.Info("series", "name", fullName)

	spec, err := asMapping(raw, "series")
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Series: fullName})
	}
	own, err := fieldsOf(spec)
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Series: fullName})
	}
	shareSeries, err := boolSetting(spec, keyShareFields)
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Series: fullName})
	}
	count, err := fileCount(spec)
	if err != nil {
		return nil, domain.Locate(err, domain.TemplateError{Series: fullName})
	}

	fields := own
	if shouldShare(shareSeries, shareAcq) {
		fields = mergeFields(protocolFields, acqFields, own)
	}

	return &domain.SeriesTemplate{
		Name:          fullName,
		FileCount:     count,
		MinMatchScore: b.minMatchScore,
		Fields:        fields,
	}, nil
}

// shouldShare reports whether a series inherits protocol and acquisition
// fields: when the series opts in, or is silent and the acquisition does
// not opt out.
func shouldShare(series, acquisition *bool) bool {
	if series != nil {
		return *series
	}
	return acquisition == nil || *acquisition
}

// mergeFields layers field lists. A later layer overrides the reference of
// an earlier field with the same name but the field keeps its position.
func mergeFields(layers ...[]domain.FieldSpec) []domain.FieldSpec {
	var out []domain.FieldSpec
	index := make(map[string]int)
	for _, layer := range layers {
		for _, f := range layer {
			if i, ok := index[f.Name]; ok {
				out[i] = f
				continue
			}
			index[f.Name] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// fieldsOf parses the optional "fields" object of a section.
func fieldsOf(section Mapping) ([]domain.FieldSpec, error) {
	raw, ok := section.Get(keyFields)
	if !ok || raw == nil {
		return nil, nil
	}
	m, err := asMapping(raw, keyFields)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FieldSpec, 0, len(m))
	for _, entry := range m {
		f, err := fieldSpec(entry.Key, entry.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// fieldSpec parses {"<kind>": reference} or the older
// {"value": reference, "comparison": "<kind>"} form.
func fieldSpec(name string, raw any) (domain.FieldSpec, error) {
	loc := domain.TemplateError{Field: name}
	m, err := asMapping(raw, "field specification")
	if err != nil {
		return domain.FieldSpec{}, domain.Locate(err, loc)
	}

	if comparison, ok := m.Get("comparison"); ok && len(m) == 2 {
		value, hasValue := m.Get("value")
		kindName, isString := comparison.(string)
		if !hasValue || !isString {
			return domain.FieldSpec{}, domain.Locate(
				domain.NewTemplateError(`expected "value" and a string "comparison"`), loc)
		}
		kind, err := domain.ParseComparisonKind(kindName)
		if err != nil {
			return domain.FieldSpec{}, domain.Locate(err, loc)
		}
		return domain.FieldSpec{Name: name, Kind: kind, Reference: plain(value)}, nil
	}

	if len(m) != 1 {
		return domain.FieldSpec{}, domain.Locate(domain.NewTemplateError("does not have exactly one entry"), loc)
	}
	kind, err := domain.ParseComparisonKind(m[0].Key)
	if err != nil {
		return domain.FieldSpec{}, domain.Locate(err, loc)
	}
	return domain.FieldSpec{Name: name, Kind: kind, Reference: plain(m[0].Value)}, nil
}

func fileCount(spec Mapping) (domain.FileCount, error) {
	raw, ok := spec.Get(keyNumFiles)
	if !ok || raw == nil {
		return domain.AnyFileCount(), nil
	}
	switch v := raw.(type) {
	case float64:
		n, ok := wholeNumber(v)
		if !ok || n < 0 {
			return domain.FileCount{}, domain.NewTemplateError("num_files %v is not a non-negative integer", v)
		}
		if n == 0 {
			return domain.AnyFileCount(), nil
		}
		return domain.ExactFileCount(n), nil
	case Mapping:
		lo, err := intSetting(v, "min")
		if err != nil {
			return domain.FileCount{}, err
		}
		hi, err := intSetting(v, "max")
		if err != nil {
			return domain.FileCount{}, err
		}
		_, hasMin := v.Get("min")
		_, hasMax := v.Get("max")
		if !hasMin || !hasMax {
			return domain.FileCount{}, domain.NewTemplateError("num_files range needs both min and max")
		}
		count := domain.FileCountRange(lo, hi)
		return count, count.Validate()
	default:
		return domain.FileCount{}, domain.NewTemplateError(
			"num_files must be an integer or an object with min and max, got %s", describe(raw))
	}
}

func pairing(raw any) (*domain.Pairing, error) {
	m, err := asMapping(raw, keyPairedFmaps)
	if err != nil {
		return nil, err
	}
	pos, _ := m.Get("position")
	position, _ := pos.(string)

	rawWith, _ := m.Get("which_acquisitions")
	var with []string
	switch w := rawWith.(type) {
	case string:
		with = []string{w}
	case []any:
		for _, item := range w {
			s, ok := item.(string)
			if !ok {
				return nil, domain.NewTemplateError("paired_fmaps which_acquisitions must list acquisition names")
			}
			with = append(with, s)
		}
	}
	return &domain.Pairing{Position: domain.PairPosition(position), With: with}, nil
}

func dateRestriction(general Mapping) (domain.DateRestriction, error) {
	var d domain.DateRestriction
	raw, ok := general.Get(keyDateRestriction)
	if !ok || raw == nil {
		return d, nil
	}
	m, err := asMapping(raw, keyDateRestriction)
	if err != nil {
		return d, err
	}
	parse := func(key string) (time.Time, error) {
		v, ok := m.Get(key)
		if !ok || v == nil || v == "" {
			return time.Time{}, nil
		}
		s, ok := v.(string)
		if !ok {
			return time.Time{}, domain.NewTemplateError("date_restriction %s must be a YYYY-MM-DD string", key)
		}
		t, err := time.Parse(dateFormat, s)
		if err != nil {
			return time.Time{}, domain.NewTemplateError("date_restriction %s %q is not a YYYY-MM-DD date", key, s)
		}
		return t, nil
	}
	if d.Start, err = parse("start"); err != nil {
		return d, err
	}
	if d.End, err = parse("end"); err != nil {
		return d, err
	}
	return d, nil
}

func customTags(raw any) ([]domain.CustomTag, error) {
	m, err := asMapping(raw, keyTags)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CustomTag, 0, len(m))
	for _, entry := range m {
		spec, err := asMapping(entry.Value, "tag "+entry.Key)
		if err != nil {
			return nil, err
		}
		typ, _ := spec.Get("type")
		value, _ := spec.Get("tag")

		tag := domain.CustomTag{Name: entry.Key}
		switch {
		case typ == string(domain.TagConstant) || typ == string(domain.TagFillWith):
			s, ok := value.(string)
			if !ok {
				return nil, domain.NewTemplateError("tag %s: value must be a string", entry.Key)
			}
			tag.Type = domain.CustomTagType(typ.(string))
			tag.Value = s
		default:
			conditions, ok := value.(Mapping)
			if !ok {
				return nil, domain.NewTemplateError("tag %s: value must be a string or an object", entry.Key)
			}
			tag.Type = domain.TagConditional
			for _, c := range conditions {
				cond, err := tagCondition(entry.Key, c)
				if err != nil {
					return nil, err
				}
				tag.Conditions = append(tag.Conditions, cond)
			}
		}
		if err := tag.Validate(); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

func tagCondition(tagName string, c Entry) (domain.TagCondition, error) {
	check, err := asMapping(c.Value, "tag condition")
	if err != nil {
		return domain.TagCondition{}, err
	}
	field, _ := check.Get("field")
	fieldName, ok := field.(string)
	if !ok || fieldName == "" {
		return domain.TagCondition{}, domain.NewTemplateError("tag %s: condition %s needs a field", tagName, c.Key)
	}
	if strings.Contains(fieldName, privateFieldPrefix) {
		return domain.TagCondition{}, domain.NewTemplateError("tag %s: cannot use private fields when generating tags", tagName)
	}
	comparison, _ := check.Get("comparison")
	kindName, _ := comparison.(string)
	kind, err := domain.ParseComparisonKind(kindName)
	if err != nil {
		return domain.TagCondition{}, err
	}
	value, _ := check.Get("value")
	return domain.TagCondition{
		Value: c.Key,
		Check: domain.FieldSpec{Name: fieldName, Kind: kind, Reference: plain(value)},
	}, nil
}

func boolSetting(m Mapping, key string) (*bool, error) {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return nil, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return nil, domain.NewTemplateError("%s must be a boolean, got %s", key, describe(raw))
	}
	return &b, nil
}

func intSetting(m Mapping, key string) (int, error) {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return 0, nil
	}
	f, isNumber := raw.(float64)
	n, whole := wholeNumber(f)
	if !isNumber || !whole {
		return 0, domain.NewTemplateError("%s must be an integer, got %v", key, raw)
	}
	return n, nil
}

func wholeNumber(f float64) (int, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format(dateFormat)
}
