package domain

// CustomTagType selects how a custom tag value is produced.
type CustomTagType string

const (
	// TagConstant writes a fixed value.
	TagConstant CustomTagType = "constant"

	// TagFillWith copies the value of an observed header field.
	TagFillWith CustomTagType = "fill_with"

	// TagConditional writes the first candidate whose condition matches.
	TagConditional CustomTagType = "conditional"
)

// TagCondition pairs a candidate tag value with the field check that selects it.
type TagCondition struct {
	Value string    `json:"value"     validate:"required"`
	Check FieldSpec `json:"check"`
}

// CustomTag is one entry of a template's custom tag section. Conditions are
// kept in template declaration order; the first satisfied one wins.
type CustomTag struct {
	Name       string         `json:"name"                 validate:"required"`
	Type       CustomTagType  `json:"type"                 validate:"required,oneof=constant fill_with conditional"`
	Value      string         `json:"value,omitempty"`
	Conditions []TagCondition `json:"conditions,omitempty" validate:"required_if=Type conditional,dive"`
}

// Validate checks the tag definition.
func (t CustomTag) Validate() error {
	if err := validate.Struct(t); err != nil {
		return &TemplateError{Field: t.Name, Reason: "tags: " + err.Error()}
	}
	return nil
}
