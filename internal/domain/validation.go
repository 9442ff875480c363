package domain

import (
	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = newValidator()

// newValidator builds the validator with the domain's custom tags registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("comparison", func(fl validator.FieldLevel) bool {
		return ComparisonKind(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("pairposition", func(fl validator.FieldLevel) bool {
		return PairPosition(fl.Field().String()).IsValid()
	})
	return v
}

// invalid wraps a validator failure as a configuration error.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &TemplateError{Reason: err.Error()}
}
