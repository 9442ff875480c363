package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateError_Error(t *testing.T) {
	err := &TemplateError{
		Series:     "anat:T1w",
		Field:      "RepetitionTime",
		Comparison: CompareInRange,
		Reason:     "bounds inverted",
	}

	assert.Equal(t,
		`malformed template; series "anat:T1w"; field "RepetitionTime"; comparison "in_range": bounds inverted`,
		err.Error())
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestLocate(t *testing.T) {
	t.Run("fills missing location", func(t *testing.T) {
		base := &TemplateError{Comparison: CompareRegex, Reason: "bad pattern"}

		err := Locate(base, TemplateError{Series: "func:bold", Field: "ImageType"})

		var te *TemplateError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "func:bold", te.Series)
		assert.Equal(t, "ImageType", te.Field)
		assert.Equal(t, CompareRegex, te.Comparison)
		assert.Empty(t, base.Series, "original error must not be mutated")
	})

	t.Run("keeps inner location", func(t *testing.T) {
		err := Locate(&TemplateError{Series: "inner"}, TemplateError{Series: "outer", Protocol: "p"})

		var te *TemplateError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "inner", te.Series)
		assert.Equal(t, "p", te.Protocol)
	})

	t.Run("wrapped sentinel becomes typed", func(t *testing.T) {
		err := Locate(fmt.Errorf("%w: nope", ErrInvalidTemplate), TemplateError{Field: "X"})

		var te *TemplateError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "nope", te.Reason)
		assert.Equal(t, "X", te.Field)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		other := errors.New("disk on fire")
		assert.Same(t, other, Locate(other, TemplateError{Field: "X"}))
		assert.NoError(t, Locate(nil, TemplateError{}))
	})
}
