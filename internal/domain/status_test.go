package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchStatus_IsOptional(t *testing.T) {
	optional := []MatchStatus{
		StatusOptional, StatusOptionalPartial, StatusOptionalMissing,
		StatusOptionalDuplicatesPartialDuplicates,
	}
	for _, s := range optional {
		assert.True(t, s.IsOptional(), s)
	}
	for _, s := range []MatchStatus{StatusMatch, StatusNoMatch, StatusDuplicatesUnexpected, StatusUnknown} {
		assert.False(t, s.IsOptional(), s)
	}
}

func TestMatchStatus_Label(t *testing.T) {
	assert.Equal(t, "DUPLICATES (EXPECTED)", StatusDuplicatesExpected.Label())
	assert.Equal(t, "UNKNOWN (ERROR)", MatchStatus("bogus").Label())
}

func TestOptionalScans_TagValues(t *testing.T) {
	tests := []struct {
		scans     OptionalScans
		specified string
		found     string
	}{
		{OptionalNoneSpecified, "none", "none"},
		{OptionalNoneFound, "one_or_more", "none"},
		{OptionalFound, "one_or_more", "one_or_more"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.specified, tt.scans.Specified())
		assert.Equal(t, tt.found, tt.scans.Found())
	}
}

func TestParseComparisonKind(t *testing.T) {
	t.Run("known kinds", func(t *testing.T) {
		for _, s := range []string{"absent", "exactly", "exactly_if_present", "in_range", "in_set", "regex"} {
			k, err := ParseComparisonKind(s)
			require.NoError(t, err)
			assert.Equal(t, s, k.String())
		}
	})

	t.Run("legacy exact alias", func(t *testing.T) {
		k, err := ParseComparisonKind("exact")
		require.NoError(t, err)
		assert.Equal(t, CompareExactly, k)
	})

	t.Run("unknown kind is a template error", func(t *testing.T) {
		_, err := ParseComparisonKind("roughly")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTemplate)
		assert.Contains(t, err.Error(), "roughly")
	})
}
