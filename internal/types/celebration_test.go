package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, in := range []string{"timezone", "SIMPLE", " Missed ", "test"} {
		m, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.NotEmpty(t, m)
	}

	_, err := ParseMode("hourly")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidationInvalidMode))
}

func TestValidationSummary_InvalidFraction(t *testing.T) {
	assert.Equal(t, 0.0, ValidationSummary{}.InvalidFraction())
	assert.InDelta(t, 0.3, ValidationSummary{Total: 10, Invalid: 3}.InvalidFraction(), 1e-9)
	assert.InDelta(t, 2.0/3.0, ValidationSummary{Total: 3, Invalid: 2}.InvalidFraction(), 1e-9)
}

func TestValidationOutcome_ValidIDs(t *testing.T) {
	o := ValidationOutcome{Valid: []BirthdayPerson{{UserID: "A"}, {UserID: "C"}}}
	ids := o.ValidIDs()

	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "A")
	assert.Contains(t, ids, "C")
	assert.NotContains(t, ids, "B")
}
