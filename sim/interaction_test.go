package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionType_Exponent(t *testing.T) {
	tests := []struct {
		it   InteractionType
		want int
	}{
		{DipoleDipole, 6},
		{DipoleQuadrupole, 8},
		{QuadrupoleQuadrupole, 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.it), func(t *testing.T) {
			got, err := tt.it.Exponent()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInteractionType_Exponent_RejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "QD", "dd ", "OO", "6"} {
		_, err := InteractionType(name).Exponent()
		assert.True(t, errors.Is(err, ErrUnknownInteraction), "name %q: got %v", name, err)
	}
}

func TestParseInteractionType(t *testing.T) {
	it, err := ParseInteractionType(" qq ")
	require.NoError(t, err)
	assert.Equal(t, QuadrupoleQuadrupole, it)

	_, err = ParseInteractionType("dipole")
	assert.ErrorIs(t, err, ErrUnknownInteraction)
}

func TestValidInteractionNames_Sorted(t *testing.T) {
	assert.Equal(t, []string{"DD", "DQ", "QQ"}, ValidInteractionNames())
}
