package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"kitchen":   Kitchen,
		"BAR":       Bar,
		"pre-check": PreCheck,
		"precheck":  PreCheck,
		"closing":   Closing,
		"Combined":  Combined,
	}
	for in, want := range tests {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("dessert")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "kitchen", Kitchen.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.True(t, Closing.ShowsPrices())
	assert.False(t, Combined.ShowsPrices())
}
