package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_KnownRate(t *testing.T) {
	table, err := New("0.002", map[string]string{
		"google/gemini-pro": "0.00035",
	})
	require.NoError(t, err)

	// Exactly 1000 tokens costs exactly the per-1k rate.
	got := table.Estimate("google", "gemini-pro", 1000, 0)
	assert.True(t, got.Equal(decimal.RequireFromString("0.00035")), "got %s", got)
}

func TestEstimate_UnknownPairUsesDefault(t *testing.T) {
	table, err := New("0.002", nil)
	require.NoError(t, err)

	got := table.Estimate("nobody", "no-model", 500, 500)
	assert.True(t, got.Equal(decimal.RequireFromString("0.002")), "got %s", got)
}

func TestEstimate_ZeroTokens(t *testing.T) {
	table, err := New("0.002", nil)
	require.NoError(t, err)

	assert.True(t, table.Estimate("p", "m", 0, 0).IsZero())
}

func TestEstimate_NegativeTokensClamp(t *testing.T) {
	table, err := New("0.002", nil)
	require.NoError(t, err)

	got := table.Estimate("p", "m", -100, -50)
	assert.False(t, got.IsNegative(), "estimates must never be negative, got %s", got)
	assert.True(t, got.IsZero())
}

func TestEstimate_DecimalExact(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear in cost figures.
	table, err := New("0.1", nil)
	require.NoError(t, err)

	got := table.Estimate("p", "m", 1500, 1500)
	assert.Equal(t, "0.3", got.String())
}

func TestNew_RejectsBadRate(t *testing.T) {
	_, err := New("0.002", map[string]string{"p/m": "not-a-number"})
	assert.Error(t, err)

	_, err = New("bogus", nil)
	assert.Error(t, err)
}
