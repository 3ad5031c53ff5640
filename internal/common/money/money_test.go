package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{221.35416666666669, 221.35},
		{23.4375, 23.44},
		{772.535376335885, 772.54},
		{-1.6143530956469476e-11, 0},
		{0.005, 0.01},
		{-0.005, -0.01},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Round(tt.in))
	}
}

func TestRoundPct(t *testing.T) {
	assert.Equal(t, 1.375, RoundPct(1.375))
	assert.Equal(t, 30.0033, RoundPct(30.003333333))
}

func TestString(t *testing.T) {
	assert.Equal(t, "15625.00", String(15625))
	assert.Equal(t, "776.10", String(776.1))
}

func TestRound_NonFinitePassesThrough(t *testing.T) {
	assert.True(t, math.IsNaN(Round(math.NaN())))
	assert.True(t, math.IsInf(Round(math.Inf(1)), 1))
	assert.Equal(t, "NaN", String(math.NaN()))
}
