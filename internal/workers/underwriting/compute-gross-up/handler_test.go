package computegrossup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending-workers/internal/common/camunda/zeebetest"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/pricing"
)

func f(v float64) *float64 {
	return &v
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(createTestConfig(), pricing.DefaultPolicy(), logger.NewTestLogger(t))
}

// ============================================================================
// Execute
// ============================================================================

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		expected Output
	}{
		{
			name:     "tier B above flat-fee threshold",
			input:    &Input{ApplicationID: "app-1", NetAmount: 15000, RiskTier: "B"},
			expected: Output{NetAmount: 15000, OriginationPct: 4, OriginationFee: 625, GrossPrincipal: 15625},
		},
		{
			name:     "small loan pays flat fee",
			input:    &Input{ApplicationID: "app-2", NetAmount: 5500, RiskTier: "A"},
			expected: Output{NetAmount: 5500, OriginationPct: 3, OriginationFee: 450, GrossPrincipal: 5950, MinFeeApplied: true},
		},
		{
			name:     "verified amount overrides request",
			input:    &Input{ApplicationID: "app-3", NetAmount: 5000, VerifiedNetAmount: f(15000), RiskTier: "B"},
			expected: Output{NetAmount: 15000, OriginationPct: 4, OriginationFee: 625, GrossPrincipal: 15625, VerifiedOverrideApplied: true},
		},
		{
			name:     "zero verified amount is ignored",
			input:    &Input{ApplicationID: "app-4", NetAmount: 15000, VerifiedNetAmount: f(0), RiskTier: "B"},
			expected: Output{NetAmount: 15000, OriginationPct: 4, OriginationFee: 625, GrossPrincipal: 15625},
		},
		{
			name:     "explicit percentage wins over tier",
			input:    &Input{ApplicationID: "app-5", NetAmount: 20000, RiskTier: "C", OriginationPct: f(0)},
			expected: Output{NetAmount: 20000, OriginationPct: 0, OriginationFee: 0, GrossPrincipal: 20000},
		},
		{
			name:     "rounded to cents",
			input:    &Input{ApplicationID: "app-6", NetAmount: 10000.01, RiskTier: "A"},
			expected: Output{NetAmount: 10000.01, OriginationPct: 3, OriginationFee: 309.28, GrossPrincipal: 10309.29},
		},
	}

	handler := newTestHandler(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := handler.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *output)
		})
	}
}

func TestExecute_InvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		input       *Input
		expectedErr error
	}{
		{"zero net", &Input{NetAmount: 0, RiskTier: "A"}, ErrInvalidNetAmount},
		{"negative net", &Input{NetAmount: -10, RiskTier: "A"}, ErrInvalidNetAmount},
		{"rejected tier", &Input{NetAmount: 15000, RiskTier: "REJECTED"}, ErrRejectedTier},
		{"unknown tier", &Input{NetAmount: 15000, RiskTier: "Z"}, ErrUnknownTier},
		{"missing tier", &Input{NetAmount: 15000}, ErrUnknownTier},
		{"percentage of one hundred", &Input{NetAmount: 15000, RiskTier: "A", OriginationPct: f(100)}, ErrInvalidPct},
		{"negative percentage", &Input{NetAmount: 15000, RiskTier: "A", OriginationPct: f(-2)}, ErrInvalidPct},
	}

	handler := newTestHandler(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

// ============================================================================
// Handle
// ============================================================================

func TestHandle_CompletesJob(t *testing.T) {
	handler := newTestHandler(t)
	client := zeebetest.NewJobClient()

	handler.Handle(client, zeebetest.NewJob(1, TaskType, 3, `{"applicationId":"app-1","netAmount":15000,"riskTier":"B"}`))

	require.Len(t, client.Gateway.Completed, 1)
	vars, err := client.Gateway.CompletedVariables(0)
	require.NoError(t, err)
	assert.Equal(t, 15625.0, vars["grossPrincipal"])
	assert.Equal(t, 625.0, vars["originationFee"])
	assert.Equal(t, false, vars["minFeeApplied"])
}

func TestHandle_RejectedTierThrows(t *testing.T) {
	handler := newTestHandler(t)
	client := zeebetest.NewJobClient()

	handler.Handle(client, zeebetest.NewJob(2, TaskType, 3, `{"applicationId":"app-2","netAmount":15000,"riskTier":"REJECTED"}`))

	assert.Empty(t, client.Gateway.Completed)
	assert.Empty(t, client.Gateway.Failed)
	require.Len(t, client.Gateway.Thrown, 1)
	assert.Equal(t, "INVALID_PRICING_INPUT", client.Gateway.Thrown[0].ErrorCode)
}
