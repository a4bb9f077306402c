package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		input      int
		output     int
		cacheWrite int
		cacheRead  int
		want       float64
	}{
		{
			name:  "haiku simple",
			model: "haiku",
			input: 1000000, output: 100000,
			want: 0.80 + 0.40, // 0.80 input + 0.40 output
		},
		{
			name:  "haiku with cache",
			model: "haiku",
			input: 500000, output: 50000,
			cacheWrite: 200000, cacheRead: 300000,
			// in: 0.5M/1M * 0.80 = 0.40
			// out: 0.05M/1M * 4.00 = 0.20
			// cw: 0.2M/1M * 0.80 * 1.25 = 0.20
			// cr: 0.3M/1M * 0.80 * 0.1 = 0.024
			want: 0.40 + 0.20 + 0.20 + 0.024,
		},
		{
			name:  "sonnet",
			model: "sonnet",
			input: 1000000, output: 100000,
			want: 3.00 + 1.50, // 3.00 input + 1.50 output
		},
		{
			name:  "unknown model returns 0",
			model: "unknown",
			input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:  "zero tokens returns 0",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Claude(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
	assert.Contains(t, rates.Anthropic, "claude-opus-4-6")
}

func TestTracker_AddAndSpent(t *testing.T) {
	t.Parallel()
	tr := NewTracker(10.0)

	tr.Add(1.25)
	tr.Add(0.75)
	tr.Add(-1.0) // ignored
	tr.Add(0)    // ignored

	assert.InDelta(t, 2.0, tr.Spent(), 1e-9)
	assert.NoError(t, tr.Check())
}

func TestTracker_CeilingReached(t *testing.T) {
	t.Parallel()
	tr := NewTracker(1.0)

	tr.Add(0.6)
	require.NoError(t, tr.Check())

	tr.Add(0.4)
	assert.ErrorIs(t, tr.Check(), ErrCeilingReached)
}

func TestTracker_ZeroCeilingDisablesEnforcement(t *testing.T) {
	t.Parallel()
	tr := NewTracker(0)

	tr.Add(1000)

	assert.NoError(t, tr.Check())
	assert.InDelta(t, 1000.0, tr.Spent(), 1e-9)
}
