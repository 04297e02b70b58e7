package potlai

import (
	"math"
	"testing"
)

func TestEstimateCost(t *testing.T) {
	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000}

	tests := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.15 + 0.30},
		{"gpt-4o-mini-2024-07-18", 0.15 + 0.30},
		{"gpt-4o", 2.50 + 5.00},
		{"local-llama", 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := EstimateCost(tt.model, usage); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateCost(%q) = %f, want %f", tt.model, got, tt.want)
			}
		})
	}
}
