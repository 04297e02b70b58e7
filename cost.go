package potlai

import "strings"

// ModelPrice is the USD price per million tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// ModelPrices lists known prices by model name prefix.
var ModelPrices = map[string]ModelPrice{
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4.1-nano":  {Input: 0.10, Output: 0.40},
	"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
	"gpt-4.1":       {Input: 2.00, Output: 8.00},
	"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
}

// EstimateCost returns the USD cost of usage on model. The longest matching
// prefix in ModelPrices wins; unknown models cost 0.
func EstimateCost(model string, usage Usage) float64 {
	price, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*price.Input/1_000_000 +
		float64(usage.CompletionTokens)*price.Output/1_000_000
}

func lookupPrice(model string) (ModelPrice, bool) {
	var best string
	for prefix := range ModelPrices {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return ModelPrice{}, false
	}
	return ModelPrices[best], true
}
