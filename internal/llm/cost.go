package llm

import "strings"

// pricing in USD per million tokens: input, cached input, output
type modelPricing struct {
	input  float64
	cached float64
	output float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":                {input: 2.50, cached: 1.25, output: 10.00},
	"gpt-4o-mini":           {input: 0.15, cached: 0.075, output: 0.60},
	"gpt-4.1":               {input: 2.00, cached: 0.50, output: 8.00},
	"gpt-4.1-mini":          {input: 0.40, cached: 0.10, output: 1.60},
	"gemini-2.5-pro":        {input: 1.25, cached: 0.31, output: 10.00},
	"gemini-2.5-flash":      {input: 0.30, cached: 0.075, output: 2.50},
	"gemini-2.5-flash-lite": {input: 0.10, cached: 0.025, output: 0.40},
}

// EstimateCost returns the approximate USD cost of one call. Unknown
// models cost zero; the figure is telemetry, not billing.
func EstimateCost(model string, usage Usage) float64 {
	p, ok := pricingTable[model]
	if !ok {
		// versioned model names like gpt-4o-2024-08-06
		for name, candidate := range pricingTable {
			if strings.HasPrefix(model, name) {
				p, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return 0
	}

	fresh := usage.PromptTokens - usage.CachedTokens
	if fresh < 0 {
		fresh = 0
	}
	cost := float64(fresh)*p.input + float64(usage.CachedTokens)*p.cached + float64(usage.CompletionTokens)*p.output
	return cost / 1_000_000
}
