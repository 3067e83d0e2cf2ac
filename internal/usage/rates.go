package usage

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to their pricing.
type Rates map[string]ModelRate

// Cost computes the USD cost of a call against the given model.
// Unknown models cost 0 rather than failing the request.
func (r Rates) Cost(model string, tokensIn, tokensOut int) float64 {
	rate, ok := r[model]
	if !ok {
		return 0
	}
	inCost := (float64(tokensIn) / 1e6) * rate.Input
	outCost := (float64(tokensOut) / 1e6) * rate.Output
	return inCost + outCost
}

// DefaultRates returns the default pricing for the configured providers.
func DefaultRates() Rates {
	return Rates{
		"gemini-2.0-flash":           {Input: 0.10, Output: 0.40},
		"gemini-1.5-flash":           {Input: 0.075, Output: 0.30},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
	}
}
