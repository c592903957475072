package gemini

import (
	"strings"

	"github.com/leofalp/explainer/providers/ai"
)

const (
	Model25Pro       = "gemini-2.5-pro"
	Model25Flash     = "gemini-2.5-flash"
	Model25FlashLite = "gemini-2.5-flash-lite"
	Model20Flash     = "gemini-2.0-flash"
	Model20FlashLite = "gemini-2.0-flash-lite"
	Model15Flash     = "gemini-1.5-flash"
)

// modelPrice is USD per million tokens, standard (<=200k context) tier.
type modelPrice struct {
	input  float64
	output float64
}

// modelPricing source: https://ai.google.dev/gemini-api/docs/pricing
var modelPricing = map[string]modelPrice{
	Model25Pro:       {input: 1.25, output: 10.00},
	Model25Flash:     {input: 0.30, output: 2.50},
	Model25FlashLite: {input: 0.10, output: 0.40},
	Model20Flash:     {input: 0.10, output: 0.40},
	Model20FlashLite: {input: 0.075, output: 0.30},
	Model15Flash:     {input: 0.075, output: 0.30},
}

// pricingFor returns per-token pricing for id. Versioned ids such as
// "gemini-2.5-flash-preview-05-20" or "gemini-2.0-flash-001" match their
// family by longest prefix.
func pricingFor(id string) *ai.Pricing {
	id = strings.TrimPrefix(id, "models/")

	best := ""
	for family := range modelPricing {
		if strings.HasPrefix(id, family) && len(family) > len(best) {
			best = family
		}
	}
	if best == "" {
		return nil
	}
	price := modelPricing[best]
	return &ai.Pricing{Prompt: price.input / 1e6, Completion: price.output / 1e6}
}
