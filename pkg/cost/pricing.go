package cost

import "strings"

// ModelPricing is a model's per-million-token rate, mirroring the shape the
// teacher's model manager reports from its provider catalog (§4's model
// registry), but kept as a small static table here since this module has no
// live catalog fetch of its own.
type ModelPricing struct {
	Prompt     float64 // USD per 1M prompt tokens
	Completion float64 // USD per 1M completion tokens
}

// defaultPricing applies when a model ID isn't in the table: a conservative
// mid-tier rate so an unrecognized model still contributes to budget
// tracking instead of costing nothing.
var defaultPricing = ModelPricing{Prompt: 3.0, Completion: 15.0}

// knownPricing holds rates for a set of common OpenAI, Anthropic and Google
// models, keyed by substring match against the model ID so provider-prefixed
// and dated variants ("openai/gpt-4o-2024-08-06") still hit. Of
// pkg/modelpicker's predefined options only the claude-sonnet-4-5 entries
// match a key; the others are priced at defaultPricing.
var knownPricing = map[string]ModelPricing{
	"gpt-4o-mini":      {Prompt: 0.15, Completion: 0.60},
	"gpt-4o":           {Prompt: 2.50, Completion: 10.0},
	"gpt-4.1-mini":     {Prompt: 0.40, Completion: 1.60},
	"gpt-4.1":          {Prompt: 2.0, Completion: 8.0},
	"o3-mini":          {Prompt: 1.10, Completion: 4.40},
	"o4-mini":          {Prompt: 1.10, Completion: 4.40},
	"claude-3-5-haiku": {Prompt: 0.80, Completion: 4.0},
	"claude-3-5-sonnet": {Prompt: 3.0, Completion: 15.0},
	"claude-sonnet-4":  {Prompt: 3.0, Completion: 15.0},
	"claude-opus-4":    {Prompt: 15.0, Completion: 75.0},
	"gemini-1.5-flash": {Prompt: 0.075, Completion: 0.30},
	"gemini-2.0-flash": {Prompt: 0.10, Completion: 0.40},
	"gemini-1.5-pro":   {Prompt: 1.25, Completion: 5.0},
}

// StaticCalculator implements CostCalculator from a fixed pricing table,
// used when no live provider catalog is wired in (the CLI's default path).
type StaticCalculator struct{}

// NewStaticCalculator returns a CostCalculator backed by knownPricing.
func NewStaticCalculator() *StaticCalculator {
	return &StaticCalculator{}
}

// CalculateCostFromTokens converts token counts into a USD cost, resolving
// modelID against knownPricing by substring match (the longest matching key
// wins, so "gpt-4o-mini" is not priced as "gpt-4o") and falling back to
// defaultPricing on a miss.
func (StaticCalculator) CalculateCostFromTokens(modelID string, promptTokens, completionTokens int) (float64, error) {
	pricing := defaultPricing
	lower := strings.ToLower(modelID)
	matched := ""
	for key, p := range knownPricing {
		if strings.Contains(lower, key) && len(key) > len(matched) {
			pricing = p
			matched = key
		}
	}
	promptCost := (float64(promptTokens) / 1_000_000) * pricing.Prompt
	completionCost := (float64(completionTokens) / 1_000_000) * pricing.Completion
	return promptCost + completionCost, nil
}
