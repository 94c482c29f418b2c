// Package modelpicker implements the Model Picker: a three-step FSM
// (AwaitModel → AwaitReasoning → AwaitApiKey → Completed) that selects a
// provider/model/reasoning-effort triple and the API key backing it, then
// writes the result into pkg/config and mirrors it across every
// provider's default-model entry. Dynamic model list refresh and
// env/.env probing before prompting are supported via the Lister port
// below — see DESIGN.md. The searchable list/prompt UI itself reuses
// pkg/tui's List and Wizard modals rather than rebuilding one.
package modelpicker

// Option is one selectable model entry: a provider/model pair, whether it
// is a reasoning-capable model, and — for reasoning models — the paired
// non-reasoning variant to auto-switch to when reasoning is disabled.
type Option struct {
	Provider            string
	Model               string
	Reasoning           bool
	NonReasoningVariant string // empty if none exists
}

// predefined is the static catalog shipped with vtcode. Dynamic models
// discovered at runtime (via a Lister) are appended to this list for
// display, tagged separately so "refresh" can re-run discovery without
// losing the static entries.
var predefined = []Option{
	{Provider: "openrouter", Model: "moonshotai/kimi-k2-thinking", Reasoning: true, NonReasoningVariant: "moonshotai/kimi-k2"},
	{Provider: "openrouter", Model: "moonshotai/kimi-k2", Reasoning: false},
	{Provider: "openai", Model: "openai/gpt-5.2-codex-xhigh", Reasoning: true, NonReasoningVariant: "openai/gpt-5.2-codex"},
	{Provider: "openai", Model: "openai/gpt-5.2-codex", Reasoning: false},
	{Provider: "anthropic", Model: "anthropic/claude-sonnet-4-5", Reasoning: true, NonReasoningVariant: "anthropic/claude-sonnet-4-5-fast"},
	{Provider: "anthropic", Model: "anthropic/claude-sonnet-4-5-fast", Reasoning: false},
	{Provider: "google", Model: "google/gemini-3-pro", Reasoning: true, NonReasoningVariant: "google/gemini-3-flash"},
	{Provider: "google", Model: "google/gemini-3-flash", Reasoning: false},
}

// Predefined returns the static model catalog.
func Predefined() []Option {
	out := make([]Option, len(predefined))
	copy(out, predefined)
	return out
}

// Lister discovers additional models at runtime — e.g. an OpenRouter
// "/models" call, or locally installed Ollama tags. Picker treats a nil
// or erroring Lister as "no dynamic models available" rather than a fatal
// condition, since the static catalog always has entries to fall back to.
type Lister interface {
	ListModels() ([]Option, error)
}

// FindByModel returns the catalog entry for a model string, searching both
// the static catalog and any supplied dynamic options.
func FindByModel(model string, dynamic []Option) (Option, bool) {
	for _, o := range predefined {
		if o.Model == model {
			return o, true
		}
	}
	for _, o := range dynamic {
		if o.Model == model {
			return o, true
		}
	}
	return Option{}, false
}
