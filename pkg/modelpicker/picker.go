package modelpicker

import (
	"os"
	"strings"

	"github.com/vtcode/vtcode/pkg/config"
	vterrors "github.com/vtcode/vtcode/pkg/errors"
)

// noNonReasoningVariantNotice is reported — not returned as a hard failure —
// when reasoning is disabled for a model that has no paired non-reasoning
// variant to fall back to; the picker keeps the reasoning model selected
// and surfaces this as a notice.
const noNonReasoningVariantNotice = "no non-reasoning variant"

// Picker drives the AwaitModel → AwaitReasoning → AwaitApiKey → Completed
// FSM. It holds no rendering state of its own — an inline front-end backs
// AwaitModel/AwaitReasoning with a pkg/tui.ListModal over Options(), and
// plain mode drives the same transitions from prompt-based input.
type Picker struct {
	step         Step
	workspaceDir string
	plainMode    bool
	dynamic      []Option
	selection    Selection
	lastNotice   string
}

// NewPicker starts a fresh picker. workspaceDir is where a .env file, if
// any, is discovered for the API-key step. plainMode forces prompt-based
// fallbacks even when an inline list renderer is available.
func NewPicker(workspaceDir string, dynamic []Option, plainMode bool) *Picker {
	return &Picker{
		step:         AwaitModel,
		workspaceDir: workspaceDir,
		plainMode:    plainMode,
		dynamic:      dynamic,
	}
}

// Step reports the picker's current FSM state.
func (p *Picker) Step() Step {
	return p.step
}

// PlainMode reports whether the picker is using prompt-based fallbacks —
// set when the terminal cannot render modals, or the user explicitly picks
// "manual".
func (p *Picker) PlainMode() bool {
	return p.plainMode
}

// ForcePlainMode switches to prompt-based entry mid-flow, per "falls back
// to prompt-based entry ... when the user picks 'manual'".
func (p *Picker) ForcePlainMode() {
	p.plainMode = true
}

// Options returns the full browsable catalog: predefined entries plus any
// dynamically discovered ones, for building the AwaitModel list.
func (p *Picker) Options() []Option {
	out := make([]Option, 0, len(predefined)+len(p.dynamic))
	out = append(out, predefined...)
	out = append(out, p.dynamic...)
	return out
}

// Refresh replaces the dynamic model list, per the list's "refresh" action.
func (p *Picker) Refresh(lister Lister) error {
	if lister == nil {
		p.dynamic = nil
		return nil
	}
	models, err := lister.ListModels()
	if err != nil {
		return vterrors.Wrap(err, vterrors.ErrCodeModelAPIError, "refresh dynamic model list")
	}
	p.dynamic = models
	return nil
}

// ChooseModel implements the "custom" action (an arbitrary provider/model
// pair not in the catalog) alongside catalog selection: if model matches a
// known entry its Reasoning flag seeds AwaitReasoning; otherwise the model
// is treated as a non-reasoning custom entry.
func (p *Picker) ChooseModel(provider, model string) error {
	if p.step != AwaitModel {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: ChooseModel called outside AwaitModel")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if provider == "" || model == "" {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: provider and model are required")
	}

	p.selection.Provider = provider
	p.selection.Model = model
	if opt, ok := FindByModel(model, p.dynamic); ok {
		p.selection.ReasoningOn = opt.Reasoning
	} else {
		p.selection.ReasoningOn = false
	}
	p.step = AwaitReasoning
	return nil
}

// SetReasoning implements the AwaitReasoning step. When disabling reasoning
// on a model with a paired non-reasoning variant, the picker auto-switches
// the selection to that variant; otherwise it records a notice
// ("no non-reasoning variant") and keeps the reasoning model selected —
// LastNotice reports this to the caller for display.
func (p *Picker) SetReasoning(enabled bool, effort string) error {
	if p.step != AwaitReasoning {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: SetReasoning called outside AwaitReasoning")
	}
	p.lastNotice = ""

	if !enabled {
		opt, ok := FindByModel(p.selection.Model, p.dynamic)
		if ok && opt.Reasoning && opt.NonReasoningVariant != "" {
			p.selection.Model = opt.NonReasoningVariant
			p.selection.ReasoningOn = false
		} else if ok && opt.Reasoning {
			p.lastNotice = noNonReasoningVariantNotice
			p.selection.ReasoningOn = true
		} else {
			p.selection.ReasoningOn = false
		}
	} else {
		p.selection.ReasoningOn = true
	}

	p.selection.ReasoningEffort = effort
	p.step = AwaitApiKey
	return nil
}

// LastNotice returns the non-fatal notice from the most recent step, if
// any (currently only set by SetReasoning).
func (p *Picker) LastNotice() string {
	return p.lastNotice
}

// ResolveAPIKey implements the AwaitApiKey step's automatic path: checking
// the target env var, then a workspace .env. It returns true when a key
// was found without prompting, advancing straight to Completed.
func (p *Picker) ResolveAPIKey() bool {
	if p.step != AwaitApiKey {
		return false
	}
	if key, ok := resolveAPIKey(p.selection.Provider, p.workspaceDir); ok {
		p.selection.APIKey = key
		source := "dotenv"
		if v, present := os.LookupEnv(envVarFor(p.selection.Provider)); present && strings.TrimSpace(v) != "" {
			source = "env"
		}
		p.selection.APIKeySource = source
		p.step = Completed
		return true
	}
	return false
}

// SetAPIKey implements the AwaitApiKey step's prompt fallback, used only
// when ResolveAPIKey found nothing.
func (p *Picker) SetAPIKey(key string) error {
	if p.step != AwaitApiKey {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: SetAPIKey called outside AwaitApiKey")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: API key must not be empty")
	}
	p.selection.APIKey = key
	p.selection.APIKeySource = "prompt"
	p.step = Completed
	return nil
}

// Selection returns the accumulated selection, valid once Step is
// Completed.
func (p *Picker) Selection() Selection {
	return p.selection
}

// Complete writes the selection into cfg: agent.provider, agent.default_model,
// and agent.reasoning_effort map onto cfg.Models, custom_api_keys records the
// resolved key, and the chosen model is mirrored into every provider's
// default-model entry (vtcode's router-models tiers).
func (p *Picker) Complete(cfg *config.Config) error {
	if p.step != Completed {
		return vterrors.New(vterrors.ErrCodeInvalidInput, "model picker: Complete called before reaching Completed")
	}

	cfg.Models.DefaultProvider = p.selection.Provider
	cfg.Models.DefaultModel = p.selection.Model
	if p.selection.ReasoningOn {
		cfg.Models.Reasoning = p.selection.ReasoningEffort
	} else {
		cfg.Models.Reasoning = ""
	}

	if cfg.CustomAPIKeys == nil {
		cfg.CustomAPIKeys = map[string]string{}
	}
	if p.selection.APIKey != "" {
		cfg.CustomAPIKeys[p.selection.Provider] = p.selection.APIKey
	}

	mirrorModel(cfg, p.selection.Provider, p.selection.Model)
	return nil
}

// mirrorModel writes model into every provider tier's default-model entry,
// the picked provider's included.
func mirrorModel(cfg *config.Config, provider, model string) {
	cfg.Providers.OpenRouter.DefaultModel = model
	cfg.Providers.OpenAI.DefaultModel = model
	cfg.Providers.Anthropic.DefaultModel = model
	cfg.Providers.Google.DefaultModel = model
}
