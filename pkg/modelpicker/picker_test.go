package modelpicker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vtcode/vtcode/pkg/config"
)

func TestPickerHappyPathResolvesKeyFromEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-test-123")

	p := NewPicker(t.TempDir(), nil, false)
	if err := p.ChooseModel("openrouter", "moonshotai/kimi-k2-thinking"); err != nil {
		t.Fatalf("ChooseModel: %v", err)
	}
	if p.Step() != AwaitReasoning {
		t.Fatalf("expected AwaitReasoning, got %v", p.Step())
	}

	if err := p.SetReasoning(true, "high"); err != nil {
		t.Fatalf("SetReasoning: %v", err)
	}
	if p.Step() != AwaitApiKey {
		t.Fatalf("expected AwaitApiKey, got %v", p.Step())
	}

	if !p.ResolveAPIKey() {
		t.Fatal("expected ResolveAPIKey to find the env var")
	}
	if p.Step() != Completed {
		t.Fatalf("expected Completed, got %v", p.Step())
	}

	cfg := config.Default()
	if err := p.Complete(cfg); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if cfg.Models.DefaultProvider != "openrouter" || cfg.Models.DefaultModel != "moonshotai/kimi-k2-thinking" {
		t.Errorf("unexpected model config: %+v", cfg.Models)
	}
	if cfg.Models.Reasoning != "high" {
		t.Errorf("expected reasoning effort 'high', got %q", cfg.Models.Reasoning)
	}
	if cfg.CustomAPIKeys["openrouter"] != "sk-test-123" {
		t.Errorf("expected the resolved key recorded, got %+v", cfg.CustomAPIKeys)
	}
	if cfg.Providers.OpenRouter.DefaultModel != "moonshotai/kimi-k2-thinking" {
		t.Errorf("expected the provider tier mirrored, got %q", cfg.Providers.OpenRouter.DefaultModel)
	}
}

func TestPickerDisablingReasoningSwitchesToPairedVariant(t *testing.T) {
	p := NewPicker(t.TempDir(), nil, false)
	if err := p.ChooseModel("openai", "openai/gpt-5.2-codex-xhigh"); err != nil {
		t.Fatalf("ChooseModel: %v", err)
	}
	if err := p.SetReasoning(false, ""); err != nil {
		t.Fatalf("SetReasoning: %v", err)
	}
	if p.LastNotice() != "" {
		t.Errorf("expected no notice when a paired variant exists, got %q", p.LastNotice())
	}
	if p.Selection().Model != "openai/gpt-5.2-codex" {
		t.Errorf("expected auto-switch to the non-reasoning variant, got %q", p.Selection().Model)
	}
}

func TestPickerDisablingReasoningWithNoVariantReportsNotice(t *testing.T) {
	p := NewPicker(t.TempDir(), []Option{{Provider: "custom", Model: "custom/solo-reasoner", Reasoning: true}}, false)
	if err := p.ChooseModel("custom", "custom/solo-reasoner"); err != nil {
		t.Fatalf("ChooseModel: %v", err)
	}
	if err := p.SetReasoning(false, ""); err != nil {
		t.Fatalf("SetReasoning: %v", err)
	}
	if p.LastNotice() != noNonReasoningVariantNotice {
		t.Errorf("expected the no-variant notice, got %q", p.LastNotice())
	}
	if p.Selection().Model != "custom/solo-reasoner" {
		t.Errorf("expected the model to stay unchanged, got %q", p.Selection().Model)
	}
}

func TestResolveAPIKeyFallsBackToDotenv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ANTHROPIC_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewPicker(dir, nil, false)
	if err := p.ChooseModel("anthropic", "anthropic/claude-sonnet-4-5"); err != nil {
		t.Fatalf("ChooseModel: %v", err)
	}
	if err := p.SetReasoning(true, "medium"); err != nil {
		t.Fatalf("SetReasoning: %v", err)
	}
	if !p.ResolveAPIKey() {
		t.Fatal("expected the .env value to resolve the key")
	}
	if p.Selection().APIKeySource != "dotenv" {
		t.Errorf("expected source 'dotenv', got %q", p.Selection().APIKeySource)
	}
}

func TestResolveAPIKeyPromptFallbackWhenNeitherSourceHasAValue(t *testing.T) {
	p := NewPicker(t.TempDir(), nil, false)
	if err := p.ChooseModel("google", "google/gemini-3-pro"); err != nil {
		t.Fatalf("ChooseModel: %v", err)
	}
	if err := p.SetReasoning(true, "medium"); err != nil {
		t.Fatalf("SetReasoning: %v", err)
	}
	if p.ResolveAPIKey() {
		t.Fatal("expected ResolveAPIKey to fail with no env var or .env present")
	}
	if err := p.SetAPIKey("typed-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if p.Step() != Completed {
		t.Fatalf("expected Completed after the prompt fallback, got %v", p.Step())
	}
	if p.Selection().APIKeySource != "prompt" {
		t.Errorf("expected source 'prompt', got %q", p.Selection().APIKeySource)
	}
}

func TestSetAPIKeyRejectsEmpty(t *testing.T) {
	p := NewPicker(t.TempDir(), nil, false)
	_ = p.ChooseModel("google", "google/gemini-3-pro")
	_ = p.SetReasoning(true, "medium")

	if err := p.SetAPIKey("   "); err == nil {
		t.Fatal("expected an error for an empty API key")
	}
}

func TestForcePlainModeSwitchesToPromptFallback(t *testing.T) {
	p := NewPicker(t.TempDir(), nil, false)
	if p.PlainMode() {
		t.Fatal("expected inline mode initially")
	}
	p.ForcePlainMode()
	if !p.PlainMode() {
		t.Error("expected plain mode after ForcePlainMode")
	}
}

func TestRefreshWithNilListerClearsDynamicModels(t *testing.T) {
	p := NewPicker(t.TempDir(), []Option{{Provider: "x", Model: "x/y"}}, false)
	if err := p.Refresh(nil); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for _, o := range p.Options() {
		if o.Model == "x/y" {
			t.Error("expected stale dynamic models cleared by a nil lister")
		}
	}
}

type stubLister struct {
	options []Option
	err     error
}

func (s stubLister) ListModels() ([]Option, error) {
	return s.options, s.err
}

func TestRefreshAppendsDiscoveredModels(t *testing.T) {
	p := NewPicker(t.TempDir(), nil, false)
	lister := stubLister{options: []Option{{Provider: "local", Model: "local/llama"}}}
	if err := p.Refresh(lister); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	found := false
	for _, o := range p.Options() {
		if o.Model == "local/llama" {
			found = true
		}
	}
	if !found {
		t.Error("expected the discovered model to appear in Options()")
	}
}
