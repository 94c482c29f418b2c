package config

import (
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Models.DefaultProvider != DefaultProvider {
		t.Errorf("expected default provider %q, got %q", DefaultProvider, cfg.Models.DefaultProvider)
	}
	if cfg.Sandbox.Mode != "workspace_write" {
		t.Errorf("expected default sandbox mode workspace_write, got %q", cfg.Sandbox.Mode)
	}
	if cfg.Safety.ApprovalRiskThreshold != DefaultApprovalRisk {
		t.Errorf("expected default approval risk %q, got %q", DefaultApprovalRisk, cfg.Safety.ApprovalRiskThreshold)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Models.DefaultModel != providerDefaultModels[DefaultProvider] {
		t.Errorf("expected default model fallback, got %q", cfg.Models.DefaultModel)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Models.DefaultModel = "anthropic/claude-sonnet-4-5"
	cfg.Sandbox.WritableRoots = []string{"/workspace"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Models.DefaultModel != cfg.Models.DefaultModel {
		t.Errorf("expected model %q, got %q", cfg.Models.DefaultModel, loaded.Models.DefaultModel)
	}
	if len(loaded.Sandbox.WritableRoots) != 1 || loaded.Sandbox.WritableRoots[0] != "/workspace" {
		t.Errorf("writable roots did not round-trip: %#v", loaded.Sandbox.WritableRoots)
	}
}

func TestModelFor(t *testing.T) {
	cfg := Default()

	if got := cfg.ModelFor("anthropic"); got != defaultAnthropicModel {
		t.Errorf("expected anthropic default model, got %q", got)
	}

	cfg.Models.DefaultProvider = "openai"
	cfg.Models.DefaultModel = "openai/custom"
	if got := cfg.ModelFor("openai"); got != "openai/custom" {
		t.Errorf("expected overridden model, got %q", got)
	}
}

func TestResolveProjectRootDefaultsToCwd(t *testing.T) {
	root := ResolveProjectRoot(nil)
	if root == "" {
		t.Error("expected non-empty project root")
	}
}

func TestResolveProjectRootUsesWritableRoot(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.WritableRoots = []string{"/tmp/vtcode-workspace"}

	root := ResolveProjectRoot(cfg)
	if root != "/tmp/vtcode-workspace" {
		t.Errorf("expected configured writable root, got %q", root)
	}
}
