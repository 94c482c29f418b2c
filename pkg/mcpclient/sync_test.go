package mcpclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSyncToolsToFilesWritesPerToolDocsIndexAndStatus(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.SetAllowlist("fs", ProviderAllowlist{ToolGlobs: []string{"read_*"}})

	root := t.TempDir()
	if err := m.SyncToolsToFiles(root); err != nil {
		t.Fatalf("SyncToolsToFiles failed: %v", err)
	}

	toolsDir := filepath.Join(root, ".vtcode", "mcp", "tools")

	if _, err := os.Stat(filepath.Join(toolsDir, "fs", "read_file.md")); err != nil {
		t.Errorf("expected read_file.md to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(toolsDir, "fs", "write_file.md")); err == nil {
		t.Error("expected write_file.md to be skipped by the allow-list")
	}

	indexData, err := os.ReadFile(filepath.Join(toolsDir, "INDEX.md"))
	if err != nil {
		t.Fatalf("expected INDEX.md: %v", err)
	}
	if !strings.Contains(string(indexData), "read_file") {
		t.Errorf("expected INDEX.md to mention read_file, got:\n%s", indexData)
	}

	statusData, err := os.ReadFile(filepath.Join(toolsDir, "status.json"))
	if err != nil {
		t.Fatalf("expected status.json: %v", err)
	}
	var status Status
	if err := json.Unmarshal(statusData, &status); err != nil {
		t.Fatalf("failed to parse status.json: %v", err)
	}
	if !status.Enabled || status.ProviderCount != 1 || status.ActiveConnections != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
	if len(status.ConfiguredProviders) != 1 || status.ConfiguredProviders[0] != "fs" {
		t.Errorf("expected configured_providers=[fs], got %v", status.ConfiguredProviders)
	}
	if status.LastUpdated == "" {
		t.Error("expected a non-empty last_updated timestamp")
	}
}
