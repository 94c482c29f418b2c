package mcpclient

import (
	"testing"

	"github.com/vtcode/vtcode/pkg/tools"
)

func TestToolAdapterNamePrefixesServer(t *testing.T) {
	m, _ := fakeConnectedManager()
	adapter := NewToolAdapter(m, "fs", ToolDefinition{Name: "read_file"}, 0)
	if adapter.Name() != "mcp__fs__read_file" {
		t.Errorf("unexpected name: %s", adapter.Name())
	}
}

func TestToolAdapterDefinitionConvertsSchema(t *testing.T) {
	m, _ := fakeConnectedManager()
	tool := ToolDefinition{
		Name:        "read_file",
		Description: "reads a file",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "file path"},
			},
			"required": []any{"path"},
		},
	}
	adapter := NewToolAdapter(m, "fs", tool, 0)
	def := adapter.Definition()

	if def.Name != "mcp__fs__read_file" || def.Description != "reads a file" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	prop, ok := def.Parameters.Properties["path"]
	if !ok || prop.Type != "string" {
		t.Fatalf("expected a string 'path' property, got %+v", def.Parameters.Properties)
	}
	if len(def.Parameters.Required) != 1 || def.Parameters.Required[0] != "path" {
		t.Errorf("expected required=[path], got %v", def.Parameters.Required)
	}
}

func TestRegisterAllSkipsDisallowedTools(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.SetAllowlist("fs", ProviderAllowlist{ToolGlobs: []string{"read_*"}})

	reg := tools.NewRegistry()
	adapters, err := RegisterAll(m, reg)
	if err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	if len(adapters) != 1 {
		t.Fatalf("expected exactly 1 registered adapter, got %d", len(adapters))
	}
	if _, ok := reg.Get("mcp__fs__read_file"); !ok {
		t.Error("expected mcp__fs__read_file to be registered")
	}
	if _, ok := reg.Get("mcp__fs__write_file"); ok {
		t.Error("expected mcp__fs__write_file to be excluded by the allow-list")
	}
}

func TestListToolInfoReflectsAllowlist(t *testing.T) {
	m, _ := fakeConnectedManager()
	infos := ListToolInfo(m)
	if len(infos) != 2 {
		t.Fatalf("expected 2 tools with an empty allow-list, got %d", len(infos))
	}
}
