package mcpclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vtcode/vtcode/pkg/tools"
)

// ToolAdapter wraps a single MCP tool as a VTCode tools.Definition plus the
// executor that routes a call back through the owning Manager.
type ToolAdapter struct {
	manager    *Manager
	serverName string
	tool       ToolDefinition
	timeout    time.Duration
}

// NewToolAdapter creates an adapter for one provider's tool.
func NewToolAdapter(manager *Manager, serverName string, tool ToolDefinition, timeout time.Duration) *ToolAdapter {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ToolAdapter{manager: manager, serverName: serverName, tool: tool, timeout: timeout}
}

// Name returns the tool name prefixed with its provider, avoiding collisions
// between providers that expose tools of the same name.
func (t *ToolAdapter) Name() string {
	return fmt.Sprintf("mcp__%s__%s", t.serverName, t.tool.Name)
}

// Definition converts the MCP tool's JSON-schema input into a
// tools.Definition suitable for registration alongside the unified verbs.
func (t *ToolAdapter) Definition() tools.Definition {
	return tools.Definition{
		Name:        t.Name(),
		Description: t.tool.Description,
		Parameters:  schemaFromMCP(t.tool.InputSchema),
	}
}

func schemaFromMCP(raw map[string]any) tools.Schema {
	schema := tools.Schema{Type: "object", Properties: map[string]tools.Property{}}

	props, _ := raw["properties"].(map[string]any)
	for name, propRaw := range props {
		prop, ok := propRaw.(map[string]any)
		if !ok {
			continue
		}
		p := tools.Property{
			Type:        getString(prop, "type"),
			Description: getString(prop, "description"),
		}
		if def, ok := prop["default"]; ok {
			p.Default = def
		}
		if enumRaw, ok := prop["enum"].([]any); ok {
			for _, e := range enumRaw {
				if s, ok := e.(string); ok {
					p.Enum = append(p.Enum, s)
				}
			}
		}
		schema.Properties[name] = p
	}

	if req, ok := raw["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	return schema
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Execute calls the MCP tool through the owning manager and flattens its
// content blocks into a ToolResult-shaped map.
func (t *ToolAdapter) Execute(ctx context.Context, params map[string]any) (*tools.ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.manager.CallTool(callCtx, t.serverName, t.tool.Name, params)
	if err != nil {
		r := tools.NewToolError("", fmt.Errorf("MCP tool call failed: %w", err))
		return &r, nil
	}

	if result.IsError {
		var errMsg strings.Builder
		for _, block := range result.Content {
			if block.Type == "text" {
				errMsg.WriteString(block.Text)
			}
		}
		r := tools.NewToolError("", fmt.Errorf("%s", errMsg.String()))
		return &r, nil
	}

	var textContent strings.Builder
	for i, block := range result.Content {
		if block.Type == "text" {
			textContent.WriteString(block.Text)
			if i < len(result.Content)-1 {
				textContent.WriteString("\n")
			}
		}
	}

	r, err := tools.NewToolResult("", textContent.String())
	if err != nil {
		errResult := tools.NewToolError("", err)
		return &errResult, nil
	}
	return &r, nil
}

// RegisterAll registers every allow-listed MCP tool from manager into reg,
// wrapping each as a ToolAdapter. Returns the adapters so callers can route
// Execute calls by name.
func RegisterAll(manager *Manager, reg *tools.Registry) (map[string]*ToolAdapter, error) {
	adapters := make(map[string]*ToolAdapter)
	if manager == nil || reg == nil {
		return adapters, nil
	}
	for _, twt := range manager.AllTools() {
		timeout := 60 * time.Second
		manager.mu.RLock()
		if cfg, ok := manager.configs[twt.Server]; ok && cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		manager.mu.RUnlock()

		adapter := NewToolAdapter(manager, twt.Server, twt.Tool, timeout)
		if err := reg.Register(adapter.Definition()); err != nil {
			return adapters, fmt.Errorf("mcpclient: register %s: %w", adapter.Name(), err)
		}
		adapters[adapter.Name()] = adapter
	}
	return adapters, nil
}

// ToolInfo summarizes one registered MCP tool for display.
type ToolInfo struct {
	FullName    string
	Server      string
	Name        string
	Description string
}

// ListToolInfo returns display info for every allow-listed tool across all
// connected providers.
func ListToolInfo(manager *Manager) []ToolInfo {
	var infos []ToolInfo
	for _, twt := range manager.AllTools() {
		infos = append(infos, ToolInfo{
			FullName:    fmt.Sprintf("mcp__%s__%s", twt.Server, twt.Tool.Name),
			Server:      twt.Server,
			Name:        twt.Tool.Name,
			Description: twt.Tool.Description,
		})
	}
	return infos
}
